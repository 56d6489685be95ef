package forecast

import (
	"math"
	"sort"
	"time"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
)

// Normalize turns raw store rows into a canonical Series.
//
// Periods are truncated to their calendar date in UTC and rows sharing a date
// are summed. Missing periods are not synthesized: the series holds exactly
// the distinct dates present, so the fitting engine works on irregular
// spacing. Negative and non-finite volumes are dropped.
func Normalize(rows []models.VolumeRow) (models.Series, error) {
	sums := make(map[time.Time]float64, len(rows))
	for _, r := range rows {
		if math.IsNaN(r.Volume) || math.IsInf(r.Volume, 0) || r.Volume < 0 {
			continue
		}
		sums[TruncateDay(r.Period)] += r.Volume
	}
	if len(sums) == 0 {
		return nil, domain.EmptyResult(domain.StageNormalize, "no usable rows after normalization")
	}

	series := make(models.Series, 0, len(sums))
	for ts, v := range sums {
		series = append(series, models.TimeSeriesPoint{Timestamp: ts, Value: v})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Timestamp.Before(series[j].Timestamp)
	})
	return series, nil
}

// TruncateDay keeps the calendar date of t and pins it to midnight UTC.
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
