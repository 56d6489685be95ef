package models

import (
	"fmt"
	"time"
)

// Direction is the orientation of a trade flow.
type Direction string

const (
	DirectionImport Direction = "import"
	DirectionExport Direction = "export"
)

// StoreCode returns the code the trade-flow fact table uses for d.
func (d Direction) StoreCode() (string, error) {
	switch d {
	case DirectionImport:
		return "ИМ", nil
	case DirectionExport:
		return "ЭК", nil
	default:
		return "", fmt.Errorf("unknown direction %q", string(d))
	}
}

// ParseDirection accepts both API names and store codes.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "import", "ИМ":
		return DirectionImport, nil
	case "export", "ЭК":
		return DirectionExport, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// SeriesFilter selects one product/country/direction slice of the store.
// Nil fields mean the selector was left unset.
type SeriesFilter struct {
	Product   *string    `json:"product"`
	Country   *string    `json:"country"`
	Direction *Direction `json:"direction"`
}

// NewSeriesFilter builds a fully populated filter.
func NewSeriesFilter(product, country string, dir Direction) SeriesFilter {
	return SeriesFilter{Product: &product, Country: &country, Direction: &dir}
}

// Key is a stable string form, used as a Kafka message key and in logs.
func (f SeriesFilter) Key() string {
	return fmt.Sprintf("%s|%s|%s", deref(f.Product), deref(f.Country), derefDir(f.Direction))
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func derefDir(d *Direction) string {
	if d == nil {
		return "<nil>"
	}
	return string(*d)
}

// VolumeRow is one grouped row as returned by the store.
type VolumeRow struct {
	Period time.Time
	Volume float64
}

// TimeSeriesPoint is a period-truncated UTC observation.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series holds points with strictly increasing, unique timestamps.
type Series []TimeSeriesPoint

// Last returns the final point. The caller guarantees len(s) > 0.
func (s Series) Last() TimeSeriesPoint { return s[len(s)-1] }

// Timestamps returns the point timestamps in order.
func (s Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s))
	for i, p := range s {
		out[i] = p.Timestamp
	}
	return out
}

// Span is the distance between first and last timestamps.
func (s Series) Span() time.Duration {
	if len(s) < 2 {
		return 0
	}
	return s[len(s)-1].Timestamp.Sub(s[0].Timestamp)
}

// SeasonalityMode controls whether a seasonal component is included.
type SeasonalityMode string

const (
	SeasonalityAuto SeasonalityMode = "auto"
	SeasonalityOn   SeasonalityMode = "on"
	SeasonalityOff  SeasonalityMode = "off"
)

// Valid reports whether m is one of the known modes.
func (m SeasonalityMode) Valid() bool {
	switch m {
	case SeasonalityAuto, SeasonalityOn, SeasonalityOff:
		return true
	}
	return false
}

// FitConfig is the per-request model configuration.
type FitConfig struct {
	YearlySeasonality SeasonalityMode `json:"yearly_seasonality"`
	WeeklySeasonality SeasonalityMode `json:"weekly_seasonality"`
}

// DefaultFitConfig lets the engine decide both seasonalities from the data.
func DefaultFitConfig() FitConfig {
	return FitConfig{YearlySeasonality: SeasonalityAuto, WeeklySeasonality: SeasonalityAuto}
}

// ForecastPoint is a projected value with its interval, Lower <= Estimate <= Upper.
type ForecastPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Estimate  float64   `json:"estimate"`
	Lower     float64   `json:"lower"`
	Upper     float64   `json:"upper"`
}
