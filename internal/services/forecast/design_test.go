package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TradeCast/internal/domain/models"
)

func TestInferFrequency(t *testing.T) {
	monthly := []time.Time{date(2023, 1, 1), date(2023, 2, 1), date(2023, 3, 1), date(2023, 4, 1)}
	assert.Equal(t, Monthly, InferFrequency(monthly))

	var daily []time.Time
	for i := 0; i < 10; i++ {
		daily = append(daily, date(2023, 1, 1).AddDate(0, 0, i))
	}
	assert.Equal(t, Daily, InferFrequency(daily))

	weekly := []time.Time{date(2023, 1, 2), date(2023, 1, 9), date(2023, 1, 16)}
	assert.Equal(t, Weekly, InferFrequency(weekly))

	quarterly := []time.Time{date(2022, 1, 1), date(2022, 4, 1), date(2022, 7, 1)}
	assert.Equal(t, Quarterly, InferFrequency(quarterly))

	odd := []time.Time{date(2023, 1, 1), date(2023, 1, 15), date(2023, 1, 29)}
	f := InferFrequency(odd)
	assert.Equal(t, "custom", f.Name)
	assert.Equal(t, 14*24*time.Hour, f.Step)
}

func TestInferFrequencyToleratesIrregularGaps(t *testing.T) {
	// One missing month does not change the median spacing.
	ts := []time.Time{date(2023, 1, 1), date(2023, 2, 1), date(2023, 4, 1), date(2023, 5, 1), date(2023, 6, 1)}
	assert.Equal(t, Monthly, InferFrequency(ts))
}

func TestFrequencyAtClampsMonthEnd(t *testing.T) {
	assert.Equal(t, date(2023, 2, 28), Monthly.At(date(2023, 1, 31), 1))
	assert.Equal(t, date(2024, 2, 29), Monthly.At(date(2024, 1, 31), 1))
	assert.Equal(t, date(2023, 3, 31), Monthly.At(date(2023, 1, 31), 2))
	assert.Equal(t, date(2024, 1, 1), Quarterly.At(date(2023, 10, 1), 1))
	assert.Equal(t, date(2023, 1, 8), Weekly.At(date(2023, 1, 1), 1))
}

func TestPlaceChangepoints(t *testing.T) {
	assert.Empty(t, placeChangepoints([]float64{0, 1}, 0.8, 25))

	three := placeChangepoints([]float64{0, 0.5, 1}, 0.8, 25)
	assert.Equal(t, []float64{0.5}, three)

	var ts []float64
	for i := 0; i < 100; i++ {
		ts = append(ts, float64(i)/99)
	}
	cps := placeChangepoints(ts, 0.8, 25)
	require.Len(t, cps, 25)
	for i := 1; i < len(cps); i++ {
		assert.Greater(t, cps[i], cps[i-1])
	}
	assert.LessOrEqual(t, cps[len(cps)-1], 0.8)
}

func TestSelectSeasonalitiesAuto(t *testing.T) {
	auto := models.DefaultFitConfig()

	// Three years of monthly data: yearly only, order capped below Nyquist.
	got := selectSeasonalities(auto, 3*365*24*time.Hour, Monthly, 10, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "yearly", got[0].name)
	assert.Equal(t, 5, got[0].order)

	// Two months of daily data: weekly only.
	got = selectSeasonalities(auto, 60*24*time.Hour, Daily, 10, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "weekly", got[0].name)
	assert.Equal(t, 3, got[0].order)

	// A short monthly history gets nothing.
	assert.Empty(t, selectSeasonalities(auto, 59*24*time.Hour, Monthly, 10, 3))
}

func TestSelectSeasonalitiesForced(t *testing.T) {
	cfg := models.FitConfig{YearlySeasonality: models.SeasonalityOn, WeeklySeasonality: models.SeasonalityOff}
	got := selectSeasonalities(cfg, 59*24*time.Hour, Monthly, 10, 3)
	require.Len(t, got, 1)
	assert.Equal(t, "yearly", got[0].name)

	cfg = models.FitConfig{YearlySeasonality: models.SeasonalityOff, WeeklySeasonality: models.SeasonalityOff}
	assert.Empty(t, selectSeasonalities(cfg, 5*365*24*time.Hour, Daily, 10, 3))
}

func TestDesignRowLayout(t *testing.T) {
	d := &design{
		origin:        date(2023, 1, 1),
		span:          10 * 24 * time.Hour,
		changepoints:  []float64{0.2, 0.6},
		seasonalities: []seasonality{{name: "weekly", period: weekDays, order: 2}},
	}
	require.Equal(t, 8, d.width())

	row := d.row(date(2023, 1, 6), nil)
	assert.Equal(t, 1.0, row[0])
	assert.InDelta(t, 0.5, row[1], 1e-12)
	assert.InDelta(t, 0.3, row[2], 1e-12)
	assert.Equal(t, 0.0, row[3])
}
