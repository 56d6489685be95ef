package forecast

import (
	"math"
	"time"

	"TradeCast/internal/domain/models"
)

const (
	yearDays = 365.25
	weekDays = 7.0
)

type seasonality struct {
	name   string
	period float64 // days
	order  int
}

// design maps timestamps to regressor rows laid out as
// [1, t, (t-s_1)+ ... (t-s_k)+, sin/cos pairs per seasonality].
// t is scaled so the history spans [0, 1].
type design struct {
	origin        time.Time
	span          time.Duration
	changepoints  []float64
	seasonalities []seasonality
}

func (d *design) scaled(ts time.Time) float64 {
	return float64(ts.Sub(d.origin)) / float64(d.span)
}

func (d *design) trendCols() int { return 2 + len(d.changepoints) }

func (d *design) width() int {
	w := d.trendCols()
	for _, s := range d.seasonalities {
		w += 2 * s.order
	}
	return w
}

func (d *design) row(ts time.Time, dst []float64) []float64 {
	if cap(dst) < d.width() {
		dst = make([]float64, d.width())
	}
	dst = dst[:d.width()]

	t := d.scaled(ts)
	dst[0] = 1
	dst[1] = t
	for j, s := range d.changepoints {
		dst[2+j] = math.Max(t-s, 0)
	}

	// Seasonal phase is keyed to days since the Unix epoch so it does not
	// depend on where the history starts.
	days := float64(ts.Unix()) / 86400
	col := d.trendCols()
	for _, s := range d.seasonalities {
		for n := 1; n <= s.order; n++ {
			arg := 2 * math.Pi * float64(n) * days / s.period
			dst[col] = math.Sin(arg)
			dst[col+1] = math.Cos(arg)
			col += 2
		}
	}
	return dst
}

// placeChangepoints spreads up to max candidates evenly over the first
// rangeFrac of the observations, at observed timestamps.
func placeChangepoints(t []float64, rangeFrac float64, max int) []float64 {
	hist := int(math.Floor(float64(len(t)) * rangeFrac))
	n := hist - 1
	if n > max {
		n = max
	}
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	for j := 1; j <= n; j++ {
		idx := int(math.Round(float64(j) * float64(hist-1) / float64(n)))
		cps = append(cps, t[idx])
	}
	return cps
}

// selectSeasonalities applies the auto heuristic: a component is included
// when the history covers at least two full cycles and the sampling is fine
// enough to see it. Orders are capped below the Nyquist limit of the
// observed frequency.
func selectSeasonalities(cfg models.FitConfig, span time.Duration, freq Frequency, yearlyOrder, weeklyOrder int) []seasonality {
	spanDays := span.Hours() / 24
	var out []seasonality

	yearly := false
	switch cfg.YearlySeasonality {
	case models.SeasonalityOn:
		yearly = true
	case models.SeasonalityAuto, "":
		yearly = spanDays >= 2*yearDays
	}
	if yearly {
		out = append(out, seasonality{name: "yearly", period: yearDays, order: capOrder(yearlyOrder, yearDays, freq)})
	}

	weekly := false
	switch cfg.WeeklySeasonality {
	case models.SeasonalityOn:
		weekly = true
	case models.SeasonalityAuto, "":
		weekly = spanDays >= 2*weekDays && freq.Days() < weekDays
	}
	if weekly {
		out = append(out, seasonality{name: "weekly", period: weekDays, order: capOrder(weeklyOrder, weekDays, freq)})
	}
	return out
}

func capOrder(order int, period float64, freq Frequency) int {
	perCycle := period / freq.Days()
	limit := int(math.Floor((perCycle - 1) / 2))
	if limit < order {
		order = limit
	}
	if order < 1 {
		order = 1
	}
	return order
}
