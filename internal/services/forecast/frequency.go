package forecast

import (
	"math"
	"sort"
	"time"
)

const day = 24 * time.Hour

// Frequency is the inferred spacing of a series. Calendar frequencies step in
// months so that month-start data stays on month starts.
type Frequency struct {
	Name   string
	Months int
	Step   time.Duration
}

var (
	Daily     = Frequency{Name: "daily", Step: day}
	Weekly    = Frequency{Name: "weekly", Step: 7 * day}
	Monthly   = Frequency{Name: "monthly", Months: 1}
	Quarterly = Frequency{Name: "quarterly", Months: 3}
	Yearly    = Frequency{Name: "yearly", Months: 12}
)

// Days is the nominal period length in days.
func (f Frequency) Days() float64 {
	if f.Months > 0 {
		return float64(f.Months) * 365.25 / 12
	}
	return f.Step.Hours() / 24
}

// At returns the timestamp k periods after from.
func (f Frequency) At(from time.Time, k int) time.Time {
	if f.Months > 0 {
		return addMonths(from, f.Months*k)
	}
	return from.Add(time.Duration(k) * f.Step)
}

// addMonths moves t by n calendar months, clamping the day to the target
// month's length (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return first.AddDate(0, 0, d-1)
}

// InferFrequency classifies the median spacing of sorted timestamps. Spacings
// that match no calendar frequency fall back to a fixed step of whole days.
func InferFrequency(ts []time.Time) Frequency {
	if len(ts) < 2 {
		return Daily
	}
	gaps := make([]float64, 0, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		gaps = append(gaps, ts[i].Sub(ts[i-1]).Hours()/24)
	}
	sort.Float64s(gaps)
	med := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		med = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}

	switch {
	case med <= 1.5:
		return Daily
	case med >= 6 && med <= 8:
		return Weekly
	case med >= 27 && med <= 32:
		return Monthly
	case med >= 88 && med <= 93:
		return Quarterly
	case med >= 360 && med <= 370:
		return Yearly
	}
	days := math.Round(med)
	return Frequency{Name: "custom", Step: time.Duration(days) * day}
}
