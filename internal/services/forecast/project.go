package forecast

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domsvc "TradeCast/internal/domain/service"
)

// seedStream is the second PCG word; only Config.Seed varies between runs.
const seedStream = 0x5eed

// Project extends the fitted model horizon periods past the last observation.
//
// Bounds combine observation noise, parameter uncertainty at the future row
// (trend offset and slope, plus seasonal coefficients when present) and the
// compounding effect of future slope changes, which arrive at the historical
// changepoint rate with Laplace magnitudes of the mean fitted change.
func (e *Engine) Project(ctx context.Context, m domsvc.Model, horizon int) ([]models.ForecastPoint, error) {
	if horizon <= 0 || horizon > e.cfg.MaxHorizon {
		return nil, domain.InvalidHorizon(horizon, e.cfg.MaxHorizon)
	}
	fm, ok := m.(*model)
	if !ok {
		return nil, &domain.Error{
			Kind:  domain.KindModelFit,
			Stage: domain.StageProject,
			Msg:   fmt.Sprintf("model of type %T was not produced by this engine", m),
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &domain.Error{Kind: domain.KindModelFit, Stage: domain.StageProject, Msg: "projection interrupted", Err: err}
	}

	steps := fm.steps(horizon)
	switch e.cfg.Uncertainty {
	case UncertaintySampled:
		return fm.projectSampled(steps, e.cfg), nil
	default:
		return fm.projectAnalytic(steps, e.cfg), nil
	}
}

// step is one future period: its timestamp, regressor row, point estimate
// (scaled), parameter-plus-noise variance (scaled) and distance past the end
// of history in scaled time.
type step struct {
	point    models.ForecastPoint
	row      *mat.VecDense
	estimate float64
	variance float64
	ahead    float64
}

func (m *model) steps(horizon int) []step {
	out := make([]step, horizon)
	w := m.design.width()
	for k := 1; k <= horizon; k++ {
		at := m.freq.At(m.last.Timestamp, k)
		row := mat.NewVecDense(w, m.design.row(at, nil))
		out[k-1] = step{
			point:    models.ForecastPoint{Timestamp: at},
			row:      row,
			estimate: mat.Dot(row, m.sol.beta),
			variance: m.sol.sigma2 + mat.Inner(row, m.sol.cov, row),
			ahead:    m.design.scaled(at) - 1,
		}
	}
	return out
}

// changeRate is the expected number of slope changes per unit of scaled time,
// and changeScale the mean absolute fitted slope change.
func (m *model) changeRate() (rate, scale float64) {
	k := len(m.design.changepoints)
	if k == 0 {
		return 0, 0
	}
	var sum float64
	for _, d := range m.sol.beta.RawVector().Data[2 : 2+k] {
		sum += math.Abs(d)
	}
	return float64(k), sum / float64(k)
}

func (m *model) projectAnalytic(steps []step, cfg Config) []models.ForecastPoint {
	z := distuv.UnitNormal.Quantile(0.5 + cfg.IntervalWidth/2)
	rate, scale := m.changeRate()

	out := make([]models.ForecastPoint, len(steps))
	var prevSD float64
	for i, s := range steps {
		// A Laplace(b) change at lead s' contributes delta*(u-s') to the
		// trend; integrating its variance 2b^2(u-s')^2 over a Poisson
		// process of the given rate yields 2*rate*b^2*u^3/3.
		u := math.Max(s.ahead, 0)
		trendVar := 2 * rate * scale * scale * u * u * u / 3
		// Seasonal rows can lower the parameter variance from one period to
		// the next; uncertainty about the future never shrinks.
		sd := math.Max(math.Sqrt(s.variance+trendVar), prevSD)
		prevSD = sd

		p := s.point
		p.Estimate = s.estimate * m.yScale
		p.Lower = (s.estimate - z*sd) * m.yScale
		p.Upper = (s.estimate + z*sd) * m.yScale
		out[i] = clampPoint(p)
	}
	return out
}

func (m *model) projectSampled(steps []step, cfg Config) []models.ForecastPoint {
	rng := rand.New(rand.NewPCG(cfg.Seed, seedStream))
	_, scale := m.changeRate()
	// Per-period probability of a new slope change, as observed in history.
	prob := float64(len(m.design.changepoints)) / float64(m.nObs)

	draws := make([][]float64, len(steps))
	for i := range draws {
		draws[i] = make([]float64, cfg.Samples)
	}
	for s := 0; s < cfg.Samples; s++ {
		var slope, dev, prev float64
		for i, st := range steps {
			dev += slope * (st.ahead - prev)
			prev = st.ahead
			if scale > 0 && rng.Float64() < prob {
				slope += laplace(rng, scale)
			}
			draws[i][s] = st.estimate + dev + rng.NormFloat64()*math.Sqrt(st.variance)
		}
	}

	lo, hi := 0.5-cfg.IntervalWidth/2, 0.5+cfg.IntervalWidth/2
	out := make([]models.ForecastPoint, len(steps))
	for i, st := range steps {
		sort.Float64s(draws[i])
		p := st.point
		p.Estimate = st.estimate * m.yScale
		p.Lower = stat.Quantile(lo, stat.Empirical, draws[i], nil) * m.yScale
		p.Upper = stat.Quantile(hi, stat.Empirical, draws[i], nil) * m.yScale
		out[i] = clampPoint(p)
	}
	return out
}

// laplace draws from Laplace(0, b) by inverting its CDF.
func laplace(rng *rand.Rand, b float64) float64 {
	u := rng.Float64() - 0.5
	if u == -0.5 {
		u = 0
	}
	sign := 1.0
	if u < 0 {
		sign = -1
	}
	return -b * sign * math.Log(1-2*math.Abs(u))
}

// clampPoint enforces non-negative volumes and lower <= estimate <= upper.
func clampPoint(p models.ForecastPoint) models.ForecastPoint {
	p.Estimate = math.Max(p.Estimate, 0)
	p.Lower = math.Max(math.Min(p.Lower, p.Estimate), 0)
	p.Upper = math.Max(p.Upper, p.Estimate)
	return p
}
