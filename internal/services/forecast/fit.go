package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"TradeCast/internal/domain"
)

const (
	// trendRidge keeps offset and slope identifiable without shrinking them.
	trendRidge = 1e-6
	// l1Epsilon smooths |delta| in the reweighting step.
	l1Epsilon = 1e-6
	// maxCondition rejects systems too ill-conditioned to trust.
	maxCondition = 1e14
	// ridgeSigma2 is the scaled noise variance assumed by the pre-fit.
	ridgeSigma2 = 1e-2
)

// layout splits the coefficient vector into trend, changepoint and seasonal
// blocks.
type layout struct {
	changepoints int
	seasonal     int
}

func (l layout) width() int { return 2 + l.changepoints + l.seasonal }

func (l layout) deltas(beta *mat.VecDense) []float64 {
	return beta.RawVector().Data[2 : 2+l.changepoints]
}

// solution is the MAP estimate with its Laplace-approximated covariance.
type solution struct {
	beta       *mat.VecDense
	cov        *mat.SymDense
	sigma2     float64
	iterations int
	converged  bool
}

// solveMAP minimizes
//
//	sum(r^2)/(2 sigma^2) + sum|delta|/tau + sum(beta_s^2)/(2 sigma_s^2)
//
// The noise level is estimated once from a ridge pre-fit. The Laplace term is
// then handled by iteratively reweighted least squares, each step a Cholesky
// solve of (X'X + sigma^2 D) beta = X'y. Iterations stop once the objective
// changes by less than tol relative to its size.
func solveMAP(ctx context.Context, x *mat.Dense, y *mat.VecDense, lay layout, cfg Config) (*solution, error) {
	n, p := x.Dims()
	if p != lay.width() {
		return nil, domain.ModelFit(fmt.Sprintf("design has %d columns, expected %d", p, lay.width()), nil)
	}

	xtx := mat.NewSymDense(p, nil)
	xtx.SymOuterK(1, x.T())
	xty := mat.NewVecDense(p, nil)
	xty.MulVec(x.T(), y)

	tau := cfg.ChangepointPriorScale
	seasonalPenalty := 1 / (cfg.SeasonalityPriorScale * cfg.SeasonalityPriorScale)
	floor := cfg.NoiseFloor * cfg.NoiseFloor

	penalty := make([]float64, p)
	penalty[0], penalty[1] = trendRidge, trendRidge
	for j := 0; j < lay.changepoints; j++ {
		penalty[2+j] = 1 / (tau * tau)
	}
	for j := 2 + lay.changepoints; j < p; j++ {
		penalty[j] = seasonalPenalty
	}

	var chol mat.Cholesky
	beta := mat.NewVecDense(p, nil)
	resid := mat.NewVecDense(n, nil)

	solve := func(sigma2 float64) (float64, error) {
		a := mat.NewSymDense(p, nil)
		a.CopySym(xtx)
		for j := 0; j < p; j++ {
			a.SetSym(j, j, a.At(j, j)+sigma2*penalty[j])
		}
		if ok := chol.Factorize(a); !ok {
			return 0, errors.New("normal equations are not positive definite")
		}
		if c := chol.Cond(); c > maxCondition || math.IsNaN(c) {
			return 0, fmt.Errorf("normal equations are ill-conditioned (cond %.3g)", c)
		}
		if err := chol.SolveVecTo(beta, xty); err != nil {
			return 0, err
		}
		resid.MulVec(x, beta)
		resid.SubVec(y, resid)
		rss := mat.Dot(resid, resid)
		if math.IsNaN(rss) || math.IsInf(rss, 0) {
			return 0, errors.New("non-finite residuals")
		}
		return rss, nil
	}

	// Ridge pre-fit: Gaussian prior on deltas with the Laplace scale.
	rss, err := solve(math.Max(ridgeSigma2, floor))
	if err != nil {
		return nil, domain.ModelFit("initial solve", err)
	}
	sigma2 := math.Max(rss/float64(n), floor)

	sol := &solution{beta: beta}
	var prev float64
	for it := 1; it <= cfg.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.ModelFit("fit interrupted", err)
		}
		for j, d := range lay.deltas(beta) {
			penalty[2+j] = 1 / (tau * (math.Abs(d) + l1Epsilon))
		}
		rss, err = solve(sigma2)
		if err != nil {
			return nil, domain.ModelFit(fmt.Sprintf("iteration %d", it), err)
		}

		obj := objective(rss, sigma2, beta, lay, tau, seasonalPenalty)
		sol.iterations = it
		if it > 1 && math.Abs(prev-obj) <= cfg.Tolerance*(1+math.Abs(prev)) {
			sol.converged = true
			break
		}
		prev = obj
	}
	if !sol.converged {
		return nil, domain.ModelFit(fmt.Sprintf("no convergence after %d iterations", cfg.MaxIterations), nil)
	}
	for _, v := range beta.RawVector().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, domain.ModelFit("non-finite coefficients", nil)
		}
	}

	sol.sigma2 = math.Max(rss/float64(n), floor)
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, domain.ModelFit("posterior covariance", err)
	}
	sol.cov = mat.NewSymDense(p, nil)
	sol.cov.ScaleSym(sol.sigma2, &inv)
	return sol, nil
}

func objective(rss, sigma2 float64, beta *mat.VecDense, lay layout, tau, seasonalPenalty float64) float64 {
	obj := rss / (2 * sigma2)
	for _, d := range lay.deltas(beta) {
		obj += math.Abs(d) / tau
	}
	for j := 2 + lay.changepoints; j < lay.width(); j++ {
		b := beta.AtVec(j)
		obj += b * b * seasonalPenalty / 2
	}
	return obj
}
