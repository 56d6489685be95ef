package models

import "time"

// ForecastResult is the sole output contract handed to visualization.
type ForecastResult struct {
	Filter      SeriesFilter    `json:"filter"`
	Horizon     int             `json:"horizon"`
	History     Series          `json:"history"`
	Forecast    []ForecastPoint `json:"forecast"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

// FitInfo is the model metadata a Forecaster reports after fitting.
type FitInfo struct {
	Observations       int      `json:"observations"`
	Frequency          string   `json:"frequency"`
	Changepoints       int      `json:"changepoints"`
	ActiveChangepoints int      `json:"active_changepoints"`
	Seasonalities      []string `json:"seasonalities"`
	Iterations         int      `json:"iterations"`
	Converged          bool     `json:"converged"`
	NoiseScale         float64  `json:"noise_scale"`
	Uncertainty        string   `json:"uncertainty"`
}

// Diagnostics describes how a result was produced. It depends only on the
// inputs, so equal requests yield equal results.
type Diagnostics struct {
	FitInfo
	Forecaster string `json:"forecaster"`
}

// RunStats is per-run bookkeeping that travels beside a result, never in it.
type RunStats struct {
	Timings   map[string]time.Duration `json:"timings_ns"`
	CreatedAt time.Time                `json:"created_at"`
}
