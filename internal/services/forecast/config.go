package forecast

// Uncertainty selects how projection intervals are computed.
type Uncertainty string

const (
	// UncertaintyAnalytic propagates variance in closed form. Deterministic.
	UncertaintyAnalytic Uncertainty = "analytic"
	// UncertaintySampled simulates trend paths. Reproducible through Seed only.
	UncertaintySampled Uncertainty = "sampled"
)

// Option configures Engine.
type Option func(*Config)

// Config holds engine tuning. Zero values are replaced by defaults.
type Config struct {
	ChangepointRange      float64
	MaxChangepoints       int
	ChangepointPriorScale float64
	SeasonalityPriorScale float64
	YearlyOrder           int
	WeeklyOrder           int
	MaxIterations         int
	Tolerance             float64
	NoiseFloor            float64
	IntervalWidth         float64
	Uncertainty           Uncertainty
	Samples               int
	Seed                  uint64
	MaxHorizon            int
}

// DefaultConfig mirrors the usual trend+seasonality defaults: 25 changepoints
// over the first 80% of history, Laplace scale 0.05, seasonal scale 10 and an
// 80% interval.
func DefaultConfig() Config {
	return Config{
		ChangepointRange:      0.8,
		MaxChangepoints:       25,
		ChangepointPriorScale: 0.05,
		SeasonalityPriorScale: 10,
		YearlyOrder:           10,
		WeeklyOrder:           3,
		MaxIterations:         1000,
		Tolerance:             1e-6,
		NoiseFloor:            0.01,
		IntervalWidth:         0.8,
		Uncertainty:           UncertaintyAnalytic,
		Samples:               500,
		MaxHorizon:            24,
	}
}

// WithChangepoints sets the share of history eligible for changepoints and
// their maximum count.
func WithChangepoints(rangeFrac float64, max int) Option {
	return func(c *Config) {
		c.ChangepointRange = rangeFrac
		c.MaxChangepoints = max
	}
}

// WithPriorScales sets the Laplace scale on slope changes and the Gaussian
// scale on seasonal coefficients.
func WithPriorScales(changepoint, seasonality float64) Option {
	return func(c *Config) {
		c.ChangepointPriorScale = changepoint
		c.SeasonalityPriorScale = seasonality
	}
}

// WithFourierOrders sets yearly and weekly harmonic counts.
func WithFourierOrders(yearly, weekly int) Option {
	return func(c *Config) {
		c.YearlyOrder = yearly
		c.WeeklyOrder = weekly
	}
}

// WithSolver sets the iteration cap and relative objective tolerance.
func WithSolver(maxIter int, tol float64) Option {
	return func(c *Config) {
		c.MaxIterations = maxIter
		c.Tolerance = tol
	}
}

// WithIntervalWidth sets the central probability mass of the bounds.
func WithIntervalWidth(w float64) Option {
	return func(c *Config) {
		c.IntervalWidth = w
	}
}

// WithSampling switches to simulated intervals with an explicit seed.
func WithSampling(samples int, seed uint64) Option {
	return func(c *Config) {
		c.Uncertainty = UncertaintySampled
		c.Samples = samples
		c.Seed = seed
	}
}

// WithMaxHorizon caps the number of projected periods.
func WithMaxHorizon(h int) Option {
	return func(c *Config) {
		c.MaxHorizon = h
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.ChangepointRange <= 0 || c.ChangepointRange > 1 {
		c.ChangepointRange = d.ChangepointRange
	}
	if c.MaxChangepoints < 0 {
		c.MaxChangepoints = 0
	}
	if c.ChangepointPriorScale <= 0 {
		c.ChangepointPriorScale = d.ChangepointPriorScale
	}
	if c.SeasonalityPriorScale <= 0 {
		c.SeasonalityPriorScale = d.SeasonalityPriorScale
	}
	if c.YearlyOrder <= 0 {
		c.YearlyOrder = d.YearlyOrder
	}
	if c.WeeklyOrder <= 0 {
		c.WeeklyOrder = d.WeeklyOrder
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = d.MaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = d.Tolerance
	}
	if c.NoiseFloor <= 0 {
		c.NoiseFloor = d.NoiseFloor
	}
	if c.IntervalWidth <= 0 || c.IntervalWidth >= 1 {
		c.IntervalWidth = d.IntervalWidth
	}
	if c.Uncertainty == "" {
		c.Uncertainty = d.Uncertainty
	}
	if c.Samples <= 0 {
		c.Samples = d.Samples
	}
	if c.MaxHorizon <= 0 {
		c.MaxHorizon = d.MaxHorizon
	}
}
