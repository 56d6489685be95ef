package models

// Requests for forecast transports (HTTP query, WebSocket and Kafka payloads).

// DefaultHorizon is used when a request leaves the horizon out.
const DefaultHorizon = 3

type ForecastRequest struct {
	Product   string `query:"product" json:"product"`
	Country   string `query:"country" json:"country"`
	Direction string `query:"direction" json:"direction"`
	Horizon   *int   `query:"horizon" json:"horizon" default:"3"`
	Yearly    string `query:"yearly" json:"yearly" default:"auto" validate:"oneof=auto on off"`
	Weekly    string `query:"weekly" json:"weekly" default:"auto" validate:"oneof=auto on off"`
	Session   string `query:"session" json:"session" validate:"omitempty,max=128"`
	Version   int64  `query:"version" json:"version" validate:"gte=0"`
}

// Filter converts the request into a SeriesFilter. Empty strings stay nil so
// the aggregator can reject them explicitly.
func (r ForecastRequest) Filter() SeriesFilter {
	var f SeriesFilter
	if r.Product != "" {
		p := r.Product
		f.Product = &p
	}
	if r.Country != "" {
		c := r.Country
		f.Country = &c
	}
	if r.Direction != "" {
		d := Direction(r.Direction)
		if parsed, err := ParseDirection(r.Direction); err == nil {
			d = parsed
		}
		f.Direction = &d
	}
	return f
}

// Periods is the requested horizon. Only an absent horizon falls back to
// DefaultHorizon; an explicit zero is passed through and rejected downstream.
func (r ForecastRequest) Periods() int {
	if r.Horizon == nil {
		return DefaultHorizon
	}
	return *r.Horizon
}

// FitConfig converts seasonality selectors into a FitConfig.
func (r ForecastRequest) FitConfig() FitConfig {
	cfg := DefaultFitConfig()
	if r.Yearly != "" {
		cfg.YearlySeasonality = SeasonalityMode(r.Yearly)
	}
	if r.Weekly != "" {
		cfg.WeeklySeasonality = SeasonalityMode(r.Weekly)
	}
	return cfg
}

// ForecastEnvelope carries a result or a typed error back to a session.
type ForecastEnvelope struct {
	Session string          `json:"session"`
	Version int64           `json:"version"`
	Trigger string          `json:"trigger,omitempty"`
	Result  *ForecastResult `json:"result,omitempty"`
	Stats   *RunStats       `json:"stats,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// ErrorPayload is the transport form of a pipeline error.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Stage   string `json:"stage,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}
