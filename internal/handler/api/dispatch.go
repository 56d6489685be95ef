package api

import (
	"context"
	"fmt"
	"strconv"

	"TradeCast/internal/domain"
)

// UI trigger identities sent by the page controls.
const (
	TriggerPageLoad  = "page-load"
	TriggerProduct   = "product-dropdown"
	TriggerCountry   = "country-dropdown"
	TriggerDirection = "direction-radio"
	TriggerHorizon   = "horizon-input"
	TriggerYearly    = "yearly-toggle"
	TriggerWeekly    = "weekly-toggle"
)

// inbound is one control event from the page.
type inbound struct {
	Trigger string `json:"trigger"`
	Value   string `json:"value"`
}

// triggerFunc applies an event to the session's selector state and reports
// whether a new forecast should be computed.
type triggerFunc func(ctx context.Context, s *wsSession, msg inbound) (forecast bool, err error)

// triggers maps control identity to its handler. Anything not listed is
// rejected rather than guessed at.
var triggers = map[string]triggerFunc{
	TriggerPageLoad: func(ctx context.Context, s *wsSession, _ inbound) (bool, error) {
		if err := s.sendCatalog(ctx); err != nil {
			return false, err
		}
		return s.state.complete(), nil
	},
	TriggerProduct: func(_ context.Context, s *wsSession, msg inbound) (bool, error) {
		s.state.Product = msg.Value
		return true, nil
	},
	TriggerCountry: func(_ context.Context, s *wsSession, msg inbound) (bool, error) {
		s.state.Country = msg.Value
		return true, nil
	},
	TriggerDirection: func(_ context.Context, s *wsSession, msg inbound) (bool, error) {
		s.state.Direction = msg.Value
		return true, nil
	},
	TriggerHorizon: func(_ context.Context, s *wsSession, msg inbound) (bool, error) {
		h, err := strconv.Atoi(msg.Value)
		if err != nil {
			return false, domain.InvalidFilter("horizon", fmt.Sprintf("horizon must be an integer, got %q", msg.Value))
		}
		s.state.Horizon = &h
		return true, nil
	},
	TriggerYearly: func(_ context.Context, s *wsSession, msg inbound) (bool, error) {
		s.state.Yearly = msg.Value
		return true, nil
	},
	TriggerWeekly: func(_ context.Context, s *wsSession, msg inbound) (bool, error) {
		s.state.Weekly = msg.Value
		return true, nil
	},
}
