package usecase

import (
	"errors"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
)

// NewErrorPayload converts err into its transport form. Errors outside the
// domain taxonomy are reported as model failures without their internals.
func NewErrorPayload(err error) *models.ErrorPayload {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		return &models.ErrorPayload{Kind: string(domain.KindModelFit), Message: "internal error"}
	}
	return &models.ErrorPayload{
		Kind:    string(de.Kind),
		Stage:   string(de.Stage),
		Field:   de.Field,
		Message: de.Error(),
	}
}
