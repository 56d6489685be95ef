package api

import (
	"errors"
	"net/http"
	"strings"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	xhttp "TradeCast/pkg/http"
)

var kindStatus = map[domain.Kind]int{
	domain.KindInvalidFilter:    http.StatusBadRequest,
	domain.KindInvalidHorizon:   http.StatusBadRequest,
	domain.KindEmptyResult:      http.StatusNotFound,
	domain.KindSuperseded:       http.StatusConflict,
	domain.KindInsufficientData: http.StatusUnprocessableEntity,
	domain.KindModelFit:         http.StatusInternalServerError,
	domain.KindDataSource:       http.StatusServiceUnavailable,
}

func statusFor(kind domain.Kind) int {
	if s, ok := kindStatus[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// payloadError renders an envelope error as an AppError.
func payloadError(p *models.ErrorPayload) *xhttp.AppError {
	status := statusFor(domain.Kind(p.Kind))
	appErr := xhttp.NewAppError("ERR_"+strings.ToUpper(p.Kind), p.Field, p.Message, status)
	if p.Stage != "" {
		appErr = appErr.WithParam("stage", p.Stage)
	}
	return appErr
}

// domainError maps any error returned by the service layer.
func domainError(err error) *xhttp.AppError {
	var de *domain.Error
	if errors.As(err, &de) {
		return payloadError(&models.ErrorPayload{
			Kind:    string(de.Kind),
			Stage:   string(de.Stage),
			Field:   de.Field,
			Message: de.Error(),
		}).WithError(err)
	}
	return xhttp.InternalError().WithError(err)
}
