package usecase

import (
	"fmt"
	"math"
	"time"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
)

// Package assembles the result handed to visualization. It only checks that
// the projection lines up with the history; a mismatch means a forecaster bug.
func Package(f models.SeriesFilter, horizon int, history models.Series, forecast []models.ForecastPoint, diag models.Diagnostics) (*models.ForecastResult, error) {
	if len(history) == 0 {
		return nil, packageErr("empty history")
	}
	if len(forecast) != horizon {
		return nil, packageErr(fmt.Sprintf("got %d forecast points, want %d", len(forecast), horizon))
	}

	prev := history.Last().Timestamp
	for i, p := range forecast {
		if !p.Timestamp.After(prev) {
			return nil, packageErr(fmt.Sprintf("forecast point %d at %s is not after %s",
				i, p.Timestamp.Format(time.DateOnly), prev.Format(time.DateOnly)))
		}
		if math.IsNaN(p.Estimate) || p.Lower > p.Estimate || p.Estimate > p.Upper {
			return nil, packageErr(fmt.Sprintf("forecast point %d has unordered bounds", i))
		}
		prev = p.Timestamp
	}

	return &models.ForecastResult{
		Filter:      f,
		Horizon:     horizon,
		History:     history,
		Forecast:    forecast,
		Diagnostics: diag,
	}, nil
}

func packageErr(msg string) error {
	e := domain.ModelFit(msg, nil)
	e.Stage = domain.StagePackage
	return e
}
