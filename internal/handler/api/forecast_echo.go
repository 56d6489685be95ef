package api

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"

	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/internal/usecase"
	xhttp "TradeCast/pkg/http"
	xlogger "TradeCast/pkg/logger"
)

// Runner is the part of the dispatcher the transports use.
type Runner interface {
	Issue(ctx context.Context, session string) (int64, error)
	Submit(ctx context.Context, job usecase.Job) error
	Do(ctx context.Context, job usecase.Job) (*models.ForecastEnvelope, error)
}

// ForecastEchoHandler serves forecasts and selector catalogs over HTTP.
type ForecastEchoHandler struct {
	logger  *xlogger.Logger
	runner  Runner
	catalog domrepo.Catalog
}

func NewForecastEchoHandler(logger *xlogger.Logger, runner Runner, catalog domrepo.Catalog) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, runner: runner, catalog: catalog}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forecast", h.Forecast)
	g.GET("/catalog/products", h.Products)
	g.GET("/catalog/countries", h.Countries)
}

// Forecast answers GET /api/forecast. A request carrying a session is
// versioned: if a newer request for the same session lands first, this one
// gets 409.
func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationResponse(c, verr)
	}
	ctx := c.Request().Context()

	job := usecase.Job{
		Session:   req.Session,
		Trigger:   "http",
		Transport: "http",
		Filter:    req.Filter(),
		Horizon:   req.Periods(),
		Config:    req.FitConfig(),
	}
	if req.Session != "" {
		v, err := h.runner.Issue(ctx, req.Session)
		if err != nil {
			h.logger.Error("issue version failed", xlogger.String("session", req.Session), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, domainError(err))
		}
		job.Version = v
	}

	env, err := h.runner.Do(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		h.logger.Warn("forecast dispatch failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError().WithError(err))
	}
	if env.Error != nil {
		return xhttp.AppErrorResponse(c, payloadError(env.Error))
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, env.Result)
}

func (h *ForecastEchoHandler) Products(c echo.Context) error {
	rows, err := h.catalog.ListProducts(c.Request().Context())
	if err != nil {
		h.logger.Error("list products failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError().WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.ListResponse(c, rows, len(rows))
}

func (h *ForecastEchoHandler) Countries(c echo.Context) error {
	rows, err := h.catalog.ListCountries(c.Request().Context())
	if err != nil {
		h.logger.Error("list countries failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError().WithError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.ListResponse(c, rows, len(rows))
}

var _ xhttp.Handler = (*ForecastEchoHandler)(nil)
