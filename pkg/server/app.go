package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"TradeCast/internal/usecase"
	"TradeCast/pkg/config"
	xhttp "TradeCast/pkg/http"
	pkgkafka "TradeCast/pkg/kafka"
	applogger "TradeCast/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	dispatcher *usecase.Dispatcher
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	closers    []closer
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, d *usecase.Dispatcher) *App {
	return &App{cfg: cfg, log: l, httpServer: srv, dispatcher: d}
}

// WithConsumer serves forecast requests from Kafka alongside HTTP.
func (a *App) WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// AddCloser registers a resource released on shutdown, in reverse order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and shuts down when ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	// Workers outlive the signal context so in-flight jobs can finish during shutdown.
	a.dispatcher.Start(context.WithoutCancel(ctx))

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return a.shutdown(err)
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return a.shutdown(err)
	}
	a.log.Info("tradecast started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("store", a.cfg.Store.Backend),
		applogger.String("forecaster", a.cfg.Forecast.Backend),
		applogger.Int("port", a.cfg.Server.Port),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown(nil)
}

// shutdown stops intake first, drains workers, then releases infrastructure.
func (a *App) shutdown(cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if err := a.dispatcher.Stop(ctx); err != nil {
		a.log.Warn("dispatcher stop error", applogger.Error(err))
	}

	// The log collector publishes through the producer, so flush it first.
	a.log.Close()
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", c.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return cause
}
