package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"golang.org/x/sync/errgroup"

	"TradeCast/internal/domain"
	"TradeCast/internal/domain/models"
	domrepo "TradeCast/internal/domain/repository"
	"TradeCast/pkg/logger"
)

// ErrDispatcherStopped is returned by Submit once Stop has been called.
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// ForecastService is the single service operation the transports depend on.
type ForecastService interface {
	Forecast(ctx context.Context, filter models.SeriesFilter, horizon int, cfg models.FitConfig) (*models.ForecastResult, error)
}

// statsService is implemented by services that also report per-run timings.
type statsService interface {
	ForecastWithStats(ctx context.Context, filter models.SeriesFilter, horizon int, cfg models.FitConfig) (*models.ForecastResult, *models.RunStats, error)
}

// Job is one forecast request travelling through the worker pool. Version 0
// or an empty Session means the request is not versioned and is never
// superseded.
type Job struct {
	Session   string
	Version   int64
	Trigger   string
	Transport string
	Filter    models.SeriesFilter
	Horizon   int
	Config    models.FitConfig
	// Deliver receives exactly one envelope per job, stale or not.
	Deliver func(*models.ForecastEnvelope)
}

func (j Job) versioned() bool { return j.Session != "" && j.Version > 0 }

type task struct {
	ctx context.Context
	job Job
}

// Dispatcher runs forecast jobs on a bounded pool of workers and drops
// results that a newer request from the same session has superseded.
type Dispatcher struct {
	svc      ForecastService
	versions domrepo.VersionStore
	metrics  domrepo.Metrics
	log      *logger.Logger
	workers  int

	queue    chan task
	done     chan struct{}
	stopOnce sync.Once
	group    *errgroup.Group
}

func NewDispatcher(svc ForecastService, versions domrepo.VersionStore, m domrepo.Metrics, l *logger.Logger, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if l == nil {
		l = logger.Nop()
	}
	return &Dispatcher{
		svc:      svc,
		versions: versions,
		metrics:  m,
		log:      l,
		workers:  workers,
		queue:    make(chan task, queueSize),
		done:     make(chan struct{}),
	}
}

// Start launches the workers. They exit when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			d.work(gctx)
			return nil
		})
	}
	d.group = g
	d.log.Info("dispatcher started", logger.Int("workers", d.workers), logger.Int("queue", cap(d.queue)))
}

// Stop refuses new jobs, answers queued ones with a data_source error and
// waits for running ones until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() { close(d.done) })
	d.drain()
	if d.group == nil {
		return nil
	}
	waited := make(chan error, 1)
	go func() { waited <- d.group.Wait() }()
	select {
	case err := <-waited:
		d.drain()
		return err
	case <-ctx.Done():
		return fmt.Errorf("stop dispatcher: %w", ctx.Err())
	}
}

// drain delivers a stopped envelope to every job still queued.
func (d *Dispatcher) drain() {
	for {
		select {
		case t := <-d.queue:
			d.log.Debug("dropping queued job on stop", logger.String("session", t.job.Session))
			if t.job.Deliver != nil {
				t.job.Deliver(&models.ForecastEnvelope{
					Session: t.job.Session,
					Version: t.job.Version,
					Trigger: t.job.Trigger,
					Error:   NewErrorPayload(domain.DataSource("dispatcher stopped", ErrDispatcherStopped)),
				})
			}
		default:
			return
		}
	}
}

// Issue hands out the next version token for session.
func (d *Dispatcher) Issue(ctx context.Context, session string) (int64, error) {
	v, err := d.versions.Next(ctx, session)
	if err != nil {
		return 0, domain.DataSource("issue request version", err)
	}
	return v, nil
}

// Submit enqueues job, blocking while the queue is full. ctx also governs the
// job's execution.
func (d *Dispatcher) Submit(ctx context.Context, job Job) error {
	select {
	case <-d.done:
		return ErrDispatcherStopped
	default:
	}
	select {
	case d.queue <- task{ctx: ctx, job: job}:
		d.metrics.RecordQueueDepth(len(d.queue))
		// Stop may have drained the queue just before this send landed.
		select {
		case <-d.done:
			d.drain()
		default:
		}
		return nil
	case <-d.done:
		return ErrDispatcherStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do submits job and waits for its envelope.
func (d *Dispatcher) Do(ctx context.Context, job Job) (*models.ForecastEnvelope, error) {
	out := make(chan *models.ForecastEnvelope, 1)
	job.Deliver = func(env *models.ForecastEnvelope) { out <- env }
	if err := d.Submit(ctx, job); err != nil {
		return nil, err
	}
	select {
	case env := <-out:
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case t := <-d.queue:
			d.metrics.RecordQueueDepth(len(d.queue))
			env := d.safeRun(t.ctx, t.job)
			if t.job.Deliver != nil {
				t.job.Deliver(env)
			}
		}
	}
}

// safeRun keeps a panicking forecaster from taking down the worker; the job
// still gets its envelope.
func (d *Dispatcher) safeRun(ctx context.Context, job Job) (env *models.ForecastEnvelope) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		d.metrics.RecordError(string(domain.KindModelFit))
		d.log.Error("forecast panicked",
			logger.String("session", job.Session),
			logger.Int64("version", job.Version),
			logger.Any("panic", r),
			logger.String("stack", string(debug.Stack())))
		env = &models.ForecastEnvelope{
			Session: job.Session,
			Version: job.Version,
			Trigger: job.Trigger,
			Error:   NewErrorPayload(domain.ModelFit("forecaster panicked", fmt.Errorf("%v", r))),
		}
	}()
	return d.run(ctx, job)
}

func (d *Dispatcher) run(ctx context.Context, job Job) *models.ForecastEnvelope {
	env := &models.ForecastEnvelope{Session: job.Session, Version: job.Version, Trigger: job.Trigger}

	if err := d.checkLatest(ctx, job); err != nil {
		env.Error = NewErrorPayload(err)
		return env
	}

	res, stats, err := d.forecast(ctx, job)
	env.Stats = stats
	if err != nil {
		env.Error = NewErrorPayload(err)
		return env
	}

	// A newer request may have arrived while this one was fitting.
	if err := d.checkLatest(ctx, job); err != nil {
		env.Error = NewErrorPayload(err)
		return env
	}

	env.Result = res
	return env
}

func (d *Dispatcher) forecast(ctx context.Context, job Job) (*models.ForecastResult, *models.RunStats, error) {
	if svc, ok := d.svc.(statsService); ok {
		return svc.ForecastWithStats(ctx, job.Filter, job.Horizon, job.Config)
	}
	res, err := d.svc.Forecast(ctx, job.Filter, job.Horizon, job.Config)
	return res, nil, err
}

func (d *Dispatcher) checkLatest(ctx context.Context, job Job) error {
	if !job.versioned() {
		return nil
	}
	latest, err := d.versions.Latest(ctx, job.Session)
	if err != nil {
		return domain.DataSource("read latest request version", err)
	}
	if latest > job.Version {
		d.metrics.RecordSuperseded(job.Transport)
		d.log.Debug("dropping superseded request",
			logger.String("session", job.Session),
			logger.Int64("version", job.Version),
			logger.Int64("latest", latest))
		return domain.Superseded(job.Session, job.Version, latest)
	}
	return nil
}

// IsSuperseded reports whether env carries a stale-request error.
func IsSuperseded(env *models.ForecastEnvelope) bool {
	return env != nil && env.Error != nil && env.Error.Kind == string(domain.KindSuperseded)
}
