package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"ForecastPoster/internal/config"
	"ForecastPoster/internal/domain"
	"ForecastPoster/internal/infrastructure/bluesky"
	"ForecastPoster/internal/infrastructure/httpclient"
	"ForecastPoster/internal/infrastructure/metrics"
	"ForecastPoster/internal/infrastructure/parser"
	"ForecastPoster/internal/infrastructure/scheduler"
	"ForecastPoster/internal/infrastructure/state"
	"ForecastPoster/internal/retry"
	"ForecastPoster/internal/usecase"
	"ForecastPoster/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	state     *state.FileStore
	metrics   *metrics.Recorder
}

// New builds the application graph from cfg.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = slog.New(slog.DiscardHandler)
	}
	mode, err := usecase.ParsePostMode(cfg.Publish.Mode)
	if err != nil {
		return nil, err
	}

	recorder := metrics.NewRecorder()

	fetcher := httpclient.New(httpclient.Options{
		Timeout:   cfg.HTTP.Timeout,
		UserAgent: cfg.Source.UserAgent,
		Retry: retry.Policy{
			MaxAttempts:    cfg.Retry.MaxRetries,
			Delay:          cfg.Retry.Delay,
			RateLimitDelay: cfg.Retry.RateLimitDelay,
		},
	}, baseLogger.With("component", "http"))

	walker := parser.NewWalker(fetcher, baseLogger.With("component", "walker"))
	locator := parser.NewRunLocator(walker, nil, cfg.Source.BaseURL, baseLogger.With("component", "locator"))
	selector := parser.NewImageSelector(walker, cfg.Source.ImageExtension, cfg.Source.ExcludeSubstrings, baseLogger.With("component", "selector"))

	store := state.NewFileStore(cfg.State.Path)

	publisher := usecase.NewPublisher(usecase.PublisherConfig{
		Identifier:     cfg.Bluesky.Identifier,
		Secret:         cfg.Bluesky.Password,
		MaxImages:      cfg.Publish.MaxImages,
		MaxAttempts:    cfg.Retry.MaxRetries,
		RetryDelay:     cfg.Retry.Delay,
		RateLimitDelay: cfg.Retry.RateLimitDelay,
		Mode:           mode,
	}, usecase.PublisherDeps{
		Client:  bluesky.NewClient(cfg.Bluesky.ServiceURL, cfg.HTTP.Timeout),
		Fetcher: fetcher,
		Metrics: recorder,
		Logger:  baseLogger.With("component", "publisher"),
	})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Locator:   locator,
		Selector:  selector,
		State:     store,
		Publisher: publisher,
		Metrics:   recorder,
		Logger:    baseLogger.With("component", "pipeline"),
		Mode:      mode,
		MaxImages: cfg.Publish.MaxImages,
	})

	cronLogger := logger.Cron(baseLogger.With("component", "scheduler"))
	driver := scheduler.NewCronScheduler(scheduler.IntervalSpec(cfg.Scheduler.Interval), cronLogger)

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		pipeline:  pipeline,
		scheduler: usecase.NewScheduler(driver, pipeline),
		state:     store,
		metrics:   recorder,
	}, nil
}

// Run polls on the configured interval until ctx is cancelled, then waits
// for an in-flight cycle to finish.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("poller starting",
		"source", a.cfg.Source.BaseURL,
		"interval", a.cfg.Scheduler.Interval,
		"state_file", a.state.Path(),
		"mode", a.cfg.Publish.Mode,
	)

	g, gctx := errgroup.WithContext(ctx)

	if addr := a.cfg.Metrics.Addr; addr != "" {
		g.Go(func() error {
			if err := a.metrics.Serve(gctx, addr, a.logger.With("component", "metrics")); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	if err := a.scheduler.Start(gctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown requested, waiting for running cycle")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.scheduler.Stop(stopCtx)
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("poller stopped")
	return nil
}

// RunOnce executes a single cycle. Cancelling ctx does not interrupt it.
func (a *Application) RunOnce(ctx context.Context) (usecase.CycleResult, error) {
	return a.pipeline.RunCycle(context.WithoutCancel(ctx))
}

// LastRun returns the stored run identifier, empty when nothing was processed yet.
func (a *Application) LastRun(ctx context.Context) (domain.RunIdentifier, error) {
	return a.state.Read(ctx)
}

// ResetState removes the stored run so the next cycle republishes the latest run.
func (a *Application) ResetState(ctx context.Context) error {
	return a.state.Clear(ctx)
}
