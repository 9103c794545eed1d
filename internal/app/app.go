package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"twmarket/internal/config"
	apperrors "twmarket/internal/errors"
	"twmarket/internal/feed"
	"twmarket/internal/infrastructure"
	"twmarket/internal/ingest"
	"twmarket/internal/monitor"
	"twmarket/internal/pipeline"
	"twmarket/internal/report"
	"twmarket/internal/sources"
	"twmarket/internal/sources/investing"
	"twmarket/internal/sources/isin"
	"twmarket/internal/sources/taifex"
	"twmarket/internal/sources/tpex"
	"twmarket/internal/sources/twse"
	"twmarket/internal/store"
	handlers "twmarket/internal/transport/http"
	"twmarket/internal/websocket"
	"twmarket/pkg/contracts"
	"twmarket/pkg/contracts/domain"
)

// Application represents the main application container
type Application struct {
	Config   *config.Config
	Logger   *slog.Logger
	OTel     *infrastructure.OTelProviders
	Metrics  *infrastructure.Metrics
	Location *time.Location

	DB      *gorm.DB
	Stats   *store.StatsStore
	Tickers *store.TickerStore

	StatsService  *ingest.MarketStatsService
	TickerService *ingest.TickerService
	Reports       *report.Generator
	Listings      *isin.Source

	// populated by Serve
	Redis  redis.UniversalClient
	Hub    *websocket.Hub
	Feed   *feed.Feed
	Engine *monitor.Engine
	Router *handlers.Router
	Server *http.Server
}

// New wires the stores, sources and services for cfg. The monitor engine
// and the HTTP server are only built by Serve.
func New(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("application_starting", slog.String("version", contracts.Version))

	otelProviders, err := infrastructure.InitializeOTel(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	metrics, err := infrastructure.NewMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	a := &Application{
		Config:   cfg,
		Logger:   logger,
		OTel:     otelProviders,
		Metrics:  metrics,
		Location: cfg.Location(),
	}
	if err := a.initializeStores(); err != nil {
		return nil, err
	}
	a.initializeServices()
	return a, nil
}

func (a *Application) initializeStores() error {
	db, err := store.Open(a.Config.Database, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.DB = db

	if a.Stats, err = store.NewStatsStore(db); err != nil {
		return fmt.Errorf("failed to create stats store: %w", err)
	}
	if a.Tickers, err = store.NewTickerStore(db); err != nil {
		return fmt.Errorf("failed to create ticker store: %w", err)
	}
	return nil
}

func (a *Application) initializeServices() {
	client := sources.NewClient(a.Config.Sources,
		sources.WithMetrics(a.Metrics),
		sources.WithLogger(a.Logger))

	twseSource := twse.New(client, a.Config.Sources.TWSEBaseURL)
	tpexSource := tpex.New(client, a.Config.Sources.TPExBaseURL)
	taifexSource := taifex.New(client, a.Config.Sources.TAIFEXBaseURL)

	// an untyped nil keeps the yield step out of the pipeline
	var yields ingest.YieldSource
	switch a.Config.Sources.InvestingFetch {
	case "browser":
		yields = investing.New(investing.ChromeFetcher{Headless: true}, a.Config.Sources.InvestingURL,
			investing.WithMetrics(a.Metrics), investing.WithLogger(a.Logger))
	case "http":
		yields = investing.New(investing.ClientFetcher{Client: client}, a.Config.Sources.InvestingURL,
			investing.WithMetrics(a.Metrics), investing.WithLogger(a.Logger))
	}

	a.StatsService = ingest.NewMarketStatsService(twseSource, taifexSource, yields, a.Stats, a.Logger)
	a.TickerService = ingest.NewTickerService(twseSource, tpexSource, a.Tickers, a.Logger)
	a.Reports = report.NewGenerator(a.Stats, a.Tickers, a.Config.Report, a.Logger)
	a.Listings = isin.New(client, a.Config.Sources.ISINBaseURL)
}

// Scheduler builds the scheduler of a named pipeline. Step transitions are
// published on the hub once Serve has started it.
func (a *Application) Scheduler(name string) (*pipeline.Scheduler, error) {
	var opts []pipeline.Option
	if a.Hub != nil {
		opts = append(opts, pipeline.WithObserver(a.Hub.PipelineStep))
	}
	spacing := a.Config.Pipeline.StepSpacing
	switch name {
	case ingest.StatsPipeline:
		return a.StatsService.Scheduler(spacing, a.Metrics, opts...)
	case ingest.TickersPipeline:
		return a.TickerService.Scheduler(spacing, a.Metrics, opts...)
	}
	return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown pipeline %q", name))
}

// Ingest runs one pipeline for date
func (a *Application) Ingest(ctx context.Context, name, date string) (*pipeline.RunResult, error) {
	sched, err := a.Scheduler(name)
	if err != nil {
		return nil, err
	}
	return sched.Run(ctx, pipeline.RunRequest{Date: date})
}

// Today returns the current trading date
func (a *Application) Today() string {
	return time.Now().In(a.Location).Format(time.DateOnly)
}

// Listing fetches the ISIN listing of market
func (a *Application) Listing(ctx context.Context, market isin.Market) ([]domain.Listing, error) {
	return a.Listings.Listing(ctx, market)
}

// initializeMonitor connects the monitor store and the quote feed
func (a *Application) initializeMonitor(ctx context.Context) error {
	var index monitor.Index
	if addr := a.Config.Redis.Addr; addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: a.Config.Redis.Password,
			DB:       a.Config.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return apperrors.NewStorageError("connect redis", err).WithContext("addr", addr)
		}
		a.Redis = client
		index = monitor.NewRedisIndex(client)
	} else {
		a.Logger.Warn("monitor_store_in_memory", slog.String("reason", "redis address not configured"))
		index = monitor.NewMemoryIndex()
	}

	var notifier monitor.Notifier
	if a.Config.Notify.Token != "" {
		notifier = monitor.NewLineNotifier(a.Config.Notify.URL, a.Config.Notify.Token)
	}

	a.Feed = feed.New(a.Config.Monitor, a.Logger)
	subs := monitor.NewSubscriptionRegistry(a.Feed, a.Config.Monitor.MaxSubscriptions, a.Metrics)
	opts := []monitor.Option{
		monitor.WithMetrics(a.Metrics),
		monitor.WithLogger(a.Logger),
		monitor.WithLocation(a.Location),
		monitor.WithTriggerHook(a.Hub.MonitorTriggered),
	}
	if notifier != nil {
		opts = append(opts, monitor.WithNotifier(notifier))
	}
	a.Engine = monitor.NewEngine(index, subs, opts...)
	return nil
}

// healthChecks probes the database and, when configured, redis
func (a *Application) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		}
	}
	return checks
}

// setupRouter builds the HTTP handler over the wired services
func (a *Application) setupRouter(ctx context.Context) error {
	var runners []handlers.PipelineRunner
	for _, name := range []string{ingest.StatsPipeline, ingest.TickersPipeline} {
		sched, err := a.Scheduler(name)
		if err != nil {
			return err
		}
		runners = append(runners, sched)
	}

	a.Router = handlers.NewRouter(handlers.RouterDeps{
		Server:    a.Config.Server,
		Logger:    a.Logger,
		Location:  a.Location,
		BaseCtx:   ctx,
		Stats:     a.Stats,
		Tickers:   a.Tickers,
		Workbook:  a.Reports,
		Monitors:  a.Engine,
		Pipelines: runners,
		Checks:    a.healthChecks(),
		Live:      websocket.NewHandler(a.Hub, a.Config.Server.AllowedOrigins),
		Metrics:   a.OTel.MetricsHandler(),
	})
	return nil
}

// Serve runs the HTTP API and the monitor engine until ctx is cancelled
func (a *Application) Serve(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	a.Hub = websocket.NewHub(a.Logger, a.Metrics)
	go a.Hub.Run(hubCtx)

	if err := a.initializeMonitor(ctx); err != nil {
		return fmt.Errorf("failed to initialize monitor: %w", err)
	}
	if err := a.Engine.Bootstrap(ctx); err != nil {
		// symbols that failed to resubscribe stay in the store for the next start
		a.Logger.ErrorContext(ctx, "monitor_bootstrap_failed", slog.String("error", err.Error()))
	}
	if err := a.setupRouter(ctx); err != nil {
		return err
	}

	a.Server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.InfoContext(ctx, "server_listening",
			slog.Int("port", a.Config.Server.Port),
			slog.String("version", contracts.Version))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		a.Logger.Info("shutdown_requested")
	}
	return a.stopServing()
}

// stopServing drains the server, the background runs and the live streams
func (a *Application) stopServing() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}
	a.Router.WaitPipelines()
	if a.Feed != nil {
		if err := a.Feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("feed close error: %w", err))
		}
	}
	if a.Engine != nil {
		a.Engine.Wait()
	}
	return errors.Join(errs...)
}

// Close releases the database, redis, telemetry and the log file
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database close: %w", err))
			}
		}
	}
	if a.OTel != nil {
		if err := a.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.Logger.InfoContext(ctx, "application_shutdown_complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
