package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"twmarket/internal/config"
	apierrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/internal/middleware"
	"twmarket/internal/report"
)

// RouterDeps wires the services behind the router. Nil services leave their
// routes unmounted.
type RouterDeps struct {
	Server    config.ServerConfig
	Logger    *slog.Logger
	Location  *time.Location
	Now       func() time.Time
	BaseCtx   context.Context
	Stats     report.StatsReader
	Tickers   report.TickerReader
	Workbook  WorkbookBuilder
	Monitors  MonitorService
	Pipelines []PipelineRunner
	Checks    map[string]HealthCheck
	Live      http.Handler
	Metrics   http.Handler
}

// Router is the assembled HTTP handler
type Router struct {
	chi.Router
	pipelines *PipelineHandler
}

// WaitPipelines blocks until runs started over HTTP have returned
func (rt *Router) WaitPipelines() {
	if rt.pipelines != nil {
		rt.pipelines.Wait()
	}
}

// NewRouter assembles middleware and routes
func NewRouter(deps RouterDeps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	c := clock{loc: deps.Location, now: deps.Now}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.now == nil {
		c.now = time.Now
	}
	base := deps.BaseCtx
	if base == nil {
		base = context.Background()
	}

	errorHandler := apierrors.NewErrorHandler(logger, false)
	validator := middleware.NewValidator()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing)
	r.Use(apierrors.NewRequestLogger(errorHandler, logger).Handler)
	r.Use(middleware.SecurityHeaders)
	if deps.Server.RateLimit > 0 {
		r.Use(middleware.NewRateLimiter(deps.Server.RateLimit, deps.Server.RateBurst, logger).Handler)
	}
	r.NotFound(errorHandler.NotFound)
	r.MethodNotAllowed(errorHandler.MethodNotAllowed)

	rt := &Router{Router: r}

	health := NewHealthHandler(deps.Checks, logger)
	r.Get("/api/health", health.HealthCheck)
	r.Get("/api/version", health.Version)

	if deps.Stats != nil && deps.Tickers != nil {
		market := NewMarketHandler(deps.Stats, deps.Tickers, validator, errorHandler, c, logger)
		r.Get("/api/market-stats", market.MarketStats)
		r.Route("/api/tickers", func(r chi.Router) {
			r.Get("/money-flow", market.MoneyFlow)
			r.Get("/top-movers/{direction}", market.TopMovers)
			r.Get("/most-actives/{key}", market.MostActives)
			r.Get("/insti/{institution}/{direction}", market.InstiNetBuySell)
		})
	}

	if deps.Workbook != nil {
		reports := NewReportHandler(deps.Workbook, errorHandler, logger)
		r.Get("/api/reports/{date}", reports.Download)
	}

	if len(deps.Pipelines) > 0 {
		rt.pipelines = NewPipelineHandler(base, deps.Pipelines, validator, errorHandler, c, logger)
		r.Route("/api/pipelines", func(r chi.Router) {
			r.Get("/", rt.pipelines.List)
			r.Get("/{name}", rt.pipelines.Get)
			r.Post("/{name}/runs", rt.pipelines.Run)
		})
	}

	if deps.Monitors != nil {
		monitors := NewMonitorHandler(deps.Monitors, validator, errorHandler)
		r.Route("/monitor", func(r chi.Router) {
			r.Post("/alerts", monitors.CreateAlert)
			r.Post("/orders", monitors.CreateOrder)
			r.Get("/subscriptions", monitors.Subscriptions)
			r.Get("/{id}", monitors.Get)
		})
	}

	if deps.Live != nil {
		r.Get("/ws", deps.Live.ServeHTTP)
	}
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	return rt
}
