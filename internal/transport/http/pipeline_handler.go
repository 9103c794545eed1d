package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/semaphore"

	apierrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/internal/middleware"
	"twmarket/internal/pipeline"
	api "twmarket/pkg/contracts/api/v1"
)

// PipelineRunner runs one named pipeline. *pipeline.Scheduler satisfies it.
type PipelineRunner interface {
	Name() string
	Run(ctx context.Context, req pipeline.RunRequest) (*pipeline.RunResult, error)
}

// PipelineHandler starts ingestion runs in the background. Progress is
// published on the live event socket; the last result is kept per pipeline.
type PipelineHandler struct {
	base      context.Context
	runners   map[string]PipelineRunner
	names     []string
	gates     map[string]*semaphore.Weighted
	validator *middleware.Validator
	errors    *apierrors.ErrorHandler
	clock     clock
	logger    *slog.Logger

	mu   sync.RWMutex
	last map[string]*pipeline.RunResult
	wg   sync.WaitGroup
}

// NewPipelineHandler creates a pipeline handler. Runs are bound to base, not
// to the request that started them.
func NewPipelineHandler(base context.Context, runners []PipelineRunner, v *middleware.Validator,
	eh *apierrors.ErrorHandler, c clock, logger *slog.Logger) *PipelineHandler {
	h := &PipelineHandler{
		base:      base,
		runners:   make(map[string]PipelineRunner, len(runners)),
		gates:     make(map[string]*semaphore.Weighted, len(runners)),
		validator: v,
		errors:    eh,
		clock:     c,
		logger:    logger.With(slog.String("handler", "pipeline")),
		last:      make(map[string]*pipeline.RunResult),
	}
	for _, r := range runners {
		h.runners[r.Name()] = r
		h.gates[r.Name()] = semaphore.NewWeighted(1)
		h.names = append(h.names, r.Name())
	}
	return h
}

// List handles GET /api/pipelines
func (h *PipelineHandler) List(w http.ResponseWriter, r *http.Request) {
	success(w, r, http.StatusOK, h.names, len(h.names))
}

// Get handles GET /api/pipelines/{name}
func (h *PipelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	gate, ok := h.gates[name]
	if !ok {
		h.errors.HandleError(w, r, apierrors.NotFoundError("pipeline "+name))
		return
	}

	running := !gate.TryAcquire(1)
	if !running {
		gate.Release(1)
	}
	h.mu.RLock()
	last := h.last[name]
	h.mu.RUnlock()

	success(w, r, http.StatusOK, map[string]interface{}{
		"name":     name,
		"running":  running,
		"last_run": last,
	}, -1)
}

// Run handles POST /api/pipelines/{name}/runs
func (h *PipelineHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	runner, ok := h.runners[name]
	if !ok {
		h.errors.HandleError(w, r, apierrors.NotFoundError("pipeline "+name))
		return
	}

	var req api.RunPipelineRequest
	if r.ContentLength != 0 {
		if err := h.validator.DecodeJSON(r, &req); err != nil {
			h.errors.HandleError(w, r, err)
			return
		}
	}
	req.Date = h.clock.dateOr(req.Date)

	gate := h.gates[name]
	if !gate.TryAcquire(1) {
		h.errors.HandleError(w, r, apierrors.Conflict("pipeline "+name+" is already running"))
		return
	}

	traceID := infrastructure.GetTraceID(r.Context())
	ctx := infrastructure.WithTraceID(h.base, traceID)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer gate.Release(1)

		result, err := runner.Run(ctx, pipeline.RunRequest{Date: req.Date, Steps: req.Steps})
		if err != nil {
			h.logger.ErrorContext(ctx, "pipeline_run_failed",
				slog.String("pipeline", name),
				slog.String("date", req.Date),
				slog.String("error", err.Error()))
		}
		if result != nil {
			h.mu.Lock()
			h.last[name] = result
			h.mu.Unlock()
		}
	}()

	h.logger.InfoContext(r.Context(), "pipeline_run_accepted",
		slog.String("pipeline", name),
		slog.String("date", req.Date))
	success(w, r, http.StatusAccepted, map[string]interface{}{
		"pipeline": name,
		"date":     req.Date,
		"trace_id": traceID,
	}, -1)
}

// Wait blocks until background runs have returned
func (h *PipelineHandler) Wait() {
	h.wg.Wait()
}
