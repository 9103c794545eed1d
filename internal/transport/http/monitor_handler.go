package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "twmarket/internal/errors"
	"twmarket/internal/middleware"
	api "twmarket/pkg/contracts/api/v1"
	"twmarket/pkg/contracts/domain"
)

// MonitorService registers and looks up price monitors
type MonitorService interface {
	CreateAlert(ctx context.Context, m domain.Monitor) (*domain.Monitor, error)
	CreateOrder(ctx context.Context, m domain.Monitor) (*domain.Monitor, error)
	Get(ctx context.Context, id string) (*domain.Monitor, error)
	Subscriptions() []string
}

// MonitorHandler handles the monitor endpoints
type MonitorHandler struct {
	service   MonitorService
	validator *middleware.Validator
	errors    *apierrors.ErrorHandler
}

// NewMonitorHandler creates a monitor handler
func NewMonitorHandler(service MonitorService, v *middleware.Validator, eh *apierrors.ErrorHandler) *MonitorHandler {
	return &MonitorHandler{
		service:   service,
		validator: v,
		errors:    eh,
	}
}

// CreateAlert handles POST /monitor/alerts
func (h *MonitorHandler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var req api.CreateAlertRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.created(w, r, func(ctx context.Context) (*domain.Monitor, error) {
		return h.service.CreateAlert(ctx, req.Monitor())
	})
}

// CreateOrder handles POST /monitor/orders
func (h *MonitorHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req api.CreateOrderRequest
	if err := h.validator.DecodeJSON(r, &req); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.created(w, r, func(ctx context.Context) (*domain.Monitor, error) {
		return h.service.CreateOrder(ctx, req.Monitor())
	})
}

func (h *MonitorHandler) created(w http.ResponseWriter, r *http.Request, create func(context.Context) (*domain.Monitor, error)) {
	m, err := create(r.Context())
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusCreated, m, -1)
}

// Get handles GET /monitor/{id}
func (h *MonitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	success(w, r, http.StatusOK, m, -1)
}

// Subscriptions handles GET /monitor/subscriptions
func (h *MonitorHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	symbols := h.service.Subscriptions()
	if symbols == nil {
		symbols = []string{}
	}
	success(w, r, http.StatusOK, symbols, len(symbols))
}
