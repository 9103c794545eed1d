package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/pkg/contracts/domain"
)

// Engine registers monitors and evaluates quotes against them
type Engine struct {
	index    Index
	subs     *SubscriptionRegistry
	notifier Notifier
	orders   OrderExecutor
	onFire   TriggerHook
	metrics  *infrastructure.Metrics
	logger   *slog.Logger
	loc      *time.Location
	now      func() time.Time

	// serializes registration: capacity check, subscribe and index write
	mu     sync.Mutex
	lastID int64

	symbolMu sync.Map // symbol -> *sync.Mutex
	inflight sync.WaitGroup
}

// Option customizes an Engine
type Option func(*Engine)

// TriggerHook observes a monitor that a quote crossed, before its action runs
type TriggerHook func(ctx context.Context, m *domain.Monitor, q domain.Quote)

// WithNotifier sets the alert delivery
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithOrderExecutor sets the order trigger action
func WithOrderExecutor(x OrderExecutor) Option { return func(e *Engine) { e.orders = x } }

// WithTriggerHook calls h for every fired monitor
func WithTriggerHook(h TriggerHook) Option { return func(e *Engine) { e.onFire = h } }

// WithMetrics records triggers on m
func WithMetrics(m *infrastructure.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger sets the engine logger
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithLocation sets the zone alert times are printed in
func WithLocation(loc *time.Location) Option { return func(e *Engine) { e.loc = loc } }

// WithClock replaces time.Now for id generation
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates an engine over index and subs
func NewEngine(index Index, subs *SubscriptionRegistry, opts ...Option) *Engine {
	e := &Engine{
		index:  index,
		subs:   subs,
		logger: infrastructure.GetLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = infrastructure.WithComponent(e.logger, "monitor")
	if e.notifier == nil {
		e.notifier = LogNotifier{Logger: e.logger}
	}
	if e.orders == nil {
		e.orders = LogOrderExecutor{Logger: e.logger}
	}
	return e
}

// CreateAlert registers an alert monitor
func (e *Engine) CreateAlert(ctx context.Context, m domain.Monitor) (*domain.Monitor, error) {
	if m.Alert == nil {
		return nil, apperrors.NewAppValidationError("alert is required")
	}
	if err := CheckMessage(m.Alert); err != nil {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("invalid alert message: %v", err))
	}
	m.Order = nil
	return e.register(ctx, domain.CategoryAlert, m)
}

// CreateOrder registers an order trigger monitor
func (e *Engine) CreateOrder(ctx context.Context, m domain.Monitor) (*domain.Monitor, error) {
	if m.Order == nil {
		return nil, apperrors.NewAppValidationError("order is required")
	}
	m.Alert = nil
	return e.register(ctx, domain.CategoryOrder, m)
}

func (e *Engine) register(ctx context.Context, category domain.MonitorCategory, m domain.Monitor) (*domain.Monitor, error) {
	m.Symbol = strings.TrimSpace(m.Symbol)
	if m.Symbol == "" {
		return nil, apperrors.NewAppValidationError("symbol is required")
	}
	if !m.Type.Valid() {
		return nil, apperrors.NewAppValidationError(fmt.Sprintf("unknown monitor type %q", m.Type))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m.ID = fmt.Sprintf("%s:%d", category, e.nextID())

	opened, err := e.subs.Acquire(ctx, m.Symbol, e.OnQuote)
	if err != nil {
		return nil, err
	}
	if err := e.index.Add(ctx, &m); err != nil {
		if opened {
			if rerr := e.subs.Release(m.Symbol); rerr != nil {
				e.logger.WarnContext(ctx, "subscription_rollback_failed",
					slog.String("symbol", m.Symbol),
					slog.String("error", rerr.Error()))
			}
		}
		return nil, err
	}

	e.logger.InfoContext(ctx, "monitor_created",
		slog.String("id", m.ID),
		slog.String("symbol", m.Symbol),
		slog.String("type", string(m.Type)),
		slog.Float64("value", m.Value),
		slog.Bool("subscribed", opened))
	return &m, nil
}

// nextID returns creation epoch millis, bumped past the previous id so two
// monitors created in the same millisecond stay distinct
func (e *Engine) nextID() int64 {
	id := e.now().UnixMilli()
	if id <= e.lastID {
		id = e.lastID + 1
	}
	e.lastID = id
	return id
}

// Bootstrap reopens a stream for every watched symbol
func (e *Engine) Bootstrap(ctx context.Context) error {
	symbols, err := e.index.Symbols(ctx)
	if err != nil {
		return err
	}
	for _, symbol := range symbols {
		if _, err := e.subs.Acquire(ctx, symbol, e.OnQuote); err != nil {
			e.logger.WarnContext(ctx, "bootstrap_subscribe_failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()))
			continue
		}
	}
	e.logger.InfoContext(ctx, "monitor_bootstrap",
		slog.Int("watched", len(symbols)),
		slog.Int("subscribed", e.subs.Count()))
	return nil
}

func (e *Engine) lockSymbol(symbol string) func() {
	v, _ := e.symbolMu.LoadOrStore(symbol, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// OnQuote fires every monitor the quote crosses. Matches are removed from
// the index before their actions start; actions run in the background.
func (e *Engine) OnQuote(ctx context.Context, q domain.Quote) {
	if q.InstrumentType != domain.InstrumentEquity || q.Trade == nil {
		return
	}
	unlock := e.lockSymbol(q.Symbol)
	defer unlock()

	ctx, span := infrastructure.StartSpan(ctx, "monitor.quote",
		attribute.String("symbol", q.Symbol),
		attribute.Float64("price", q.Trade.Price))
	defer span.End()

	matches, err := e.index.Match(ctx, q.Symbol, q.Trade.Price)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		e.logger.ErrorContext(ctx, "monitor_match_failed",
			slog.String("symbol", q.Symbol),
			slog.String("error", err.Error()))
		return
	}

	for _, m := range matches {
		removed, err := e.index.Remove(ctx, m)
		if err != nil {
			e.logger.ErrorContext(ctx, "monitor_remove_failed",
				slog.String("id", m.ID),
				slog.String("error", err.Error()))
			continue
		}
		if !removed {
			continue
		}
		e.metrics.MonitorTriggered(ctx, string(m.Category()))

		m := m
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			e.dispatch(context.WithoutCancel(ctx), m, q)
		}()
	}
}

func (e *Engine) dispatch(ctx context.Context, m *domain.Monitor, q domain.Quote) {
	if e.onFire != nil {
		e.onFire(ctx, m, q)
	}
	switch m.Category() {
	case domain.CategoryAlert:
		if m.Alert == nil {
			return
		}
		msg, err := Render(m.Alert, q, e.loc)
		if err != nil {
			e.logger.ErrorContext(ctx, "alert_render_failed",
				slog.String("id", m.ID),
				slog.String("error", err.Error()))
			return
		}
		if err := e.notifier.Notify(ctx, msg); err != nil {
			e.metrics.NotifyFailed(ctx)
			e.logger.ErrorContext(ctx, "alert_delivery_failed",
				slog.String("id", m.ID),
				slog.String("error", err.Error()))
			return
		}
		e.logger.InfoContext(ctx, "alert_sent",
			slog.String("id", m.ID),
			slog.String("symbol", m.Symbol),
			slog.Float64("price", q.Trade.Price))
	case domain.CategoryOrder:
		if err := e.orders.Execute(ctx, m, q); err != nil {
			e.logger.ErrorContext(ctx, "order_failed",
				slog.String("id", m.ID),
				slog.String("error", err.Error()))
		}
	default:
		e.logger.WarnContext(ctx, "monitor_unknown_category", slog.String("id", m.ID))
	}
}

// Wait blocks until triggered actions have finished
func (e *Engine) Wait() {
	e.inflight.Wait()
}

// Subscriptions returns the currently streamed symbols
func (e *Engine) Subscriptions() []string {
	return e.subs.Symbols()
}

// Get loads a monitor
func (e *Engine) Get(ctx context.Context, id string) (*domain.Monitor, error) {
	return e.index.Get(ctx, id)
}
