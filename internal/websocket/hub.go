package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"twmarket/internal/infrastructure"
	"twmarket/internal/pipeline"
	"twmarket/pkg/contracts/domain"
	"twmarket/pkg/contracts/events"
)

// broadcastBuffer is how many events may queue while the hub loop is busy
const broadcastBuffer = 64

// Hub maintains the set of connected clients and fans events out to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *infrastructure.Metrics
	done    chan struct{}
}

// NewHub creates a hub. Call Run before publishing.
func NewHub(logger *slog.Logger, metrics *infrastructure.Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
		metrics:    metrics,
		done:       make(chan struct{}),
	}
}

// Run services registrations and broadcasts until ctx is done. Every client
// is disconnected on return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.mu.Unlock()
		close(h.done)
		h.logger.Info("hub_stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.metrics.LiveClientDelta(ctx, 1)
			h.logger.Info("client_registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				count := len(h.clients)
				h.mu.Unlock()
				h.metrics.LiveClientDelta(ctx, -1)
				h.logger.Info("client_unregistered",
					slog.String("client_id", client.id),
					slog.Int("total_clients", count),
					slog.Duration("connection_duration", time.Since(client.connectedAt)))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.fanOut(ctx, message)
		}
	}
}

func (h *Hub) fanOut(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// slow reader; its write pump exits once send is closed
			close(client.send)
			delete(h.clients, client)
			h.metrics.LiveClientDelta(ctx, -1)
			h.metrics.LiveClientDropped(ctx)
			h.logger.Warn("client_buffer_full",
				slog.String("client_id", client.id))
		}
	}
}

// Publish queues an event for every connected client. Events published
// after the hub stopped are discarded.
func (h *Hub) Publish(ctx context.Context, typ events.Type, data interface{}) {
	payload, err := json.Marshal(events.Message{
		Type:      typ,
		Timestamp: time.Now(),
		TraceID:   infrastructure.GetTraceID(ctx),
		Data:      data,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "event_marshal_failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	case <-h.done:
	case <-ctx.Done():
	}
}

// MonitorTriggered publishes a fired monitor. It satisfies monitor.TriggerHook.
func (h *Hub) MonitorTriggered(ctx context.Context, m *domain.Monitor, q domain.Quote) {
	ev := events.MonitorTriggered{Monitor: *m, Volume: q.TotalVolume}
	if q.Trade != nil {
		ev.Price = q.Trade.Price
		ev.At = q.Trade.At
	}
	h.Publish(ctx, events.TypeMonitorTriggered, ev)
}

// PipelineStep publishes a step transition. It satisfies pipeline.Observer.
func (h *Hub) PipelineStep(ctx context.Context, name, date string, st *pipeline.StepState) {
	h.Publish(ctx, events.TypePipelineStep, events.StepSnapshot{
		Pipeline: name,
		Date:     date,
		StepID:   st.ID,
		Name:     st.Name,
		Status:   string(st.GetStatus()),
		Message:  st.GetMessage(),
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
