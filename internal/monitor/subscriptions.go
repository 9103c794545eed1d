package monitor

import (
	"context"
	"sort"
	"sync"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/pkg/contracts/domain"
)

// DefaultMaxSubscriptions is the quote stream cap
const DefaultMaxSubscriptions = 5

// QuoteHandler receives quotes of one symbol
type QuoteHandler func(ctx context.Context, q domain.Quote)

// QuoteFeed opens and closes per-symbol quote streams
type QuoteFeed interface {
	Subscribe(ctx context.Context, symbol string, handler QuoteHandler) error
	Unsubscribe(symbol string) error
}

// SubscriptionRegistry owns the live quote streams and enforces the cap
type SubscriptionRegistry struct {
	mu      sync.Mutex
	feed    QuoteFeed
	max     int
	active  map[string]struct{}
	metrics *infrastructure.Metrics
}

// NewSubscriptionRegistry creates a registry over feed. max <= 0 selects
// DefaultMaxSubscriptions.
func NewSubscriptionRegistry(feed QuoteFeed, max int, metrics *infrastructure.Metrics) *SubscriptionRegistry {
	if max <= 0 {
		max = DefaultMaxSubscriptions
	}
	return &SubscriptionRegistry{
		feed:    feed,
		max:     max,
		active:  make(map[string]struct{}),
		metrics: metrics,
	}
}

// Acquire ensures a stream for symbol. It reports whether a new stream
// was opened, and fails with ErrCapacityExceeded when the cap is reached.
func (r *SubscriptionRegistry) Acquire(ctx context.Context, symbol string, handler QuoteHandler) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[symbol]; ok {
		return false, nil
	}
	if len(r.active) >= r.max {
		return false, apperrors.ErrCapacityExceeded
	}
	if err := r.feed.Subscribe(ctx, symbol, handler); err != nil {
		return false, apperrors.NewNetworkError("subscribe "+symbol, err)
	}
	r.active[symbol] = struct{}{}
	r.metrics.SubscriptionDelta(ctx, 1)
	return true, nil
}

// Release closes the stream of symbol
func (r *SubscriptionRegistry) Release(symbol string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[symbol]; !ok {
		return nil
	}
	delete(r.active, symbol)
	r.metrics.SubscriptionDelta(context.Background(), -1)
	return r.feed.Unsubscribe(symbol)
}

// Count returns the number of open streams
func (r *SubscriptionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Symbols returns the subscribed symbols
func (r *SubscriptionRegistry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.active))
	for s := range r.active {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
