package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"twmarket/pkg/contracts/domain"
)

// F returns a pointer to v
func F(v float64) *float64 { return &v }

// StatsSeries builds MarketStats rows for consecutive dates, newest first,
// with UsdTwd set from rates given oldest first.
func StatsSeries(dates []string, rates []float64) []domain.MarketStats {
	out := make([]domain.MarketStats, len(dates))
	for i := range dates {
		j := len(dates) - 1 - i
		out[i] = domain.MarketStats{Date: dates[j], UsdTwd: F(rates[j])}
	}
	return out
}

// EquityQuote builds a live equity quote with a trade
func EquityQuote(symbol string, price float64, volume int64, at time.Time) domain.Quote {
	return domain.Quote{
		Symbol:         symbol,
		InstrumentType: domain.InstrumentEquity,
		Trade:          &domain.Trade{Price: price, Volume: 1, At: at},
		TotalVolume:    volume,
	}
}

// RecordingNotifier keeps every delivered message
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []string
	// Fail makes every delivery fail
	Fail bool
}

// ErrDelivery is returned by a failing RecordingNotifier
var ErrDelivery = errors.New("delivery failed")

// Notify records message
func (n *RecordingNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	if n.Fail {
		return ErrDelivery
	}
	return nil
}

// Messages returns the recorded messages
func (n *RecordingNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}
