package monitor

import (
	"context"
	"fmt"

	"twmarket/pkg/contracts/domain"
)

// Index stores monitors and answers threshold range queries
type Index interface {
	// Add stores m and indexes it under its symbol and direction. The
	// symbol joins the watched set.
	Add(ctx context.Context, m *domain.Monitor) error

	// Remove deletes m from the index and the record store. It reports
	// false when another caller removed it first.
	Remove(ctx context.Context, m *domain.Monitor) (bool, error)

	// Match returns the monitors of symbol triggered at price
	Match(ctx context.Context, symbol string, price float64) ([]*domain.Monitor, error)

	// Get loads one monitor record
	Get(ctx context.Context, id string) (*domain.Monitor, error)

	// Symbols returns the watched symbol set
	Symbols(ctx context.Context) ([]string, error)
}

// symbolsKey holds the set of watched symbols
const symbolsKey = "monitors:"

// indexKey is the sorted set of one symbol, category and direction
func indexKey(symbol string, category domain.MonitorCategory, t domain.MonitorType) string {
	return fmt.Sprintf("monitors:%s:%s:%s", symbol, category, t)
}

var categories = []domain.MonitorCategory{domain.CategoryAlert, domain.CategoryOrder}
