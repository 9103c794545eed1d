package domain

import (
	"strings"
	"time"
)

// MonitorType is the threshold direction of a monitor.
type MonitorType string

const (
	// MonitorPriceGreater fires when the trade price is >= the threshold
	MonitorPriceGreater MonitorType = "price:gt"
	// MonitorPriceLess fires when the trade price is <= the threshold
	MonitorPriceLess MonitorType = "price:lt"
)

// Valid reports whether t is a known direction
func (t MonitorType) Valid() bool {
	return t == MonitorPriceGreater || t == MonitorPriceLess
}

// MonitorCategory is encoded as the id prefix.
type MonitorCategory string

const (
	CategoryAlert MonitorCategory = "alerts"
	CategoryOrder MonitorCategory = "orders"
)

// AlertSpec carries the notification name and a message template with
// price and volume substitution points.
type AlertSpec struct {
	Name    string `json:"name" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// OrderSpec carries broker order parameters. They are stored verbatim.
type OrderSpec struct {
	StockNo   string  `json:"stockNo" validate:"required"`
	BuySell   string  `json:"buySell" validate:"required"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Quantity  int64   `json:"quantity" validate:"required,min=1"`
	APCode    string  `json:"apCode"`
	PriceFlag string  `json:"priceFlag"`
	BSFlag    string  `json:"bsFlag"`
	Trade     string  `json:"trade"`
}

// Monitor is a price watch, either an alert or a pending order trigger.
type Monitor struct {
	ID     string      `json:"id"`
	Symbol string      `json:"symbol"`
	Type   MonitorType `json:"type"`
	Value  float64     `json:"value"`
	Alert  *AlertSpec  `json:"alert,omitempty"`
	Order  *OrderSpec  `json:"order,omitempty"`
}

// Category derives the category from the id prefix
func (m *Monitor) Category() MonitorCategory {
	prefix, _, _ := strings.Cut(m.ID, ":")
	return MonitorCategory(prefix)
}

// Quote is one live quote event for a symbol.
type Quote struct {
	Symbol         string `json:"symbol"`
	InstrumentType string `json:"type"`
	Trade          *Trade `json:"trade,omitempty"`
	TotalVolume    int64  `json:"totalVolume"`
}

// Trade is the last trade carried by a quote
type Trade struct {
	Price  float64   `json:"price"`
	Volume int64     `json:"volume"`
	At     time.Time `json:"at"`
}

// InstrumentEquity is the only instrument type monitors react to
const InstrumentEquity = "EQUITY"
