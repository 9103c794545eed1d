// Package api contains the request contracts of the HTTP API.
package api

import (
	"twmarket/pkg/contracts/domain"
)

// CreateAlertRequest is the body of POST /monitor/alerts
type CreateAlertRequest struct {
	Symbol string             `json:"symbol" validate:"required,symbol"`
	Type   domain.MonitorType `json:"type" validate:"required,oneof=price:gt price:lt"`
	Value  float64            `json:"value" validate:"gt=0"`
	Alert  *domain.AlertSpec  `json:"alert" validate:"required"`
}

// CreateOrderRequest is the body of POST /monitor/orders
type CreateOrderRequest struct {
	Symbol string             `json:"symbol" validate:"required,symbol"`
	Type   domain.MonitorType `json:"type" validate:"required,oneof=price:gt price:lt"`
	Value  float64            `json:"value" validate:"gt=0"`
	Order  *domain.OrderSpec  `json:"order" validate:"required"`
}

// MarketStatsQuery holds the query parameters of GET /api/market-stats
type MarketStatsQuery struct {
	Date string `json:"date" validate:"omitempty,isodate"`
	Days int    `json:"days" validate:"omitempty,min=1,max=365"`
}

// RankingQuery holds the query parameters of the ticker ranking endpoints
type RankingQuery struct {
	Date   string `json:"date" validate:"omitempty,isodate"`
	Market string `json:"market" validate:"required,oneof=TSE OTC"`
	Top    int    `json:"top" validate:"omitempty,min=1,max=200"`
}

// RunPipelineRequest is the body of POST /api/pipelines/{name}/runs
type RunPipelineRequest struct {
	Date  string   `json:"date" validate:"omitempty,isodate"`
	Steps []string `json:"steps,omitempty"`
}

// Monitor converts the request into an unsaved alert monitor
func (r *CreateAlertRequest) Monitor() domain.Monitor {
	return domain.Monitor{Symbol: r.Symbol, Type: r.Type, Value: r.Value, Alert: r.Alert}
}

// Monitor converts the request into an unsaved order monitor
func (r *CreateOrderRequest) Monitor() domain.Monitor {
	return domain.Monitor{Symbol: r.Symbol, Type: r.Type, Value: r.Value, Order: r.Order}
}
