package ingest

import (
	"context"

	"twmarket/internal/sources"
	"twmarket/internal/sources/investing"
	"twmarket/internal/sources/taifex"
	"twmarket/pkg/contracts/domain"
)

// ExchangeSource is implemented by the TWSE and TPEx adapters
type ExchangeSource interface {
	MarketTrades(ctx context.Context, date string) sources.Result[sources.MarketTrades]
	InstiNetBuySell(ctx context.Context, date string) sources.Result[sources.InstiNetBuySell]
	MarginTransactions(ctx context.Context, date string) sources.Result[sources.MarginTransactions]
	IndexQuotes(ctx context.Context, date string) sources.Result[[]domain.Ticker]
	SectorTrades(ctx context.Context, date string) sources.Result[[]domain.Ticker]
	EquityQuotes(ctx context.Context, date string) sources.Result[[]domain.Ticker]
	EquityInstiNetBuySell(ctx context.Context, date string) sources.Result[[]domain.Ticker]
}

// FuturesSource is implemented by the TAIFEX adapter
type FuturesSource interface {
	InstiTxNetOi(ctx context.Context, date string) sources.Result[taifex.TxNetOi]
	InstiTxoNetOi(ctx context.Context, date string) sources.Result[taifex.TxoNetOi]
	LargeTraders(ctx context.Context, date string) sources.Result[taifex.LargeTraders]
	RetailMtx(ctx context.Context, date string) sources.Result[taifex.RetailMtx]
	PutCallRatio(ctx context.Context, date string) sources.Result[float64]
	UsdTwd(ctx context.Context, date string) sources.Result[float64]
}

// YieldSource is implemented by the investing adapter
type YieldSource interface {
	Yields(ctx context.Context, date string) sources.Result[investing.Yields]
}

// StatsWriter persists partial MarketStats rows
type StatsWriter interface {
	Upsert(ctx context.Context, stats domain.MarketStats) error
}

// TickerWriter persists partial Ticker rows
type TickerWriter interface {
	Upsert(ctx context.Context, tickers ...domain.Ticker) error
}
