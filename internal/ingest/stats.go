package ingest

import (
	"context"
	"log/slog"
	"time"

	"twmarket/internal/infrastructure"
	"twmarket/internal/pipeline"
	"twmarket/internal/sources"
	"twmarket/internal/sources/investing"
	"twmarket/internal/sources/taifex"
	"twmarket/pkg/contracts/domain"
)

// StatsPipeline is the scheduler name of the market statistics run
const StatsPipeline = "market-stats"

// Market statistics step IDs
const (
	StepTaiex              = "taiex"
	StepInstiNetBuySell    = "insti-net-buy-sell"
	StepMarginTransactions = "margin-transactions"
	StepInstiTxNetOi       = "insti-tx-net-oi"
	StepInstiTxoNetOi      = "insti-txo-net-oi"
	StepLargeTraders       = "large-traders"
	StepRetailMtx          = "retail-mtx"
	StepTxoPutCallRatio    = "txo-put-call-ratio"
	StepUsdTwd             = "usdtwd"
	StepYields             = "us-treasury-yields"
)

// MarketStatsService builds the market statistics pipeline
type MarketStatsService struct {
	twse   ExchangeSource
	taifex FuturesSource
	yields YieldSource
	store  StatsWriter
	logger *slog.Logger
}

// NewMarketStatsService creates the service. yields may be nil, which
// leaves the treasury yield step out.
func NewMarketStatsService(twse ExchangeSource, futures FuturesSource, yields YieldSource, store StatsWriter, logger *slog.Logger) *MarketStatsService {
	return &MarketStatsService{
		twse:   twse,
		taifex: futures,
		yields: yields,
		store:  store,
		logger: infrastructure.WithComponent(logger, "market_stats"),
	}
}

// statsStep fetches one statistic group and merges it into the date's row
type statsStep[T any] struct {
	id     string
	name   string
	fetch  func(ctx context.Context, date string) sources.Result[T]
	apply  func(stats *domain.MarketStats, v T)
	store  StatsWriter
	logger *slog.Logger
}

func (s *statsStep[T]) ID() string             { return s.id }
func (s *statsStep[T]) Name() string           { return s.name }
func (s *statsStep[T]) Dependencies() []string { return nil }

func (s *statsStep[T]) Execute(ctx context.Context, state *pipeline.RunState) (pipeline.Outcome, error) {
	res := s.fetch(ctx, state.Date)
	if !report(ctx, s.logger, s.id, state.Date, res.Status, res.Reason) {
		if res.Status == sources.StatusFailed {
			return "", res.Err
		}
		return pipeline.NoData, nil
	}

	stats := domain.MarketStats{Date: state.Date}
	s.apply(&stats, res.Value)
	if err := s.store.Upsert(ctx, stats); err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "source_updated",
		slog.String("step", s.id),
		slog.String("name", s.name),
		slog.String("date", state.Date))
	return pipeline.Completed, nil
}

// report logs non-OK outcomes and reports whether the value can be written.
// Schema mismatches behave like missing data but are logged as warnings so
// a changed upstream layout does not pass for a holiday.
func report(ctx context.Context, logger *slog.Logger, step, date string, status sources.Status, reason string) bool {
	switch status {
	case sources.StatusOK:
		return true
	case sources.StatusNoData:
		logger.InfoContext(ctx, "source_no_data",
			slog.String("step", step),
			slog.String("date", date),
			slog.String("message", "no data or non-trading day"),
			slog.String("reason", reason))
	case sources.StatusSchemaMismatch:
		logger.WarnContext(ctx, "source_schema_mismatch",
			slog.String("step", step),
			slog.String("date", date),
			slog.String("reason", reason))
	default:
		logger.ErrorContext(ctx, "source_fetch_failed",
			slog.String("step", step),
			slog.String("date", date),
			slog.String("error", reason))
	}
	return false
}

func newStatsStep[T any](svc *MarketStatsService, id, name string,
	fetch func(context.Context, string) sources.Result[T], apply func(*domain.MarketStats, T)) pipeline.Step {
	return &statsStep[T]{id: id, name: name, fetch: fetch, apply: apply, store: svc.store, logger: svc.logger}
}

// Steps returns the statistic groups in their scheduled order
func (svc *MarketStatsService) Steps() []pipeline.Step {
	steps := []pipeline.Step{
		newStatsStep(svc, StepTaiex, "集中市場加權指數", svc.twse.MarketTrades,
			func(s *domain.MarketStats, v sources.MarketTrades) {
				s.TaiexPrice = v.Price
				s.TaiexChange = v.Change
				s.TaiexTradeValue = v.TradeValue
			}),
		newStatsStep(svc, StepInstiNetBuySell, "集中市場三大法人買賣超", svc.twse.InstiNetBuySell,
			func(s *domain.MarketStats, v sources.InstiNetBuySell) {
				s.QfiiNetBuySell = v.Qfii
				s.SiteNetBuySell = v.Site
				s.DealersNetBuySell = v.Dealers
			}),
		newStatsStep(svc, StepMarginTransactions, "集中市場信用交易", svc.twse.MarginTransactions,
			func(s *domain.MarketStats, v sources.MarginTransactions) {
				s.Margin = v.Margin
				s.MarginChange = v.MarginChange
				s.Short = v.Short
				s.ShortChange = v.ShortChange
			}),
		newStatsStep(svc, StepInstiTxNetOi, "外資台指期未平倉", svc.taifex.InstiTxNetOi,
			func(s *domain.MarketStats, v taifex.TxNetOi) {
				s.QfiiTxNetOi = v.Qfii
			}),
		newStatsStep(svc, StepInstiTxoNetOi, "外資台指選擇權未平倉", svc.taifex.InstiTxoNetOi,
			func(s *domain.MarketStats, v taifex.TxoNetOi) {
				s.QfiiTxoCallsNetOi = v.QfiiCallsNetOi
				s.QfiiTxoCallsNetOiValue = v.QfiiCallsNetOiValue
				s.QfiiTxoPutsNetOi = v.QfiiPutsNetOi
				s.QfiiTxoPutsNetOiValue = v.QfiiPutsNetOiValue
			}),
		newStatsStep(svc, StepLargeTraders, "十大特定法人台指期未平倉", svc.taifex.LargeTraders,
			func(s *domain.MarketStats, v taifex.LargeTraders) {
				s.SpecificTop10TxFrontMonthNetOi = v.Top10Specific.Front.Net()
				s.SpecificTop10TxBackMonthsNetOi = v.Top10Specific.Back.Net()
			}),
		newStatsStep(svc, StepRetailMtx, "散戶小台淨部位", svc.taifex.RetailMtx,
			func(s *domain.MarketStats, v taifex.RetailMtx) {
				s.RetailMtxNetOi = v.Net
				s.RetailMtxLongShortRatio = v.Ratio
			}),
		newStatsStep(svc, StepTxoPutCallRatio, "台指選擇權Put/Call比", svc.taifex.PutCallRatio,
			func(s *domain.MarketStats, v float64) {
				s.TxoPutCallRatio = domain.Float(v)
			}),
		newStatsStep(svc, StepUsdTwd, "美元兌新台幣匯率", svc.taifex.UsdTwd,
			func(s *domain.MarketStats, v float64) {
				s.UsdTwd = domain.Float(v)
			}),
	}
	if svc.yields != nil {
		steps = append(steps, newStatsStep(svc, StepYields, "美國公債殖利率", svc.yields.Yields,
			func(s *domain.MarketStats, v investing.Yields) {
				s.Us3m = v.Us3m
				s.Us2y = v.Us2y
				s.Us10y = v.Us10y
			}))
	}
	return steps
}

// Scheduler registers the steps on a new scheduler
func (svc *MarketStatsService) Scheduler(spacing time.Duration, metrics *infrastructure.Metrics, opts ...pipeline.Option) (*pipeline.Scheduler, error) {
	return newScheduler(StatsPipeline, svc.Steps(), spacing, metrics, svc.logger, opts...)
}

func newScheduler(name string, steps []pipeline.Step, spacing time.Duration, metrics *infrastructure.Metrics, logger *slog.Logger, opts ...pipeline.Option) (*pipeline.Scheduler, error) {
	reg := pipeline.NewRegistry()
	for _, s := range steps {
		if err := reg.Register(s); err != nil {
			return nil, err
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	base := []pipeline.Option{
		pipeline.WithSpacing(spacing),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(logger),
	}
	return pipeline.NewScheduler(name, reg, append(base, opts...)...), nil
}
