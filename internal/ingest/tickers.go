package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"twmarket/internal/infrastructure"
	"twmarket/internal/pipeline"
	"twmarket/internal/sources"
	"twmarket/pkg/contracts/domain"
)

// TickersPipeline is the scheduler name of the ticker run
const TickersPipeline = "tickers"

// Ticker step IDs
const (
	StepIndexQuotes           = "index-quotes"
	StepMarketTrades          = "market-trades"
	StepSectorTrades          = "sector-trades"
	StepEquityQuotes          = "equity-quotes"
	StepEquityInstiNetBuySell = "equity-insti-net-buy-sell"
)

// TickerService builds the ticker pipeline over both markets
type TickerService struct {
	twse   ExchangeSource
	tpex   ExchangeSource
	store  TickerWriter
	logger *slog.Logger
}

// NewTickerService creates the service
func NewTickerService(twse, tpex ExchangeSource, store TickerWriter, logger *slog.Logger) *TickerService {
	return &TickerService{
		twse:   twse,
		tpex:   tpex,
		store:  store,
		logger: infrastructure.WithComponent(logger, "tickers"),
	}
}

type tickerFetch func(ctx context.Context, date string) sources.Result[[]domain.Ticker]

// pairedStep runs the TWSE and TPEx fetch of one dataset concurrently and
// writes whatever each market returned
type pairedStep struct {
	id     string
	name   string
	legs   [2]leg
	store  TickerWriter
	logger *slog.Logger
}

type leg struct {
	market domain.Market
	fetch  tickerFetch
}

func (s *pairedStep) ID() string             { return s.id }
func (s *pairedStep) Name() string           { return s.name }
func (s *pairedStep) Dependencies() []string { return nil }

func (s *pairedStep) Execute(ctx context.Context, state *pipeline.RunState) (pipeline.Outcome, error) {
	var results [2]sources.Result[[]domain.Ticker]
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range s.legs {
		i, l := i, l
		g.Go(func() error {
			results[i] = l.fetch(gctx, state.Date)
			return nil
		})
	}
	_ = g.Wait()

	written := 0
	var errs []error
	for i, res := range results {
		market := s.legs[i].market
		step := fmt.Sprintf("%s/%s", s.id, market)
		if !report(ctx, s.logger, step, state.Date, res.Status, res.Reason) {
			if res.Status == sources.StatusFailed {
				errs = append(errs, fmt.Errorf("%s: %w", market, res.Err))
			}
			continue
		}
		if len(res.Value) == 0 {
			continue
		}
		if err := s.store.Upsert(ctx, res.Value...); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", market, err))
			continue
		}
		written++
		s.logger.InfoContext(ctx, "source_updated",
			slog.String("step", step),
			slog.String("name", s.name),
			slog.String("date", state.Date),
			slog.Int("tickers", len(res.Value)))
	}

	switch {
	case written > 0:
		// a failed market is logged above; the other market's rows stand
		return pipeline.Completed, nil
	case len(errs) > 0:
		return "", errors.Join(errs...)
	default:
		return pipeline.NoData, nil
	}
}

func (svc *TickerService) paired(id, name string, twse, tpex tickerFetch) pipeline.Step {
	return &pairedStep{
		id:   id,
		name: name,
		legs: [2]leg{
			{market: domain.MarketTSE, fetch: twse},
			{market: domain.MarketOTC, fetch: tpex},
		},
		store:  svc.store,
		logger: svc.logger,
	}
}

// marketIndex turns a market-wide turnover record into its index ticker
func marketIndex(src func(context.Context, string) sources.Result[sources.MarketTrades], symbol, name string, exchange domain.Exchange, market domain.Market) tickerFetch {
	return func(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
		return sources.Map(src(ctx, date), func(m sources.MarketTrades) []domain.Ticker {
			return []domain.Ticker{{
				Date:          date,
				Symbol:        symbol,
				Type:          domain.TickerTypeIndex,
				Exchange:      exchange,
				Market:        market,
				Name:          name,
				ClosePrice:    m.Price,
				Change:        m.Change,
				ChangePercent: m.ChangePercent(),
				TradeVolume:   m.TradeVolume,
				TradeValue:    m.TradeValue,
				Transaction:   m.Transaction,
			}}
		})
	}
}

// Steps returns the ticker datasets in their scheduled order
func (svc *TickerService) Steps() []pipeline.Step {
	return []pipeline.Step{
		svc.paired(StepIndexQuotes, "指數收盤行情", svc.twse.IndexQuotes, svc.tpex.IndexQuotes),
		svc.paired(StepMarketTrades, "大盤成交量值",
			marketIndex(svc.twse.MarketTrades, domain.IndexTaiex, "發行量加權股價指數", domain.ExchangeTWSE, domain.MarketTSE),
			marketIndex(svc.tpex.MarketTrades, domain.IndexTpex, "櫃買指數", domain.ExchangeTPEx, domain.MarketOTC)),
		svc.paired(StepSectorTrades, "產業成交比重", svc.twse.SectorTrades, svc.tpex.SectorTrades),
		svc.paired(StepEquityQuotes, "個股收盤行情", svc.twse.EquityQuotes, svc.tpex.EquityQuotes),
		svc.paired(StepEquityInstiNetBuySell, "個股三大法人買賣超", svc.twse.EquityInstiNetBuySell, svc.tpex.EquityInstiNetBuySell),
	}
}

// Scheduler registers the steps on a new scheduler
func (svc *TickerService) Scheduler(spacing time.Duration, metrics *infrastructure.Metrics, opts ...pipeline.Option) (*pipeline.Scheduler, error) {
	return newScheduler(TickersPipeline, svc.Steps(), spacing, metrics, svc.logger, opts...)
}
