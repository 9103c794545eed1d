package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"twmarket/internal/derive"
	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

const upsertChunk = 200

// DefaultTop is the ranking length served when none is requested
const DefaultTop = 50

// TickerStore persists Ticker rows keyed by (date, symbol)
type TickerStore struct {
	db   *gorm.DB
	cols *mergeColumns
}

// NewTickerStore builds a store on db
func NewTickerStore(db *gorm.DB) (*TickerStore, error) {
	cols, err := newMergeColumns(db, &domain.Ticker{})
	if err != nil {
		return nil, err
	}
	return &TickerStore{db: db, cols: cols}, nil
}

// Upsert merges tickers in one transaction. Rows are grouped by the set of
// columns they carry so each batch shares one conflict clause.
func (s *TickerStore) Upsert(ctx context.Context, tickers ...domain.Ticker) error {
	if len(tickers) == 0 {
		return nil
	}

	groups := map[string][]domain.Ticker{}
	columns := map[string][]string{}
	var order []string
	for _, t := range tickers {
		if t.Date == "" || t.Symbol == "" {
			return apperrors.NewAppValidationError("ticker date and symbol are required")
		}
		cols := s.cols.present(ctx, &t)
		sig := signature(cols)
		if _, ok := groups[sig]; !ok {
			order = append(order, sig)
			columns[sig] = cols
		}
		groups[sig] = append(groups[sig], t)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, sig := range order {
			batch := groups[sig]
			if err := tx.Clauses(onConflict([]string{"date", "symbol"}, columns[sig])).
				CreateInBatches(&batch, upsertChunk).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.NewStorageError("upsert tickers", err).WithContext("count", len(tickers))
	}
	return nil
}

// Find returns the tickers of date, optionally restricted to symbols
func (s *TickerStore) Find(ctx context.Context, date string, symbols ...string) ([]domain.Ticker, error) {
	q := s.db.WithContext(ctx).Where("date = ?", date)
	if len(symbols) > 0 {
		q = q.Where("symbol IN ?", symbols)
	}
	var rows []domain.Ticker
	if err := q.Order("symbol").Find(&rows).Error; err != nil {
		return nil, apperrors.NewStorageError("find tickers", err)
	}
	return rows, nil
}

// latestDates returns up to n distinct dates on or before date that have
// rows matching scope
func (s *TickerStore) latestDates(ctx context.Context, date string, n int, scope func(*gorm.DB) *gorm.DB) ([]string, error) {
	var dates []string
	err := s.db.WithContext(ctx).Model(&domain.Ticker{}).
		Scopes(scope).
		Where("date <= ?", date).
		Distinct("date").
		Order("date DESC").
		Limit(n).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, apperrors.NewStorageError("query ticker dates", err)
	}
	return dates, nil
}

// moneyFlowExcluded are composite indices left out of money flow
var moneyFlowExcluded = []string{
	domain.IndexNonFinance,
	domain.IndexNonElectronics,
	domain.IndexNonFinanceElectronics,
}

// MoneyFlow returns the index rows of the latest trading day on or before
// date for market, joined with the previous trading day.
func (s *TickerStore) MoneyFlow(ctx context.Context, date string, market domain.Market) ([]domain.MoneyFlow, error) {
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where("type = ? AND market = ? AND symbol NOT IN ?", domain.TickerTypeIndex, market, moneyFlowExcluded)
	}
	dates, err := s.latestDates(ctx, date, 2, scope)
	if err != nil || len(dates) == 0 {
		return []domain.MoneyFlow{}, err
	}

	load := func(d string) ([]domain.Ticker, error) {
		var rows []domain.Ticker
		if err := s.db.WithContext(ctx).Scopes(scope).Where("date = ?", d).Order("symbol").Find(&rows).Error; err != nil {
			return nil, apperrors.NewStorageError("query money flow", err)
		}
		return rows, nil
	}
	current, err := load(dates[0])
	if err != nil {
		return nil, err
	}
	var previous []domain.Ticker
	if len(dates) > 1 {
		if previous, err = load(dates[1]); err != nil {
			return nil, err
		}
	}
	return derive.MoneyFlow(current, previous), nil
}

// Direction selects gainers or losers
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// TradeKey selects the most-actives ranking column
type TradeKey string

const (
	ByVolume TradeKey = "volume"
	ByValue  TradeKey = "value"
)

// Institution selects the institutional ranking column
type Institution string

const (
	Qfii    Institution = "qfii"
	Site    Institution = "site"
	Dealers Institution = "dealers"
)

func (i Institution) column() (string, error) {
	switch i {
	case Qfii:
		return "qfii_net_buy_sell", nil
	case Site:
		return "site_net_buy_sell", nil
	case Dealers:
		return "dealers_net_buy_sell", nil
	}
	return "", apperrors.NewAppValidationError(fmt.Sprintf("unknown institution %q", i))
}

// rank returns the top equities of the latest date on or before date
// matching filter, ordered by orderBy.
func (s *TickerStore) rank(ctx context.Context, date string, market domain.Market, top int, filter string, orderBy string) ([]domain.Ticker, error) {
	if top <= 0 {
		top = DefaultTop
	}
	scope := func(q *gorm.DB) *gorm.DB {
		return q.Where("type = ? AND market = ?", domain.TickerTypeEquity, market).Where(filter)
	}
	dates, err := s.latestDates(ctx, date, 1, scope)
	if err != nil || len(dates) == 0 {
		return []domain.Ticker{}, err
	}

	var rows []domain.Ticker
	err = s.db.WithContext(ctx).
		Scopes(scope).
		Where("date = ?", dates[0]).
		Order(orderBy).
		Order("symbol").
		Limit(top).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageError("rank tickers", err)
	}
	return rows, nil
}

// TopMovers ranks equities by change percent
func (s *TickerStore) TopMovers(ctx context.Context, date string, market domain.Market, dir Direction, top int) ([]domain.Ticker, error) {
	if dir == Down {
		return s.rank(ctx, date, market, top, "change_percent < 0", "change_percent ASC")
	}
	return s.rank(ctx, date, market, top, "change_percent > 0", "change_percent DESC")
}

// MostActives ranks equities by traded volume or value
func (s *TickerStore) MostActives(ctx context.Context, date string, market domain.Market, key TradeKey, top int) ([]domain.Ticker, error) {
	if key == ByValue {
		return s.rank(ctx, date, market, top, "trade_value IS NOT NULL", "trade_value DESC")
	}
	return s.rank(ctx, date, market, top, "trade_volume IS NOT NULL", "trade_volume DESC")
}

// InstiNetBuySell ranks equities by an institution's net buy, or net sell
// when dir is Down.
func (s *TickerStore) InstiNetBuySell(ctx context.Context, date string, market domain.Market, inst Institution, dir Direction, top int) ([]domain.Ticker, error) {
	col, err := inst.column()
	if err != nil {
		return nil, err
	}
	if dir == Down {
		return s.rank(ctx, date, market, top, col+" < 0", col+" ASC")
	}
	return s.rank(ctx, date, market, top, col+" > 0", col+" DESC")
}
