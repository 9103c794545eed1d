package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"twmarket/internal/config"
	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

func f(v float64) *float64 { return &v }

type StoreTestSuite struct {
	suite.Suite
	ctx     context.Context
	stats   *StatsStore
	tickers *TickerStore
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(s.T(), err)

	s.stats, err = NewStatsStore(db)
	require.NoError(s.T(), err)
	s.tickers, err = NewTickerStore(db)
	require.NoError(s.T(), err)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestStatsUpsertMergesFields() {
	require.NoError(s.T(), s.stats.Upsert(s.ctx, domain.MarketStats{
		Date: "2024-01-02", TaiexPrice: f(17853.76), TaiexChange: f(-77.03),
	}))
	require.NoError(s.T(), s.stats.Upsert(s.ctx, domain.MarketStats{
		Date: "2024-01-02", QfiiNetBuySell: f(-8.2e9),
	}))

	row, err := s.stats.Get(s.ctx, "2024-01-02")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 17853.76, *row.TaiexPrice)
	assert.Equal(s.T(), -77.03, *row.TaiexChange)
	assert.Equal(s.T(), -8.2e9, *row.QfiiNetBuySell)
	assert.Nil(s.T(), row.Margin)
}

func (s *StoreTestSuite) TestStatsUpsertIsIdempotent() {
	in := domain.MarketStats{Date: "2024-01-02", Margin: f(1.5e11), MarginChange: f(-2.1e8)}
	require.NoError(s.T(), s.stats.Upsert(s.ctx, in))
	first, err := s.stats.Get(s.ctx, "2024-01-02")
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.stats.Upsert(s.ctx, in))
	second, err := s.stats.Get(s.ctx, "2024-01-02")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), first, second)

	rows, err := s.stats.Recent(s.ctx, "2099-12-31", 10)
	require.NoError(s.T(), err)
	assert.Len(s.T(), rows, 1)
}

func (s *StoreTestSuite) TestStatsUpsertWithoutFieldsKeepsRow() {
	require.NoError(s.T(), s.stats.Upsert(s.ctx, domain.MarketStats{Date: "2024-01-02", UsdTwd: f(30.9)}))
	require.NoError(s.T(), s.stats.Upsert(s.ctx, domain.MarketStats{Date: "2024-01-02"}))

	row, err := s.stats.Get(s.ctx, "2024-01-02")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), 30.9, *row.UsdTwd)
}

func (s *StoreTestSuite) TestStatsValidation() {
	err := s.stats.Upsert(s.ctx, domain.MarketStats{})
	require.Error(s.T(), err)
	assert.Equal(s.T(), apperrors.ErrTypeValidation, apperrors.TypeOf(err))

	_, err = s.stats.Get(s.ctx, "1999-01-01")
	assert.Equal(s.T(), apperrors.ErrTypeNotFound, apperrors.TypeOf(err))
}

func (s *StoreTestSuite) TestStatsWindow() {
	for i, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04"} {
		require.NoError(s.T(), s.stats.Upsert(s.ctx, domain.MarketStats{
			Date: d, TaiexPrice: f(100 + float64(i)*10), UsdTwd: f(30 + float64(i)),
		}))
	}

	rows, err := s.stats.Window(s.ctx, "2024-01-04", 2)
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 2)
	assert.Equal(s.T(), "2024-01-04", rows[0].Date)
	assert.Equal(s.T(), 1.0, *rows[0].UsdTwdChange)
	assert.Equal(s.T(), "2024-01-03", rows[1].Date)

	rows, err = s.stats.Window(s.ctx, "2024-01-03", 0)
	require.NoError(s.T(), err)
	assert.Len(s.T(), rows, 1)
}

func (s *StoreTestSuite) TestTickerUpsertMergesBySymbol() {
	require.NoError(s.T(), s.tickers.Upsert(s.ctx,
		domain.Ticker{Date: "2024-01-02", Symbol: "2330", Type: domain.TickerTypeEquity, Market: domain.MarketTSE, ClosePrice: f(593), ChangePercent: f(-0.84)},
		domain.Ticker{Date: "2024-01-02", Symbol: "2317", Type: domain.TickerTypeEquity, Market: domain.MarketTSE, ClosePrice: f(104), ChangePercent: f(1.46)},
	))
	require.NoError(s.T(), s.tickers.Upsert(s.ctx,
		domain.Ticker{Date: "2024-01-02", Symbol: "2330", QfiiNetBuySell: f(-1.2e7)},
		domain.Ticker{Date: "2024-01-02", Symbol: "2317", QfiiNetBuySell: f(3.4e6), SiteNetBuySell: f(1e5)},
	))

	rows, err := s.tickers.Find(s.ctx, "2024-01-02", "2330")
	require.NoError(s.T(), err)
	require.Len(s.T(), rows, 1)
	assert.Equal(s.T(), domain.TickerTypeEquity, rows[0].Type)
	assert.Equal(s.T(), 593.0, *rows[0].ClosePrice)
	assert.Equal(s.T(), -1.2e7, *rows[0].QfiiNetBuySell)
	assert.Nil(s.T(), rows[0].SiteNetBuySell)

	all, err := s.tickers.Find(s.ctx, "2024-01-02")
	require.NoError(s.T(), err)
	assert.Len(s.T(), all, 2)
}

func (s *StoreTestSuite) seedEquities() {
	require.NoError(s.T(), s.tickers.Upsert(s.ctx,
		domain.Ticker{Date: "2024-01-02", Symbol: "1101", Type: domain.TickerTypeEquity, Market: domain.MarketTSE, ChangePercent: f(9.9), TradeVolume: f(100), TradeValue: f(5000), QfiiNetBuySell: f(300)},
		domain.Ticker{Date: "2024-01-03", Symbol: "1101", Type: domain.TickerTypeEquity, Market: domain.MarketTSE, ChangePercent: f(2.5), TradeVolume: f(100), TradeValue: f(9000), QfiiNetBuySell: f(-50)},
		domain.Ticker{Date: "2024-01-03", Symbol: "2330", Type: domain.TickerTypeEquity, Market: domain.MarketTSE, ChangePercent: f(-1.2), TradeVolume: f(900), TradeValue: f(8000), QfiiNetBuySell: f(700)},
		domain.Ticker{Date: "2024-01-03", Symbol: "2603", Type: domain.TickerTypeEquity, Market: domain.MarketTSE, ChangePercent: f(4.1), TradeVolume: f(500), TradeValue: f(1000), QfiiNetBuySell: f(-90)},
		domain.Ticker{Date: "2024-01-03", Symbol: "6488", Type: domain.TickerTypeEquity, Market: domain.MarketOTC, ChangePercent: f(7), TradeVolume: f(50), TradeValue: f(50)},
	))
}

func symbols(rows []domain.Ticker) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Symbol)
	}
	return out
}

func (s *StoreTestSuite) TestTopMovers() {
	s.seedEquities()

	up, err := s.tickers.TopMovers(s.ctx, "2024-01-05", domain.MarketTSE, Up, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"2603", "1101"}, symbols(up))

	down, err := s.tickers.TopMovers(s.ctx, "2024-01-05", domain.MarketTSE, Down, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"2330"}, symbols(down))

	earlier, err := s.tickers.TopMovers(s.ctx, "2024-01-02", domain.MarketTSE, Up, 1)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"1101"}, symbols(earlier))

	none, err := s.tickers.TopMovers(s.ctx, "2023-12-31", domain.MarketTSE, Up, 0)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), none)
}

func (s *StoreTestSuite) TestMostActives() {
	s.seedEquities()

	byVolume, err := s.tickers.MostActives(s.ctx, "2024-01-03", domain.MarketTSE, ByVolume, 2)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"2330", "2603"}, symbols(byVolume))

	byValue, err := s.tickers.MostActives(s.ctx, "2024-01-03", domain.MarketTSE, ByValue, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"1101", "2330", "2603"}, symbols(byValue))
}

func (s *StoreTestSuite) TestInstiNetBuySell() {
	s.seedEquities()

	buy, err := s.tickers.InstiNetBuySell(s.ctx, "2024-01-03", domain.MarketTSE, Qfii, Up, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"2330"}, symbols(buy))

	sell, err := s.tickers.InstiNetBuySell(s.ctx, "2024-01-03", domain.MarketTSE, Qfii, Down, 0)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"2603", "1101"}, symbols(sell))

	_, err = s.tickers.InstiNetBuySell(s.ctx, "2024-01-03", domain.MarketTSE, Institution("banks"), Up, 0)
	assert.Equal(s.T(), apperrors.ErrTypeValidation, apperrors.TypeOf(err))
}

func (s *StoreTestSuite) TestMoneyFlow() {
	require.NoError(s.T(), s.tickers.Upsert(s.ctx,
		domain.Ticker{Date: "2024-01-02", Symbol: "IX0010", Type: domain.TickerTypeIndex, Market: domain.MarketTSE, TradeValue: f(100), TradeWeight: f(10)},
		domain.Ticker{Date: "2024-01-03", Symbol: "IX0010", Type: domain.TickerTypeIndex, Market: domain.MarketTSE, TradeValue: f(150), TradeWeight: f(12)},
		domain.Ticker{Date: "2024-01-03", Symbol: domain.IndexNonFinance, Type: domain.TickerTypeIndex, Market: domain.MarketTSE, TradeValue: f(9)},
		domain.Ticker{Date: "2024-01-03", Symbol: "IX0044", Type: domain.TickerTypeIndex, Market: domain.MarketOTC, TradeValue: f(7)},
	))

	flows, err := s.tickers.MoneyFlow(s.ctx, "2024-01-03", domain.MarketTSE)
	require.NoError(s.T(), err)
	require.Len(s.T(), flows, 1)
	assert.Equal(s.T(), "IX0010", flows[0].Symbol)
	assert.Equal(s.T(), 100.0, *flows[0].TradeValuePrev)
	assert.Equal(s.T(), 50.0, *flows[0].TradeValueChange)
	assert.Equal(s.T(), 2.0, *flows[0].TradeWeightChange)
}
