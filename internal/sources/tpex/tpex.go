// Package tpex fetches the OTC market's daily reports.
package tpex

import (
	"context"
	"net/url"

	"twmarket/internal/derive"
	apperrors "twmarket/internal/errors"
	"twmarket/internal/extract"
	"twmarket/internal/sources"
	"twmarket/pkg/contracts/domain"
)

const sourceName = "tpex"

// Source is the TPEx adapter
type Source struct {
	client  *sources.Client
	baseURL string
}

// New builds an adapter rooted at baseURL
func New(client *sources.Client, baseURL string) *Source {
	return &Source{client: client, baseURL: baseURL}
}

// report is the DataTables envelope TPEx answers with. An empty result
// reports zero records.
type report struct {
	TotalRecords int           `json:"iTotalRecords"`
	ReportDate   string        `json:"reportDate"`
	Data         sources.Rows  `json:"aaData"`
	FootOne      sources.Cells `json:"tfootData_one"`
	FootTwo      sources.Cells `json:"tfootData_two"`
}

func (r *report) empty() bool { return r.TotalRecords <= 0 && len(r.Data) == 0 }

func (s *Source) fetch(ctx context.Context, path string, query url.Values) (*report, error) {
	query.Set("l", "zh-tw")
	query.Set("o", "json")
	var r report
	if err := s.client.GetJSON(ctx, sourceName, sources.JoinURL(s.baseURL, path, query), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func rocDate(date string) (string, error) {
	t, err := sources.ParseDate(date)
	if err != nil {
		return "", apperrors.NewAppValidationError(err.Error())
	}
	return sources.ROC(t), nil
}

var marketTradesLayout = extract.Sequential("tpex.st41", 1, "tradeVolume", "tradeValue", "transaction", "price", "change")

// MarketTrades fetches the OTC turnover and TPEx index close
func (s *Source) MarketTrades(ctx context.Context, date string) sources.Result[sources.MarketTrades] {
	t, err := sources.ParseDate(date)
	if err != nil {
		return sources.Failed[sources.MarketTrades](apperrors.NewAppValidationError(err.Error()))
	}
	r, err := s.fetch(ctx, "/web/stock/aftertrading/daily_trading_index/st41_result.php", url.Values{"d": {sources.ROCMonth(t)}})
	if err != nil {
		return sources.FromError[sources.MarketTrades](err)
	}
	if r.empty() {
		return sources.NoData[sources.MarketTrades]("no records")
	}

	row, found := sources.FindRow(r.Data, sources.ROC(t))
	if !found {
		return sources.NoData[sources.MarketTrades]("date not in month table")
	}
	v, err := marketTradesLayout.Apply(row)
	if err != nil {
		return sources.SchemaMismatch[sources.MarketTrades](err.Error())
	}
	return sources.Ok(sources.MarketTrades{
		Date:        date,
		TradeVolume: v.Get("tradeVolume"),
		TradeValue:  v.Get("tradeValue"),
		Transaction: v.Get("transaction"),
		Price:       v.Get("price"),
		Change:      v.Get("change"),
	})
}

// Foreign investors total, foreign ex dealers, foreign dealers, investment
// trust, dealers total, proprietary and hedging dealers; each buy, sell,
// net.
var instiLayout = extract.Layout{
	Source: "tpex.3itrdsum",
	Width:  21,
	Fields: []extract.Field{
		{Name: "qfiiNet", Index: 2},
		{Name: "itNet", Index: 11},
		{Name: "dealersNet", Index: 14},
	},
}

// InstiNetBuySell fetches the OTC institutional net buy/sell
func (s *Source) InstiNetBuySell(ctx context.Context, date string) sources.Result[sources.InstiNetBuySell] {
	d, err := rocDate(date)
	if err != nil {
		return sources.Failed[sources.InstiNetBuySell](err)
	}
	r, err := s.fetch(ctx, "/web/stock/3insti/3insti_summary/3itrdsum_result.php", url.Values{"t": {"D"}, "d": {d}})
	if err != nil {
		return sources.FromError[sources.InstiNetBuySell](err)
	}
	if r.empty() {
		return sources.NoData[sources.InstiNetBuySell]("no records")
	}

	v, err := instiLayout.ApplyNumbers(extract.Numbers(r.Data...))
	if err != nil {
		return sources.SchemaMismatch[sources.InstiNetBuySell](err.Error())
	}
	return sources.Ok(sources.InstiNetBuySell{
		Date:    date,
		Qfii:    v.Get("qfiiNet"),
		Site:    v.Get("itNet"),
		Dealers: v.Get("dealersNet"),
	})
}

var marginLayout = extract.Sequential("tpex.margin_bal", 0,
	"marginBalancePrev", "marginPurchase", "marginSale", "cashRedemption", "marginBalance",
	"shortBalancePrev", "shortCovering", "shortSale", "stockRedemption", "shortBalance",
	"marginValueBalancePrev", "marginPurchaseValue", "marginSaleValue", "cashRedemptionValue", "marginValueBalance",
)

// MarginTransactions fetches the OTC margin summary from the footer rows
func (s *Source) MarginTransactions(ctx context.Context, date string) sources.Result[sources.MarginTransactions] {
	d, err := rocDate(date)
	if err != nil {
		return sources.Failed[sources.MarginTransactions](err)
	}
	r, err := s.fetch(ctx, "/web/stock/margin_trading/margin_balance/margin_bal_result.php", url.Values{"d": {d}})
	if err != nil {
		return sources.FromError[sources.MarginTransactions](err)
	}
	if r.empty() {
		return sources.NoData[sources.MarginTransactions]("no records")
	}

	v, err := marginLayout.ApplyNumbers(extract.Numbers(r.FootOne, r.FootTwo))
	if err != nil {
		return sources.SchemaMismatch[sources.MarginTransactions](err.Error())
	}
	return sources.Ok(sources.MarginTransactions{
		Date:         date,
		Margin:       v.Get("marginValueBalance"),
		MarginChange: extract.Sub(v.Get("marginValueBalance"), v.Get("marginValueBalancePrev")),
		Short:        v.Get("shortBalance"),
		ShortChange:  extract.Sub(v.Get("shortBalance"), v.Get("shortBalancePrev")),
	})
}

// IndexQuotes derives daily OHLC quotes from the one minute index table
func (s *Source) IndexQuotes(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	d, err := rocDate(date)
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/web/stock/iNdex_info/minute_index/1MIN_result.php", url.Values{"d": {d}})
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if r.empty() || len(r.Data) < 2 {
		return sources.NoData[[]domain.Ticker]("no intraday rows")
	}
	if len(r.Data[0]) < len(IndexSeries)+1 {
		return sources.SchemaMismatch[[]domain.Ticker]("index table narrower than series list")
	}
	return sources.Ok(sources.IndexQuotes(date, IndexSeries, r.Data, domain.ExchangeTPEx, domain.MarketOTC))
}

// Sector name, value, value weight, volume, volume weight.
var sectorLayout = extract.Layout{
	Source: "tpex.sectr",
	Width:  4,
	Fields: []extract.Field{
		{Name: "tradeValue", Index: 1},
		{Name: "tradeWeight", Index: 2},
		{Name: "tradeVolume", Index: 3},
	},
}

// SectorTrades fetches per-sector turnover and appends the electronics
// aggregate built from its eight sub-sectors.
func (s *Source) SectorTrades(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	d, err := rocDate(date)
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/web/stock/historical/trading_vol_ratio/sectr_result.php", url.Values{"t": {"D"}, "d": {d}})
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if r.empty() {
		return sources.NoData[[]domain.Ticker]("no records")
	}

	var out []domain.Ticker
	for _, row := range r.Data {
		symbol, ok := sectorSymbols[extract.Text(row, 0)]
		if !ok {
			continue
		}
		v := s.client.Row(ctx, sectorLayout, row)
		out = append(out, domain.Ticker{
			Date:        date,
			Symbol:      symbol,
			Type:        domain.TickerTypeIndex,
			Exchange:    domain.ExchangeTPEx,
			Market:      domain.MarketOTC,
			TradeVolume: v.Get("tradeVolume"),
			TradeValue:  v.Get("tradeValue"),
			TradeWeight: v.Get("tradeWeight"),
		})
	}
	if len(out) == 0 {
		return sources.NoData[[]domain.Ticker]("no sector rows")
	}

	electronics := domain.Ticker{
		Date:     date,
		Symbol:   domain.IndexTpexElectronics,
		Type:     domain.TickerTypeIndex,
		Exchange: domain.ExchangeTPEx,
		Market:   domain.MarketOTC,
	}
	if agg, ok := derive.Aggregate(electronics, out, ElectronicsMembers); ok {
		out = append(out, agg)
	}
	return sources.Ok(out)
}

// Code, name, close, change, open, high, low, average, volume, value,
// transactions.
var equityLayout = extract.Layout{
	Source: "tpex.stk_wn1430",
	Width:  11,
	Fields: []extract.Field{
		{Name: "closePrice", Index: 2},
		{Name: "change", Index: 3},
		{Name: "openPrice", Index: 4},
		{Name: "highPrice", Index: 5},
		{Name: "lowPrice", Index: 6},
		{Name: "tradeVolume", Index: 8},
		{Name: "tradeValue", Index: 9},
		{Name: "transaction", Index: 10},
	},
}

// EquityQuotes fetches daily quotes of OTC equities, warrants excluded
func (s *Source) EquityQuotes(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	d, err := rocDate(date)
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/web/stock/aftertrading/otc_quotes_no1430/stk_wn1430_result.php", url.Values{"d": {d}, "se": {"EW"}})
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if r.empty() {
		return sources.NoData[[]domain.Ticker]("no records")
	}

	var out []domain.Ticker
	for _, row := range r.Data {
		symbol := extract.Text(row, 0)
		if symbol == "" || sources.IsWarrant(symbol) {
			continue
		}
		v := s.client.Row(ctx, equityLayout, row)
		out = append(out, domain.Ticker{
			Date:          date,
			Symbol:        symbol,
			Type:          domain.TickerTypeEquity,
			Exchange:      domain.ExchangeTPEx,
			Market:        domain.MarketOTC,
			Name:          extract.Text(row, 1),
			OpenPrice:     v.Get("openPrice"),
			HighPrice:     v.Get("highPrice"),
			LowPrice:      v.Get("lowPrice"),
			ClosePrice:    v.Get("closePrice"),
			Change:        v.Get("change"),
			ChangePercent: extract.PercentChangeOf(v.Get("closePrice"), v.Get("change")),
			TradeVolume:   v.Get("tradeVolume"),
			TradeValue:    v.Get("tradeValue"),
			Transaction:   v.Get("transaction"),
		})
	}
	return sources.Ok(out)
}

// Foreign investors total net at 10, investment trust net at 13, dealers
// total net at 22.
var equityInstiLayout = extract.Layout{
	Source: "tpex.3itrade_hedge",
	Width:  23,
	Fields: []extract.Field{
		{Name: "qfiiNet", Index: 10},
		{Name: "itNet", Index: 13},
		{Name: "dealersNet", Index: 22},
	},
}

// EquityInstiNetBuySell fetches per-equity institutional net buy/sell
func (s *Source) EquityInstiNetBuySell(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	d, err := rocDate(date)
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/web/stock/3insti/daily_trade/3itrade_hedge_result.php", url.Values{"se": {"EW"}, "t": {"D"}, "d": {d}})
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if r.empty() {
		return sources.NoData[[]domain.Ticker]("no records")
	}

	var out []domain.Ticker
	for _, row := range r.Data {
		symbol := extract.Text(row, 0)
		if symbol == "" || sources.IsWarrant(symbol) {
			continue
		}
		v := s.client.Row(ctx, equityInstiLayout, row)
		out = append(out, domain.Ticker{
			Date:              date,
			Symbol:            symbol,
			Type:              domain.TickerTypeEquity,
			Exchange:          domain.ExchangeTPEx,
			Market:            domain.MarketOTC,
			Name:              extract.Text(row, 1),
			QfiiNetBuySell:    v.Get("qfiiNet"),
			SiteNetBuySell:    v.Get("itNet"),
			DealersNetBuySell: v.Get("dealersNet"),
		})
	}
	return sources.Ok(out)
}
