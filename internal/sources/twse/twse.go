// Package twse fetches the exchange's daily reports: market turnover,
// institutional net buy/sell, margin balances, intraday index series,
// sector turnover and per-equity quotes.
package twse

import (
	"context"
	"net/url"
	"strings"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/extract"
	"twmarket/internal/sources"
	"twmarket/pkg/contracts/domain"
)

const sourceName = "twse"

// Source is the TWSE adapter
type Source struct {
	client  *sources.Client
	baseURL string
}

// New builds an adapter rooted at baseURL
func New(client *sources.Client, baseURL string) *Source {
	return &Source{client: client, baseURL: baseURL}
}

// report is the common envelope of TWSE JSON reports
type report struct {
	Stat       string        `json:"stat"`
	Date       string        `json:"date"`
	Fields     []string      `json:"fields"`
	Data       sources.Rows  `json:"data"`
	CreditList sources.Rows  `json:"creditList"`
	Tables     []reportTable `json:"tables"`
}

type reportTable struct {
	Title  string       `json:"title"`
	Fields []string     `json:"fields"`
	Data   sources.Rows `json:"data"`
}

func (r *report) ok() bool { return r.Stat == "OK" }

func (s *Source) fetch(ctx context.Context, path string, query url.Values) (*report, error) {
	var r report
	if err := s.client.GetJSON(ctx, sourceName, sources.JoinURL(s.baseURL, path, query), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func dayQuery(date string, extra ...string) (url.Values, error) {
	t, err := sources.ParseDate(date)
	if err != nil {
		return nil, apperrors.NewAppValidationError(err.Error())
	}
	q := url.Values{"response": {"json"}, "date": {sources.Compact(t)}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return q, nil
}

var marketTradesLayout = extract.Sequential("twse.FMTQIK", 1, "tradeVolume", "tradeValue", "transaction", "price", "change")

// MarketTrades fetches the whole-market turnover and TAIEX close
func (s *Source) MarketTrades(ctx context.Context, date string) sources.Result[sources.MarketTrades] {
	q, err := dayQuery(date)
	if err != nil {
		return sources.Failed[sources.MarketTrades](err)
	}
	r, err := s.fetch(ctx, "/exchangeReport/FMTQIK", q)
	if err != nil {
		return sources.FromError[sources.MarketTrades](err)
	}
	if !r.ok() {
		return sources.NoData[sources.MarketTrades](r.Stat)
	}

	t, _ := sources.ParseDate(date)
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

// Dealers (proprietary, hedging), investment trust, foreign investors and
// foreign dealers, each reported as buy, sell and net.
var instiLayout = extract.Layout{
	Source: "twse.BFI82U",
	Width:  15,
	Fields: []extract.Field{
		{Name: "dpNet", Index: 2},
		{Name: "dhNet", Index: 5},
		{Name: "itNet", Index: 8},
		{Name: "fiNet", Index: 11},
		{Name: "fdNet", Index: 14},
	},
}

// InstiNetBuySell fetches the market-wide institutional net buy/sell
func (s *Source) InstiNetBuySell(ctx context.Context, date string) sources.Result[sources.InstiNetBuySell] {
	t, err := sources.ParseDate(date)
	if err != nil {
		return sources.Failed[sources.InstiNetBuySell](apperrors.NewAppValidationError(err.Error()))
	}
	q := url.Values{"response": {"json"}, "type": {"day"}, "dayDate": {sources.Compact(t)}}
	r, err := s.fetch(ctx, "/fund/BFI82U", q)
	if err != nil {
		return sources.FromError[sources.InstiNetBuySell](err)
	}
	if !r.ok() {
		return sources.NoData[sources.InstiNetBuySell](r.Stat)
	}

	v, err := instiLayout.ApplyNumbers(extract.Numbers(r.Data...))
	if err != nil {
		return sources.SchemaMismatch[sources.InstiNetBuySell](err.Error())
	}
	return sources.Ok(sources.InstiNetBuySell{
		Date:    date,
		Qfii:    extract.Sum(v.Get("fiNet"), v.Get("fdNet")),
		Site:    v.Get("itNet"),
		Dealers: extract.Sum(v.Get("dpNet"), v.Get("dhNet")),
	})
}

// Unit balances first, then the NTD thousand value block.
var marginLayout = extract.Sequential("twse.MI_MARGN", 0,
	"marginPurchase", "marginSale", "cashRedemption", "marginBalancePrev", "marginBalance",
	"shortCovering", "shortSale", "stockRedemption", "shortBalancePrev", "shortBalance",
	"marginPurchaseValue", "marginSaleValue", "cashRedemptionValue", "marginValueBalancePrev", "marginValueBalance",
)

// MarginTransactions fetches the margin and short balance summary
func (s *Source) MarginTransactions(ctx context.Context, date string) sources.Result[sources.MarginTransactions] {
	q, err := dayQuery(date, "selectType", "MS")
	if err != nil {
		return sources.Failed[sources.MarginTransactions](err)
	}
	r, err := s.fetch(ctx, "/en/exchangeReport/MI_MARGN", q)
	if err != nil {
		return sources.FromError[sources.MarginTransactions](err)
	}
	if !r.ok() {
		return sources.NoData[sources.MarginTransactions](r.Stat)
	}
	credit := r.CreditList
	if len(credit) == 0 && len(r.Tables) > 0 {
		credit = r.Tables[0].Data
	}
	if len(credit) == 0 {
		return sources.NoData[sources.MarginTransactions]("empty credit list")
	}

	v, err := marginLayout.ApplyNumbers(extract.Numbers(credit...))
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

// IndexQuotes derives daily OHLC quotes from the five second index table
func (s *Source) IndexQuotes(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	q, err := dayQuery(date)
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/exchangeReport/MI_5MINS_INDEX", q)
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if !r.ok() {
		return sources.NoData[[]domain.Ticker](r.Stat)
	}
	if len(r.Data) < 2 {
		return sources.NoData[[]domain.Ticker]("no intraday rows")
	}
	if len(r.Data[0]) < len(IndexSeries)+1 {
		return sources.SchemaMismatch[[]domain.Ticker]("index table narrower than series list")
	}
	return sources.Ok(sources.IndexQuotes(date, IndexSeries, r.Data, domain.ExchangeTWSE, domain.MarketTSE))
}

var sectorLayout = extract.Sequential("twse.BFIAMU", 1, "tradeVolume", "tradeValue", "transaction")

// SectorTrades fetches per-sector turnover. Weight is the sector's share of
// the summed turnover of the non-overlapping sectors.
func (s *Source) SectorTrades(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	q, err := dayQuery(date)
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/exchangeReport/BFIAMU", q)
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if !r.ok() {
		return sources.NoData[[]domain.Ticker](r.Stat)
	}

	var out []domain.Ticker
	var total float64
	for _, row := range r.Data {
		symbol, ok := sectorSymbol(extract.Text(row, 0))
		if !ok {
			continue
		}
		v := s.client.Row(ctx, sectorLayout, row)
		if _, overlapping := aggregateSectors[symbol]; !overlapping {
			total += v.Float("tradeValue")
		}
		out = append(out, domain.Ticker{
			Date:        date,
			Symbol:      symbol,
			Type:        domain.TickerTypeIndex,
			Exchange:    domain.ExchangeTWSE,
			Market:      domain.MarketTSE,
			TradeVolume: v.Get("tradeVolume"),
			TradeValue:  v.Get("tradeValue"),
			Transaction: v.Get("transaction"),
		})
	}
	if len(out) == 0 {
		return sources.NoData[[]domain.Ticker]("no sector rows")
	}
	for i := range out {
		if out[i].TradeValue != nil {
			out[i].TradeWeight = extract.Ratio(*out[i].TradeValue*100, total, 2)
		}
	}
	return sources.Ok(out)
}

// Listed equities: code, name, volume, transactions, value, open, high,
// low, close, sign, change.
var equityLayout = extract.Layout{
	Source: "twse.MI_INDEX",
	Width:  11,
	Fields: []extract.Field{
		{Name: "tradeVolume", Index: 2},
		{Name: "transaction", Index: 3},
		{Name: "tradeValue", Index: 4},
		{Name: "openPrice", Index: 5},
		{Name: "highPrice", Index: 6},
		{Name: "lowPrice", Index: 7},
		{Name: "closePrice", Index: 8},
		{Name: "change", Index: 10},
	},
}

// EquityQuotes fetches the daily quotes of every listed equity, warrants
// excluded.
func (s *Source) EquityQuotes(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	q, err := dayQuery(date, "type", "ALLBUT0999")
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/exchangeReport/MI_INDEX", q)
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if !r.ok() {
		return sources.NoData[[]domain.Ticker](r.Stat)
	}

	var table *reportTable
	for i := range r.Tables {
		if len(r.Tables[i].Fields) > 0 && r.Tables[i].Fields[0] == "證券代號" {
			table = &r.Tables[i]
			break
		}
	}
	if table == nil {
		return sources.SchemaMismatch[[]domain.Ticker]("quote table not found")
	}

	var out []domain.Ticker
	for _, row := range table.Data {
		symbol := extract.Text(row, 0)
		if symbol == "" || sources.IsWarrant(symbol) {
			continue
		}
		v := s.client.Row(ctx, equityLayout, row)
		change := v.Get("change")
		if change != nil && strings.Contains(extract.Text(row, 9), "-") {
			change = domain.Float(-*change)
		}
		out = append(out, domain.Ticker{
			Date:          date,
			Symbol:        symbol,
			Type:          domain.TickerTypeEquity,
			Exchange:      domain.ExchangeTWSE,
			Market:        domain.MarketTSE,
			Name:          extract.Text(row, 1),
			OpenPrice:     v.Get("openPrice"),
			HighPrice:     v.Get("highPrice"),
			LowPrice:      v.Get("lowPrice"),
			ClosePrice:    v.Get("closePrice"),
			Change:        change,
			ChangePercent: extract.PercentChangeOf(v.Get("closePrice"), change),
			TradeVolume:   v.Get("tradeVolume"),
			TradeValue:    v.Get("tradeValue"),
			Transaction:   v.Get("transaction"),
		})
	}
	return sources.Ok(out)
}

// Foreign investors and foreign dealers net at 4 and 7, investment trust
// at 10, dealers total at 11.
var equityInstiLayout = extract.Layout{
	Source: "twse.T86",
	Width:  12,
	Fields: []extract.Field{
		{Name: "fiNet", Index: 4},
		{Name: "fdNet", Index: 7},
		{Name: "itNet", Index: 10},
		{Name: "dealersNet", Index: 11},
	},
}

// EquityInstiNetBuySell fetches per-equity institutional net buy/sell
func (s *Source) EquityInstiNetBuySell(ctx context.Context, date string) sources.Result[[]domain.Ticker] {
	q, err := dayQuery(date, "selectType", "ALLBUT0999")
	if err != nil {
		return sources.Failed[[]domain.Ticker](err)
	}
	r, err := s.fetch(ctx, "/fund/T86", q)
	if err != nil {
		return sources.FromError[[]domain.Ticker](err)
	}
	if !r.ok() {
		return sources.NoData[[]domain.Ticker](r.Stat)
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
			Exchange:          domain.ExchangeTWSE,
			Market:            domain.MarketTSE,
			Name:              extract.Text(row, 1),
			QfiiNetBuySell:    extract.Sum(v.Get("fiNet"), v.Get("fdNet")),
			SiteNetBuySell:    v.Get("itNet"),
			DealersNetBuySell: v.Get("dealersNet"),
		})
	}
	return sources.Ok(out)
}
