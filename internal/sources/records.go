package sources

import (
	"twmarket/internal/extract"
	"twmarket/pkg/contracts/domain"
)

// MarketTrades is the whole-market daily turnover and index close
type MarketTrades struct {
	Date        string
	TradeVolume *float64
	TradeValue  *float64
	Transaction *float64
	Price       *float64
	Change      *float64
}

// ChangePercent back-solves the percent change from price and point change
func (m MarketTrades) ChangePercent() *float64 {
	return extract.PercentChangeOf(m.Price, m.Change)
}

// InstiNetBuySell is the market-wide net buy/sell of the three
// institutional categories
type InstiNetBuySell struct {
	Date    string
	Qfii    *float64
	Site    *float64
	Dealers *float64
}

// MarginTransactions is the market-wide margin and short balance summary
type MarginTransactions struct {
	Date         string
	Margin       *float64
	MarginChange *float64
	Short        *float64
	ShortChange  *float64
}

// IndexSeries names one column of an intraday index table
type IndexSeries struct {
	Symbol string
	Name   string
}

// IndexPoint is one intraday observation
type IndexPoint struct {
	Time  string
	Price *float64
}

// BuildIndexQuote reduces an intraday series to a daily quote. The first
// point is the previous close used as reference; the remaining points give
// open (earliest), high, low and close (latest).
func BuildIndexQuote(date string, series IndexSeries, points []IndexPoint, exchange domain.Exchange, market domain.Market) (domain.Ticker, bool) {
	if len(points) < 2 || points[0].Price == nil {
		return domain.Ticker{}, false
	}
	reference := *points[0].Price

	var open, high, low, close *float64
	var openTime, closeTime string
	for _, p := range points[1:] {
		if p.Price == nil {
			continue
		}
		v := *p.Price
		if open == nil || p.Time < openTime {
			open, openTime = domain.Float(v), p.Time
		}
		if close == nil || p.Time >= closeTime {
			close, closeTime = domain.Float(v), p.Time
		}
		if high == nil || v > *high {
			high = domain.Float(v)
		}
		if low == nil || v < *low {
			low = domain.Float(v)
		}
	}
	if close == nil {
		return domain.Ticker{}, false
	}

	change := extract.SubFloat(*close, reference)
	return domain.Ticker{
		Date:          date,
		Symbol:        series.Symbol,
		Type:          domain.TickerTypeIndex,
		Exchange:      exchange,
		Market:        market,
		Name:          series.Name,
		OpenPrice:     open,
		HighPrice:     high,
		LowPrice:      low,
		ClosePrice:    close,
		Change:        domain.Float(change),
		ChangePercent: domain.Float(extract.IndexChangePercent(change, reference)),
	}, true
}

// IndexQuotes builds one quote per series from a table whose first column
// is the time and whose following columns follow the series order.
func IndexQuotes(date string, series []IndexSeries, rows [][]string, exchange domain.Exchange, market domain.Market) []domain.Ticker {
	points := make([][]IndexPoint, len(series))
	for _, row := range rows {
		if len(row) < len(series)+1 {
			continue
		}
		t := extract.Text(row, 0)
		for i := range series {
			points[i] = append(points[i], IndexPoint{Time: t, Price: extract.ParseNumber(row[i+1])})
		}
	}

	var out []domain.Ticker
	for i, s := range series {
		if q, ok := BuildIndexQuote(date, s, points[i], exchange, market); ok {
			out = append(out, q)
		}
	}
	return out
}
