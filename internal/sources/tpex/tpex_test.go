package tpex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twmarket/internal/config"
	"twmarket/internal/shared/testutil"
	"twmarket/internal/sources"
	"twmarket/pkg/contracts/domain"
)

func newTestSource(t *testing.T, routes map[string]any, opts ...sources.Option) *Source {
	t.Helper()
	mux := http.NewServeMux()
	for path, body := range routes {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "zh-tw", r.URL.Query().Get("l"))
			assert.Equal(t, "json", r.URL.Query().Get("o"))
			switch b := body.(type) {
			case string:
				w.Write([]byte(b))
			default:
				json.NewEncoder(w).Encode(b)
			}
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := sources.NewClient(config.SourcesConfig{FetchTimeout: 2 * time.Second, BreakerFailure: 5}, opts...)
	return New(client, server.URL)
}

func TestMarketTrades(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/aftertrading/daily_trading_index/st41_result.php": `{"iTotalRecords":2,"aaData":[
			["113/01/02","500,000","60,000,000","400,000","232.58","-1.37"],
			["113/01/03","450,000","55,000,000","380,000","228.30","-4.28"]]}`,
	})

	res := src.MarketTrades(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 232.58, *res.Value.Price)
	assert.Equal(t, -1.37, *res.Value.Change)
	assert.Equal(t, 400000.0, *res.Value.Transaction)
}

func TestMarketTradesNoRecords(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/aftertrading/daily_trading_index/st41_result.php": `{"iTotalRecords":0,"aaData":[]}`,
	})

	// Saturday
	res := src.MarketTrades(context.Background(), "2024-01-06")
	assert.Equal(t, sources.StatusNoData, res.Status)
	assert.Nil(t, res.Err)
}

func TestInstiNetBuySell(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/3insti/3insti_summary/3itrdsum_result.php": `{"iTotalRecords":7,"aaData":[
			["外資及陸資合計","10,000","8,000","2,000"],
			["外資及陸資(不含自營商)","9,000","7,500","1,500"],
			["外資自營商","1,000","500","500"],
			["投信","3,000","3,600","-600"],
			["自營商合計","4,000","3,100","900"],
			["自營商(自行買賣)","2,000","1,500","500"],
			["自營商(避險)","2,000","1,600","400"]]}`,
	})

	res := src.InstiNetBuySell(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 2000.0, *res.Value.Qfii)
	assert.Equal(t, -600.0, *res.Value.Site)
	assert.Equal(t, 900.0, *res.Value.Dealers)
}

func TestMarginTransactions(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/margin_trading/margin_balance/margin_bal_result.php": `{"iTotalRecords":800,"aaData":[],
			"tfootData_one":["合計(張)","","1,000","100","90","5","1,005","200","10","20","2","208",null],
			"tfootData_two":["合計(仟元)","","50,000","4,000","3,500","200","50,300",null]}`,
	})

	res := src.MarginTransactions(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 50300.0, *res.Value.Margin)
	assert.Equal(t, 300.0, *res.Value.MarginChange)
	assert.Equal(t, 208.0, *res.Value.Short)
	assert.Equal(t, 8.0, *res.Value.ShortChange)
}

func indexRow(at string, price float64) []string {
	row := []string{at}
	for range IndexSeries {
		row = append(row, fmt.Sprintf("%.2f", price))
	}
	return append(row, "1,000", "2,000", "300", "1", "1", "1", "1")
}

func TestIndexQuotes(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/iNdex_info/minute_index/1MIN_result.php": map[string]any{
			"iTotalRecords": 3,
			"aaData": [][]string{
				indexRow("09:00", 200),
				indexRow("09:01", 198),
				indexRow("13:30", 203),
			},
		},
	})

	res := src.IndexQuotes(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, len(IndexSeries))

	last := res.Value[len(res.Value)-1]
	assert.Equal(t, domain.IndexTpex, last.Symbol)
	assert.Equal(t, domain.MarketOTC, last.Market)
	assert.Equal(t, 198.0, *last.OpenPrice)
	assert.Equal(t, 203.0, *last.ClosePrice)
	assert.Equal(t, 3.0, *last.Change)
	assert.Equal(t, 1.5, *last.ChangePercent)
}

func TestSectorTradesAddsElectronicsAggregate(t *testing.T) {
	rows := [][]string{{"紡織纖維", "1,000", "1.00", "10"}}
	for i, name := range []string{"半導體業", "電腦及週邊設備業", "光電業", "通信網路業", "電子零組件業", "電子通路業", "資訊服務業", "其他電子業"} {
		rows = append(rows, []string{name, fmt.Sprintf("%d", (i+1)*100), "2.50", fmt.Sprintf("%d", i+1)})
	}
	src := newTestSource(t, map[string]any{
		"/web/stock/historical/trading_vol_ratio/sectr_result.php": map[string]any{
			"iTotalRecords": len(rows),
			"aaData":        rows,
		},
	})

	res := src.SectorTrades(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 10)

	agg := res.Value[len(res.Value)-1]
	assert.Equal(t, domain.IndexTpexElectronics, agg.Symbol)
	assert.Equal(t, 3600.0, *agg.TradeValue)
	assert.Equal(t, 36.0, *agg.TradeVolume)
	assert.Equal(t, 20.0, *agg.TradeWeight)
}

func TestSectorTradesWithoutAllMembers(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/historical/trading_vol_ratio/sectr_result.php": `{"iTotalRecords":1,"aaData":[["半導體業","100","1.0","1"]]}`,
	})

	res := src.SectorTrades(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 1)
	assert.Equal(t, "IX0053", res.Value[0].Symbol)
}

func TestEquityQuotes(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/web/stock/aftertrading/otc_quotes_no1430/stk_wn1430_result.php": `{"iTotalRecords":2,"aaData":[
			["6488","環球晶","515.00","+15.00","500.00","520.00","498.00","510.12","1,200,000","612,000,000","1,500"],
			["710001","權證","1.00","0.01","1","1","1","1","1","1","1"]]}`,
	})

	res := src.EquityQuotes(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 1)
	assert.Equal(t, "6488", res.Value[0].Symbol)
	assert.Equal(t, 15.0, *res.Value[0].Change)
	assert.Equal(t, 3.0, *res.Value[0].ChangePercent)
}

func TestEquityQuotesKeepsShortRow(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	src := newTestSource(t, map[string]any{
		"/web/stock/aftertrading/otc_quotes_no1430/stk_wn1430_result.php": `{"iTotalRecords":2,"aaData":[
			["6488","環球晶","515.00","+15.00","500.00","520.00","498.00","510.12","1,200,000","612,000,000","1,500"],
			["5483","中美晶","120.00","-2.00","121.00"]]}`,
	}, sources.WithLogger(logger))

	res := src.EquityQuotes(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 2)
	assert.Equal(t, 15.0, *res.Value[0].Change)

	short := res.Value[1]
	assert.Equal(t, "5483", short.Symbol)
	assert.Equal(t, 120.0, *short.ClosePrice)
	assert.Equal(t, -2.0, *short.Change)
	assert.Nil(t, short.HighPrice)
	assert.Nil(t, short.TradeVolume)

	warns := logs.Find("source_row_malformed")
	require.Len(t, warns, 1)
	assert.Equal(t, slog.LevelWarn, warns[0].Level)
	assert.Equal(t, "tpex.stk_wn1430", warns[0].Attrs["source"])
}

func TestEquityInstiNetBuySell(t *testing.T) {
	row := make([]string, 24)
	for i := range row {
		row[i] = "0"
	}
	row[0], row[1] = "6488", "環球晶"
	row[10], row[13], row[22] = "1,000", "-200", "30"
	body, _ := json.Marshal(map[string]any{"iTotalRecords": 1, "aaData": [][]string{row}})

	src := newTestSource(t, map[string]any{
		"/web/stock/3insti/daily_trade/3itrade_hedge_result.php": string(body),
	})

	res := src.EquityInstiNetBuySell(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 1)
	assert.Equal(t, 1000.0, *res.Value[0].QfiiNetBuySell)
	assert.Equal(t, -200.0, *res.Value[0].SiteNetBuySell)
	assert.Equal(t, 30.0, *res.Value[0].DealersNetBuySell)
}
