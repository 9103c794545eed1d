package twse

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
			w.Header().Set("Content-Type", "application/json")
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
		"/exchangeReport/FMTQIK": `{"stat":"OK","data":[
			["113/01/02","5,123,456,789","250,000,000,000","2,000,000","17,853.76","-76.05"],
			["113/01/03","4,000,000,000","200,000,000,000","1,500,000","17,612.58","-241.18"]]}`,
	})

	res := src.MarketTrades(context.Background(), "2024-01-03")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 17612.58, *res.Value.Price)
	assert.Equal(t, -241.18, *res.Value.Change)
	assert.Equal(t, 200000000000.0, *res.Value.TradeValue)
}

func TestMarketTradesNonTradingDay(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/exchangeReport/FMTQIK": `{"stat":"很抱歉，沒有符合條件的資料!"}`,
	})

	// 2024-01-06 is a Saturday
	res := src.MarketTrades(context.Background(), "2024-01-06")
	assert.Equal(t, sources.StatusNoData, res.Status)
	assert.Nil(t, res.Err)
}

func TestMarketTradesDateMissingFromMonth(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/exchangeReport/FMTQIK": `{"stat":"OK","data":[["113/01/02","1","2","3","4","5"]]}`,
	})

	res := src.MarketTrades(context.Background(), "2024-01-05")
	assert.Equal(t, sources.StatusNoData, res.Status)
}

func TestInstiNetBuySell(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/fund/BFI82U": `{"stat":"OK","data":[
			["自營商(自行買賣)","1,000","400","600"],
			["自營商(避險)","2,000","2,500","-500"],
			["投信","3,000","1,000","2,000"],
			["外資及陸資(不含外資自營商)","10,000","7,000","3,000"],
			["外資自營商","50","20","30"],
			["合計","16,050","10,920","5,130"]]}`,
	})

	res := src.InstiNetBuySell(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 3030.0, *res.Value.Qfii)
	assert.Equal(t, 2000.0, *res.Value.Site)
	assert.Equal(t, 100.0, *res.Value.Dealers)
}

func TestMarginTransactions(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/en/exchangeReport/MI_MARGN": `{"stat":"OK","creditList":[
			["Margin Purchase(Unit: Lot)","100","200","10","6,000","5,890"],
			["Short Sale(Unit: Lot)","30","40","5","700","705"],
			["Margin Purchase(Unit: Thousand NTD)","1,000","2,000","100","160,000","158,900"]]}`,
	})

	res := src.MarginTransactions(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 158900.0, *res.Value.Margin)
	assert.Equal(t, -1100.0, *res.Value.MarginChange)
	assert.Equal(t, 705.0, *res.Value.Short)
	assert.Equal(t, 5.0, *res.Value.ShortChange)
}

func TestMarginTransactionsEmptyCreditList(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/en/exchangeReport/MI_MARGN": `{"stat":"OK","creditList":[]}`,
	})

	res := src.MarginTransactions(context.Background(), "2024-01-02")
	assert.Equal(t, sources.StatusNoData, res.Status)
}

func indexRow(at string, price float64) []string {
	row := []string{at}
	for range IndexSeries {
		row = append(row, fmt.Sprintf("%.2f", price))
	}
	return row
}

func TestIndexQuotes(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/exchangeReport/MI_5MINS_INDEX": map[string]any{
			"stat": "OK",
			"data": [][]string{
				indexRow("09:00:00", 100),
				indexRow("09:05:00", 101),
				indexRow("09:10:00", 99),
				indexRow("13:30:00", 102),
			},
		},
	})

	res := src.IndexQuotes(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, len(IndexSeries))

	taiex := res.Value[0]
	assert.Equal(t, domain.IndexTaiex, taiex.Symbol)
	assert.Equal(t, "發行量加權股價指數", taiex.Name)
	assert.Equal(t, 101.0, *taiex.OpenPrice)
	assert.Equal(t, 102.0, *taiex.HighPrice)
	assert.Equal(t, 99.0, *taiex.LowPrice)
	assert.Equal(t, 102.0, *taiex.ClosePrice)
	assert.Equal(t, 2.0, *taiex.Change)
	assert.Equal(t, 2.0, *taiex.ChangePercent)
	assert.Equal(t, domain.TickerTypeIndex, taiex.Type)
}

func TestIndexQuotesNarrowTable(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/exchangeReport/MI_5MINS_INDEX": `{"stat":"OK","data":[["09:00:00","1"],["09:05:00","2"]]}`,
	})

	res := src.IndexQuotes(context.Background(), "2024-01-02")
	assert.Equal(t, sources.StatusSchemaMismatch, res.Status)
}

func TestSectorTrades(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/exchangeReport/BFIAMU": `{"stat":"OK","data":[
			["水泥類指數","1,000","300","10","1.2"],
			["電子工業類指數","9,000","900","90","0.5"],
			["半導體類指數","5,000","700","50","0.4"],
			["未知分類","1","1","1","0"]]}`,
	})

	res := src.SectorTrades(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 3)

	bySymbol := map[string]domain.Ticker{}
	for _, tk := range res.Value {
		bySymbol[tk.Symbol] = tk
	}
	assert.Equal(t, 30.0, *bySymbol["IX0010"].TradeWeight)
	assert.Equal(t, 70.0, *bySymbol["IX0028"].TradeWeight)
	assert.Equal(t, 90.0, *bySymbol["IX0027"].TradeWeight)
}

func TestEquityQuotesFiltersWarrants(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/exchangeReport/MI_INDEX": `{"stat":"OK","tables":[
			{"title":"價格指數","fields":["指數"],"data":[]},
			{"title":"每日收盤行情","fields":["證券代號","證券名稱"],"data":[
				["2330","台積電","30,000,000","40,000","18,000,000,000","590.00","595.00","586.00","593.00","<p style= color:green>-</p>","5.00"],
				["030001","元大權證","1","1","1","1","1","1","1","+","0.01"],
				["2317","鴻海","20,000,000","10,000","2,000,000,000","100.00","104.00","100.00","103.00","<p style= color:red>+</p>","3.00"]]}]}`,
	})

	res := src.EquityQuotes(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 2)

	tsmc := res.Value[0]
	assert.Equal(t, "2330", tsmc.Symbol)
	assert.Equal(t, -5.0, *tsmc.Change)
	assert.Equal(t, -0.84, *tsmc.ChangePercent)

	hon := res.Value[1]
	assert.Equal(t, 3.0, *hon.Change)
	assert.Equal(t, 3.0, *hon.ChangePercent)
}

func TestEquityQuotesKeepsShortRow(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	src := newTestSource(t, map[string]any{
		"/exchangeReport/MI_INDEX": `{"stat":"OK","tables":[
			{"title":"每日收盤行情","fields":["證券代號","證券名稱"],"data":[
				["2330","台積電","30,000,000","40,000","18,000,000,000","590.00","595.00","586.00","593.00","<p style= color:green>-</p>","5.00"],
				["2317","鴻海","20,000,000","10,000","2,000,000,000","100.00","104.00","100.00","103.00"]]}]}`,
	}, sources.WithLogger(logger))

	res := src.EquityQuotes(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 2)

	tsmc := res.Value[0]
	assert.Equal(t, "2330", tsmc.Symbol)
	assert.Equal(t, 593.0, *tsmc.ClosePrice)
	assert.Equal(t, -5.0, *tsmc.Change)

	hon := res.Value[1]
	assert.Equal(t, "2317", hon.Symbol)
	assert.Equal(t, 103.0, *hon.ClosePrice)
	assert.Nil(t, hon.Change)
	assert.Nil(t, hon.ChangePercent)

	warns := logs.Find("source_row_malformed")
	require.Len(t, warns, 1)
	assert.Equal(t, slog.LevelWarn, warns[0].Level)
	assert.Equal(t, "twse.MI_INDEX", warns[0].Attrs["source"])
	assert.Equal(t, "2317", warns[0].Attrs["key"])
}

func TestEquityInstiNetBuySell(t *testing.T) {
	src := newTestSource(t, map[string]any{
		"/fund/T86": `{"stat":"OK","data":[
			["2330","台積電","10","5","5,000","0","0","100","20","10","-300","-40","0","0","0","0","0","0","0"],
			["700001","權證","1","1","1","1","1","1","1","1","1","1"]]}`,
	})

	res := src.EquityInstiNetBuySell(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	require.Len(t, res.Value, 1)
	assert.Equal(t, 5100.0, *res.Value[0].QfiiNetBuySell)
	assert.Equal(t, -300.0, *res.Value[0].SiteNetBuySell)
	assert.Equal(t, -40.0, *res.Value[0].DealersNetBuySell)
}

func TestInvalidDateFails(t *testing.T) {
	src := newTestSource(t, map[string]any{})
	res := src.MarketTrades(context.Background(), "2024/01/02")
	assert.Equal(t, sources.StatusFailed, res.Status)
}
