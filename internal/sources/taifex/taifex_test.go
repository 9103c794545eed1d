package taifex

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"

	"twmarket/internal/config"
	"twmarket/internal/shared/testutil"
	"twmarket/internal/sources"
)

func big5(t *testing.T, s string) []byte {
	t.Helper()
	b, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(s))
	require.NoError(t, err)
	return b
}

func csvLines(rows ...[]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, ",")
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

// block returns twelve position cells with the given overrides
func block(overrides map[int]string) []string {
	out := make([]string, 12)
	for i := range out {
		out[i] = "0"
		if v, ok := overrides[i]; ok {
			out[i] = v
		}
	}
	return out
}

func newTestSource(t *testing.T, routes map[string]func(form map[string]string) string, opts ...sources.Option) *Source {
	t.Helper()
	mux := http.NewServeMux()
	for path, fn := range routes {
		fn := fn
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, r.ParseForm())
			form := map[string]string{}
			for k := range r.PostForm {
				form[k] = r.PostForm.Get(k)
			}
			w.Write(big5(t, fn(form)))
		})
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := sources.NewClient(config.SourcesConfig{FetchTimeout: 2 * time.Second, BreakerFailure: 5}, opts...)
	return New(client, server.URL)
}

func futuresReport(product string, dealers, site, qfii map[int]string) string {
	header := []string{"日期", "商品名稱", "身份別", "多方交易口數"}
	return csvLines(
		header,
		append([]string{"2024/01/02", product, "自營商"}, block(dealers)...),
		append([]string{"2024/01/02", product, "投信"}, block(site)...),
		append([]string{"2024/01/02", product, "外資及陸資"}, block(qfii)...),
	)
}

func TestInstiTxNetOi(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/futContractsDateDown": func(form map[string]string) string {
			assert.Equal(t, "TXF", form["commodityId"])
			assert.Equal(t, "2024/01/02", form["queryStartDate"])
			return futuresReport("臺股期貨",
				map[int]string{10: "-3,000"},
				map[int]string{10: "5,000"},
				map[int]string{10: "-20,000"})
		},
	})

	res := src.InstiTxNetOi(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, -3000.0, *res.Value.Dealers)
	assert.Equal(t, 5000.0, *res.Value.Site)
	assert.Equal(t, -20000.0, *res.Value.Qfii)
}

func TestInstiTxNetOiNonTradingDay(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/futContractsDateDown": func(map[string]string) string {
			return "<html><body>查無資料</body></html>"
		},
	})

	res := src.InstiTxNetOi(context.Background(), "2024-01-06")
	assert.Equal(t, sources.StatusNoData, res.Status)
}

func TestInstiTxNetOiMissingRows(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/futContractsDateDown": func(map[string]string) string {
			return csvLines([]string{"日期", "商品名稱"}, []string{"2024/01/02", "臺股期貨", "自營商", "1"})
		},
	})

	res := src.InstiTxNetOi(context.Background(), "2024-01-02")
	assert.Equal(t, sources.StatusSchemaMismatch, res.Status)
}

func TestInstiTxoNetOi(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/callsAndPutsDateDown": func(form map[string]string) string {
			assert.Equal(t, "TXO", form["commodityId"])
			rows := [][]string{{"日期", "商品名稱", "權別", "身份別"}}
			for _, right := range []string{"買權", "賣權"} {
				for _, who := range []string{"自營商", "投信", "外資及陸資"} {
					overrides := map[int]string{}
					if who == "外資及陸資" && right == "買權" {
						overrides = map[int]string{10: "12,000", 11: "350,000"}
					}
					if who == "外資及陸資" && right == "賣權" {
						overrides = map[int]string{10: "-8,000", 11: "-120,000"}
					}
					rows = append(rows, append([]string{"2024/01/02", "臺指選擇權", right, who}, block(overrides)...))
				}
			}
			return csvLines(rows...)
		},
	})

	res := src.InstiTxoNetOi(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 12000.0, *res.Value.QfiiCallsNetOi)
	assert.Equal(t, 350000.0, *res.Value.QfiiCallsNetOiValue)
	assert.Equal(t, -8000.0, *res.Value.QfiiPutsNetOi)
	assert.Equal(t, -120000.0, *res.Value.QfiiPutsNetOiValue)
}

func largeTraderRow(product, expiry, category, t5l, t10l, t5s, t10s string) []string {
	return []string{"2024/01/02", product, "臺股期貨", expiry, category, t5l, "10.0", t10l, "20.0", t5s, "12.0", t10s, "25.0", "80,000"}
}

func TestLargeTraders(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/largeTraderFutDown": func(map[string]string) string {
			return csvLines(
				[]string{"日期", "商品(契約)", "商品名稱", "到期月份(週別)", "交易人類別"},
				largeTraderRow("TX", "202402", "0", "1", "1", "1", "1"),
				largeTraderRow("TX", "202401", "0", "1,000", "2,000", "1,500", "2,500"),
				largeTraderRow("TX", "202401", "1", "500", "900", "700", "1,200"),
				largeTraderRow("TX", "666666", "0", "9", "9", "9", "9"),
				largeTraderRow("TX", "999999", "0", "1,200", "2,600", "1,700", "3,000"),
				largeTraderRow("TX", "999999", "1", "600", "1,000", "800", "1,500"),
				largeTraderRow("MTX", "202401", "0", "5", "5", "5", "5"),
			)
		},
	})

	res := src.LargeTraders(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	lt := res.Value
	assert.Equal(t, "202401", lt.FrontMonth)

	assert.Equal(t, -300.0, *lt.Top10Specific.Front.Net())
	assert.Equal(t, 100.0, *lt.Top10Specific.Back.Long)
	assert.Equal(t, 300.0, *lt.Top10Specific.Back.Short)
	assert.Equal(t, -200.0, *lt.Top10Specific.Back.Net())

	assert.Equal(t, -500.0, *lt.Top5All.Front.Net())
	assert.Equal(t, 200.0, *lt.Top5All.Back.Long)
	assert.Equal(t, 600.0, *lt.Top10All.Back.Long)
	assert.Equal(t, 100.0, *lt.Top5Specific.Back.Short)
}

func TestLargeTradersMissingAllMonths(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/largeTraderFutDown": func(map[string]string) string {
			return csvLines(
				[]string{"日期", "商品(契約)"},
				largeTraderRow("TX", "202401", "0", "1", "1", "1", "1"),
				largeTraderRow("TX", "202401", "1", "1", "1", "1", "1"),
			)
		},
	})

	res := src.LargeTraders(context.Background(), "2024-01-02")
	assert.Equal(t, sources.StatusSchemaMismatch, res.Status)
}

func dailyRow(contract, expiry, oi, session string) []string {
	return []string{"2024/01/02", contract, expiry, "17800", "17900", "17700", "17850", "50", "0.28%", "100000", "17850", oi, "-", "-", "-", "-", "", session}
}

func TestRetailMtx(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/futDataDown": func(form map[string]string) string {
			assert.Equal(t, "MTX", form["commodity_id"])
			return csvLines(
				[]string{"交易日期", "契約", "到期月份(週別)"},
				dailyRow("MTX", "202401", "30,000", "一般"),
				dailyRow("MTX", "202402", "10,000", "一般"),
				dailyRow("MTX", "202401/202402", "500", "一般"),
				dailyRow("MTX", "202401", "29,000", "盤後"),
			)
		},
		"/cht/3/futContractsDateDown": func(form map[string]string) string {
			assert.Equal(t, "MXF", form["commodityId"])
			return futuresReport("小型臺指期貨",
				map[int]string{6: "2,000", 8: "3,000"},
				map[int]string{6: "100", 8: "0"},
				map[int]string{6: "5,000", 8: "9,000"})
		},
	})

	res := src.RetailMtx(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 40000.0, *res.Value.MarketOi)
	assert.Equal(t, 32900.0, *res.Value.Long)
	assert.Equal(t, 28000.0, *res.Value.Short)
	assert.Equal(t, 4900.0, *res.Value.Net)
	assert.Equal(t, 0.1225, *res.Value.Ratio)
}

func TestLargeTradersKeepsShortRow(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/largeTraderFutDown": func(map[string]string) string {
			return csvLines(
				[]string{"日期", "商品(契約)", "商品名稱", "到期月份(週別)", "交易人類別"},
				largeTraderRow("TX", "202401", "0", "1,000", "2,000", "1,500", "2,500"),
				largeTraderRow("TX", "202401", "1", "500", "900", "700", "1,200")[:10],
				largeTraderRow("TX", "999999", "0", "1,200", "2,600", "1,700", "3,000"),
				largeTraderRow("TX", "999999", "1", "600", "1,000", "800", "1,500"),
			)
		},
	}, sources.WithLogger(logger))

	res := src.LargeTraders(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	lt := res.Value

	assert.Equal(t, -500.0, *lt.Top5All.Front.Net())
	assert.Equal(t, -200.0, *lt.Top5Specific.Front.Net())
	assert.Equal(t, 900.0, *lt.Top10Specific.Front.Long)
	assert.Nil(t, lt.Top10Specific.Front.Short)
	assert.Nil(t, lt.Top10Specific.Front.Net())

	warns := logs.Find("source_row_malformed")
	require.Len(t, warns, 1)
	assert.Equal(t, slog.LevelWarn, warns[0].Level)
	assert.Equal(t, "taifex.largeTraderFut", warns[0].Attrs["source"])
}

func TestRetailMtxShortRowVoidsMarketOi(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/futDataDown": func(map[string]string) string {
			return csvLines(
				[]string{"交易日期", "契約", "到期月份(週別)"},
				dailyRow("MTX", "202401", "30,000", "一般"),
				dailyRow("MTX", "202402", "10,000", "一般")[:12],
			)
		},
		"/cht/3/futContractsDateDown": func(map[string]string) string {
			return futuresReport("小型臺指期貨",
				map[int]string{6: "2,000", 8: "3,000"},
				map[int]string{6: "100", 8: "0"},
				map[int]string{6: "5,000", 8: "9,000"})
		},
	}, sources.WithLogger(logger))

	res := src.RetailMtx(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Nil(t, res.Value.MarketOi)
	assert.Nil(t, res.Value.Long)
	assert.Nil(t, res.Value.Ratio)
	assert.Len(t, logs.Find("source_row_malformed"), 1)
}

func TestPutCallRatioAndUsdTwd(t *testing.T) {
	src := newTestSource(t, map[string]func(map[string]string) string{
		"/cht/3/pcRatioDown": func(map[string]string) string {
			return csvLines(
				[]string{"日期", "賣權成交量", "買權成交量", "買賣權成交量比率%", "賣權未平倉量", "買權未平倉量", "買賣權未平倉量比率%"},
				[]string{"2024/01/02", "300000", "310000", "96.77", "250000", "240000", "104.17"},
			)
		},
		"/cht/3/dailyFXRateDown": func(map[string]string) string {
			return csvLines(
				[]string{"日期", "美元／新台幣"},
				[]string{"2024/01/02", "30.705"},
			)
		},
	})

	ratio := src.PutCallRatio(context.Background(), "2024-01-02")
	require.True(t, ratio.OK(), ratio.Reason)
	assert.Equal(t, 104.17, ratio.Value)

	fx := src.UsdTwd(context.Background(), "2024-01-02")
	require.True(t, fx.OK(), fx.Reason)
	assert.Equal(t, 30.705, fx.Value)

	missing := src.UsdTwd(context.Background(), "2024-01-03")
	assert.Equal(t, sources.StatusNoData, missing.Status)
}
