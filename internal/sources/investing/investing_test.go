package investing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twmarket/internal/config"
	"twmarket/internal/sources"
)

type stubFetcher map[string]string

func (s stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	for pair, body := range s {
		if strings.Contains(url, "/financialdata/"+pair+"/") {
			return []byte(body), nil
		}
	}
	return nil, errors.New("unexpected url " + url)
}

func ms(date string) int64 {
	t, _ := time.Parse(sources.DateLayout, date)
	return t.UnixMilli()
}

func chartBody(points map[string]float64) string {
	var rows []string
	for date, v := range points {
		rows = append(rows, fmt.Sprintf("[%d,%g,%g,%g,%g,0]", ms(date), v, v, v, v))
	}
	return `{"data":[` + strings.Join(rows, ",") + `]}`
}

func TestYields(t *testing.T) {
	src := New(stubFetcher{
		PairUS3M:  chartBody(map[string]float64{"2024-01-01": 5.40, "2024-01-02": 5.37}),
		PairUS2Y:  chartBody(map[string]float64{"2024-01-02": 4.33}),
		PairUS10Y: chartBody(map[string]float64{"2024-01-02": 3.94}),
	}, "https://api.example")

	res := src.Yields(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 5.37, *res.Value.Us3m)
	assert.Equal(t, 4.33, *res.Value.Us2y)
	assert.Equal(t, 3.94, *res.Value.Us10y)
}

func TestYieldsNoPointOnDate(t *testing.T) {
	body := chartBody(map[string]float64{"2024-01-05": 4.0})
	src := New(stubFetcher{PairUS3M: body, PairUS2Y: body, PairUS10Y: body}, "https://api.example")

	res := src.Yields(context.Background(), "2024-01-06")
	assert.Equal(t, sources.StatusNoData, res.Status)
}

func TestYieldsPartial(t *testing.T) {
	src := New(stubFetcher{
		PairUS3M:  chartBody(map[string]float64{}),
		PairUS2Y:  chartBody(map[string]float64{}),
		PairUS10Y: chartBody(map[string]float64{"2024-01-02": 3.94}),
	}, "https://api.example")

	res := src.Yields(context.Background(), "2024-01-02")
	require.True(t, res.OK())
	assert.Nil(t, res.Value.Us3m)
	assert.Equal(t, 3.94, *res.Value.Us10y)
}

func TestYieldsFetchFailure(t *testing.T) {
	src := New(stubFetcher{}, "https://api.example")
	res := src.Yields(context.Background(), "2024-01-02")
	assert.Equal(t, sources.StatusFailed, res.Status)
}

func TestYieldsMalformedChart(t *testing.T) {
	body := `{"data":[[1704153600000,1,2]]}`
	src := New(stubFetcher{PairUS3M: body, PairUS2Y: body, PairUS10Y: body}, "https://api.example")

	res := src.Yields(context.Background(), "2024-01-02")
	assert.Equal(t, sources.StatusSchemaMismatch, res.Status)
}

func TestClientFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "P1M", r.URL.Query().Get("period"))
		w.Write([]byte(chartBody(map[string]float64{"2024-01-02": 4.1})))
	}))
	defer server.Close()

	client := sources.NewClient(config.SourcesConfig{FetchTimeout: time.Second, BreakerFailure: 3})
	src := New(ClientFetcher{Client: client}, server.URL, WithPairs(Pairs{US3M: "1", US2Y: "2", US10Y: "3"}))

	res := src.Yields(context.Background(), "2024-01-02")
	require.True(t, res.OK(), res.Reason)
	assert.Equal(t, 4.1, *res.Value.Us2y)
}
