package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twmarket/internal/config"
	"twmarket/internal/shared/testutil"
	"twmarket/pkg/contracts/domain"
)

const quoteFrame = `{"apiVersion":"0.3.0","data":{"info":{"date":"2022-06-01","type":"EQUITY","exchange":"TWSE","market":"TSE","symbolId":"2330"},"quote":{"trade":{"at":"2022-06-01T01:30:00.000Z","price":550.5,"volume":12},"total":{"tradeVolume":1234}}}}`

type collector struct {
	mu     sync.Mutex
	quotes []domain.Quote
}

func (c *collector) handle(_ context.Context, q domain.Quote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = append(c.quotes, q)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.quotes)
}

// quoteServer upgrades every request and hands the connection to serve
func quoteServer(t *testing.T, serve func(n int, r *http.Request, conn *websocket.Conn)) (*httptest.Server, *int32) {
	t.Helper()
	var upgrader websocket.Upgrader
	var connections int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := int(atomic.AddInt32(&connections, 1))
		serve(n, r, conn)
	}))
	t.Cleanup(srv.Close)
	return srv, &connections
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newFeed(srv *httptest.Server) *Feed {
	cfg := config.MonitorConfig{FeedURL: wsURL(srv), FeedToken: "secret", ReconnectMax: 50 * time.Millisecond}
	return New(cfg, testutil.DiscardLogger(), WithInitialRetry(5*time.Millisecond))
}

// holdOpen blocks until the client goes away
func holdOpen(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func TestDecode(t *testing.T) {
	q, ok, err := Decode([]byte(quoteFrame))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2330", q.Symbol)
	assert.Equal(t, domain.InstrumentEquity, q.InstrumentType)
	assert.EqualValues(t, 1234, q.TotalVolume)
	require.NotNil(t, q.Trade)
	assert.Equal(t, 550.5, q.Trade.Price)
	assert.EqualValues(t, 12, q.Trade.Volume)
	assert.Equal(t, time.Date(2022, 6, 1, 1, 30, 0, 0, time.UTC), q.Trade.At.UTC())
}

func TestDecodeWithoutQuote(t *testing.T) {
	_, ok, err := Decode([]byte(`{"event":"heartbeat","data":{"time":1654045800}}`))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeWithoutTrade(t *testing.T) {
	q, ok, err := Decode([]byte(`{"data":{"info":{"type":"EQUITY","symbolId":"2330"},"quote":{"total":{"tradeVolume":5}}}}`))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, q.Trade)
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestSubscribeDeliversQuotes(t *testing.T) {
	var query atomic.Value
	srv, _ := quoteServer(t, func(_ int, r *http.Request, conn *websocket.Conn) {
		query.Store(r.URL.RawQuery)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribed"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(quoteFrame))
		holdOpen(conn)
	})
	f := newFeed(srv)
	defer f.Close()

	var got collector
	require.NoError(t, f.Subscribe(context.Background(), "2330", got.handle))

	require.Eventually(t, func() bool { return got.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "2330", got.quotes[0].Symbol)
	assert.Contains(t, query.Load().(string), "symbolId=2330")
	assert.Contains(t, query.Load().(string), "apiToken=secret")
	assert.Equal(t, []string{"2330"}, f.Symbols())
}

func TestSubscribeDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	f := newFeed(srv)

	err := f.Subscribe(context.Background(), "2330", func(context.Context, domain.Quote) {})
	require.Error(t, err)
	assert.Empty(t, f.Symbols())
}

func TestReconnectAfterDrop(t *testing.T) {
	srv, connections := quoteServer(t, func(n int, _ *http.Request, conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(quoteFrame))
		if n == 1 {
			return // drop the first connection
		}
		holdOpen(conn)
	})
	f := newFeed(srv)
	defer f.Close()

	var got collector
	require.NoError(t, f.Subscribe(context.Background(), "2330", got.handle))

	require.Eventually(t, func() bool { return got.len() >= 2 }, 3*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(connections), int32(2))
}

func TestUnsubscribeStopsStream(t *testing.T) {
	srv, connections := quoteServer(t, func(_ int, _ *http.Request, conn *websocket.Conn) {
		holdOpen(conn)
	})
	f := newFeed(srv)

	var got collector
	require.NoError(t, f.Subscribe(context.Background(), "2330", got.handle))
	require.NoError(t, f.Unsubscribe("2330"))
	assert.Empty(t, f.Symbols())

	// No reconnect after an explicit unsubscribe.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(connections))

	// Unknown symbols are a no-op.
	assert.NoError(t, f.Unsubscribe("9999"))
}

func TestSubscribeTwiceKeepsOneStream(t *testing.T) {
	srv, connections := quoteServer(t, func(_ int, _ *http.Request, conn *websocket.Conn) {
		holdOpen(conn)
	})
	f := newFeed(srv)
	defer f.Close()

	noop := func(context.Context, domain.Quote) {}
	require.NoError(t, f.Subscribe(context.Background(), "2330", noop))
	require.NoError(t, f.Subscribe(context.Background(), "2330", noop))
	assert.Equal(t, int32(1), atomic.LoadInt32(connections))
}
