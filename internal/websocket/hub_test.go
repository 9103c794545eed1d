package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twmarket/internal/pipeline"
	"twmarket/internal/shared/testutil"
	"twmarket/pkg/contracts/domain"
	"twmarket/pkg/contracts/events"
)

type envelope struct {
	Type events.Type     `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startHub(t *testing.T, origins ...string) (*Hub, string, context.CancelFunc) {
	t.Helper()
	hub := NewHub(testutil.DiscardLogger(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewHandler(hub, origins))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dial(t *testing.T, hub *Hub, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	msg := read(t, conn)
	require.Equal(t, events.TypeConnected, msg.Type)
	require.Eventually(t, func() bool { return hub.ClientCount() > 0 }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg envelope
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHubBroadcastsMonitorTriggers(t *testing.T) {
	hub, url, _ := startHub(t)
	a := dial(t, hub, url)
	b := dial(t, hub, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	at := time.Date(2024, 1, 2, 1, 30, 0, 0, time.UTC)
	hub.MonitorTriggered(context.Background(),
		&domain.Monitor{ID: "alerts:1", Symbol: "2330", Type: domain.MonitorPriceGreater, Value: 100},
		testutil.EquityQuote("2330", 101, 5000, at))

	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		assert.Equal(t, events.TypeMonitorTriggered, msg.Type)

		var ev events.MonitorTriggered
		require.NoError(t, json.Unmarshal(msg.Data, &ev))
		assert.Equal(t, "alerts:1", ev.Monitor.ID)
		assert.Equal(t, 101.0, ev.Price)
		assert.True(t, at.Equal(ev.At))
	}
}

func TestHubPublishesPipelineSteps(t *testing.T) {
	hub, url, _ := startHub(t)
	conn := dial(t, hub, url)

	st := pipeline.NewStepState("futures", "期貨")
	st.Skip("dependency market did not run")
	hub.PipelineStep(context.Background(), "stats", "2024-01-02", st)

	msg := read(t, conn)
	assert.Equal(t, events.TypePipelineStep, msg.Type)
	var ev events.StepSnapshot
	require.NoError(t, json.Unmarshal(msg.Data, &ev))
	assert.Equal(t, events.StepSnapshot{
		Pipeline: "stats",
		Date:     "2024-01-02",
		StepID:   "futures",
		Name:     "期貨",
		Status:   "skipped",
		Message:  "dependency market did not run",
	}, ev)
}

func TestHandlerRejectsUnknownOrigin(t *testing.T) {
	_, url, _ := startHub(t, "https://dashboard.example")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://dashboard.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	conn.Close()
}

func TestHubStopDisconnectsClients(t *testing.T) {
	hub, url, cancel := startHub(t)
	conn := dial(t, hub, url)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	// publishing to a stopped hub must not block
	done := make(chan struct{})
	go func() {
		hub.Publish(context.Background(), events.TypePipelineStep, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after the hub stopped")
	}
}

func TestUnregisterOnClientClose(t *testing.T) {
	hub, url, _ := startHub(t)
	conn := dial(t, hub, url)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
