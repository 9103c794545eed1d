package monitor

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/pkg/contracts/domain"
)

func TestLineNotifierPostsForm(t *testing.T) {
	var got *http.Request
	var message string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r
		message = r.PostForm.Get("message")
	}))
	defer srv.Close()

	n := NewLineNotifier(srv.URL, "secret")
	require.NoError(t, n.Notify(context.Background(), "台積電 突破 600"))

	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "Bearer secret", got.Header.Get("Authorization"))
	assert.Equal(t, "application/x-www-form-urlencoded", got.Header.Get("Content-Type"))
	assert.Equal(t, "台積電 突破 600", message)
}

func TestLineNotifierRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewLineNotifier(srv.URL, "bad").Notify(context.Background(), "x")
	assert.Equal(t, apperrors.ErrTypeNetwork, apperrors.TypeOf(err))
}

func TestRenderSubstitutesPlaceholders(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Taipei")
	require.NoError(t, err)
	q := domain.Quote{
		Symbol:      "2330",
		TotalVolume: 12345,
		Trade:       &domain.Trade{Price: 601, At: time.Date(2024, 1, 3, 1, 30, 0, 0, time.UTC)},
	}

	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"interpolation", "成交價 <%= price %> 總量 <%= volume %>", "成交價 601 總量 12345"},
		{"go template", "price {{.price}}", "price 601"},
		{"unknown key", "<%= bid %>", "<no value>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Render(&domain.AlertSpec{Name: "台積電", Message: tt.message}, q, loc)
			require.NoError(t, err)
			assert.Equal(t, "\n<<台積電>>\n"+tt.want+"\n2024/01/03 09:30:00", out)
		})
	}
}

func TestRenderRejectsBrokenTemplate(t *testing.T) {
	q := domain.Quote{Trade: &domain.Trade{Price: 1}}
	_, err := Render(&domain.AlertSpec{Name: "x", Message: "{{.price"}, q, nil)
	assert.Error(t, err)
}

func TestLogOrderExecutorRecordsOrder(t *testing.T) {
	var buf bytes.Buffer
	exec := LogOrderExecutor{Logger: infrastructure.NewLogger(&buf, nil)}

	m := &domain.Monitor{ID: "orders:1", Symbol: "2330", Order: &domain.OrderSpec{BuySell: "B", Price: 600, Quantity: 1}}
	require.NoError(t, exec.Execute(context.Background(), m, domain.Quote{Trade: &domain.Trade{Price: 599}}))

	assert.Contains(t, buf.String(), `"msg":"order_triggered"`)
	assert.Contains(t, buf.String(), `"quantity":1`)
}
