package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

// Notifier delivers a rendered alert
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// OrderExecutor places the order of a triggered order monitor
type OrderExecutor interface {
	Execute(ctx context.Context, m *domain.Monitor, q domain.Quote) error
}

// LineNotifier posts messages to the LINE Notify API
type LineNotifier struct {
	url    string
	token  string
	client *http.Client
}

// NewLineNotifier creates a notifier for token
func NewLineNotifier(endpoint, token string) *LineNotifier {
	return &LineNotifier{
		url:    endpoint,
		token:  token,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *LineNotifier) Notify(ctx context.Context, message string) error {
	form := url.Values{"message": {message}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+n.token)

	resp, err := n.client.Do(req)
	if err != nil {
		return apperrors.NewNetworkError("line notify", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperrors.NewNetworkError(fmt.Sprintf("line notify status %d", resp.StatusCode), nil)
	}
	return nil
}

// LogNotifier writes alerts to the log. It stands in when no token is set.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, message string) error {
	n.Logger.InfoContext(ctx, "alert", slog.String("message", message))
	return nil
}

// LogOrderExecutor records triggered orders without contacting a broker
type LogOrderExecutor struct {
	Logger *slog.Logger
}

func (e LogOrderExecutor) Execute(ctx context.Context, m *domain.Monitor, q domain.Quote) error {
	attrs := []any{
		slog.String("id", m.ID),
		slog.String("symbol", m.Symbol),
		slog.Float64("trigger_price", q.Trade.Price),
	}
	if m.Order != nil {
		attrs = append(attrs,
			slog.String("buy_sell", m.Order.BuySell),
			slog.Float64("price", m.Order.Price),
			slog.Int64("quantity", m.Order.Quantity))
	}
	e.Logger.InfoContext(ctx, "order_triggered", attrs...)
	return nil
}
