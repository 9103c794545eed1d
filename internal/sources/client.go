package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/time/rate"

	"twmarket/internal/config"
	apperrors "twmarket/internal/errors"
	"twmarket/internal/extract"
	"twmarket/internal/infrastructure"
)

// maxBody bounds a single upstream payload
const maxBody = 32 << 20

// Client performs upstream requests. Every call waits on a shared rate
// limiter, runs inside a per-source circuit breaker and is bounded by the
// configured fetch timeout.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	timeout   time.Duration
	userAgent string
	failures  uint32
	metrics   *infrastructure.Metrics
	logger    *slog.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records fetch outcomes on m
func WithMetrics(m *infrastructure.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client from the sources configuration
func NewClient(cfg config.SourcesConfig, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	failures := cfg.BreakerFailure
	if failures == 0 {
		failures = 5
	}

	c := &Client{
		http:      &http.Client{},
		limiter:   rate.NewLimiter(limit, burst),
		timeout:   cfg.FetchTimeout,
		userAgent: cfg.UserAgent,
		failures:  failures,
		logger:    infrastructure.GetLogger(),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "sources_client"))
	return c
}

func (c *Client) breaker(source string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[source]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        source,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.failures
		},
		IsSuccessful: func(err error) bool {
			// the caller's own cancellation says nothing about upstream health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit_breaker_state_changed",
				slog.String("source", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	c.breakers[source] = cb
	return cb
}

// Get fetches rawURL and returns the body
func (c *Client) Get(ctx context.Context, source, rawURL string) ([]byte, error) {
	return c.do(ctx, source, http.MethodGet, rawURL, nil, "")
}

// PostForm posts form values and returns the body
func (c *Client) PostForm(ctx context.Context, source, rawURL string, form url.Values) ([]byte, error) {
	return c.do(ctx, source, http.MethodPost, rawURL, []byte(form.Encode()), "application/x-www-form-urlencoded")
}

// GetJSON fetches rawURL and decodes the JSON body into v
func (c *Client) GetJSON(ctx context.Context, source, rawURL string, v any) error {
	body, err := c.Get(ctx, source, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return apperrors.NewParsingError(fmt.Sprintf("decode %s response", source), err)
	}
	return nil
}

// GetBig5 fetches rawURL and decodes a Big5 body to UTF-8
func (c *Client) GetBig5(ctx context.Context, source, rawURL string) (string, error) {
	body, err := c.Get(ctx, source, rawURL)
	if err != nil {
		return "", err
	}
	return DecodeBig5(body)
}

func (c *Client) do(ctx context.Context, source, method, rawURL string, body []byte, contentType string) ([]byte, error) {
	ctx, span := infrastructure.StartSpan(ctx, "sources.fetch")
	defer span.End()

	start := time.Now()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		c.record(ctx, source, "timeout", start)
		return nil, fmt.Errorf("%s rate limiter: %w", source, err)
	}

	out, err := c.breaker(source).Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, rawURL, body, contentType)
	})
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = "breaker_open"
		}
		c.record(ctx, source, outcome, start)
		infrastructure.RecordError(ctx, err)
		c.logger.WarnContext(ctx, "upstream_fetch_failed",
			slog.String("source", source),
			slog.String("url", rawURL),
			slog.String("outcome", outcome),
			slog.String("error", err.Error()))
		if outcome == "timeout" {
			return nil, err
		}
		return nil, apperrors.NewNetworkError(fmt.Sprintf("fetch %s", source), err).WithContext("url", rawURL)
	}

	c.record(ctx, source, "ok", start)
	c.logger.DebugContext(ctx, "upstream_fetch",
		slog.String("source", source),
		slog.String("url", rawURL),
		slog.Duration("duration", time.Since(start)))
	return out.([]byte), nil
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, body []byte, contentType string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	return data, nil
}

func (c *Client) record(ctx context.Context, source, outcome string, start time.Time) {
	c.metrics.SourceFetch(ctx, source, outcome, time.Since(start))
}

// DecodeBig5 converts Big5 bytes to a UTF-8 string
func DecodeBig5(b []byte) (string, error) {
	out, err := traditionalchinese.Big5.NewDecoder().Bytes(b)
	if err != nil {
		return "", apperrors.NewParsingError("decode big5", err)
	}
	return string(out), nil
}

// JoinURL appends path and query to base
func JoinURL(base, path string, query url.Values) string {
	u := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Row applies layout to one data row of a table. A short row keeps the
// cells it has and is logged; it never voids the rest of the table.
func (c *Client) Row(ctx context.Context, layout extract.Layout, row []string) extract.Values {
	v, err := layout.ApplyPartial(row)
	if err != nil {
		c.logger.WarnContext(ctx, "source_row_malformed",
			slog.String("source", layout.Source),
			slog.String("key", extract.Text(row, 0)),
			slog.String("reason", err.Error()))
	}
	return v
}
