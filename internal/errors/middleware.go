package errors

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// maxLoggedBody bounds how much of a request body is buffered for the log
const maxLoggedBody = 64 << 10

// paramFields names the log attribute of each route parameter
var paramFields = map[string]string{
	"id":          "monitor_id",
	"name":        "pipeline",
	"date":        "date",
	"direction":   "direction",
	"key":         "trade_key",
	"institution": "institution",
}

// RequestLogger writes one http_request record per request and turns a
// panic into a 500 problem response.
type RequestLogger struct {
	handler *ErrorHandler
	logger  *slog.Logger
}

// NewRequestLogger creates the request logging middleware
func NewRequestLogger(handler *ErrorHandler, logger *slog.Logger) *RequestLogger {
	return &RequestLogger{
		handler: handler,
		logger:  logger.With(slog.String("component", "http")),
	}
}

// Handler wraps next
func (m *RequestLogger) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		var body []byte
		if r.Body != nil && r.ContentLength > 0 && r.ContentLength <= maxLoggedBody {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				m.handler.HandlePanic(ww, r, rec)
			}
			m.log(r, ww, body, time.Since(start))
		}()

		next.ServeHTTP(ww, r)
	})
}

func (m *RequestLogger) log(r *http.Request, ww middleware.WrapResponseWriter, body []byte, elapsed time.Duration) {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
		slog.Int("bytes", ww.BytesWritten()),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	}
	attrs = append(attrs, routeAttrs(r)...)
	if r.URL.RawQuery != "" {
		attrs = append(attrs, slog.String("query", r.URL.RawQuery))
	}
	if status >= 400 {
		attrs = append(attrs, bodyAttrs(body)...)
	}

	m.logger.LogAttrs(r.Context(), level, "http_request", attrs...)
}

// routeAttrs reads the matched pattern and parameters chi left on the
// request after routing.
func routeAttrs(r *http.Request) []slog.Attr {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if pattern := rctx.RoutePattern(); pattern != "" {
		attrs = append(attrs, slog.String("route", pattern))
	}
	for i, key := range rctx.URLParams.Keys {
		field, ok := paramFields[key]
		if !ok || i >= len(rctx.URLParams.Values) {
			continue
		}
		attrs = append(attrs, slog.String(field, rctx.URLParams.Values[i]))
	}
	return attrs
}

// loggedBody is the part of a monitor or pipeline run request worth
// keeping when it is refused. Order parameters may carry broker
// credentials and are never logged.
type loggedBody struct {
	Symbol string   `json:"symbol"`
	Type   string   `json:"type"`
	Value  *float64 `json:"value"`
	Alert  *struct {
		Name string `json:"name"`
	} `json:"alert"`
	Date  string   `json:"date"`
	Steps []string `json:"steps"`
}

func bodyAttrs(body []byte) []slog.Attr {
	if len(body) == 0 {
		return nil
	}
	var b loggedBody
	if err := json.Unmarshal(body, &b); err != nil {
		return []slog.Attr{slog.Int("body_bytes", len(body)), slog.Bool("body_json", false)}
	}
	var attrs []slog.Attr
	if b.Symbol != "" {
		attrs = append(attrs, slog.String("symbol", b.Symbol))
	}
	if b.Type != "" {
		attrs = append(attrs, slog.String("monitor_type", b.Type))
	}
	if b.Value != nil {
		attrs = append(attrs, slog.Float64("value", *b.Value))
	}
	if b.Alert != nil && b.Alert.Name != "" {
		attrs = append(attrs, slog.String("alert_name", b.Alert.Name))
	}
	if b.Date != "" {
		attrs = append(attrs, slog.String("run_date", b.Date))
	}
	if len(b.Steps) > 0 {
		attrs = append(attrs, slog.Any("steps", b.Steps))
	}
	return attrs
}
