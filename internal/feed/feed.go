// Package feed streams intraday quotes from the Fugle realtime websocket
// API, one connection per subscribed symbol.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"twmarket/internal/config"
	apperrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/internal/monitor"
	"twmarket/pkg/contracts/domain"
)

const (
	// Time allowed to write a control frame to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Quote frames are small; anything bigger is not ours
	maxMessageSize = 64 << 10

	handshakeTimeout = 10 * time.Second
)

// Feed is a monitor.QuoteFeed backed by the Fugle websocket API
type Feed struct {
	url          string
	token        string
	dialer       *websocket.Dialer
	initialRetry time.Duration
	reconnectMax time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	streams map[string]*stream
}

var _ monitor.QuoteFeed = (*Feed)(nil)

// Option configures a Feed
type Option func(*Feed)

// WithDialer replaces the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(f *Feed) { f.dialer = d }
}

// WithInitialRetry sets the first reconnect delay
func WithInitialRetry(d time.Duration) Option {
	return func(f *Feed) { f.initialRetry = d }
}

// New creates a feed from the monitor configuration
func New(cfg config.MonitorConfig, logger *slog.Logger, opts ...Option) *Feed {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	f := &Feed{
		url:          cfg.FeedURL,
		token:        cfg.FeedToken,
		dialer:       &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		initialRetry: time.Second,
		reconnectMax: cfg.ReconnectMax,
		logger:       infrastructure.WithComponent(logger, "quote_feed"),
		streams:      make(map[string]*stream),
	}
	if f.reconnectMax <= 0 {
		f.reconnectMax = time.Minute
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type stream struct {
	symbol  string
	handler monitor.QuoteHandler
	cancel  context.CancelFunc
	done    chan struct{}

	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *stream) setConn(c *websocket.Conn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

func (s *stream) closeConn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

// Subscribe dials the quote stream for symbol and delivers every quote to
// handler until Unsubscribe. The first dial is synchronous so a bad symbol
// or token surfaces to the caller; later drops reconnect with backoff.
func (f *Feed) Subscribe(ctx context.Context, symbol string, handler monitor.QuoteHandler) error {
	f.mu.Lock()
	if _, ok := f.streams[symbol]; ok {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	conn, err := f.dial(ctx, symbol)
	if err != nil {
		return err
	}

	// The stream outlives the request that opened it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &stream{symbol: symbol, handler: handler, cancel: cancel, done: make(chan struct{}), conn: conn}

	f.mu.Lock()
	if _, ok := f.streams[symbol]; ok {
		f.mu.Unlock()
		cancel()
		conn.Close()
		return nil
	}
	f.streams[symbol] = s
	f.mu.Unlock()

	f.logger.InfoContext(ctx, "feed_subscribed", slog.String("symbol", symbol))
	go f.run(runCtx, s)
	return nil
}

// Unsubscribe closes the stream for symbol and waits for its reader to exit
func (f *Feed) Unsubscribe(symbol string) error {
	f.mu.Lock()
	s, ok := f.streams[symbol]
	delete(f.streams, symbol)
	f.mu.Unlock()
	if !ok {
		return nil
	}
	s.cancel()
	s.closeConn()
	<-s.done
	f.logger.Info("feed_unsubscribed", slog.String("symbol", symbol))
	return nil
}

// Close stops every stream
func (f *Feed) Close() error {
	f.mu.Lock()
	symbols := make([]string, 0, len(f.streams))
	for sym := range f.streams {
		symbols = append(symbols, sym)
	}
	f.mu.Unlock()
	for _, sym := range symbols {
		_ = f.Unsubscribe(sym)
	}
	return nil
}

// Symbols returns the symbols with an open stream
func (f *Feed) Symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.streams))
	for sym := range f.streams {
		out = append(out, sym)
	}
	return out
}

func (f *Feed) streamURL(symbol string) (string, error) {
	u, err := url.Parse(f.url)
	if err != nil {
		return "", apperrors.NewConfigError("invalid feed url", err)
	}
	q := u.Query()
	q.Set("symbolId", symbol)
	if f.token != "" {
		q.Set("apiToken", f.token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (f *Feed) dial(ctx context.Context, symbol string) (*websocket.Conn, error) {
	target, err := f.streamURL(symbol)
	if err != nil {
		return nil, err
	}
	conn, resp, err := f.dialer.DialContext(ctx, target, nil)
	if err != nil {
		appErr := apperrors.NewNetworkError("quote feed dial failed", err).WithContext("symbol", symbol)
		if resp != nil {
			appErr = appErr.WithContext("status", resp.StatusCode)
		}
		return nil, appErr
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}

func (f *Feed) run(ctx context.Context, s *stream) {
	defer close(s.done)
	for {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		err := f.read(ctx, conn, s)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		f.logger.WarnContext(ctx, "feed_disconnected",
			slog.String("symbol", s.symbol),
			slog.String("error", err.Error()))

		next, err := f.reconnect(ctx, s.symbol)
		if err != nil {
			return
		}
		s.setConn(next)
		// Unsubscribe may have run between the dial and setConn.
		if ctx.Err() != nil {
			next.Close()
			return
		}
	}
}

func (f *Feed) reconnect(ctx context.Context, symbol string) (*websocket.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialRetry
	b.MaxInterval = f.reconnectMax
	b.Multiplier = 2
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0

	var conn *websocket.Conn
	attempt := 0
	op := func() error {
		attempt++
		c, err := f.dial(ctx, symbol)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.logger.WarnContext(ctx, "feed_reconnect_retry",
			slog.String("symbol", symbol),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()))
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, err
	}
	f.logger.InfoContext(ctx, "feed_reconnected", slog.String("symbol", symbol), slog.Int("attempts", attempt))
	return conn, nil
}

// read pumps one connection until it fails or ctx ends
func (f *Feed) read(ctx context.Context, conn *websocket.Conn, s *stream) error {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go keepalive(conn, stop)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		q, ok, err := Decode(msg)
		if err != nil {
			f.logger.DebugContext(ctx, "feed_decode_failed",
				slog.String("symbol", s.symbol),
				slog.String("error", err.Error()))
			continue
		}
		if !ok {
			continue
		}
		s.handler(ctx, q)
	}
}

func keepalive(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

type envelope struct {
	Data struct {
		Info struct {
			Type     string `json:"type"`
			SymbolID string `json:"symbolId"`
		} `json:"info"`
		Quote *struct {
			Trade *struct {
				Price  float64   `json:"price"`
				Volume int64     `json:"volume"`
				At     time.Time `json:"at"`
			} `json:"trade"`
			Total struct {
				TradeVolume int64 `json:"tradeVolume"`
			} `json:"total"`
		} `json:"quote"`
	} `json:"data"`
}

// Decode converts one feed frame into a quote. Frames that carry no quote,
// such as heartbeats and subscription acks, return ok == false.
func Decode(msg []byte) (domain.Quote, bool, error) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		return domain.Quote{}, false, apperrors.NewParsingError("invalid quote frame", err)
	}
	if env.Data.Quote == nil || env.Data.Info.SymbolID == "" {
		return domain.Quote{}, false, nil
	}
	q := domain.Quote{
		Symbol:         env.Data.Info.SymbolID,
		InstrumentType: env.Data.Info.Type,
		TotalVolume:    env.Data.Quote.Total.TradeVolume,
	}
	if t := env.Data.Quote.Trade; t != nil {
		q.Trade = &domain.Trade{Price: t.Price, Volume: t.Volume, At: t.At}
	}
	return q, true, nil
}
