// Package investing reads US treasury yields from the investing.com
// chart API. The API sits behind browser checks, so pages are fetched
// through a PageFetcher, normally a headless Chrome.
package investing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/internal/sources"
)

const sourceName = "investing"

// Chart pair ids of the treasury yields
const (
	PairUS3M  = "23697"
	PairUS2Y  = "23701"
	PairUS10Y = "23705"
)

// PageFetcher returns the body of a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Source is the investing.com adapter
type Source struct {
	fetcher PageFetcher
	baseURL string
	pairs   Pairs
	metrics *infrastructure.Metrics
	logger  *slog.Logger
}

// Pairs selects the chart ids for each maturity
type Pairs struct {
	US3M  string
	US2Y  string
	US10Y string
}

// Option configures a Source
type Option func(*Source)

// WithPairs overrides the chart ids
func WithPairs(p Pairs) Option { return func(s *Source) { s.pairs = p } }

// WithMetrics records fetch outcomes
func WithMetrics(m *infrastructure.Metrics) Option { return func(s *Source) { s.metrics = m } }

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option { return func(s *Source) { s.logger = l } }

// New builds an adapter
func New(fetcher PageFetcher, baseURL string, opts ...Option) *Source {
	s := &Source{
		fetcher: fetcher,
		baseURL: baseURL,
		pairs:   Pairs{US3M: PairUS3M, US2Y: PairUS2Y, US10Y: PairUS10Y},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Yields is the daily close of the three treasury yields
type Yields struct {
	Date  string
	Us3m  *float64
	Us2y  *float64
	Us10y *float64
}

// chart rows are [epoch ms, open, high, low, close, volume, ...]
type chart struct {
	Data [][]json.Number `json:"data"`
}

// Yields fetches the three maturities concurrently and picks the close
// dated date. A maturity without a point on date stays nil; the result
// is NoData only when none has one.
func (s *Source) Yields(ctx context.Context, date string) sources.Result[Yields] {
	if _, err := sources.ParseDate(date); err != nil {
		return sources.Failed[Yields](apperrors.NewAppValidationError(err.Error()))
	}

	out := Yields{Date: date}
	g, gctx := errgroup.WithContext(ctx)
	for _, item := range []struct {
		pair string
		dst  **float64
	}{
		{s.pairs.US3M, &out.Us3m},
		{s.pairs.US2Y, &out.Us2y},
		{s.pairs.US10Y, &out.Us10y},
	} {
		item := item
		g.Go(func() error {
			v, err := s.close(gctx, item.pair, date)
			if err != nil {
				return err
			}
			*item.dst = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return sources.FromError[Yields](err)
	}
	if out.Us3m == nil && out.Us2y == nil && out.Us10y == nil {
		return sources.NoData[Yields]("no chart point on date")
	}
	return sources.Ok(out)
}

func (s *Source) chartURL(pair string) string {
	return fmt.Sprintf("%s/api/financialdata/%s/historical/chart/?period=P1M&interval=P1D&pointscount=60", s.baseURL, pair)
}

func (s *Source) close(ctx context.Context, pair, date string) (*float64, error) {
	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, s.chartURL(pair))
	if err != nil {
		s.metrics.SourceFetch(ctx, sourceName, "error", time.Since(start))
		return nil, apperrors.NewNetworkError("fetch investing chart", err).WithContext("pair", pair)
	}
	s.metrics.SourceFetch(ctx, sourceName, "ok", time.Since(start))

	var c chart
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, apperrors.NewSchemaError(sourceName, fmt.Sprintf("pair %s: %v", pair, err))
	}
	for _, point := range c.Data {
		if len(point) < 5 {
			return nil, apperrors.NewSchemaError(sourceName, fmt.Sprintf("pair %s: point has %d values", pair, len(point)))
		}
		ms, err := point[0].Int64()
		if err != nil {
			continue
		}
		if time.UnixMilli(ms).UTC().Format(sources.DateLayout) != date {
			continue
		}
		v, err := point[4].Float64()
		if err != nil {
			return nil, apperrors.NewSchemaError(sourceName, fmt.Sprintf("pair %s: close %q", pair, point[4]))
		}
		return &v, nil
	}
	s.logger.DebugContext(ctx, "no chart point for date", slog.String("pair", pair), slog.String("date", date))
	return nil, nil
}
