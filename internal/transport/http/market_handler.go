package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "twmarket/internal/errors"
	"twmarket/internal/middleware"
	"twmarket/internal/report"
	"twmarket/internal/store"
	api "twmarket/pkg/contracts/api/v1"
	"twmarket/pkg/contracts/domain"
)

// MarketHandler serves the statistics window and the ticker rankings
type MarketHandler struct {
	stats     report.StatsReader
	tickers   report.TickerReader
	validator *middleware.Validator
	errors    *apierrors.ErrorHandler
	clock     clock
	logger    *slog.Logger
}

// NewMarketHandler creates a market data handler
func NewMarketHandler(stats report.StatsReader, tickers report.TickerReader, v *middleware.Validator,
	eh *apierrors.ErrorHandler, c clock, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		stats:     stats,
		tickers:   tickers,
		validator: v,
		errors:    eh,
		clock:     c,
		logger:    logger.With(slog.String("handler", "market")),
	}
}

// MarketStats handles GET /api/market-stats
func (h *MarketHandler) MarketStats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days")
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	q := api.MarketStatsQuery{Date: r.URL.Query().Get("date"), Days: days}
	if err := h.validator.Struct(&q); err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if q.Days == 0 {
		q.Days = store.DefaultWindowDays
	}

	rows, err := h.stats.Window(r.Context(), h.clock.dateOr(q.Date), q.Days)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.MarketStatsRow{}
	}
	success(w, r, http.StatusOK, rows, len(rows))
}

// ranking parses the shared query of the ranking endpoints
func (h *MarketHandler) ranking(r *http.Request) (api.RankingQuery, error) {
	top, err := queryInt(r, "top")
	if err != nil {
		return api.RankingQuery{}, err
	}
	q := api.RankingQuery{
		Date:   r.URL.Query().Get("date"),
		Market: strings.ToUpper(r.URL.Query().Get("market")),
		Top:    top,
	}
	if err := h.validator.Struct(&q); err != nil {
		return q, err
	}
	q.Date = h.clock.dateOr(q.Date)
	if q.Top == 0 {
		q.Top = store.DefaultTop
	}
	return q, nil
}

// MoneyFlow handles GET /api/tickers/money-flow
func (h *MarketHandler) MoneyFlow(w http.ResponseWriter, r *http.Request) {
	q, err := h.ranking(r)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	rows, err := h.tickers.MoneyFlow(r.Context(), q.Date, domain.Market(q.Market))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.MoneyFlow{}
	}
	success(w, r, http.StatusOK, rows, len(rows))
}

// TopMovers handles GET /api/tickers/top-movers/{direction}
func (h *MarketHandler) TopMovers(w http.ResponseWriter, r *http.Request) {
	dir, err := direction(chi.URLParam(r, "direction"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.tickerList(w, r, func(q api.RankingQuery) ([]domain.Ticker, error) {
		return h.tickers.TopMovers(r.Context(), q.Date, domain.Market(q.Market), dir, q.Top)
	})
}

// MostActives handles GET /api/tickers/most-actives/{key}
func (h *MarketHandler) MostActives(w http.ResponseWriter, r *http.Request) {
	key := store.TradeKey(chi.URLParam(r, "key"))
	if key != store.ByVolume && key != store.ByValue {
		h.errors.HandleError(w, r, apierrors.ErrValidation("key", "key must be one of: volume, value"))
		return
	}
	h.tickerList(w, r, func(q api.RankingQuery) ([]domain.Ticker, error) {
		return h.tickers.MostActives(r.Context(), q.Date, domain.Market(q.Market), key, q.Top)
	})
}

// InstiNetBuySell handles GET /api/tickers/insti/{institution}/{direction}
func (h *MarketHandler) InstiNetBuySell(w http.ResponseWriter, r *http.Request) {
	inst := store.Institution(chi.URLParam(r, "institution"))
	switch inst {
	case store.Qfii, store.Site, store.Dealers:
	default:
		h.errors.HandleError(w, r, apierrors.ErrValidation("institution", "institution must be one of: qfii, site, dealers"))
		return
	}
	dir, err := direction(chi.URLParam(r, "direction"))
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	h.tickerList(w, r, func(q api.RankingQuery) ([]domain.Ticker, error) {
		return h.tickers.InstiNetBuySell(r.Context(), q.Date, domain.Market(q.Market), inst, dir, q.Top)
	})
}

func (h *MarketHandler) tickerList(w http.ResponseWriter, r *http.Request, load func(api.RankingQuery) ([]domain.Ticker, error)) {
	q, err := h.ranking(r)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	rows, err := load(q)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	if rows == nil {
		rows = []domain.Ticker{}
	}
	success(w, r, http.StatusOK, rows, len(rows))
}

func direction(raw string) (store.Direction, error) {
	switch d := store.Direction(raw); d {
	case store.Up, store.Down:
		return d, nil
	}
	return "", apierrors.ErrValidation("direction", fmt.Sprintf("direction must be one of: %s, %s", store.Up, store.Down))
}
