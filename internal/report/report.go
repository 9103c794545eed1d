package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"

	"twmarket/internal/config"
	apperrors "twmarket/internal/errors"
	"twmarket/internal/infrastructure"
	"twmarket/internal/store"
	"twmarket/pkg/contracts/domain"
)

// StatsReader supplies the derived statistics window
type StatsReader interface {
	Window(ctx context.Context, date string, days int) ([]domain.MarketStatsRow, error)
}

// TickerReader supplies the ticker rankings
type TickerReader interface {
	MoneyFlow(ctx context.Context, date string, market domain.Market) ([]domain.MoneyFlow, error)
	TopMovers(ctx context.Context, date string, market domain.Market, dir store.Direction, top int) ([]domain.Ticker, error)
	MostActives(ctx context.Context, date string, market domain.Market, key store.TradeKey, top int) ([]domain.Ticker, error)
	InstiNetBuySell(ctx context.Context, date string, market domain.Market, inst store.Institution, dir store.Direction, top int) ([]domain.Ticker, error)
}

// Generator builds the after-hours workbook
type Generator struct {
	stats   StatsReader
	tickers TickerReader
	days    int
	top     int
	logger  *slog.Logger
}

// NewGenerator creates a generator. Zero sizes in cfg fall back to the
// store defaults.
func NewGenerator(stats StatsReader, tickers TickerReader, cfg config.ReportConfig, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	g := &Generator{
		stats:   stats,
		tickers: tickers,
		days:    cfg.Days,
		top:     cfg.Top,
		logger:  infrastructure.WithComponent(logger, "report"),
	}
	if g.days <= 0 {
		g.days = store.DefaultWindowDays
	}
	if g.top <= 0 {
		g.top = store.DefaultTop
	}
	return g
}

// FileName returns the workbook name for a yyyy-MM-dd date
func FileName(date string) (string, error) {
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return "", apperrors.NewAppValidationError(fmt.Sprintf("invalid report date %q", date))
	}
	return t.Format("20060102") + "-盤後籌碼.xlsx", nil
}

// Build assembles the workbook for date. The caller closes the file.
func (g *Generator) Build(ctx context.Context, date string) (*excelize.File, error) {
	if _, err := FileName(date); err != nil {
		return nil, err
	}
	ctx, span := infrastructure.StartSpan(ctx, "report.build", attribute.String("date", date))
	defer span.End()

	b := newBook()
	if err := g.build(ctx, b, date); err != nil {
		b.f.Close()
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	return b.f, nil
}

func (g *Generator) build(ctx context.Context, b *book, date string) error {
	rows, err := g.stats.Window(ctx, date, g.days)
	if err != nil {
		return err
	}
	if err := b.writeMarketInfo(date, rows); err != nil {
		return sheetError("market info", err)
	}

	markets := []domain.Market{domain.MarketTSE, domain.MarketOTC}
	for _, m := range markets {
		flow, err := g.tickers.MoneyFlow(ctx, date, m)
		if err != nil {
			return err
		}
		if err := b.writeMoneyFlow(m, flow); err != nil {
			return sheetError("money flow", err)
		}
	}
	for _, m := range markets {
		if err := g.mostActives(ctx, b, date, m); err != nil {
			return err
		}
	}
	for _, m := range markets {
		if err := g.topMovers(ctx, b, date, m); err != nil {
			return err
		}
	}
	for _, m := range markets {
		if err := g.instiNetBuySell(ctx, b, date, m); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) mostActives(ctx context.Context, b *book, date string, m domain.Market) error {
	byVolume, err := g.tickers.MostActives(ctx, date, m, store.ByVolume, g.top)
	if err != nil {
		return err
	}
	byValue, err := g.tickers.MostActives(ctx, date, m, store.ByValue, g.top)
	if err != nil {
		return err
	}
	err = b.writePanels(marketName(m)+"成交量值排行", []panel{
		{title: "成交量排行", columns: moverColumns, rows: byVolume},
		{title: "成交值排行", columns: byValueColumns, rows: byValue},
	})
	return sheetError("most actives", err)
}

func (g *Generator) topMovers(ctx context.Context, b *book, date string, m domain.Market) error {
	gainers, err := g.tickers.TopMovers(ctx, date, m, store.Up, g.top)
	if err != nil {
		return err
	}
	losers, err := g.tickers.TopMovers(ctx, date, m, store.Down, g.top)
	if err != nil {
		return err
	}
	err = b.writePanels(marketName(m)+"漲跌幅排行", []panel{
		{title: "漲幅排行", columns: moverColumns, rows: gainers},
		{title: "跌幅排行", columns: moverColumns, rows: losers},
	})
	return sheetError("top movers", err)
}

func (g *Generator) instiNetBuySell(ctx context.Context, b *book, date string, m domain.Market) error {
	type ranking struct {
		title   string
		inst    store.Institution
		dir     store.Direction
		columns []rankColumn
	}
	rankings := []ranking{
		{"外資買超", store.Qfii, store.Up, qfiiRankColumns},
		{"外資賣超", store.Qfii, store.Down, qfiiRankColumns},
		{"投信買超", store.Site, store.Up, siteRankColumns},
		{"投信賣超", store.Site, store.Down, siteRankColumns},
	}
	panels := make([]panel, 0, len(rankings))
	for _, r := range rankings {
		rows, err := g.tickers.InstiNetBuySell(ctx, date, m, r.inst, r.dir, g.top)
		if err != nil {
			return err
		}
		panels = append(panels, panel{title: r.title, columns: r.columns, rows: rows})
	}
	return sheetError("institutional net buy/sell", b.writePanels(marketName(m)+"外資投信買賣超排行", panels))
}

func sheetError(sheet string, err error) error {
	if err == nil {
		return nil
	}
	return apperrors.NewAppError(apperrors.ErrTypeStorage, "write "+sheet+" sheet", err)
}

// Write builds the workbook for date and saves it under dir. It returns the
// file path.
func (g *Generator) Write(ctx context.Context, date, dir string) (string, error) {
	name, err := FileName(date)
	if err != nil {
		return "", err
	}
	start := time.Now()
	f, err := g.Build(ctx, date)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewStorageError("create report directory", err)
	}
	path := filepath.Join(dir, name)
	if err := f.SaveAs(path); err != nil {
		return "", apperrors.NewStorageError("save workbook", err)
	}

	g.logger.InfoContext(ctx, "report_written",
		slog.String("date", date),
		slog.String("path", path),
		slog.Int("sheets", len(f.GetSheetList())),
		slog.Duration("duration", time.Since(start)))
	return path, nil
}
