package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "twmarket/internal/errors"
	"twmarket/pkg/contracts/domain"
)

// utf8BOM lets Excel detect UTF-8 in CSV files
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteStatsCSV writes the market info sheet as a BOM-prefixed CSV to w
func WriteStatsCSV(w io.Writer, rows []domain.MarketStatsRow) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}
	cw := csv.NewWriter(w)

	headers := make([]string, len(marketInfoColumns))
	for i, c := range marketInfoColumns {
		headers[i] = strings.ReplaceAll(c.header, "\n", "")
	}
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for i := range rows {
		record := make([]string, len(marketInfoColumns))
		for j, c := range marketInfoColumns {
			record[j] = formatCell(c.value(&rows[i]))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatCell renders a sheet value for CSV output
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// WriteCSV writes the statistics window for date as a CSV file under dir
func (g *Generator) WriteCSV(ctx context.Context, date, dir string) (string, error) {
	name, err := FileName(date)
	if err != nil {
		return "", err
	}
	rows, err := g.stats.Window(ctx, date, g.days)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewStorageError("create report directory", err)
	}
	path := filepath.Join(dir, strings.TrimSuffix(name, "-盤後籌碼.xlsx")+"-大盤籌碼.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", apperrors.NewStorageError("create csv file", err)
	}
	defer file.Close()

	if err := WriteStatsCSV(file, rows); err != nil {
		return "", apperrors.NewStorageError("write csv file", err)
	}
	g.logger.InfoContext(ctx, "report_csv_written",
		slog.String("path", path),
		slog.Int("record_count", len(rows)))
	return path, nil
}
