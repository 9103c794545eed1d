package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	apierrors "twmarket/internal/errors"
	"twmarket/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WorkbookBuilder renders the daily workbook for a date
type WorkbookBuilder interface {
	Build(ctx context.Context, date string) (*excelize.File, error)
}

// ReportHandler streams the daily workbook
type ReportHandler struct {
	builder WorkbookBuilder
	errors  *apierrors.ErrorHandler
	logger  *slog.Logger
}

// NewReportHandler creates a report handler
func NewReportHandler(builder WorkbookBuilder, eh *apierrors.ErrorHandler, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		builder: builder,
		errors:  eh,
		logger:  logger.With(slog.String("handler", "report")),
	}
}

// Download handles GET /api/reports/{date}
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		h.errors.HandleError(w, r, apierrors.ErrValidation("date", "date must be a yyyy-MM-dd date"))
		return
	}
	name, err := report.FileName(date)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}

	f, err := h.builder.Build(r.Context(), date)
	if err != nil {
		h.errors.HandleError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	if err := f.Write(w); err != nil {
		// headers are already sent
		h.logger.ErrorContext(r.Context(), "report_stream_failed",
			slog.String("date", date),
			slog.String("error", err.Error()))
	}
}
