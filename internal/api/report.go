package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fgrust/zero-liquid/internal/export"
)

// ReportGenerator builds the fill report covering the given date's UTC day.
type ReportGenerator interface {
	Generate(ctx context.Context, date time.Time) (export.Report, error)
}

// NewReportHandler returns the POST /api/v1/reports/generate handler: it
// builds the current day's fill report, pushes it to the writers, and
// returns it.
func NewReportHandler(generator ReportGenerator, writers ...export.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := generator.Generate(r.Context(), time.Now().UTC())
		if err != nil {
			slog.Error("failed to generate report", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to generate report")
			return
		}
		for _, writer := range writers {
			if err := writer.Write(r.Context(), report); err != nil {
				slog.Error("report writer failed", "error", err)
			}
		}
		writeJSON(w, http.StatusOK, report)
	}
}
