package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/fgrust/zero-liquid/internal/export"
)

// ReportGenerator builds the fill report covering the given date's UTC day.
type ReportGenerator interface {
	Generate(ctx context.Context, date time.Time) (export.Report, error)
}

// ReportWorker periodically generates fill reports and hands them to the
// configured writers.
type ReportWorker struct {
	generator ReportGenerator
	writers   []export.Writer
	interval  time.Duration
}

// NewReportWorker creates a new ReportWorker.
func NewReportWorker(generator ReportGenerator, interval time.Duration, writers ...export.Writer) *ReportWorker {
	return &ReportWorker{
		generator: generator,
		writers:   writers,
		interval:  interval,
	}
}

// generate builds and writes the report for the current UTC day.
func (w *ReportWorker) generate(ctx context.Context) error {
	report, err := w.generator.Generate(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	for _, writer := range w.writers {
		if err := writer.Write(ctx, report); err != nil {
			slog.Error("ReportWorker: writer failed", "error", err)
		}
	}
	return nil
}

// Run starts the report worker loop. It blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	slog.Info("ReportWorker: starting")

	// Generate immediately on startup
	if err := w.generate(ctx); err != nil {
		slog.Error("ReportWorker: initial generation failed", "error", err)
	} else {
		slog.Info("ReportWorker: initial generation completed")
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ReportWorker: shutting down")
			return
		case <-ticker.C:
			if err := w.generate(ctx); err != nil {
				slog.Error("ReportWorker: generation failed", "error", err)
			} else {
				slog.Info("ReportWorker: generation completed")
			}
		}
	}
}
