package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/sale"
)

// SaleLister lists open sales.
type SaleLister interface {
	List(ctx context.Context, f sale.Filter) ([]domain.Sale, error)
}

// SaleCloser closes a sale on behalf of a closer identity.
type SaleCloser interface {
	CloseSale(ctx context.Context, saleAddr, closer domain.Address) (domain.Address, error)
}

// SweepWorker periodically garbage-collects sales whose backing allowance was
// revoked out-of-band. Closure is permissionless, so the sweeper needs no
// authority beyond an identity to credit.
type SweepWorker struct {
	lister   SaleLister
	closer   SaleCloser
	sweeper  domain.Address
	interval time.Duration
}

// NewSweepWorker creates a SweepWorker closing as the given sweeper identity.
func NewSweepWorker(lister SaleLister, closer SaleCloser, sweeper domain.Address, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		lister:   lister,
		closer:   closer,
		sweeper:  sweeper,
		interval: interval,
	}
}

// Sweep attempts to close every open sale once, skipping the ones still
// backed by a positive allowance. Returns the number of sales closed.
func (w *SweepWorker) Sweep(ctx context.Context) (int, error) {
	sales, err := w.lister.List(ctx, sale.Filter{})
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, s := range sales {
		_, err := w.closer.CloseSale(ctx, s.Address, w.sweeper)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, domain.ErrNotYetClosable), errors.Is(err, domain.ErrSaleNotFound):
			// Still live, or closed by someone else since listing.
		default:
			slog.Error("SweepWorker: close failed", "sale", s.Address, "error", err)
		}
	}
	return closed, nil
}

// Run starts the sweep loop. It blocks until the context is cancelled.
func (w *SweepWorker) Run(ctx context.Context) {
	slog.Info("SweepWorker: starting")

	// Sweep immediately on startup
	if closed, err := w.Sweep(ctx); err != nil {
		slog.Error("SweepWorker: initial sweep failed", "error", err)
	} else if closed > 0 {
		slog.Info("SweepWorker: initial sweep completed", "closed", closed)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("SweepWorker: shutting down")
			return
		case <-ticker.C:
			if closed, err := w.Sweep(ctx); err != nil {
				slog.Error("SweepWorker: sweep failed", "error", err)
			} else if closed > 0 {
				slog.Info("SweepWorker: sweep completed", "closed", closed)
			}
		}
	}
}
