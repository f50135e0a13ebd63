// Package sale owns the lifecycle of sale records: creation behind the
// allowance guard, price mutation, and listing.
package sale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/store"
)

// ErrNonceMismatch indicates a client-presented derivation nonce that does
// not reproduce the canonical sale address.
var ErrNonceMismatch = errors.New("derivation nonce mismatch")

// Registry manages sale records on the host store.
type Registry struct {
	store store.Store
	guard *AllowanceGuard
	now   func() time.Time
}

// NewRegistry creates a sale registry gated by the given allowance guard.
func NewRegistry(st store.Store, guard *AllowanceGuard) *Registry {
	return &Registry{store: st, guard: guard, now: time.Now}
}

// WithClock overrides the registry clock for deterministic tests.
func (r *Registry) WithClock(clock func() time.Time) {
	r.now = clock
}

// PostSale creates a standing sale order backed by the given holding.
// The sale record lives at the address canonically derived from the holding,
// so a second post against the same holding fails with ErrDuplicateOrder.
// If nonce is non-nil it must reproduce the canonical derivation.
// No value moves beyond the storage deposit.
func (r *Registry) PostSale(ctx context.Context, seller, holding domain.Address, unitPrice uint64, nonce *uint8) (domain.Sale, error) {
	if unitPrice > domain.MaxAmount {
		return domain.Sale{}, fmt.Errorf("%w: unit price %d not representable", domain.ErrOverflow, unitPrice)
	}
	addr, canonical, err := domain.SaleAddress(holding)
	if err != nil {
		return domain.Sale{}, fmt.Errorf("deriving sale address: %w", err)
	}
	if nonce != nil && *nonce != canonical {
		return domain.Sale{}, fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, *nonce, canonical)
	}

	var created domain.Sale
	err = r.store.Atomic(ctx, func(tx store.Tx) error {
		h, err := tx.Holding(ctx, holding)
		if err != nil {
			return err
		}
		if err := r.guard.Check(h, seller); err != nil {
			return err
		}
		now := r.now().UTC()
		created = domain.Sale{
			Address:    addr,
			Seller:     seller,
			HoldingRef: holding,
			TokenType:  h.TokenType,
			UnitPrice:  unitPrice,
			Nonce:      canonical,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return tx.CreateSale(ctx, created)
	})
	if err != nil {
		return domain.Sale{}, err
	}

	slog.Info("sale posted", "sale", addr, "seller", seller, "holding", holding, "unitPrice", unitPrice)
	return created, nil
}

// ChangePrice overwrites a sale's unit price. Only the recorded seller may
// change it; nothing else about the record changes.
func (r *Registry) ChangePrice(ctx context.Context, saleAddr domain.Address, newPrice uint64, signer domain.Address) (domain.Sale, error) {
	if newPrice > domain.MaxAmount {
		return domain.Sale{}, fmt.Errorf("%w: unit price %d not representable", domain.ErrOverflow, newPrice)
	}
	var updated domain.Sale
	err := r.store.Atomic(ctx, func(tx store.Tx) error {
		s, err := tx.Sale(ctx, saleAddr)
		if err != nil {
			return err
		}
		if s.Seller != signer {
			return fmt.Errorf("%w: %s is not the seller of %s", domain.ErrUnauthorized, signer, saleAddr)
		}
		now := r.now().UTC()
		if err := tx.UpdateSalePrice(ctx, saleAddr, newPrice, now); err != nil {
			return err
		}
		updated = s
		updated.UnitPrice = newPrice
		updated.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	slog.Info("sale price changed", "sale", saleAddr, "newPrice", newPrice)
	return updated, nil
}

// Get returns the sale record at addr.
func (r *Registry) Get(ctx context.Context, addr domain.Address) (domain.Sale, error) {
	var s domain.Sale
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		s, err = tx.Sale(ctx, addr)
		return err
	})
	return s, err
}

// Filter narrows sale listings. Zero-value fields match everything.
type Filter struct {
	TokenType domain.Address
	Seller    domain.Address
}

// List returns open sales matching the filter.
func (r *Registry) List(ctx context.Context, f Filter) ([]domain.Sale, error) {
	var sales []domain.Sale
	err := r.store.View(ctx, func(tx store.Tx) error {
		var err error
		sales, err = tx.ListSales(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}

	return lo.Filter(sales, func(s domain.Sale, _ int) bool {
		if !f.TokenType.IsZero() && s.TokenType != f.TokenType {
			return false
		}
		if !f.Seller.IsZero() && s.Seller != f.Seller {
			return false
		}
		return true
	}), nil
}
