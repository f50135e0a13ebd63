// Package settlement executes sale fulfillments and sale closure. Both value
// legs of a fulfillment run inside one host operation boundary, so a buyer
// either receives tokens and pays in full, or nothing happens at all.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fgrust/zero-liquid/internal/authority"
	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/store"
)

// ErrZeroTokens indicates a fulfillment for zero tokens.
var ErrZeroTokens = errors.New("num tokens must be positive")

// Engine settles fulfillments against open sales.
type Engine struct {
	store   store.Store
	auth    *authority.ValueAuthority
	closure *ClosureManager
	now     func() time.Time
}

// NewEngine creates a settlement engine.
func NewEngine(st store.Store, auth *authority.ValueAuthority, closure *ClosureManager) *Engine {
	return &Engine{store: st, auth: auth, closure: closure, now: time.Now}
}

// WithClock overrides the engine clock for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) {
	e.now = clock
}

// TakeSale fulfills numTokens of the sale at saleAddr: tokens move from the
// seller holding to buyerHolding on the value authority's identity, payment
// moves from buyer to seller on the buyer's own authority, and the sale
// closes (crediting the seller) when the fulfillment exhausts the allowance.
// Every failure aborts with no observable effect.
func (e *Engine) TakeSale(ctx context.Context, buyer, buyerHolding, saleAddr domain.Address, numTokens uint64, authorityNonce uint8) (domain.Fill, error) {
	if numTokens == 0 {
		return domain.Fill{}, ErrZeroTokens
	}
	if numTokens > domain.MaxAmount {
		return domain.Fill{}, fmt.Errorf("%w: %d tokens not representable", domain.ErrOverflow, numTokens)
	}

	var fill domain.Fill
	err := e.store.Atomic(ctx, func(tx store.Tx) error {
		s, err := tx.Sale(ctx, saleAddr)
		if err != nil {
			return err
		}

		bh, err := tx.Holding(ctx, buyerHolding)
		if err != nil {
			return err
		}
		if bh.Owner != buyer {
			return fmt.Errorf("%w: holding %s owned by %s, not %s",
				domain.ErrOwnerMismatch, buyerHolding, bh.Owner, buyer)
		}
		if bh.TokenType != s.TokenType {
			return fmt.Errorf("%w: sale %s trades %s, holding %s holds %s",
				domain.ErrMintMismatch, saleAddr, s.TokenType, buyerHolding, bh.TokenType)
		}

		// Post-time checks are not trusted: re-validate the live seller holding.
		sh, err := tx.Holding(ctx, s.HoldingRef)
		if err != nil {
			return err
		}
		if sh.Owner != s.Seller {
			return fmt.Errorf("%w: holding %s no longer owned by seller %s",
				domain.ErrOwnerMismatch, s.HoldingRef, s.Seller)
		}
		oldAllowance := sh.DelegatedAmount

		// Token leg, on the authority's derived identity.
		if err := e.auth.TransferAsDelegate(ctx, tx, s.HoldingRef, buyerHolding, numTokens, authorityNonce); err != nil {
			return err
		}

		amountDue, err := domain.CheckedMul(s.UnitPrice, numTokens)
		if err != nil {
			return err
		}

		// Payment leg, on the buyer's own authority.
		if err := e.auth.TransferAsSigner(ctx, tx, buyer, s.Seller, amountDue); err != nil {
			return err
		}

		// An underflow here means the host let the transfer exceed the
		// allowance it just validated; abort loudly.
		remaining, err := domain.CheckedSub(oldAllowance, numTokens)
		if err != nil {
			return err
		}

		fill = domain.Fill{
			SaleAddress: saleAddr,
			Buyer:       buyer,
			Seller:      s.Seller,
			TokenType:   s.TokenType,
			NumTokens:   numTokens,
			UnitPrice:   s.UnitPrice,
			AmountPaid:  amountDue,
			ClosedSale:  remaining == 0,
			FilledAt:    e.now().UTC(),
		}

		if remaining == 0 {
			// Exhausted in the same operation that drained it; the seller
			// reclaims the storage deposit.
			if err := e.closure.closeInTx(ctx, tx, saleAddr, s.Seller); err != nil {
				return err
			}
		}

		return tx.RecordFill(ctx, fill)
	})
	if err != nil {
		return domain.Fill{}, err
	}

	slog.Info("sale taken", "sale", saleAddr, "buyer", buyer,
		"numTokens", numTokens, "paid", fill.AmountPaid, "closed", fill.ClosedSale)
	return fill, nil
}
