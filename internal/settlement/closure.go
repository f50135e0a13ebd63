package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/store"
)

// ClosureManager reclaims the storage of exhausted or revoked sales.
type ClosureManager struct {
	store  store.Store
	policy domain.CreditPolicy
}

// NewClosureManager creates a closure manager with the given credit policy.
// The policy decides who receives the storage deposit on an explicit close;
// automatic closes inside a fulfillment always credit the seller.
func NewClosureManager(st store.Store, policy domain.CreditPolicy) (*ClosureManager, error) {
	if !policy.Valid() {
		return nil, fmt.Errorf("unknown credit policy %q", policy)
	}
	return &ClosureManager{store: st, policy: policy}, nil
}

// CloseSale removes the sale at saleAddr. Any party may invoke it, but it
// only succeeds once the backing holding's allowance is zero — a seller who
// revoked out-of-band leaves a stale record anyone may garbage-collect.
// Returns the address credited with the reclaimed storage deposit.
func (c *ClosureManager) CloseSale(ctx context.Context, saleAddr, closer domain.Address) (domain.Address, error) {
	var credited domain.Address
	err := c.store.Atomic(ctx, func(tx store.Tx) error {
		s, err := tx.Sale(ctx, saleAddr)
		if err != nil {
			return err
		}

		// A deleted backing holding counts as zero allowance.
		h, err := tx.Holding(ctx, s.HoldingRef)
		if err != nil && !errors.Is(err, domain.ErrHoldingNotFound) {
			return err
		}
		if err == nil && h.DelegatedAmount > 0 {
			return fmt.Errorf("%w: holding %s still has allowance %d",
				domain.ErrNotYetClosable, s.HoldingRef, h.DelegatedAmount)
		}

		credited = closer
		if c.policy == domain.CreditSeller {
			credited = s.Seller
		}
		return c.closeInTx(ctx, tx, saleAddr, credited)
	})
	if err != nil {
		return "", err
	}

	slog.Info("sale closed", "sale", saleAddr, "closer", closer, "credited", credited)
	return credited, nil
}

// closeInTx removes the sale inside an already-open operation boundary.
func (c *ClosureManager) closeInTx(ctx context.Context, tx store.Tx, saleAddr, creditTo domain.Address) error {
	return tx.DeleteSale(ctx, saleAddr, creditTo)
}
