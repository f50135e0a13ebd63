package sale

import (
	"fmt"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// AllowanceGuard validates a prospective seller's delegation at post time.
// It runs once, at sale creation; fulfillment re-derives correctness from
// live holding state instead of trusting this check.
type AllowanceGuard struct {
	authority domain.Address
}

// NewAllowanceGuard creates a guard expecting delegations to the given
// value-authority identity.
func NewAllowanceGuard(authority domain.Address) *AllowanceGuard {
	return &AllowanceGuard{authority: authority}
}

// Check verifies that the holding is owned by the claimed seller and carries
// a positive allowance delegated to the value authority.
func (g *AllowanceGuard) Check(holding domain.Holding, seller domain.Address) error {
	if holding.Owner != seller {
		return fmt.Errorf("%w: holding %s owned by %s, not %s",
			domain.ErrOwnerMismatch, holding.Address, holding.Owner, seller)
	}
	if holding.Delegate != g.authority {
		return fmt.Errorf("%w: holding %s delegated to %q", domain.ErrInvalidDelegation, holding.Address, holding.Delegate)
	}
	if holding.DelegatedAmount == 0 {
		return fmt.Errorf("%w: holding %s has zero allowance", domain.ErrInvalidDelegation, holding.Address)
	}
	return nil
}
