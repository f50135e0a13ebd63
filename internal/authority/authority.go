// Package authority implements the program-wide value authority: a derived
// identity with no private key, authorized to move tokens whose allowance was
// delegated to it. It is the only place in the system that moves value.
package authority

import (
	"context"
	"fmt"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/store"
)

// ValueAuthority is the stateless singleton constructed once at startup.
// Its identity is re-derived from fixed seed material, never signed for.
type ValueAuthority struct {
	address domain.Address
	nonce   uint8
}

// New derives the authority identity.
func New() (*ValueAuthority, error) {
	addr, nonce, err := domain.AuthorityAddress()
	if err != nil {
		return nil, fmt.Errorf("deriving authority address: %w", err)
	}
	return &ValueAuthority{address: addr, nonce: nonce}, nil
}

// Address returns the authority's derived identity.
func (a *ValueAuthority) Address() domain.Address {
	return a.address
}

// Nonce returns the canonical derivation nonce of the authority address.
func (a *ValueAuthority) Nonce() uint8 {
	return a.nonce
}

// TransferAsSigner moves native value from an account the caller has direct
// signing authority over. Signature verification happens upstream; here the
// host primitive enforces the balance check.
func (a *ValueAuthority) TransferAsSigner(ctx context.Context, tx store.Tx, from, to domain.Address, amount uint64) error {
	return tx.TransferNative(ctx, from, to, amount)
}

// TransferAsDelegate moves tokens between holdings on the authority's own
// identity, proven by re-deriving its address from the presented nonce. A
// derivation mismatch is a programming error, not a user-facing failure.
func (a *ValueAuthority) TransferAsDelegate(ctx context.Context, tx store.Tx, from, to domain.Address, amount uint64, nonce uint8) error {
	derived := domain.DeriveAddress(domain.AuthoritySeed, nil, nonce)
	if derived != a.address {
		return fmt.Errorf("authority derivation mismatch: got %s, want %s", derived, a.address)
	}
	return tx.TransferTokensAsDelegate(ctx, from, to, a.address, amount)
}
