package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Seed namespaces for derived addresses.
const (
	AuthoritySeed = "auth"
	SaleSeed      = "sale"
)

// ErrNoValidNonce indicates that no nonce in [0,255] produced a valid derived address.
var ErrNoValidNonce = errors.New("no valid derivation nonce")

// Address identifies an account, holding, or sale record on the host ledger.
// Derived addresses are 32-byte SHA-256 digests rendered as upper-case hex.
type Address string

// IsZero reports whether the address is empty.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

// DeriveAddress computes the address for the given seed namespace, parts, and nonce.
func DeriveAddress(namespace string, parts []Address, nonce uint8) Address {
	h := sha256.New()
	h.Write([]byte(namespace))
	for _, p := range parts {
		h.Write([]byte(p))
	}
	h.Write([]byte{nonce})
	return Address(strings.ToUpper(hex.EncodeToString(h.Sum(nil))))
}

// Derive finds the canonical derived address for the given namespace and parts:
// the first valid address produced when searching the nonce downward from 255.
// Addresses whose leading byte is zero fall on the reserved plane and are skipped.
func Derive(namespace string, parts ...Address) (Address, uint8, error) {
	for nonce := 255; nonce >= 0; nonce-- {
		addr := DeriveAddress(namespace, parts, uint8(nonce))
		if addr.valid() {
			return addr, uint8(nonce), nil
		}
	}
	return "", 0, ErrNoValidNonce
}

// valid reports whether the address lies off the reserved plane (leading byte zero).
func (a Address) valid() bool {
	return len(a) >= 2 && a[:2] != "00"
}

// SaleAddress derives the canonical sale record address backing the given holding.
// The derivation is keyed by the holding address alone, so at most one sale record
// can ever exist per holding.
func SaleAddress(holding Address) (Address, uint8, error) {
	return Derive(SaleSeed, holding)
}

// AuthorityAddress derives the process-wide value-authority address.
func AuthorityAddress() (Address, uint8, error) {
	return Derive(AuthoritySeed)
}
