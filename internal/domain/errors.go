package domain

import "errors"

// Every operation either fully commits or fully aborts; these are the abort
// reasons surfaced verbatim to callers.
var (
	// ErrInvalidDelegation indicates a holding with no usable delegation:
	// allowance missing or zero, or delegated to the wrong grantee.
	ErrInvalidDelegation = errors.New("invalid delegation")

	// ErrDuplicateOrder indicates the derived sale address is already occupied.
	ErrDuplicateOrder = errors.New("sale already exists for holding")

	// ErrUnauthorized indicates a signer mismatch.
	ErrUnauthorized = errors.New("unauthorized signer")

	// ErrMintMismatch indicates the buyer holding's token type differs from the sale's.
	ErrMintMismatch = errors.New("token type mismatch")

	// ErrOwnerMismatch indicates a holding not owned by the claimed party.
	ErrOwnerMismatch = errors.New("holding owner mismatch")

	// ErrOverflow indicates checked arithmetic overflowed.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow indicates checked arithmetic underflowed.
	ErrUnderflow = errors.New("arithmetic underflow")

	// ErrInsufficientBalance indicates a value leg exceeding the source's spendable balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotYetClosable indicates an explicit close while the backing allowance is still positive.
	ErrNotYetClosable = errors.New("sale not yet closable")

	// ErrSaleNotFound indicates no sale record at the given address.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrHoldingNotFound indicates no holding record at the given address.
	ErrHoldingNotFound = errors.New("holding not found")

	// ErrAccountNotFound indicates no account record at the given address.
	ErrAccountNotFound = errors.New("account not found")
)
