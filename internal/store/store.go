// Package store supplies the host-ledger environment the escrow engine runs
// against: account balances, token holdings, sale records, and the
// all-or-nothing operation boundary every engine operation executes inside.
package store

import (
	"context"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// Store is the host ledger. Atomic is the operation boundary: the callback's
// effects all commit together, or none do. Concurrent operations are
// serialized by the store, not by the engine.
type Store interface {
	// Atomic runs fn inside a read-write transaction. Any error from fn
	// discards every effect and is returned verbatim.
	Atomic(ctx context.Context, fn func(Tx) error) error

	// View runs fn inside a read-only transaction.
	View(ctx context.Context, fn func(Tx) error) error
}

// Tx is the set of host primitives available inside one operation boundary.
type Tx interface {
	// Account returns the native-value account at addr.
	Account(ctx context.Context, addr domain.Address) (domain.Account, error)

	// TransferNative moves native value from one account to another.
	// Returns domain.ErrInsufficientBalance if from cannot cover amount.
	TransferNative(ctx context.Context, from, to domain.Address, amount uint64) error

	// Holding returns the token holding at addr.
	Holding(ctx context.Context, addr domain.Address) (domain.Holding, error)

	// TransferTokensAsDelegate moves amount tokens between holdings on the
	// authority of mover, which must be the source holding's delegate with
	// sufficient remaining allowance. The allowance is decremented by amount.
	TransferTokensAsDelegate(ctx context.Context, from, to, mover domain.Address, amount uint64) error

	// Sale returns the sale record at addr, or domain.ErrSaleNotFound.
	Sale(ctx context.Context, addr domain.Address) (domain.Sale, error)

	// CreateSale writes a new sale record, charging the seller the storage
	// rent deposit. Fails with domain.ErrDuplicateOrder if the address is
	// already occupied.
	CreateSale(ctx context.Context, sale domain.Sale) error

	// UpdateSalePrice overwrites the sale's unit price.
	UpdateSalePrice(ctx context.Context, addr domain.Address, price uint64, now time.Time) error

	// DeleteSale removes the sale record and credits its storage rent
	// deposit to creditTo.
	DeleteSale(ctx context.Context, addr, creditTo domain.Address) error

	// ListSales returns all open sale records.
	ListSales(ctx context.Context) ([]domain.Sale, error)

	// RecordFill appends a settlement history row.
	RecordFill(ctx context.Context, fill domain.Fill) error

	// FillsBetween returns fills settled in [from, to).
	FillsBetween(ctx context.Context, from, to time.Time) ([]domain.Fill, error)
}

// rentEscrowAddress holds the storage deposits of open sale records.
var rentEscrowAddress = func() domain.Address {
	addr, _, err := domain.Derive("rent")
	if err != nil {
		panic(err)
	}
	return addr
}()
