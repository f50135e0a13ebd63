package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// Memory is an in-process Store used for tests and DATABASE_URL-less dev runs.
// A mutex serializes operations; Atomic snapshots the state and restores it
// when the callback fails, giving the same commit-or-abort guarantee as the
// PostgreSQL backend.
type Memory struct {
	mu       sync.Mutex
	accounts map[domain.Address]domain.Account
	holdings map[domain.Address]domain.Holding
	sales    map[domain.Address]domain.Sale
	fills    []domain.Fill
	nextFill int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[domain.Address]domain.Account),
		holdings: make(map[domain.Address]domain.Holding),
		sales:    make(map[domain.Address]domain.Sale),
		nextFill: 1,
	}
}

// SeedAccount installs a native-value account. Host-environment setup;
// not reachable from engine operations.
func (m *Memory) SeedAccount(addr domain.Address, balance uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[addr] = domain.Account{Address: addr, Balance: balance}
}

// SeedHolding installs a token holding. Host-environment setup.
func (m *Memory) SeedHolding(h domain.Holding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdings[h.Address] = h
}

// Revoke clears a holding's delegation, as a seller would out-of-band.
func (m *Memory) Revoke(holding domain.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.holdings[holding]
	if !ok {
		return
	}
	h.Delegate = ""
	h.DelegatedAmount = 0
	m.holdings[holding] = h
}

// Atomic runs fn under the store mutex, restoring the pre-operation state if
// fn returns an error.
func (m *Memory) Atomic(ctx context.Context, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapAccounts := maps.Clone(m.accounts)
	snapHoldings := maps.Clone(m.holdings)
	snapSales := maps.Clone(m.sales)
	snapFills := len(m.fills)
	snapNext := m.nextFill

	if err := fn(&memTx{m: m}); err != nil {
		m.accounts = snapAccounts
		m.holdings = snapHoldings
		m.sales = snapSales
		m.fills = m.fills[:snapFills]
		m.nextFill = snapNext
		return err
	}
	return nil
}

// View runs fn under the store mutex. Mutations made through the Tx would
// commit; callers are expected not to make any.
func (m *Memory) View(ctx context.Context, fn func(Tx) error) error {
	return m.Atomic(ctx, fn)
}

type memTx struct {
	m *Memory
}

func (t *memTx) Account(_ context.Context, addr domain.Address) (domain.Account, error) {
	acc, ok := t.m.accounts[addr]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (t *memTx) TransferNative(_ context.Context, from, to domain.Address, amount uint64) error {
	src, ok := t.m.accounts[from]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if src.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	// Commit the debit before reading the credit side so that from == to
	// nets out instead of the credit clobbering the debit.
	src.Balance -= amount
	t.m.accounts[from] = src

	dst, ok := t.m.accounts[to]
	if !ok {
		dst = domain.Account{Address: to}
	}
	newBalance, err := domain.CheckedAdd(dst.Balance, amount)
	if err != nil {
		return err
	}
	dst.Balance = newBalance
	t.m.accounts[to] = dst
	return nil
}

func (t *memTx) Holding(_ context.Context, addr domain.Address) (domain.Holding, error) {
	h, ok := t.m.holdings[addr]
	if !ok {
		return domain.Holding{}, domain.ErrHoldingNotFound
	}
	return h, nil
}

func (t *memTx) TransferTokensAsDelegate(_ context.Context, from, to, mover domain.Address, amount uint64) error {
	src, ok := t.m.holdings[from]
	if !ok {
		return domain.ErrHoldingNotFound
	}
	if src.Delegate != mover {
		return domain.ErrInvalidDelegation
	}
	if src.DelegatedAmount < amount || src.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	// Commit the debit before reading the credit side: when from == to the
	// balance nets out while the allowance still burns down, matching the
	// in-place updates of the SQL backend.
	src.Balance -= amount
	src.DelegatedAmount -= amount
	t.m.holdings[from] = src

	dst, ok := t.m.holdings[to]
	if !ok {
		return domain.ErrHoldingNotFound
	}
	if dst.TokenType != src.TokenType {
		return domain.ErrMintMismatch
	}
	newBalance, err := domain.CheckedAdd(dst.Balance, amount)
	if err != nil {
		return err
	}
	dst.Balance = newBalance
	t.m.holdings[to] = dst
	return nil
}

func (t *memTx) Sale(_ context.Context, addr domain.Address) (domain.Sale, error) {
	s, ok := t.m.sales[addr]
	if !ok {
		return domain.Sale{}, domain.ErrSaleNotFound
	}
	return s, nil
}

func (t *memTx) CreateSale(ctx context.Context, sale domain.Sale) error {
	if _, ok := t.m.sales[sale.Address]; ok {
		return domain.ErrDuplicateOrder
	}
	// The storage deposit leaves the seller's account while the record lives.
	if err := t.TransferNative(ctx, sale.Seller, rentEscrowAddress, domain.SaleStorageRent); err != nil {
		return err
	}
	t.m.sales[sale.Address] = sale
	return nil
}

func (t *memTx) UpdateSalePrice(_ context.Context, addr domain.Address, price uint64, now time.Time) error {
	s, ok := t.m.sales[addr]
	if !ok {
		return domain.ErrSaleNotFound
	}
	s.UnitPrice = price
	s.UpdatedAt = now
	t.m.sales[addr] = s
	return nil
}

func (t *memTx) DeleteSale(ctx context.Context, addr, creditTo domain.Address) error {
	if _, ok := t.m.sales[addr]; !ok {
		return domain.ErrSaleNotFound
	}
	delete(t.m.sales, addr)
	return t.TransferNative(ctx, rentEscrowAddress, creditTo, domain.SaleStorageRent)
}

func (t *memTx) ListSales(_ context.Context) ([]domain.Sale, error) {
	return lo.Values(t.m.sales), nil
}

func (t *memTx) RecordFill(_ context.Context, fill domain.Fill) error {
	fill.ID = t.m.nextFill
	t.m.nextFill++
	t.m.fills = append(t.m.fills, fill)
	return nil
}

func (t *memTx) FillsBetween(_ context.Context, from, to time.Time) ([]domain.Fill, error) {
	return lo.Filter(t.m.fills, func(f domain.Fill, _ int) bool {
		return !f.FilledAt.Before(from) && f.FilledAt.Before(to)
	}), nil
}
