package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fgrust/zero-liquid/internal/domain"
)

// Pg implements Store on PostgreSQL. The operation boundary is a real
// database transaction: row locks serialize concurrent operations against the
// same holding or sale, and rollback discards every effect of a failed one.
type Pg struct {
	pool *pgxpool.Pool
}

// NewPg creates a PostgreSQL-backed store.
func NewPg(pool *pgxpool.Pool) *Pg {
	return &Pg{pool: pool}
}

// Atomic runs fn inside a read-write transaction.
func (p *Pg) Atomic(ctx context.Context, fn func(Tx) error) error {
	return p.run(ctx, pgx.TxOptions{}, fn)
}

// View runs fn inside a read-only transaction.
func (p *Pg) View(ctx context.Context, fn func(Tx) error) error {
	return p.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (p *Pg) run(ctx context.Context, opts pgx.TxOptions, fn func(Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Account(ctx context.Context, addr domain.Address) (domain.Account, error) {
	var balance int64
	err := t.tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE address = $1`, addr).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("reading account: %w", err)
	}
	return domain.Account{Address: addr, Balance: uint64(balance)}, nil
}

func (t *pgTx) TransferNative(ctx context.Context, from, to domain.Address, amount uint64) error {
	var balance int64
	err := t.tx.QueryRow(ctx,
		`SELECT balance FROM accounts WHERE address = $1 FOR UPDATE`, from).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAccountNotFound
		}
		return fmt.Errorf("locking source account: %w", err)
	}
	if uint64(balance) < amount {
		return domain.ErrInsufficientBalance
	}
	if _, err := t.tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE address = $1`, from, int64(amount)); err != nil {
		return fmt.Errorf("debiting account: %w", err)
	}
	if _, err := t.tx.Exec(ctx,
		`INSERT INTO accounts (address, balance) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET balance = accounts.balance + $2`,
		to, int64(amount)); err != nil {
		return fmt.Errorf("crediting account: %w", err)
	}
	return nil
}

func (t *pgTx) Holding(ctx context.Context, addr domain.Address) (domain.Holding, error) {
	return t.holding(ctx, addr, "")
}

func (t *pgTx) holding(ctx context.Context, addr domain.Address, lock string) (domain.Holding, error) {
	var (
		h         domain.Holding
		balance   int64
		delegated int64
		delegate  *string
	)
	err := t.tx.QueryRow(ctx,
		`SELECT owner, token_type, balance, delegate, delegated_amount
		 FROM holdings WHERE address = $1`+lock, addr).
		Scan(&h.Owner, &h.TokenType, &balance, &delegate, &delegated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Holding{}, domain.ErrHoldingNotFound
		}
		return domain.Holding{}, fmt.Errorf("reading holding: %w", err)
	}
	h.Address = addr
	h.Balance = uint64(balance)
	h.DelegatedAmount = uint64(delegated)
	if delegate != nil {
		h.Delegate = domain.Address(*delegate)
	}
	return h, nil
}

func (t *pgTx) TransferTokensAsDelegate(ctx context.Context, from, to, mover domain.Address, amount uint64) error {
	src, err := t.holding(ctx, from, " FOR UPDATE")
	if err != nil {
		return err
	}
	if src.Delegate != mover {
		return domain.ErrInvalidDelegation
	}
	if src.DelegatedAmount < amount || src.Balance < amount {
		return domain.ErrInsufficientBalance
	}
	dst, err := t.holding(ctx, to, " FOR UPDATE")
	if err != nil {
		return err
	}
	if dst.TokenType != src.TokenType {
		return domain.ErrMintMismatch
	}
	if _, err := t.tx.Exec(ctx,
		`UPDATE holdings
		 SET balance = balance - $2, delegated_amount = delegated_amount - $2
		 WHERE address = $1`, from, int64(amount)); err != nil {
		return fmt.Errorf("debiting holding: %w", err)
	}
	if _, err := t.tx.Exec(ctx,
		`UPDATE holdings SET balance = balance + $2 WHERE address = $1`,
		to, int64(amount)); err != nil {
		return fmt.Errorf("crediting holding: %w", err)
	}
	return nil
}

func (t *pgTx) Sale(ctx context.Context, addr domain.Address) (domain.Sale, error) {
	var (
		s     domain.Sale
		price int64
		nonce int16
	)
	err := t.tx.QueryRow(ctx,
		`SELECT seller, holding_ref, token_type, unit_price, nonce, created_at, updated_at
		 FROM sales WHERE address = $1`, addr).
		Scan(&s.Seller, &s.HoldingRef, &s.TokenType, &price, &nonce, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Sale{}, domain.ErrSaleNotFound
		}
		return domain.Sale{}, fmt.Errorf("reading sale: %w", err)
	}
	s.Address = addr
	s.UnitPrice = uint64(price)
	s.Nonce = uint8(nonce)
	return s, nil
}

func (t *pgTx) CreateSale(ctx context.Context, sale domain.Sale) error {
	// The storage deposit leaves the seller's account while the record lives.
	if err := t.TransferNative(ctx, sale.Seller, rentEscrowAddress, domain.SaleStorageRent); err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx,
		`INSERT INTO sales (address, seller, holding_ref, token_type, unit_price, nonce, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (address) DO NOTHING`,
		sale.Address, sale.Seller, sale.HoldingRef, sale.TokenType,
		int64(sale.UnitPrice), int16(sale.Nonce), sale.CreatedAt, sale.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating sale: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrDuplicateOrder
	}
	return nil
}

func (t *pgTx) UpdateSalePrice(ctx context.Context, addr domain.Address, price uint64, now time.Time) error {
	ct, err := t.tx.Exec(ctx,
		`UPDATE sales SET unit_price = $2, updated_at = $3 WHERE address = $1`,
		addr, int64(price), now)
	if err != nil {
		return fmt.Errorf("updating sale price: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrSaleNotFound
	}
	return nil
}

func (t *pgTx) DeleteSale(ctx context.Context, addr, creditTo domain.Address) error {
	ct, err := t.tx.Exec(ctx, `DELETE FROM sales WHERE address = $1`, addr)
	if err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrSaleNotFound
	}
	return t.TransferNative(ctx, rentEscrowAddress, creditTo, domain.SaleStorageRent)
}

func (t *pgTx) ListSales(ctx context.Context) ([]domain.Sale, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT address, seller, holding_ref, token_type, unit_price, nonce, created_at, updated_at
		 FROM sales ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.Sale
	for rows.Next() {
		var (
			s     domain.Sale
			price int64
			nonce int16
		)
		if err := rows.Scan(&s.Address, &s.Seller, &s.HoldingRef, &s.TokenType,
			&price, &nonce, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}
		s.UnitPrice = uint64(price)
		s.Nonce = uint8(nonce)
		sales = append(sales, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sales: %w", err)
	}
	return sales, nil
}

func (t *pgTx) RecordFill(ctx context.Context, fill domain.Fill) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO fills (sale_address, buyer, seller, token_type, num_tokens, unit_price, amount_paid, closed_sale, filled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		fill.SaleAddress, fill.Buyer, fill.Seller, fill.TokenType,
		int64(fill.NumTokens), int64(fill.UnitPrice), int64(fill.AmountPaid),
		fill.ClosedSale, fill.FilledAt)
	if err != nil {
		return fmt.Errorf("recording fill: %w", err)
	}
	return nil
}

func (t *pgTx) FillsBetween(ctx context.Context, from, to time.Time) ([]domain.Fill, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id, sale_address, buyer, seller, token_type, num_tokens, unit_price, amount_paid, closed_sale, filled_at
		 FROM fills WHERE filled_at >= $1 AND filled_at < $2 ORDER BY filled_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing fills: %w", err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var (
			f                domain.Fill
			num, price, paid int64
		)
		if err := rows.Scan(&f.ID, &f.SaleAddress, &f.Buyer, &f.Seller, &f.TokenType,
			&num, &price, &paid, &f.ClosedSale, &f.FilledAt); err != nil {
			return nil, fmt.Errorf("scanning fill: %w", err)
		}
		f.NumTokens = uint64(num)
		f.UnitPrice = uint64(price)
		f.AmountPaid = uint64(paid)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating fills: %w", err)
	}
	return fills, nil
}
