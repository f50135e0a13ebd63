package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fgrust/zero-liquid/internal/domain"
)

func seedMemory(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.SeedAccount("SELLER", 10_000_000)
	m.SeedAccount("BUYER", 10_000_000)
	m.SeedHolding(domain.Holding{
		Address: "SELLER-T", Owner: "SELLER", TokenType: "MINT-T",
		Balance: 100, Delegate: "AUTH", DelegatedAmount: 100,
	})
	m.SeedHolding(domain.Holding{
		Address: "BUYER-T", Owner: "BUYER", TokenType: "MINT-T", Balance: 0,
	})
	return m
}

func TestAtomicRollsBackOnError(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.Atomic(ctx, func(tx Tx) error {
		if err := tx.TransferNative(ctx, "BUYER", "SELLER", 1_000); err != nil {
			t.Fatalf("TransferNative: %v", err)
		}
		if err := tx.TransferTokensAsDelegate(ctx, "SELLER-T", "BUYER-T", "AUTH", 40); err != nil {
			t.Fatalf("TransferTokensAsDelegate: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Atomic error = %v, want boom", err)
	}

	m.View(ctx, func(tx Tx) error {
		acc, _ := tx.Account(ctx, "BUYER")
		if acc.Balance != 10_000_000 {
			t.Errorf("buyer balance = %d after rollback, want 10000000", acc.Balance)
		}
		h, _ := tx.Holding(ctx, "SELLER-T")
		if h.Balance != 100 || h.DelegatedAmount != 100 {
			t.Errorf("seller holding = %+v after rollback, want balance 100 allowance 100", h)
		}
		return nil
	})
}

func TestTransferTokensAsDelegate(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.TransferTokensAsDelegate(ctx, "SELLER-T", "BUYER-T", "AUTH", 40)
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	m.View(ctx, func(tx Tx) error {
		src, _ := tx.Holding(ctx, "SELLER-T")
		dst, _ := tx.Holding(ctx, "BUYER-T")
		if src.Balance != 60 || src.DelegatedAmount != 60 {
			t.Errorf("source holding = %+v, want balance 60 allowance 60", src)
		}
		if dst.Balance != 40 {
			t.Errorf("dest balance = %d, want 40", dst.Balance)
		}
		return nil
	})
}

func TestTransferNativeToSelfConserves(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.TransferNative(ctx, "SELLER", "SELLER", 1_000)
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	m.View(ctx, func(tx Tx) error {
		acc, _ := tx.Account(ctx, "SELLER")
		if acc.Balance != 10_000_000 {
			t.Errorf("balance = %d after self transfer, want 10000000", acc.Balance)
		}
		return nil
	})
}

func TestTransferTokensToSelfBurnsAllowanceOnly(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.TransferTokensAsDelegate(ctx, "SELLER-T", "SELLER-T", "AUTH", 40)
	})
	if err != nil {
		t.Fatalf("Atomic: %v", err)
	}

	m.View(ctx, func(tx Tx) error {
		h, _ := tx.Holding(ctx, "SELLER-T")
		if h.Balance != 100 {
			t.Errorf("balance = %d after self transfer, want 100", h.Balance)
		}
		if h.DelegatedAmount != 60 {
			t.Errorf("allowance = %d after self transfer, want 60", h.DelegatedAmount)
		}
		return nil
	})
}

func TestTransferTokensRejectsWrongDelegate(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.TransferTokensAsDelegate(ctx, "SELLER-T", "BUYER-T", "NOT-AUTH", 40)
	})
	if !errors.Is(err, domain.ErrInvalidDelegation) {
		t.Errorf("error = %v, want ErrInvalidDelegation", err)
	}
}

func TestTransferTokensRejectsOverAllowance(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()

	err := m.Atomic(ctx, func(tx Tx) error {
		return tx.TransferTokensAsDelegate(ctx, "SELLER-T", "BUYER-T", "AUTH", 101)
	})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("error = %v, want ErrInsufficientBalance", err)
	}
}

func TestCreateSaleChargesRentAndRejectsDuplicate(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	sale := domain.Sale{
		Address: "SALE-1", Seller: "SELLER", HoldingRef: "SELLER-T",
		TokenType: "MINT-T", UnitPrice: 5, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	if err := m.Atomic(ctx, func(tx Tx) error { return tx.CreateSale(ctx, sale) }); err != nil {
		t.Fatalf("CreateSale: %v", err)
	}

	m.View(ctx, func(tx Tx) error {
		acc, _ := tx.Account(ctx, "SELLER")
		if want := 10_000_000 - domain.SaleStorageRent; acc.Balance != want {
			t.Errorf("seller balance = %d, want %d", acc.Balance, want)
		}
		return nil
	})

	err := m.Atomic(ctx, func(tx Tx) error { return tx.CreateSale(ctx, sale) })
	if !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Errorf("duplicate create error = %v, want ErrDuplicateOrder", err)
	}
}

func TestDeleteSaleReturnsRent(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	sale := domain.Sale{Address: "SALE-1", Seller: "SELLER", HoldingRef: "SELLER-T", TokenType: "MINT-T"}

	m.Atomic(ctx, func(tx Tx) error { return tx.CreateSale(ctx, sale) })
	if err := m.Atomic(ctx, func(tx Tx) error { return tx.DeleteSale(ctx, "SALE-1", "CLOSER") }); err != nil {
		t.Fatalf("DeleteSale: %v", err)
	}

	m.View(ctx, func(tx Tx) error {
		acc, _ := tx.Account(ctx, "CLOSER")
		if acc.Balance != domain.SaleStorageRent {
			t.Errorf("closer balance = %d, want %d", acc.Balance, domain.SaleStorageRent)
		}
		if _, err := tx.Sale(ctx, "SALE-1"); !errors.Is(err, domain.ErrSaleNotFound) {
			t.Errorf("Sale after delete error = %v, want ErrSaleNotFound", err)
		}
		return nil
	})
}

func TestFillsBetween(t *testing.T) {
	m := seedMemory(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	m.Atomic(ctx, func(tx Tx) error {
		tx.RecordFill(ctx, domain.Fill{SaleAddress: "S", NumTokens: 40, FilledAt: day.Add(2 * time.Hour)})
		tx.RecordFill(ctx, domain.Fill{SaleAddress: "S", NumTokens: 60, FilledAt: day.Add(26 * time.Hour)})
		return nil
	})

	m.View(ctx, func(tx Tx) error {
		fills, err := tx.FillsBetween(ctx, day, day.AddDate(0, 0, 1))
		if err != nil {
			t.Fatalf("FillsBetween: %v", err)
		}
		if len(fills) != 1 || fills[0].NumTokens != 40 {
			t.Errorf("fills = %+v, want one fill of 40", fills)
		}
		return nil
	})
}
