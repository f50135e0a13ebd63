package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/fgrust/zero-liquid/internal/domain"
)

func TestCloseSaleRejectsWhileAllowancePositive(t *testing.T) {
	f := newFixture(t, 100, 5, domain.CreditCloser)
	_, err := f.closure.CloseSale(context.Background(), f.sale.Address, "JANITOR")
	if !errors.Is(err, domain.ErrNotYetClosable) {
		t.Errorf("error = %v, want ErrNotYetClosable", err)
	}
	if _, err := f.registry.Get(context.Background(), f.sale.Address); err != nil {
		t.Errorf("sale should survive failed close: %v", err)
	}
}

func TestCloseSalePermissionlessAfterRevoke(t *testing.T) {
	f := newFixture(t, 100, 5, domain.CreditCloser)
	ctx := context.Background()
	f.store.Revoke("SELLER-T")

	credited, err := f.closure.CloseSale(ctx, f.sale.Address, "JANITOR")
	if err != nil {
		t.Fatalf("CloseSale: %v", err)
	}
	if credited != "JANITOR" {
		t.Errorf("credited = %s, want JANITOR", credited)
	}
	if got := f.balance(t, "JANITOR"); got != domain.SaleStorageRent {
		t.Errorf("janitor balance = %d, want %d", got, domain.SaleStorageRent)
	}
	if _, err := f.registry.Get(ctx, f.sale.Address); !errors.Is(err, domain.ErrSaleNotFound) {
		t.Errorf("sale after close error = %v, want ErrSaleNotFound", err)
	}
}

func TestCloseSaleSellerCreditPolicy(t *testing.T) {
	f := newFixture(t, 100, 5, domain.CreditSeller)
	ctx := context.Background()
	f.store.Revoke("SELLER-T")
	sellerBefore := f.balance(t, "SELLER")

	credited, err := f.closure.CloseSale(ctx, f.sale.Address, "JANITOR")
	if err != nil {
		t.Fatalf("CloseSale: %v", err)
	}
	if credited != "SELLER" {
		t.Errorf("credited = %s, want SELLER", credited)
	}
	if got := f.balance(t, "SELLER"); got != sellerBefore+domain.SaleStorageRent {
		t.Errorf("seller balance = %d, want %d", got, sellerBefore+domain.SaleStorageRent)
	}
}

func TestCloseSaleUnknownSale(t *testing.T) {
	f := newFixture(t, 100, 5, domain.CreditCloser)
	_, err := f.closure.CloseSale(context.Background(), "NO-SUCH-SALE", "JANITOR")
	if !errors.Is(err, domain.ErrSaleNotFound) {
		t.Errorf("error = %v, want ErrSaleNotFound", err)
	}
}

func TestNewClosureManagerRejectsUnknownPolicy(t *testing.T) {
	if _, err := NewClosureManager(nil, "burn"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
