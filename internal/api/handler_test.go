package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fgrust/zero-liquid/internal/authority"
	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/identity"
	"github.com/fgrust/zero-liquid/internal/sale"
	"github.com/fgrust/zero-liquid/internal/settlement"
	"github.com/fgrust/zero-liquid/internal/store"
)

type testStack struct {
	mux   http.Handler
	store *store.Memory
	auth  *authority.ValueAuthority
}

func newTestStack(t *testing.T, verifier SignerVerifier) *testStack {
	t.Helper()
	auth, err := authority.New()
	if err != nil {
		t.Fatalf("authority.New: %v", err)
	}
	m := store.NewMemory()
	m.SeedAccount("SELLER", 100_000_000)
	m.SeedAccount("BUYER", 100_000_000)
	m.SeedHolding(domain.Holding{
		Address: "SELLER-T", Owner: "SELLER", TokenType: "MINT-T",
		Balance: 100, Delegate: auth.Address(), DelegatedAmount: 100,
	})
	m.SeedHolding(domain.Holding{Address: "BUYER-T", Owner: "BUYER", TokenType: "MINT-T"})

	registry := sale.NewRegistry(m, sale.NewAllowanceGuard(auth.Address()))
	closure, err := settlement.NewClosureManager(m, domain.CreditCloser)
	if err != nil {
		t.Fatalf("NewClosureManager: %v", err)
	}
	engine := settlement.NewEngine(m, auth, closure)
	handler := NewHandler(registry, engine, closure, verifier, auth.Nonce())
	srv := NewServer("0", handler, nil, "")
	return &testStack{mux: srv.Handler, store: m, auth: auth}
}

func (s *testStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	s := newTestStack(t, nil)

	// post_sale
	w := s.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"seller": "SELLER", "holding": "SELLER-T", "unitPrice": 5,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("PostSale status = %d, body %s", w.Code, w.Body)
	}
	var posted domain.Sale
	if err := json.Unmarshal(w.Body.Bytes(), &posted); err != nil {
		t.Fatalf("decoding sale: %v", err)
	}
	if posted.UnitPrice != 5 || posted.TokenType != "MINT-T" {
		t.Errorf("posted sale = %+v", posted)
	}

	// duplicate post
	w = s.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"seller": "SELLER", "holding": "SELLER-T", "unitPrice": 7,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate PostSale status = %d, want 409", w.Code)
	}

	salePath := "/api/v1/sales/" + posted.Address.String()

	// partial take
	w = s.do(t, http.MethodPost, salePath+"/take", map[string]any{
		"buyer": "BUYER", "buyerHolding": "BUYER-T", "numTokens": 40,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("TakeSale status = %d, body %s", w.Code, w.Body)
	}
	var fill domain.Fill
	json.Unmarshal(w.Body.Bytes(), &fill)
	if fill.AmountPaid != 200 || fill.ClosedSale {
		t.Errorf("fill = %+v, want paid 200, open", fill)
	}

	// premature close
	w = s.do(t, http.MethodPost, salePath+"/close", map[string]any{"closer": "JANITOR"})
	if w.Code != http.StatusConflict {
		t.Errorf("premature close status = %d, want 409", w.Code)
	}

	// price change by non-seller
	w = s.do(t, http.MethodPatch, salePath+"/price", map[string]any{
		"signer": "MALLORY", "newPrice": 1,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign price change status = %d, want 403", w.Code)
	}

	// price change by seller
	w = s.do(t, http.MethodPatch, salePath+"/price", map[string]any{
		"signer": "SELLER", "newPrice": 9,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("price change status = %d, body %s", w.Code, w.Body)
	}

	// exhausting take at the new price
	w = s.do(t, http.MethodPost, salePath+"/take", map[string]any{
		"buyer": "BUYER", "buyerHolding": "BUYER-T", "numTokens": 60,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("final TakeSale status = %d, body %s", w.Code, w.Body)
	}
	json.Unmarshal(w.Body.Bytes(), &fill)
	if fill.AmountPaid != 540 || !fill.ClosedSale {
		t.Errorf("final fill = %+v, want paid 540, closed", fill)
	}

	// the sale is gone
	w = s.do(t, http.MethodGet, salePath, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GetSale after exhaustion status = %d, want 404", w.Code)
	}
}

func TestTakeSaleOverAllowanceRejected(t *testing.T) {
	s := newTestStack(t, nil)
	var posted domain.Sale
	w := s.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"seller": "SELLER", "holding": "SELLER-T", "unitPrice": 5,
	})
	json.Unmarshal(w.Body.Bytes(), &posted)

	w = s.do(t, http.MethodPost, "/api/v1/sales/"+posted.Address.String()+"/take", map[string]any{
		"buyer": "BUYER", "buyerHolding": "BUYER-T", "numTokens": 101,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("over-allowance take status = %d, want 422", w.Code)
	}
}

func TestCloseSaleAfterRevoke(t *testing.T) {
	s := newTestStack(t, nil)
	var posted domain.Sale
	w := s.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"seller": "SELLER", "holding": "SELLER-T", "unitPrice": 5,
	})
	json.Unmarshal(w.Body.Bytes(), &posted)

	s.store.Revoke("SELLER-T")

	w = s.do(t, http.MethodPost, "/api/v1/sales/"+posted.Address.String()+"/close",
		map[string]any{"closer": "JANITOR"})
	if w.Code != http.StatusOK {
		t.Fatalf("close status = %d, body %s", w.Code, w.Body)
	}
	var resp map[string]domain.Address
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["credited"] != "JANITOR" {
		t.Errorf("credited = %s, want JANITOR", resp["credited"])
	}
}

func TestListSalesFiltersAndCaches(t *testing.T) {
	s := newTestStack(t, nil)
	s.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"seller": "SELLER", "holding": "SELLER-T", "unitPrice": 5,
	})

	w := s.do(t, http.MethodGet, "/api/v1/sales?seller=SELLER", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ListSales status = %d", w.Code)
	}
	var sales []domain.Sale
	json.Unmarshal(w.Body.Bytes(), &sales)
	if len(sales) != 1 {
		t.Fatalf("sales = %+v, want 1", sales)
	}

	w = s.do(t, http.MethodGet, "/api/v1/sales?seller=NOBODY", nil)
	json.Unmarshal(w.Body.Bytes(), &sales)
	if len(sales) != 0 {
		t.Errorf("filtered sales = %+v, want none", sales)
	}
}

func TestPostSaleMalformedBody(t *testing.T) {
	s := newTestStack(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) VerifySigner(_ context.Context, signer domain.Address, _ string) error {
	return fmt.Errorf("%w: %s", identity.ErrVerificationFailed, signer)
}

func TestVerifierRejectionBlocksMutations(t *testing.T) {
	s := newTestStack(t, rejectAllVerifier{})
	w := s.do(t, http.MethodPost, "/api/v1/sales", map[string]any{
		"seller": "SELLER", "holding": "SELLER-T", "unitPrice": 5,
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("unverified PostSale status = %d, want 403", w.Code)
	}
}
