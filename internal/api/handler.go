package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fgrust/zero-liquid/internal/domain"
	"github.com/fgrust/zero-liquid/internal/identity"
	"github.com/fgrust/zero-liquid/internal/sale"
	"github.com/fgrust/zero-liquid/internal/settlement"
)

// attestationHeader carries the signer attestation checked by the identity
// service when one is configured.
const attestationHeader = "X-Signer-Attestation"

// SignerVerifier checks that an attestation proves control of a signer
// identity. Verification itself is the identity service's job.
type SignerVerifier interface {
	VerifySigner(ctx context.Context, signer domain.Address, attestation string) error
}

// Handler provides the HTTP command surface of the escrow engine.
type Handler struct {
	registry       *sale.Registry
	engine         *settlement.Engine
	closure        *settlement.ClosureManager
	verifier       SignerVerifier // nil in trusted mode
	authorityNonce uint8
	cache          *listCache
}

// NewHandler creates the API handler. A nil verifier runs the API in trusted
// mode, taking signer identities from request bodies unchecked.
func NewHandler(registry *sale.Registry, engine *settlement.Engine, closure *settlement.ClosureManager, verifier SignerVerifier, authorityNonce uint8) *Handler {
	return &Handler{
		registry:       registry,
		engine:         engine,
		closure:        closure,
		verifier:       verifier,
		authorityNonce: authorityNonce,
		cache:          newListCache(),
	}
}

// verify checks the request's attestation for the acting signer.
func (h *Handler) verify(r *http.Request, signer domain.Address) error {
	if h.verifier == nil {
		return nil
	}
	return h.verifier.VerifySigner(r.Context(), signer, r.Header.Get(attestationHeader))
}

type postSaleRequest struct {
	Seller    domain.Address `json:"seller"`
	Holding   domain.Address `json:"holding"`
	UnitPrice uint64         `json:"unitPrice"`
	Nonce     *uint8         `json:"nonce,omitempty"`
}

// PostSale handles POST /api/v1/sales.
func (h *Handler) PostSale(w http.ResponseWriter, r *http.Request) {
	var req postSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Seller.IsZero() || req.Holding.IsZero() {
		writeError(w, http.StatusBadRequest, "seller and holding are required")
		return
	}
	if err := h.verify(r, req.Seller); err != nil {
		writeVerifyError(w, err)
		return
	}

	s, err := h.registry.PostSale(r.Context(), req.Seller, req.Holding, req.UnitPrice, req.Nonce)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.cache.clear()
	writeJSON(w, http.StatusCreated, s)
}

type takeSaleRequest struct {
	Buyer          domain.Address `json:"buyer"`
	BuyerHolding   domain.Address `json:"buyerHolding"`
	NumTokens      uint64         `json:"numTokens"`
	AuthorityNonce *uint8         `json:"authorityNonce,omitempty"`
}

// TakeSale handles POST /api/v1/sales/{address}/take.
func (h *Handler) TakeSale(w http.ResponseWriter, r *http.Request) {
	var req takeSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Buyer.IsZero() || req.BuyerHolding.IsZero() {
		writeError(w, http.StatusBadRequest, "buyer and buyerHolding are required")
		return
	}
	if err := h.verify(r, req.Buyer); err != nil {
		writeVerifyError(w, err)
		return
	}

	nonce := h.authorityNonce
	if req.AuthorityNonce != nil {
		nonce = *req.AuthorityNonce
	}

	saleAddr := domain.Address(r.PathValue("address"))
	fill, err := h.engine.TakeSale(r.Context(), req.Buyer, req.BuyerHolding, saleAddr, req.NumTokens, nonce)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.cache.clear()
	writeJSON(w, http.StatusOK, fill)
}

type closeSaleRequest struct {
	Closer domain.Address `json:"closer"`
}

// CloseSale handles POST /api/v1/sales/{address}/close. Permissionless; the
// closer only identifies who the reclaimed deposit may be credited to.
func (h *Handler) CloseSale(w http.ResponseWriter, r *http.Request) {
	var req closeSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Closer.IsZero() {
		writeError(w, http.StatusBadRequest, "closer is required")
		return
	}

	saleAddr := domain.Address(r.PathValue("address"))
	credited, err := h.closure.CloseSale(r.Context(), saleAddr, req.Closer)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.cache.clear()
	writeJSON(w, http.StatusOK, map[string]domain.Address{"credited": credited})
}

type changePriceRequest struct {
	Signer   domain.Address `json:"signer"`
	NewPrice uint64         `json:"newPrice"`
}

// ChangePrice handles PATCH /api/v1/sales/{address}/price.
func (h *Handler) ChangePrice(w http.ResponseWriter, r *http.Request) {
	var req changePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Signer.IsZero() {
		writeError(w, http.StatusBadRequest, "signer is required")
		return
	}
	if err := h.verify(r, req.Signer); err != nil {
		writeVerifyError(w, err)
		return
	}

	saleAddr := domain.Address(r.PathValue("address"))
	s, err := h.registry.ChangePrice(r.Context(), saleAddr, req.NewPrice, req.Signer)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.cache.clear()
	writeJSON(w, http.StatusOK, s)
}

// GetSale handles GET /api/v1/sales/{address}.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(r.Context(), domain.Address(r.PathValue("address")))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListSales handles GET /api/v1/sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	f := sale.Filter{
		TokenType: domain.Address(r.URL.Query().Get("mint")),
		Seller:    domain.Address(r.URL.Query().Get("seller")),
	}

	key := cacheKey(f)
	if sales, ok := h.cache.get(key); ok {
		writeJSON(w, http.StatusOK, sales)
		return
	}

	sales, err := h.registry.List(r.Context(), f)
	if err != nil {
		slog.Error("failed to list sales", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if sales == nil {
		sales = []domain.Sale{}
	}
	h.cache.set(key, sales)
	writeJSON(w, http.StatusOK, sales)
}

// writeEngineError maps engine abort reasons onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, domain.ErrHoldingNotFound),
		errors.Is(err, domain.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrDuplicateOrder),
		errors.Is(err, domain.ErrNotYetClosable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidDelegation),
		errors.Is(err, domain.ErrMintMismatch),
		errors.Is(err, domain.ErrOwnerMismatch),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrOverflow),
		errors.Is(err, domain.ErrUnderflow):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, sale.ErrNonceMismatch),
		errors.Is(err, settlement.ErrZeroTokens):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeVerifyError(w http.ResponseWriter, err error) {
	if errors.Is(err, identity.ErrVerificationFailed) {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}
	slog.Error("signer verification unavailable", "error", err)
	writeError(w, http.StatusBadGateway, "signer verification unavailable")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
