package domain

import "time"

// SaleStorageRent is the native-value deposit charged when a sale record is
// created and reclaimed by whoever closes it.
const SaleStorageRent uint64 = 890_880

// Sale is a standing offer to sell up to the delegated allowance of a token
// holding at a fixed unit price. A sale record lives at an address derived
// from its backing holding, so at most one open sale exists per holding.
type Sale struct {
	Address    Address   `json:"address"`
	Seller     Address   `json:"seller"`
	HoldingRef Address   `json:"holdingRef"`
	TokenType  Address   `json:"tokenType"`
	UnitPrice  uint64    `json:"unitPrice"`
	Nonce      uint8     `json:"nonce"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Fill records one settled fulfillment against a sale.
type Fill struct {
	ID          int64     `json:"id"`
	SaleAddress Address   `json:"saleAddress"`
	Buyer       Address   `json:"buyer"`
	Seller      Address   `json:"seller"`
	TokenType   Address   `json:"tokenType"`
	NumTokens   uint64    `json:"numTokens"`
	UnitPrice   uint64    `json:"unitPrice"`
	AmountPaid  uint64    `json:"amountPaid"`
	ClosedSale  bool      `json:"closedSale"`
	FilledAt    time.Time `json:"filledAt"`
}

// CreditPolicy decides who receives the reclaimed storage value of a closed sale.
type CreditPolicy string

const (
	// CreditCloser credits whoever invoked the close.
	CreditCloser CreditPolicy = "closer"
	// CreditSeller always credits the sale's seller.
	CreditSeller CreditPolicy = "seller"
)

// Valid reports whether the policy is a known value.
func (p CreditPolicy) Valid() bool {
	return p == CreditCloser || p == CreditSeller
}
