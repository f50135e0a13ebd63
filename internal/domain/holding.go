package domain

// Account holds an address's native-value balance.
type Account struct {
	Address Address `json:"address"`
	Balance uint64  `json:"balance"`
}

// Holding is a record of an address's balance of one token type, including
// how much of it is delegated and to whom.
type Holding struct {
	Address         Address `json:"address"`
	Owner           Address `json:"owner"`
	TokenType       Address `json:"tokenType"`
	Balance         uint64  `json:"balance"`
	Delegate        Address `json:"delegate,omitempty"`
	DelegatedAmount uint64  `json:"delegatedAmount"`
}

// DelegatedTo reports whether the holding carries a positive allowance
// granted to the given delegate.
func (h Holding) DelegatedTo(delegate Address) bool {
	return h.Delegate == delegate && h.DelegatedAmount > 0
}
