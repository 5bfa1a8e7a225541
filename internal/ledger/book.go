package ledger

import "math/big"

// AccountID is an opaque account name supplied by the caller
type AccountID string

// BalanceBook maintains in-memory per-token account balances.
// Amounts are big.Int because the registration grant (10^26) and
// price-scaled payouts exceed uint64.
type BalanceBook struct {
	balances [2]map[AccountID]*big.Int
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: [2]map[AccountID]*big.Int{
			make(map[AccountID]*big.Int),
			make(map[AccountID]*big.Int),
		},
	}
}

// Balance returns a copy of the stored balance. ok is false when the
// account has never been written for this token.
func (bb *BalanceBook) Balance(account AccountID, token TokenKind) (*big.Int, bool) {
	stored, ok := bb.balances[token][account]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(stored), true
}

// BalanceOrZero treats an absent entry as zero. Transfers use this so an
// unknown sender fails the balance check instead of erroring on lookup.
func (bb *BalanceBook) BalanceOrZero(account AccountID, token TokenKind) *big.Int {
	stored, ok := bb.balances[token][account]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(stored)
}

// Set overwrites the balance unconditionally. Registration relies on the
// overwrite: re-registering resets the balance to the fresh grant.
func (bb *BalanceBook) Set(account AccountID, token TokenKind, amount *big.Int) {
	bb.balances[token][account] = new(big.Int).Set(amount)
}

// Snapshot returns a decimal-string copy of one token's balances
func (bb *BalanceBook) Snapshot(token TokenKind) map[string]string {
	out := make(map[string]string, len(bb.balances[token]))
	for account, amount := range bb.balances[token] {
		out[string(account)] = amount.String()
	}
	return out
}

// Restore replaces one token's balances from a decimal-string map
func (bb *BalanceBook) Restore(token TokenKind, balances map[string]string) error {
	fresh := make(map[AccountID]*big.Int, len(balances))
	for account, amount := range balances {
		v, ok := new(big.Int).SetString(amount, 10)
		if !ok {
			return &CorruptBalanceError{Account: account, Value: amount}
		}
		fresh[AccountID(account)] = v
	}
	bb.balances[token] = fresh
	return nil
}

// CorruptBalanceError reports an unparseable amount in persisted state
type CorruptBalanceError struct {
	Account string
	Value   string
}

func (e *CorruptBalanceError) Error() string {
	return "corrupt balance for account " + e.Account + ": " + e.Value
}
