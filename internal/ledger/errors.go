package ledger

import "errors"

// Domain errors shared across the ledger, contract and server packages.
// Callers match with errors.Is; wrapped messages carry the detail.
var (
	// ErrUnauthorized rejects a state-changing call from anyone but the owner.
	ErrUnauthorized = errors.New("caller is not the owner")

	// ErrInsufficientBalance rejects a debit that the sender's balance does
	// not strictly exceed.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound covers reads of balances, prices or accounts that were
	// never written.
	ErrNotFound = errors.New("not found")

	// ErrNoOpenBet rejects closing or reading a bet for an account with none.
	ErrNoOpenBet = errors.New("no open bet")

	// ErrInvalidInput rejects malformed amounts, directions or assets
	// before any state is touched.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidToken rejects token ids outside the two known kinds.
	ErrInvalidToken = errors.New("invalid token")
)
