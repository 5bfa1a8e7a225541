package ledger

import (
	"fmt"
	"math/big"
)

// TransferEngine is the single write path for moving tokens between
// accounts. The owner account is exempt on both legs: debits from the
// owner skip the balance check and credits to the owner are discarded,
// so the owner behaves as an unlimited reserve. Conservation holds only
// across transfers that touch no owner leg.
type TransferEngine struct {
	owner AccountID
	book  *BalanceBook
}

func NewTransferEngine(owner AccountID, book *BalanceBook) *TransferEngine {
	return &TransferEngine{owner: owner, book: book}
}

func (te *TransferEngine) Owner() AccountID {
	return te.owner
}

// Transfer moves amount of token from one account to another. A non-owner
// sender must hold strictly more than amount; spending the entire balance
// is rejected. On failure nothing is mutated.
func (te *TransferEngine) Transfer(from, to AccountID, token TokenKind, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative transfer amount %s", ErrInvalidInput, amount)
	}

	if from != te.owner {
		balance := te.book.BalanceOrZero(from, token)
		if balance.Cmp(amount) <= 0 {
			return fmt.Errorf("%w: account %s holds %s %s, needs more than %s",
				ErrInsufficientBalance, from, balance, token, amount)
		}
		te.book.Set(from, token, balance.Sub(balance, amount))
	}

	if to != te.owner {
		balance := te.book.BalanceOrZero(to, token)
		te.book.Set(to, token, balance.Add(balance, amount))
	}

	return nil
}
