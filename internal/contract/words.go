package contract

import (
	"fmt"
	"math/big"
	"time"

	"github.com/Calcifer1001/heist/internal/event"
	"github.com/Calcifer1001/heist/internal/fixedpoint"
	"github.com/Calcifer1001/heist/internal/ledger"
)

// DefaultWords is the fixed purchasable catalog, in unlock order.
// Accounts buy words one at a time; the allowance counts how many of
// the catalog's prefix an account has unlocked.
var DefaultWords = []string{
	"tokyo",
	"berlin",
	"nairobi",
	"rio",
	"denver",
	"moscow",
	"oslo",
	"helsinki",
	"lisbon",
	"stockholm",
	"marseille",
	"palermo",
	"bogota",
	"manila",
	"pamplona",
	"logrono",
}

// wordBasePrice is the HEIST price of one word: 1,000 tokens at 18
// decimals. An stHEIST purchase is scaled by the synthetic price the
// same way registration grants are.
var wordBasePrice = mustBig("1000000000000000000000")

// BuyWord unlocks the caller's next catalog word, paying the owner in
// the chosen token.
func (l *Ledger) BuyWord(caller string, token ledger.TokenKind) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := time.Now()

	word, err := l.applyBuyWordReturning(ledger.AccountID(caller), token)
	if err != nil {
		l.reject(event.OpTypeBuyWord, rejectReason(err))
		return "", err
	}

	if err := l.journal(event.OpTypeBuyWord, caller, event.BuyWordPayload{Token: uint8(token)}); err != nil {
		return "", err
	}
	l.finishOp(event.OpTypeBuyWord, start)

	l.log.Info().
		Str("account", caller).
		Str("word", word).
		Msg("word purchased")
	return word, nil
}

func (l *Ledger) applyBuyWord(account ledger.AccountID, token ledger.TokenKind) error {
	_, err := l.applyBuyWordReturning(account, token)
	return err
}

func (l *Ledger) applyBuyWordReturning(account ledger.AccountID, token ledger.TokenKind) (string, error) {
	unlocked := l.allowances[account]
	if unlocked >= len(l.catalog) {
		return "", fmt.Errorf("%w: word catalog exhausted for account %s", ledger.ErrNotFound, account)
	}

	price := new(big.Int).Set(wordBasePrice)
	if token == ledger.TokenStHeist {
		price = fixedpoint.ScaleBySynthetic(wordBasePrice, l.prices.SyntheticPrice())
	}

	if err := l.transfers.Transfer(account, l.owner, token, price); err != nil {
		return "", err
	}

	l.allowances[account] = unlocked + 1
	return l.catalog[unlocked], nil
}

// Words returns the catalog prefix an account has unlocked. An account
// that never bought a word gets an empty list, not an error.
func (l *Ledger) Words(account string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.allowances[ledger.AccountID(account)]
	if n > len(l.catalog) {
		n = len(l.catalog)
	}
	out := make([]string, n)
	copy(out, l.catalog[:n])
	return out
}

// WordAllowance reports how many words an account has unlocked
func (l *Ledger) WordAllowance(account string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allowances[ledger.AccountID(account)]
}
