package contract_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Calcifer1001/heist/internal/contract"
	"github.com/Calcifer1001/heist/internal/ledger"
)

// ============================================================================
// Test: word purchases
// ============================================================================

func TestBuyWord_UnlocksInOrder(t *testing.T) {
	l := contract.New(contract.Config{
		Owner:       "owner",
		WordCatalog: []string{"alpha", "bravo", "charlie"},
		Logger:      zerolog.Nop(),
	})

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}

	first, err := l.BuyWord("alice", ledger.TokenHeist)
	if err != nil {
		t.Fatalf("buy_word failed: %v", err)
	}
	if first != "alpha" {
		t.Errorf("first word %q, want alpha", first)
	}

	second, err := l.BuyWord("alice", ledger.TokenHeist)
	if err != nil {
		t.Fatalf("buy_word failed: %v", err)
	}
	if second != "bravo" {
		t.Errorf("second word %q, want bravo", second)
	}

	words := l.Words("alice")
	if len(words) != 2 || words[0] != "alpha" || words[1] != "bravo" {
		t.Errorf("unlocked words %v", words)
	}
	if got := l.WordAllowance("alice"); got != 2 {
		t.Errorf("allowance %d, want 2", got)
	}
}

func TestBuyWord_DebitsBalance(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	before, _ := l.Balance("alice", ledger.TokenHeist)

	if _, err := l.BuyWord("alice", ledger.TokenHeist); err != nil {
		t.Fatalf("buy_word failed: %v", err)
	}

	after, _ := l.Balance("alice", ledger.TokenHeist)
	if after.Cmp(before) >= 0 {
		t.Errorf("purchase should debit the balance: before %s, after %s", before, after)
	}
}

func TestBuyWord_NoBalance(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.BuyWord("pauper", ledger.TokenHeist)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Errorf("penniless purchase should be ErrInsufficientBalance, got %v", err)
	}
	if got := l.WordAllowance("pauper"); got != 0 {
		t.Errorf("failed purchase bumped the allowance to %d", got)
	}
}

func TestBuyWord_CatalogExhausted(t *testing.T) {
	l := contract.New(contract.Config{
		Owner:       "owner",
		WordCatalog: []string{"solo"},
		Logger:      zerolog.Nop(),
	})

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if _, err := l.BuyWord("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}

	balance, _ := l.Balance("alice", ledger.TokenHeist)
	_, err := l.BuyWord("alice", ledger.TokenHeist)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("exhausted catalog should be ErrNotFound, got %v", err)
	}

	// The exhaustion check runs before the payment.
	after, _ := l.Balance("alice", ledger.TokenHeist)
	if after.Cmp(balance) != 0 {
		t.Error("failed purchase debited the balance")
	}
}

func TestBuyWord_SyntheticPriceScaled(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenStHeist); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := l.AdvanceSyntheticPrice("owner"); err != nil {
			t.Fatal(err)
		}
	}

	before, _ := l.Balance("alice", ledger.TokenStHeist)
	if _, err := l.BuyWord("alice", ledger.TokenStHeist); err != nil {
		t.Fatalf("buy_word failed: %v", err)
	}
	after, _ := l.Balance("alice", ledger.TokenStHeist)

	paid := new(big.Int).Sub(before, after)
	// A grown synthetic price makes the stHEIST word price cheaper than
	// the HEIST base of 10^21.
	base, _ := new(big.Int).SetString("1000000000000000000000", 10)
	if paid.Cmp(base) >= 0 {
		t.Errorf("stHEIST price %s should be below the HEIST base %s", paid, base)
	}
	if paid.Sign() <= 0 {
		t.Errorf("purchase should cost something, paid %s", paid)
	}
}
