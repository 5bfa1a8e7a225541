package contract_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/Calcifer1001/heist/internal/contract"
	"github.com/Calcifer1001/heist/internal/ledger"
)

// ============================================================================
// Test: direction parsing
// ============================================================================

func TestParseDirection(t *testing.T) {
	if d, err := contract.ParseDirection("long"); err != nil || d != contract.Long {
		t.Errorf("parse long: %v %v", d, err)
	}
	if d, err := contract.ParseDirection("short"); err != nil || d != contract.Short {
		t.Errorf("parse short: %v %v", d, err)
	}
	if _, err := contract.ParseDirection("sideways"); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Errorf("bad direction should be ErrInvalidInput, got %v", err)
	}
}

// ============================================================================
// Test: bet lifecycle
// ============================================================================

// Register, bet long, price doubles, close: the payout is exactly twice
// the stake.
func TestBet_LongPriceDoubles(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(1_000_000_000)); err != nil {
		t.Fatal(err)
	}

	stake := big.NewInt(1000)
	if err := l.PlaceBet("alice", "near", ledger.TokenHeist, stake, contract.Long); err != nil {
		t.Fatalf("place_bet failed: %v", err)
	}

	afterOpen, _ := l.Balance("alice", ledger.TokenHeist)
	wantAfterOpen := new(big.Int).Sub(contract.InitialBalance, stake)
	if afterOpen.Cmp(wantAfterOpen) != 0 {
		t.Errorf("balance after open %s, want %s", afterOpen, wantAfterOpen)
	}

	if err := l.SetPrice("owner", "near", big.NewInt(2_000_000_000)); err != nil {
		t.Fatal(err)
	}

	payout, err := l.CloseBet("alice")
	if err != nil {
		t.Fatalf("close_bet failed: %v", err)
	}
	if payout.Cmp(big.NewInt(2000)) != 0 {
		t.Errorf("payout %s, want 2000", payout)
	}

	afterClose, _ := l.Balance("alice", ledger.TokenHeist)
	wantAfterClose := new(big.Int).Add(wantAfterOpen, big.NewInt(2000))
	if afterClose.Cmp(wantAfterClose) != 0 {
		t.Errorf("balance after close %s, want %s", afterClose, wantAfterClose)
	}
}

// A short bet wins when the price falls: entry/current = 2 at half price.
func TestBet_ShortPriceHalves(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(2_000_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := l.PlaceBet("alice", "near", ledger.TokenHeist, big.NewInt(500), contract.Short); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(1_000_000_000)); err != nil {
		t.Fatal(err)
	}

	payout, err := l.CloseBet("alice")
	if err != nil {
		t.Fatalf("close_bet failed: %v", err)
	}
	if payout.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("payout %s, want 1000", payout)
	}
}

// The multiplier truncates to a whole number, so a losing long bet pays
// zero and a small gain pays exactly the stake.
func TestBet_MultiplierTruncates(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(1_000_000_000)); err != nil {
		t.Fatal(err)
	}
	if err := l.PlaceBet("alice", "near", ledger.TokenHeist, big.NewInt(1000), contract.Long); err != nil {
		t.Fatal(err)
	}

	// +50%: multiplier truncates to 1, payout equals the stake.
	if err := l.SetPrice("owner", "near", big.NewInt(1_500_000_000)); err != nil {
		t.Fatal(err)
	}
	payout, err := l.CloseBet("alice")
	if err != nil {
		t.Fatal(err)
	}
	if payout.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("payout at 1.5x %s, want 1000", payout)
	}

	// -20%: multiplier truncates to 0, the stake is lost entirely.
	if err := l.PlaceBet("alice", "near", ledger.TokenHeist, big.NewInt(1000), contract.Long); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(1_200_000_000)); err != nil {
		t.Fatal(err)
	}
	payout, err = l.CloseBet("alice")
	if err != nil {
		t.Fatal(err)
	}
	if payout.Sign() != 0 {
		t.Errorf("payout on a losing long %s, want 0", payout)
	}
}

func TestBet_OverwriteForfeitsFirstStake(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(100)); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "btc", big.NewInt(200)); err != nil {
		t.Fatal(err)
	}

	if err := l.PlaceBet("alice", "near", ledger.TokenHeist, big.NewInt(1000), contract.Long); err != nil {
		t.Fatal(err)
	}
	if err := l.PlaceBet("alice", "btc", ledger.TokenHeist, big.NewInt(300), contract.Short); err != nil {
		t.Fatal(err)
	}

	// Only the second bet survives; the first stake is gone from the
	// balance and never refunded.
	bet, err := l.Bet("alice")
	if err != nil {
		t.Fatalf("get_bet failed: %v", err)
	}
	if bet.Asset != "btc" || bet.Direction != contract.Short {
		t.Errorf("surviving bet is %s/%s, want btc/short", bet.Asset, bet.Direction)
	}
	if bet.StakeAmount.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("surviving stake %s, want 300", bet.StakeAmount)
	}

	balance, _ := l.Balance("alice", ledger.TokenHeist)
	want := new(big.Int).Sub(contract.InitialBalance, big.NewInt(1300))
	if balance.Cmp(want) != 0 {
		t.Errorf("balance %s, want %s (both stakes debited)", balance, want)
	}
}

func TestBet_OpenWithoutPriceFails(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}

	err := l.PlaceBet("alice", "unlisted", ledger.TokenHeist, big.NewInt(10), contract.Long)
	if !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("bet on an unpublished asset should be ErrNotFound, got %v", err)
	}

	// The failed open must not debit the stake.
	balance, _ := l.Balance("alice", ledger.TokenHeist)
	if balance.Cmp(contract.InitialBalance) != 0 {
		t.Errorf("failed open debited the balance: %s", balance)
	}
}

func TestBet_OpenInsufficientBalance(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(100)); err != nil {
		t.Fatal(err)
	}

	// Staking the entire balance trips the strict balance check.
	err := l.PlaceBet("alice", "near", ledger.TokenHeist, contract.InitialBalance, contract.Long)
	if !errors.Is(err, ledger.ErrInsufficientBalance) {
		t.Fatalf("full-balance stake should be ErrInsufficientBalance, got %v", err)
	}
	if _, err := l.Bet("alice"); !errors.Is(err, ledger.ErrNoOpenBet) {
		t.Error("failed open stored a bet")
	}
}

func TestBet_CloseWithoutBet(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.CloseBet("nobody")
	if !errors.Is(err, ledger.ErrNoOpenBet) {
		t.Errorf("close with no bet should be ErrNoOpenBet, got %v", err)
	}
}

func TestBet_GetBetUnknownAccount(t *testing.T) {
	l := newTestLedger(t)

	_, err := l.Bet("nobody")
	if !errors.Is(err, ledger.ErrNoOpenBet) {
		t.Errorf("get_bet for unknown account should be ErrNoOpenBet, got %v", err)
	}
}

// Closing against a zero settlement price destroys the bet without a
// payout: the record is removed before the price is inspected.
func TestBet_CloseOnZeroPriceDestroysBet(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Register("alice", ledger.TokenHeist); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(1_000)); err != nil {
		t.Fatal(err)
	}
	if err := l.PlaceBet("alice", "near", ledger.TokenHeist, big.NewInt(100), contract.Short); err != nil {
		t.Fatal(err)
	}
	if err := l.SetPrice("owner", "near", big.NewInt(0)); err != nil {
		t.Fatal(err)
	}

	if _, err := l.CloseBet("alice"); !errors.Is(err, ledger.ErrInvalidInput) {
		t.Fatalf("close against a zero price should fail, got %v", err)
	}

	// The bet is gone even though the close failed.
	if _, err := l.Bet("alice"); !errors.Is(err, ledger.ErrNoOpenBet) {
		t.Error("failed close should still have removed the bet")
	}
}
