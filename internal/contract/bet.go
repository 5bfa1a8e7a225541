package contract

import (
	"fmt"
	"math/big"
	"time"

	"github.com/Calcifer1001/heist/internal/event"
	"github.com/Calcifer1001/heist/internal/fixedpoint"
	"github.com/Calcifer1001/heist/internal/ledger"
)

// Direction is the side of a bet
type Direction uint8

const (
	Long Direction = iota
	Short
)

func (d Direction) String() string {
	if d == Short {
		return "short"
	}
	return "long"
}

// ParseDirection accepts the two wire forms "long" and "short"
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "long":
		return Long, nil
	case "short":
		return Short, nil
	default:
		return 0, fmt.Errorf("%w: direction %q", ledger.ErrInvalidInput, s)
	}
}

// Bet is the single open position an account may hold. The entry price
// is captured at open time; settlement compares it against the asset's
// price at close time.
type Bet struct {
	Asset       string
	EntryPrice  *big.Int
	StakeToken  ledger.TokenKind
	StakeAmount *big.Int
	Direction   Direction
}

// PlaceBet opens a bet: the stake moves from the caller to the owner and
// a Bet record is stored. An existing bet is overwritten unconditionally;
// its stake is not refunded.
func (l *Ledger) PlaceBet(caller, asset string, token ledger.TokenKind, amount *big.Int, direction Direction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := time.Now()

	if err := l.applyPlaceBet(ledger.AccountID(caller), asset, token, amount, direction); err != nil {
		l.reject(event.OpTypePlaceBet, rejectReason(err))
		return err
	}

	if err := l.journal(event.OpTypePlaceBet, caller, event.PlaceBetPayload{
		Asset:     asset,
		Token:     uint8(token),
		Amount:    amount.String(),
		Direction: direction.String(),
	}); err != nil {
		return err
	}
	l.finishOp(event.OpTypePlaceBet, start)

	l.log.Info().
		Str("account", caller).
		Str("asset", asset).
		Str("stake", amount.String()).
		Stringer("direction", direction).
		Msg("bet opened")
	return nil
}

func (l *Ledger) applyPlaceBet(account ledger.AccountID, asset string, token ledger.TokenKind, amount *big.Int, direction Direction) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: stake must be a non-negative integer", ledger.ErrInvalidInput)
	}

	// The entry price must exist before the stake moves so a failed open
	// leaves no partial state.
	entry, ok := l.prices.Price(asset)
	if !ok {
		return fmt.Errorf("%w: no published price for asset %s", ledger.ErrNotFound, asset)
	}

	if err := l.transfers.Transfer(account, l.owner, token, amount); err != nil {
		return err
	}

	l.bets[account] = Bet{
		Asset:       asset,
		EntryPrice:  entry,
		StakeToken:  token,
		StakeAmount: new(big.Int).Set(amount),
		Direction:   direction,
	}
	if l.metrics != nil {
		l.metrics.OpenBets.Set(float64(len(l.bets)))
	}
	return nil
}

// CloseBet settles the caller's open bet and returns the payout. The bet
// record is removed before the price read, so a close that fails on a
// missing or zero price destroys the bet without payout. That matches the
// deployed contract and is deliberate.
func (l *Ledger) CloseBet(caller string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := time.Now()

	payout, err := l.applyCloseBet(ledger.AccountID(caller))
	if err != nil {
		l.reject(event.OpTypeCloseBet, rejectReason(err))
		return nil, err
	}

	if err := l.journal(event.OpTypeCloseBet, caller, event.CloseBetPayload{}); err != nil {
		return nil, err
	}
	l.finishOp(event.OpTypeCloseBet, start)

	l.log.Info().
		Str("account", caller).
		Str("payout", payout.String()).
		Msg("bet closed")
	return payout, nil
}

func (l *Ledger) applyCloseBet(account ledger.AccountID) (*big.Int, error) {
	bet, ok := l.bets[account]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ledger.ErrNoOpenBet, account)
	}

	delete(l.bets, account)
	if l.metrics != nil {
		l.metrics.OpenBets.Set(float64(len(l.bets)))
	}

	current, ok := l.prices.Price(bet.Asset)
	if !ok {
		return nil, fmt.Errorf("%w: no published price for asset %s", ledger.ErrNotFound, bet.Asset)
	}

	var num, den *big.Int
	if bet.Direction == Long {
		num, den = current, bet.EntryPrice
	} else {
		num, den = bet.EntryPrice, current
	}
	if den.Sign() == 0 {
		return nil, fmt.Errorf("%w: settlement price for %s is zero", ledger.ErrInvalidInput, bet.Asset)
	}

	multiplier := fixedpoint.TruncatedRatio(num, den)
	payout := new(big.Int).Mul(bet.StakeAmount, multiplier)

	// Owner pays out, so this transfer cannot fail on balance.
	if err := l.transfers.Transfer(l.owner, account, bet.StakeToken, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

// Bet returns the open bet for an account
func (l *Ledger) Bet(account string) (Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	bet, ok := l.bets[ledger.AccountID(account)]
	if !ok {
		return Bet{}, fmt.Errorf("%w: account %s", ledger.ErrNoOpenBet, account)
	}
	return Bet{
		Asset:       bet.Asset,
		EntryPrice:  new(big.Int).Set(bet.EntryPrice),
		StakeToken:  bet.StakeToken,
		StakeAmount: new(big.Int).Set(bet.StakeAmount),
		Direction:   bet.Direction,
	}, nil
}
