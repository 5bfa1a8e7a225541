package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Calcifer1001/heist/internal/event"
	"github.com/Calcifer1001/heist/internal/fixedpoint"
	"github.com/Calcifer1001/heist/internal/ledger"
	"github.com/Calcifer1001/heist/internal/observability"
	"github.com/Calcifer1001/heist/internal/oracle"
)

// InitialBalance is the registration grant for the primary token:
// 100,000,000 HEIST at 18 decimals.
var InitialBalance = mustBig("100000000000000000000000000")

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big.Int literal: " + s)
	}
	return v
}

// Output is what one applied op hands to the persistence worker
type Output struct {
	Record *event.Record
}

// Ledger is the single aggregate holding all contract state: balances,
// prices, bets, the registry and the word allowances. Every mutation
// runs under one mutex, journals an op record and hands it to the
// persist channel before returning, so the op log always reaches the
// sequence the caller observed.
type Ledger struct {
	mu sync.Mutex

	owner     ledger.AccountID
	book      *ledger.BalanceBook
	transfers *ledger.TransferEngine
	prices    *oracle.State

	bets       map[ledger.AccountID]Bet
	registry   []string
	allowances map[ledger.AccountID]int
	catalog    []string

	sequence int64

	persistChan chan<- Output
	metrics     *observability.Metrics
	log         zerolog.Logger
}

// Config carries everything the aggregate needs at construction
type Config struct {
	// Owner is the privileged account; it publishes prices, advances the
	// synthetic price and is balance-exempt in transfers
	Owner string

	// WordCatalog is the fixed ordered list of purchasable words;
	// nil means DefaultWords
	WordCatalog []string

	// PersistChan receives one Output per applied op; nil disables
	// journal emission (tests, replay)
	PersistChan chan<- Output

	Metrics *observability.Metrics
	Logger  zerolog.Logger
}

func New(cfg Config) *Ledger {
	owner := ledger.AccountID(cfg.Owner)
	book := ledger.NewBalanceBook()
	catalog := cfg.WordCatalog
	if catalog == nil {
		catalog = DefaultWords
	}

	return &Ledger{
		owner:       owner,
		book:        book,
		transfers:   ledger.NewTransferEngine(owner, book),
		prices:      oracle.New(),
		bets:        make(map[ledger.AccountID]Bet),
		allowances:  make(map[ledger.AccountID]int),
		catalog:     catalog,
		persistChan: cfg.PersistChan,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
	}
}

func (l *Ledger) Owner() string {
	return string(l.owner)
}

// assertOwner gates owner-only operations. It runs before any other
// side effect so a rejected call mutates nothing.
func (l *Ledger) assertOwner(caller ledger.AccountID) error {
	if caller != l.owner {
		return fmt.Errorf("%w: %s", ledger.ErrUnauthorized, caller)
	}
	return nil
}

// ============================================================================
// Registration
// ============================================================================

// Register grants the caller a fresh initial balance in the chosen token
// and appends the caller to the registry. The grant for stHEIST shrinks
// as the synthetic price grows. Re-registering overwrites the balance
// with a fresh grant rather than adding to it.
func (l *Ledger) Register(caller string, token ledger.TokenKind) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := time.Now()

	grant := l.applyRegister(ledger.AccountID(caller), token)

	if err := l.journal(event.OpTypeRegister, caller, event.RegisterPayload{Token: uint8(token)}); err != nil {
		return nil, err
	}
	l.finishOp(event.OpTypeRegister, start)

	l.log.Info().
		Str("account", caller).
		Stringer("token", token).
		Str("grant", grant.String()).
		Msg("account registered")

	return grant, nil
}

func (l *Ledger) applyRegister(account ledger.AccountID, token ledger.TokenKind) *big.Int {
	grant := new(big.Int).Set(InitialBalance)
	if token == ledger.TokenStHeist {
		grant = fixedpoint.ScaleBySynthetic(InitialBalance, l.prices.SyntheticPrice())
	}

	l.registry = append(l.registry, string(account))
	l.book.Set(account, token, grant)

	if l.metrics != nil {
		l.metrics.RegisteredAccounts.Set(float64(len(l.registry)))
	}
	return grant
}

// RegisteredCount reports registrations, re-registrations included
func (l *Ledger) RegisteredCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.registry)
}

// ============================================================================
// Prices
// ============================================================================

// SetPrice publishes an asset price. Owner only; last write wins.
func (l *Ledger) SetPrice(caller, asset string, price *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := time.Now()

	if err := l.assertOwner(ledger.AccountID(caller)); err != nil {
		l.reject(event.OpTypeSetPrice, "unauthorized")
		return err
	}
	if asset == "" {
		l.reject(event.OpTypeSetPrice, "invalid_input")
		return fmt.Errorf("%w: empty asset", ledger.ErrInvalidInput)
	}
	if price == nil || price.Sign() < 0 {
		l.reject(event.OpTypeSetPrice, "invalid_input")
		return fmt.Errorf("%w: price must be a non-negative integer", ledger.ErrInvalidInput)
	}

	l.applySetPrice(asset, price)

	if err := l.journal(event.OpTypeSetPrice, caller, event.SetPricePayload{
		Asset: asset,
		Price: price.String(),
	}); err != nil {
		return err
	}
	l.finishOp(event.OpTypeSetPrice, start)

	l.log.Debug().Str("asset", asset).Str("price", price.String()).Msg("price published")
	return nil
}

func (l *Ledger) applySetPrice(asset string, price *big.Int) {
	l.prices.SetPrice(asset, price)
	if l.metrics != nil {
		l.metrics.TrackedAssets.Set(float64(len(l.prices.Prices())))
	}
}

// Price returns the last published price for an asset
func (l *Ledger) Price(asset string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	price, ok := l.prices.Price(asset)
	if !ok {
		return nil, fmt.Errorf("%w: no published price for asset %s", ledger.ErrNotFound, asset)
	}
	return price, nil
}

// CurrentPrices lists every tracked asset sorted by symbol
func (l *Ledger) CurrentPrices() []oracle.AssetPrice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prices.Prices()
}

// SyntheticPrice returns the current stHEIST price
func (l *Ledger) SyntheticPrice() *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prices.SyntheticPrice()
}

// AdvanceSyntheticPrice moves the stHEIST price one epoch forward.
// Owner only; the price is strictly increasing.
func (l *Ledger) AdvanceSyntheticPrice(caller string) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := time.Now()

	if err := l.assertOwner(ledger.AccountID(caller)); err != nil {
		l.reject(event.OpTypeAdvanceEpoch, "unauthorized")
		return nil, err
	}

	price := l.applyAdvanceEpoch()

	if err := l.journal(event.OpTypeAdvanceEpoch, caller, event.AdvanceEpochPayload{}); err != nil {
		return nil, err
	}
	l.finishOp(event.OpTypeAdvanceEpoch, start)

	l.log.Debug().Str("price", price.String()).Msg("synthetic price advanced")
	return price, nil
}

func (l *Ledger) applyAdvanceEpoch() *big.Int {
	price := l.prices.AdvanceEpoch()
	if l.metrics != nil {
		f, _ := new(big.Float).SetInt(price).Float64()
		l.metrics.SyntheticPrice.Set(f)
	}
	return price
}

// ============================================================================
// Balances
// ============================================================================

// Balance returns the stored balance for (account, token). An account
// that never held the token is NotFound, not zero.
func (l *Ledger) Balance(account string, token ledger.TokenKind) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	balance, ok := l.book.Balance(ledger.AccountID(account), token)
	if !ok {
		return nil, fmt.Errorf("%w: account %s has no %s balance", ledger.ErrNotFound, account, token)
	}
	return balance, nil
}

// ============================================================================
// Journal & metrics
// ============================================================================

// journal assigns the next sequence and hands the record to the persist
// channel. The send blocks when the persistence worker falls behind, so
// no applied op is ever lost.
func (l *Ledger) journal(opType event.OpType, caller string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", opType, err)
	}

	l.sequence++
	rec := &event.Record{
		Sequence:  l.sequence,
		OpType:    opType,
		Caller:    caller,
		Payload:   raw,
		Timestamp: time.Now().UTC(),
	}

	if l.persistChan != nil {
		select {
		case l.persistChan <- Output{Record: rec}:
		default:
			if l.metrics != nil {
				l.metrics.PersistBackpressure.Inc()
			}
			l.persistChan <- Output{Record: rec}
		}
	}
	return nil
}

func (l *Ledger) finishOp(opType event.OpType, start time.Time) {
	if l.metrics == nil {
		return
	}
	name := opType.String()
	l.metrics.OpsApplied.WithLabelValues(name).Inc()
	l.metrics.OpDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	l.metrics.Sequence.Set(float64(l.sequence))
}

func (l *Ledger) reject(opType event.OpType, reason string) {
	if l.metrics != nil {
		l.metrics.OpsRejected.WithLabelValues(opType.String(), reason).Inc()
	}
}

// rejectReason maps a domain error to a stable metric label
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ledger.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrNoOpenBet):
		return "no_open_bet"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInvalidToken), errors.Is(err, ledger.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

// Sequence returns the last assigned op sequence
func (l *Ledger) Sequence() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sequence
}

// ============================================================================
// Replay
// ============================================================================

// Apply replays one op record from the log. Mutations skip validation
// that already passed when the op was journaled; a record that fails to
// decode or apply means the log is corrupt and recovery must stop.
func (l *Ledger) Apply(rec *event.Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller := ledger.AccountID(rec.Caller)

	switch rec.OpType {
	case event.OpTypeRegister:
		var p event.RegisterPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("seq %d: decode register: %w", rec.Sequence, err)
		}
		token, err := ledger.ParseTokenKind(int(p.Token))
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}
		l.applyRegister(caller, token)

	case event.OpTypeSetPrice:
		var p event.SetPricePayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("seq %d: decode set_price: %w", rec.Sequence, err)
		}
		price, ok := new(big.Int).SetString(p.Price, 10)
		if !ok {
			return fmt.Errorf("seq %d: corrupt price %q", rec.Sequence, p.Price)
		}
		l.applySetPrice(p.Asset, price)

	case event.OpTypePlaceBet:
		var p event.PlaceBetPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("seq %d: decode place_bet: %w", rec.Sequence, err)
		}
		token, err := ledger.ParseTokenKind(int(p.Token))
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}
		amount, ok := new(big.Int).SetString(p.Amount, 10)
		if !ok {
			return fmt.Errorf("seq %d: corrupt amount %q", rec.Sequence, p.Amount)
		}
		direction, err := ParseDirection(p.Direction)
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}
		if err := l.applyPlaceBet(caller, p.Asset, token, amount, direction); err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}

	case event.OpTypeCloseBet:
		if _, err := l.applyCloseBet(caller); err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}

	case event.OpTypeAdvanceEpoch:
		l.applyAdvanceEpoch()

	case event.OpTypeBuyWord:
		var p event.BuyWordPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("seq %d: decode buy_word: %w", rec.Sequence, err)
		}
		token, err := ledger.ParseTokenKind(int(p.Token))
		if err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}
		if err := l.applyBuyWord(caller, token); err != nil {
			return fmt.Errorf("seq %d: %w", rec.Sequence, err)
		}

	default:
		return fmt.Errorf("seq %d: unknown op type %d", rec.Sequence, rec.OpType)
	}

	l.sequence = rec.Sequence
	if l.metrics != nil {
		l.metrics.ReplayOpsTotal.Inc()
	}
	return nil
}

// ============================================================================
// Snapshot & restore
// ============================================================================

// BetSnapshot is the serializable form of one open bet
type BetSnapshot struct {
	Asset       string `json:"asset"`
	EntryPrice  string `json:"entry_price"`
	StakeToken  uint8  `json:"stake_token"`
	StakeAmount string `json:"stake_amount"`
	Direction   string `json:"direction"`
}

// SnapshotState captures the full aggregate for persistence
type SnapshotState struct {
	Sequence        int64                  `json:"sequence"`
	HeistBalances   map[string]string      `json:"heist_balances"`
	StheistBalances map[string]string      `json:"stheist_balances"`
	Prices          map[string]string      `json:"prices"`
	SyntheticPrice  string                 `json:"synthetic_price"`
	Bets            map[string]BetSnapshot `json:"bets"`
	Registry        []string               `json:"registry"`
	WordAllowances  map[string]int         `json:"word_allowances"`
}

// CreateSnapshotState captures the current in-memory state
func (l *Ledger) CreateSnapshotState() *SnapshotState {
	l.mu.Lock()
	defer l.mu.Unlock()

	prices, synthetic := l.prices.Snapshot()

	bets := make(map[string]BetSnapshot, len(l.bets))
	for account, bet := range l.bets {
		bets[string(account)] = BetSnapshot{
			Asset:       bet.Asset,
			EntryPrice:  bet.EntryPrice.String(),
			StakeToken:  uint8(bet.StakeToken),
			StakeAmount: bet.StakeAmount.String(),
			Direction:   bet.Direction.String(),
		}
	}

	allowances := make(map[string]int, len(l.allowances))
	for account, n := range l.allowances {
		allowances[string(account)] = n
	}

	registry := make([]string, len(l.registry))
	copy(registry, l.registry)

	return &SnapshotState{
		Sequence:        l.sequence,
		HeistBalances:   l.book.Snapshot(ledger.TokenHeist),
		StheistBalances: l.book.Snapshot(ledger.TokenStHeist),
		Prices:          prices,
		SyntheticPrice:  synthetic,
		Bets:            bets,
		Registry:        registry,
		WordAllowances:  allowances,
	}
}

// RestoreFromSnapshot replaces the aggregate state. Used once on warm
// restart before op replay; not safe to call on a live ledger.
func (l *Ledger) RestoreFromSnapshot(snap *SnapshotState) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.book.Restore(ledger.TokenHeist, snap.HeistBalances); err != nil {
		return err
	}
	if err := l.book.Restore(ledger.TokenStHeist, snap.StheistBalances); err != nil {
		return err
	}
	if err := l.prices.Restore(snap.Prices, snap.SyntheticPrice); err != nil {
		return err
	}

	bets := make(map[ledger.AccountID]Bet, len(snap.Bets))
	for account, bs := range snap.Bets {
		entry, ok := new(big.Int).SetString(bs.EntryPrice, 10)
		if !ok {
			return fmt.Errorf("corrupt entry price for %s: %q", account, bs.EntryPrice)
		}
		stake, ok := new(big.Int).SetString(bs.StakeAmount, 10)
		if !ok {
			return fmt.Errorf("corrupt stake for %s: %q", account, bs.StakeAmount)
		}
		token, err := ledger.ParseTokenKind(int(bs.StakeToken))
		if err != nil {
			return fmt.Errorf("corrupt stake token for %s: %w", account, err)
		}
		direction, err := ParseDirection(bs.Direction)
		if err != nil {
			return fmt.Errorf("corrupt direction for %s: %w", account, err)
		}
		bets[ledger.AccountID(account)] = Bet{
			Asset:       bs.Asset,
			EntryPrice:  entry,
			StakeToken:  token,
			StakeAmount: stake,
			Direction:   direction,
		}
	}
	l.bets = bets

	allowances := make(map[ledger.AccountID]int, len(snap.WordAllowances))
	for account, n := range snap.WordAllowances {
		allowances[ledger.AccountID(account)] = n
	}
	l.allowances = allowances

	l.registry = make([]string, len(snap.Registry))
	copy(l.registry, snap.Registry)

	l.sequence = snap.Sequence

	if l.metrics != nil {
		l.metrics.Sequence.Set(float64(l.sequence))
		l.metrics.OpenBets.Set(float64(len(l.bets)))
		l.metrics.RegisteredAccounts.Set(float64(len(l.registry)))
	}
	return nil
}
