package oracle

import (
	"math/big"
	"sort"

	"github.com/Calcifer1001/heist/internal/fixedpoint"
)

// AssetPrice pairs an asset symbol with its last published price
type AssetPrice struct {
	Asset string
	Price *big.Int
}

// State holds the last published price per asset plus the stHEIST
// synthetic price. Last write wins; there is no price history here,
// history lives in the op log.
type State struct {
	prices    map[string]*big.Int
	synthetic *big.Int
}

func New() *State {
	return &State{
		prices:    make(map[string]*big.Int),
		synthetic: new(big.Int).Set(fixedpoint.SyntheticScale),
	}
}

// SetPrice overwrites the price for an asset, creating it on first write
func (s *State) SetPrice(asset string, price *big.Int) {
	s.prices[asset] = new(big.Int).Set(price)
}

// Price returns a copy of the asset's last published price
func (s *State) Price(asset string) (*big.Int, bool) {
	stored, ok := s.prices[asset]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(stored), true
}

// Prices returns every tracked asset sorted by symbol for stable output
func (s *State) Prices() []AssetPrice {
	out := make([]AssetPrice, 0, len(s.prices))
	for asset, price := range s.prices {
		out = append(out, AssetPrice{Asset: asset, Price: new(big.Int).Set(price)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out
}

// SyntheticPrice returns a copy of the current stHEIST price
func (s *State) SyntheticPrice() *big.Int {
	return new(big.Int).Set(s.synthetic)
}

// AdvanceEpoch moves the stHEIST price forward one epoch and returns the
// new price. The multiplier exceeds one, so the price never decreases.
func (s *State) AdvanceEpoch() *big.Int {
	s.synthetic = fixedpoint.AdvanceSynthetic(s.synthetic)
	return new(big.Int).Set(s.synthetic)
}

// Snapshot returns the full oracle state as decimal strings
func (s *State) Snapshot() (prices map[string]string, synthetic string) {
	prices = make(map[string]string, len(s.prices))
	for asset, price := range s.prices {
		prices[asset] = price.String()
	}
	return prices, s.synthetic.String()
}

// Restore replaces the oracle state from decimal strings
func (s *State) Restore(prices map[string]string, synthetic string) error {
	fresh := make(map[string]*big.Int, len(prices))
	for asset, raw := range prices {
		v, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return &CorruptPriceError{Asset: asset, Value: raw}
		}
		fresh[asset] = v
	}
	syn, ok := new(big.Int).SetString(synthetic, 10)
	if !ok {
		return &CorruptPriceError{Asset: "stHEIST", Value: synthetic}
	}
	s.prices = fresh
	s.synthetic = syn
	return nil
}

// CorruptPriceError reports an unparseable price in persisted state
type CorruptPriceError struct {
	Asset string
	Value string
}

func (e *CorruptPriceError) Error() string {
	return "corrupt price for asset " + e.Asset + ": " + e.Value
}
