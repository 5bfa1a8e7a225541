package fixedpoint

import "math/big"

// All ledger arithmetic is integer-only with truncating division, so every
// node that replays the op log converges on identical balances.

var (
	// PayoutScale is the fixed-point base for bet settlement multipliers
	PayoutScale = big.NewInt(1_000_000)

	// SyntheticScale is the fixed-point base for the stHEIST price; a price
	// equal to SyntheticScale means 1 stHEIST = 1 HEIST
	SyntheticScale = big.NewInt(1_000_000_000_000)

	// EpochMultiplier over EpochMultiplierBase is the per-epoch growth of
	// the stHEIST price, roughly +0.0125% per epoch
	EpochMultiplier     = big.NewInt(1_000_125_079)
	EpochMultiplierBase = big.NewInt(1_000_000_000)
)

// TruncatedRatio computes num/den as a whole-number multiplier. The ratio
// is scaled up by PayoutScale and scaled back down immediately, both with
// truncating division, so any fractional part below 1 is discarded. The
// intermediate scale-up is kept for settlement parity with the deployed
// contract even though it adds no precision.
func TruncatedRatio(num, den *big.Int) *big.Int {
	scaled := new(big.Int).Mul(num, PayoutScale)
	scaled.Quo(scaled, den)
	return scaled.Quo(scaled, PayoutScale)
}

// MulQuo computes a*b/den with truncation, the shape of every price
// conversion in the ledger.
func MulQuo(a, b, den *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Quo(r, den)
}

// AdvanceSynthetic returns price * EpochMultiplier / EpochMultiplierBase.
// The multiplier exceeds the base, so the price is strictly increasing.
func AdvanceSynthetic(price *big.Int) *big.Int {
	return MulQuo(price, EpochMultiplier, EpochMultiplierBase)
}

// ScaleBySynthetic converts a HEIST-denominated amount into stHEIST at the
// given synthetic price: amount * SyntheticScale / price.
func ScaleBySynthetic(amount, price *big.Int) *big.Int {
	return MulQuo(amount, SyntheticScale, price)
}
