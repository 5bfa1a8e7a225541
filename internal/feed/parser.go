package feed

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// PriceUpdate is one asset price published by the owner bot. The price
// travels as a decimal string because values at 10^12 scale exceed what
// JSON numbers round-trip safely.
type PriceUpdate struct {
	Asset string
	Price *big.Int
}

// EpochAdvance is one synthetic price step
type EpochAdvance struct{}

type priceUpdateJSON struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

// ParsePriceUpdate decodes a heist.prices.> payload
func ParsePriceUpdate(data []byte) (*PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse price update: %w", err)
	}
	if j.Asset == "" {
		return nil, fmt.Errorf("parse price update: missing asset")
	}
	price, ok := new(big.Int).SetString(j.Price, 10)
	if !ok || price.Sign() < 0 {
		return nil, fmt.Errorf("parse price update: bad price %q", j.Price)
	}
	return &PriceUpdate{Asset: j.Asset, Price: price}, nil
}

// ParseEpochAdvance decodes a heist.epochs.> payload. The body carries
// no information; it only has to be valid JSON or empty.
func ParseEpochAdvance(data []byte) (*EpochAdvance, error) {
	if len(data) == 0 {
		return &EpochAdvance{}, nil
	}
	var j map[string]interface{}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse epoch advance: %w", err)
	}
	return &EpochAdvance{}, nil
}

// IsPriceSubject reports whether a subject belongs to the price surface
func IsPriceSubject(subject string) bool {
	return strings.HasPrefix(subject, "heist.prices.")
}

// IsEpochSubject reports whether a subject belongs to the epoch surface
func IsEpochSubject(subject string) bool {
	return strings.HasPrefix(subject, "heist.epochs.")
}
