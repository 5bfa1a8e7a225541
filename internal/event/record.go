package event

import (
	"encoding/json"
	"time"
)

// OpType discriminator for op payloads
type OpType int32

const (
	OpTypeUnknown OpType = iota
	OpTypeRegister
	OpTypeSetPrice
	OpTypePlaceBet
	OpTypeCloseBet
	OpTypeAdvanceEpoch
	OpTypeBuyWord
)

func (ot OpType) String() string {
	switch ot {
	case OpTypeRegister:
		return "Register"
	case OpTypeSetPrice:
		return "SetPrice"
	case OpTypePlaceBet:
		return "PlaceBet"
	case OpTypeCloseBet:
		return "CloseBet"
	case OpTypeAdvanceEpoch:
		return "AdvanceEpoch"
	case OpTypeBuyWord:
		return "BuyWord"
	default:
		return "Unknown"
	}
}

// ParseOpType inverts String for rows read back from the op log
func ParseOpType(s string) OpType {
	switch s {
	case "Register":
		return OpTypeRegister
	case "SetPrice":
		return OpTypeSetPrice
	case "PlaceBet":
		return OpTypePlaceBet
	case "CloseBet":
		return OpTypeCloseBet
	case "AdvanceEpoch":
		return OpTypeAdvanceEpoch
	case "BuyWord":
		return OpTypeBuyWord
	default:
		return OpTypeUnknown
	}
}

// Record is the durable form of one applied state-mutating call. Rejected
// calls are never journaled; replaying the record stream from a snapshot
// reproduces the ledger exactly.
type Record struct {
	// Global monotonic sequence assigned when the op is applied
	Sequence int64

	// Op type discriminator
	OpType OpType

	// Account that made the call (the owner for feed-driven ops)
	Caller string

	// JSON-encoded op-specific data
	Payload json.RawMessage

	// Wall-clock apply time; informational only, replay ignores it
	Timestamp time.Time
}

// === Op payloads ===

// RegisterPayload records which token the grant was issued in
type RegisterPayload struct {
	Token uint8 `json:"token"`
}

// SetPricePayload records an owner price publication
type SetPricePayload struct {
	Asset string `json:"asset"`
	Price string `json:"price"`
}

// PlaceBetPayload records a bet opening; Amount is a decimal string
type PlaceBetPayload struct {
	Asset     string `json:"asset"`
	Token     uint8  `json:"token"`
	Amount    string `json:"amount"`
	Direction string `json:"direction"`
}

// CloseBetPayload records a settlement; the payout is derived, not stored,
// so replay recomputes it from the prices already in the log
type CloseBetPayload struct{}

// AdvanceEpochPayload records one synthetic price step
type AdvanceEpochPayload struct{}

// BuyWordPayload records which token paid for the word
type BuyWordPayload struct {
	Token uint8 `json:"token"`
}
