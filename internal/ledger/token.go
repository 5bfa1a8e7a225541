package ledger

import "fmt"

// TokenKind selects one of the two balance denominations tracked per account.
type TokenKind uint8

const (
	// TokenHeist is the primary token.
	TokenHeist TokenKind = 0
	// TokenStHeist is the yield-bearing synthetic token. Its internal price
	// advances on a fixed multiplier each epoch and scales registration
	// grants and word prices.
	TokenStHeist TokenKind = 1
)

func (tk TokenKind) String() string {
	switch tk {
	case TokenHeist:
		return "HEIST"
	case TokenStHeist:
		return "stHEIST"
	default:
		return "unknown"
	}
}

// ParseTokenKind validates a caller-supplied token id. Anything outside
// {0, 1} is an invalid-input error, never a silent default.
func ParseTokenKind(id int) (TokenKind, error) {
	switch id {
	case 0:
		return TokenHeist, nil
	case 1:
		return TokenStHeist, nil
	default:
		return 0, fmt.Errorf("%w: token id %d", ErrInvalidToken, id)
	}
}
