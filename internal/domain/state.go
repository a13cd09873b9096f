package domain

import "math/big"

// TradeState is the lifecycle state of an executing trade.
type TradeState int

const (
	// TradeStateQuoted intent validated against a fresh quote, not yet submitted.
	TradeStateQuoted TradeState = iota
	// TradeStateAuthorizationPending waiting for spender authorization confirmation.
	TradeStateAuthorizationPending
	// TradeStateSubmitted accepted by the settlement layer, awaiting finality.
	TradeStateSubmitted
	// TradeStateConfirmed settled; local curve mirror updated.
	TradeStateConfirmed
	// TradeStateFailed terminally failed. When the failure is a confirmation
	// timeout the underlying submission may still have landed.
	TradeStateFailed
	// TradeStateExpired deadline elapsed before submission; nothing was sent.
	TradeStateExpired
)

// String returns the string representation of the trade state.
func (s TradeState) String() string {
	switch s {
	case TradeStateQuoted:
		return "quoted"
	case TradeStateAuthorizationPending:
		return "authorization_pending"
	case TradeStateSubmitted:
		return "submitted"
	case TradeStateConfirmed:
		return "confirmed"
	case TradeStateFailed:
		return "failed"
	case TradeStateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends the trade lifecycle.
func (s TradeState) Terminal() bool {
	return s == TradeStateConfirmed || s == TradeStateFailed || s == TradeStateExpired
}

// TradeResult is the terminal outcome of an Execute call.
type TradeResult struct {
	// IntentID the executed intent.
	IntentID string
	// State terminal lifecycle state.
	State TradeState
	// AmountIn what the participant paid, wei for buys, tokens for sells.
	AmountIn *big.Int
	// AmountOut what the participant received.
	AmountOut *big.Int
	// Ref settlement layer reference (transaction hash or ledger id).
	Ref string
}
