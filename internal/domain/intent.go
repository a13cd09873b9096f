package domain

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

const bpsDenominator = 10_000

// TradeIntent is a request to execute a quote with bounded slippage.
// Execution fails, never silently adjusts, when settlement would violate
// BoundAmount or occur after Deadline.
type TradeIntent struct {
	// ID unique intent identifier, used as the settlement client reference.
	ID string
	// Participant the trading account.
	Participant string
	// Mode buy or sell.
	Mode Mode
	// CurveID target curve for curve-mode trades, empty for pool trades.
	CurveID string
	// Pair traded pair.
	Pair Pair
	// AmountSpecified user-specified side, whole tokens.
	AmountSpecified *big.Int
	// SlippageToleranceBps tolerated deviation from the quoted counter amount.
	SlippageToleranceBps int64
	// BoundAmount max-in for buys, min-out for sells, wei.
	BoundAmount *big.Int
	// Deadline after this instant the intent must not be submitted.
	Deadline time.Time
}

// NewTradeIntent derives the slippage bound from the reference quote:
// counterAmount*(1+tolerance) for buys, counterAmount*(1-tolerance) for sells.
func NewTradeIntent(participant string, quote Quote, curveID string, pair Pair, slippageBps int64, deadline time.Time) *TradeIntent {
	return &TradeIntent{
		ID:                   uuid.NewString(),
		Participant:          participant,
		Mode:                 quote.Mode,
		CurveID:              curveID,
		Pair:                 pair,
		AmountSpecified:      new(big.Int).Set(quote.AmountSpecified),
		SlippageToleranceBps: slippageBps,
		BoundAmount:          SlippageBound(quote.Mode, quote.CounterAmount, slippageBps),
		Deadline:             deadline,
	}
}

// SlippageBound computes the bound amount for a counter amount and tolerance.
func SlippageBound(mode Mode, counterAmount *big.Int, slippageBps int64) *big.Int {
	bound := new(big.Int).Set(counterAmount)
	if mode == ModeBuy {
		bound.Mul(bound, big.NewInt(bpsDenominator+slippageBps))
	} else {
		bound.Mul(bound, big.NewInt(bpsDenominator-slippageBps))
	}
	return bound.Div(bound, big.NewInt(bpsDenominator))
}

// WithinBound reports whether a freshly recomputed counter amount satisfies
// the intent bound.
func (i *TradeIntent) WithinBound(counterAmount *big.Int) bool {
	if i.Mode == ModeBuy {
		return counterAmount.Cmp(i.BoundAmount) <= 0
	}
	return counterAmount.Cmp(i.BoundAmount) >= 0
}
