package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Mode distinguishes the user-specified side of a trade.
type Mode int

const (
	// ModeBuy the user specifies tokens out, the quote computes cost in.
	ModeBuy Mode = iota
	// ModeSell the user specifies tokens in, the quote computes proceeds out.
	ModeSell
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeBuy:
		return "buy"
	case ModeSell:
		return "sell"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode string as used by the HTTP layer.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "buy":
		return ModeBuy, nil
	case "sell":
		return ModeSell, nil
	default:
		return 0, fmt.Errorf("unknown trade mode: %q", s)
	}
}

// SourceKind identifies which pricing mechanism produced a quote.
type SourceKind int

const (
	// SourceCurve bonding curve pricing.
	SourceCurve SourceKind = iota
	// SourcePool constant-product AMM pool pricing.
	SourcePool
)

// String returns the string representation of the source kind.
func (k SourceKind) String() string {
	if k == SourcePool {
		return "pool"
	}
	return "curve"
}

// Quote is an advisory, ephemeral price computation. It never mutates state
// and must be recomputed before every execution.
type Quote struct {
	Mode Mode
	// Source which pricing mechanism produced the quote.
	Source SourceKind
	// AmountSpecified the user-specified side, whole tokens.
	AmountSpecified *big.Int
	// CounterAmount the computed side, wei. Cost for buys, proceeds for sells.
	CounterAmount *big.Int
	// PricePerUnit display-grade average price, quote asset per token.
	PricePerUnit decimal.Decimal
	// ValidAt logical timestamp of the source state the quote was computed
	// against: curve version for curve quotes, block number for pool quotes.
	ValidAt uint64
}

// PoolReserves is a snapshot of a constant-product pool.
type PoolReserves struct {
	// ReserveBase tokens held by the pool.
	ReserveBase *big.Int
	// ReserveQuote quote asset held by the pool, wei.
	ReserveQuote *big.Int
	// Block the block the reserves were read at.
	Block uint64
}
