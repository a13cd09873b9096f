// Package quote computes advisory trade quotes from bonding curve state or
// AMM pool reserves.
package quote

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/memekipedia/tradecore/internal/curve"
	"github.com/memekipedia/tradecore/internal/domain"
)

const (
	bpsDenominator = 10_000
	// DefaultFeeBps the pool swap fee, 0.30% as charged by the MemeSwap pair.
	DefaultFeeBps = 30

	weiDecimals = 18
)

// Engine produces quotes from a pricing source. Quotes are stateless and
// advisory: executors must recompute them against committed state immediately
// before submission, never reuse one across state changes.
type Engine struct {
	feeBps int64
}

// NewEngine creates a quote engine with the given AMM fee. Non-positive fee
// falls back to the default.
func NewEngine(feeBps int64) *Engine {
	if feeBps <= 0 || feeBps >= bpsDenominator {
		feeBps = DefaultFeeBps
	}
	return &Engine{feeBps: feeBps}
}

// BuyQuote computes the cost of acquiring amountOut tokens from the source.
func (e *Engine) BuyQuote(src Source, amountOut *big.Int) (domain.Quote, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return domain.Quote{}, domain.ErrInvalidAmount
	}

	switch src.kind {
	case domain.SourcePool:
		if src.pool == nil {
			return domain.Quote{}, domain.ErrPoolNotFound
		}
		amountIn, err := e.poolAmountIn(src.pool.ReserveQuote, src.pool.ReserveBase, amountOut)
		if err != nil {
			return domain.Quote{}, err
		}
		return newQuote(domain.ModeBuy, domain.SourcePool, amountOut, amountIn, src.pool.Block), nil

	default:
		if src.curve == nil {
			return domain.Quote{}, domain.ErrCurveNotSet
		}
		if amountOut.Cmp(src.curve.Remaining()) > 0 {
			return domain.Quote{}, domain.ErrAmountTooLarge
		}
		cost, err := curve.QuoteBuy(src.curve, amountOut)
		if err != nil {
			return domain.Quote{}, err
		}
		return newQuote(domain.ModeBuy, domain.SourceCurve, amountOut, cost, src.curve.Version), nil
	}
}

// SellQuote computes the proceeds of selling amountIn tokens to the source.
func (e *Engine) SellQuote(src Source, amountIn *big.Int) (domain.Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return domain.Quote{}, domain.ErrInvalidAmount
	}

	switch src.kind {
	case domain.SourcePool:
		if src.pool == nil {
			return domain.Quote{}, domain.ErrPoolNotFound
		}
		amountOut, err := e.poolAmountOut(src.pool.ReserveBase, src.pool.ReserveQuote, amountIn)
		if err != nil {
			return domain.Quote{}, err
		}
		return newQuote(domain.ModeSell, domain.SourcePool, amountIn, amountOut, src.pool.Block), nil

	default:
		if src.curve == nil {
			return domain.Quote{}, domain.ErrCurveNotSet
		}
		proceeds, err := curve.QuoteSell(src.curve, amountIn)
		if err != nil {
			return domain.Quote{}, err
		}
		return newQuote(domain.ModeSell, domain.SourceCurve, amountIn, proceeds, src.curve.Version), nil
	}
}

// poolAmountIn is the constant-product input formula, fee on the input side:
//
//	amountIn = reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-fee)) + 1
func (e *Engine) poolAmountIn(reserveIn, reserveOut, amountOut *big.Int) (*big.Int, error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, domain.ErrZeroLiquidity
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, domain.ErrAmountTooLarge
	}

	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, big.NewInt(bpsDenominator))

	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(bpsDenominator-e.feeBps))

	amountIn := numerator.Div(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1)), nil
}

// poolAmountOut is the constant-product output formula:
//
//	amountOut = amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee))
func (e *Engine) poolAmountOut(reserveIn, reserveOut, amountIn *big.Int) (*big.Int, error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, domain.ErrZeroLiquidity
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(bpsDenominator-e.feeBps))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenominator))
	denominator.Add(denominator, inWithFee)

	return numerator.Div(numerator, denominator), nil
}

func newQuote(mode domain.Mode, kind domain.SourceKind, specified, counter *big.Int, validAt uint64) domain.Quote {
	price := decimal.NewFromBigInt(counter, -weiDecimals).
		Div(decimal.NewFromBigInt(specified, 0))

	return domain.Quote{
		Mode:            mode,
		Source:          kind,
		AmountSpecified: new(big.Int).Set(specified),
		CounterAmount:   counter,
		PricePerUnit:    price,
		ValidAt:         validAt,
	}
}
