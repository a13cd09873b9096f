// Package curve implements deterministic linear bonding curve pricing.
//
// All functions are pure: they never perform I/O and never mutate their
// inputs, so they are safe to call concurrently. Costs and proceeds are the
// definite integral of the price function over the traded range, computed in
// integer arithmetic. Rounding is asymmetric on purpose: buy costs round up
// and sell proceeds round down, so rounding always favors the curve reserve,
// never the trader.
package curve

import (
	"math/big"

	"github.com/memekipedia/tradecore/internal/domain"
)

var two = big.NewInt(2)

// QuoteBuy returns the cost in wei of buying tokensOut tokens:
// the integral of price over [sold, sold+tokensOut], rounded up.
//
//	cost = basePrice*tokensOut + slope*tokensOut*(2*sold+tokensOut)/2
func QuoteBuy(c *domain.CurveState, tokensOut *big.Int) (*big.Int, error) {
	if tokensOut == nil || tokensOut.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	// slope*tokensOut*(2*sold+tokensOut), then halve rounding up
	span := new(big.Int).Mul(two, c.TokensSold)
	span.Add(span, tokensOut)
	slopePart := new(big.Int).Mul(c.Slope, tokensOut)
	slopePart.Mul(slopePart, span)
	slopePart = divCeil(slopePart, two)

	cost := new(big.Int).Mul(c.BasePrice, tokensOut)
	return cost.Add(cost, slopePart), nil
}

// QuoteSell returns the proceeds in wei of selling tokensIn tokens back to
// the curve: the integral of price over [sold-tokensIn, sold], rounded down.
func QuoteSell(c *domain.CurveState, tokensIn *big.Int) (*big.Int, error) {
	if tokensIn == nil || tokensIn.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if tokensIn.Cmp(c.TokensSold) > 0 {
		return nil, domain.ErrInvalidAmount
	}

	// slope*tokensIn*(2*sold-tokensIn), then halve rounding down
	span := new(big.Int).Mul(two, c.TokensSold)
	span.Sub(span, tokensIn)
	slopePart := new(big.Int).Mul(c.Slope, tokensIn)
	slopePart.Mul(slopePart, span)
	slopePart.Div(slopePart, two)

	proceeds := new(big.Int).Mul(c.BasePrice, tokensIn)
	return proceeds.Add(proceeds, slopePart), nil
}

// ApplyBuy commits a confirmed buy: tokensSold grows by tokensOut and the
// reserve grows by cost. Returns a new state, the input is untouched.
func ApplyBuy(c *domain.CurveState, tokensOut, cost *big.Int) (*domain.CurveState, error) {
	if tokensOut == nil || tokensOut.Sign() <= 0 || cost == nil || cost.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}

	sold := new(big.Int).Add(c.TokensSold, tokensOut)
	if sold.Cmp(c.AvailableSupply) > 0 {
		return nil, domain.ErrSupplyExceeded
	}

	next := c.Clone()
	next.TokensSold = sold
	next.ReserveQuote.Add(next.ReserveQuote, cost)
	next.Version++
	return next, nil
}

// ApplySell commits a confirmed sell: tokensSold shrinks by tokensIn and the
// reserve shrinks by proceeds. Returns a new state, the input is untouched.
func ApplySell(c *domain.CurveState, tokensIn, proceeds *big.Int) (*domain.CurveState, error) {
	if tokensIn == nil || tokensIn.Sign() <= 0 || proceeds == nil || proceeds.Sign() < 0 {
		return nil, domain.ErrInvalidAmount
	}
	if tokensIn.Cmp(c.TokensSold) > 0 {
		return nil, domain.ErrInvalidAmount
	}
	if proceeds.Cmp(c.ReserveQuote) > 0 {
		return nil, domain.ErrInsufficientReserve
	}

	next := c.Clone()
	next.TokensSold.Sub(next.TokensSold, tokensIn)
	next.ReserveQuote.Sub(next.ReserveQuote, proceeds)
	next.Version++
	return next, nil
}

func divCeil(x, y *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
