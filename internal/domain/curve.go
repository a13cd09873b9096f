package domain

import (
	"math/big"

	"github.com/pkg/errors"
)

// CurveState is one linear bonding curve instance. Prices are wei-scaled
// (1e18 fixed point) per whole token; TokensSold and AvailableSupply are
// whole-token counts. The invariant maintained by Apply operations:
//
//	currentPrice = BasePrice + Slope*TokensSold
//	ReserveQuote = BasePrice*TokensSold + Slope*TokensSold^2/2 (+rounding)
type CurveState struct {
	// BasePrice price of the first unit, in wei per token.
	BasePrice *big.Int
	// Slope price increase per token sold, in wei per token. Always positive.
	Slope *big.Int
	// TokensSold cumulative tokens sold on the curve.
	TokensSold *big.Int
	// ReserveQuote quote asset held by the curve, mirrors cumulative net proceeds.
	ReserveQuote *big.Int
	// AvailableSupply maximum TokensSold the curve will ever reach.
	AvailableSupply *big.Int
	// Version increments on every committed state transition.
	Version uint64
}

// NewCurveState validates curve parameters at deployment. A zero or negative
// slope is rejected: the price monotonicity guarantee depends on it.
func NewCurveState(basePrice, slope, availableSupply *big.Int) (*CurveState, error) {
	if basePrice == nil || basePrice.Sign() < 0 {
		return nil, errors.New("base price must be non-negative")
	}
	if slope == nil || slope.Sign() <= 0 {
		return nil, errors.New("slope must be positive")
	}
	if availableSupply == nil || availableSupply.Sign() <= 0 {
		return nil, errors.New("available supply must be positive")
	}

	return &CurveState{
		BasePrice:       new(big.Int).Set(basePrice),
		Slope:           new(big.Int).Set(slope),
		TokensSold:      new(big.Int),
		ReserveQuote:    new(big.Int),
		AvailableSupply: new(big.Int).Set(availableSupply),
	}, nil
}

// CurrentPrice returns BasePrice + Slope*TokensSold.
func (c *CurveState) CurrentPrice() *big.Int {
	price := new(big.Int).Mul(c.Slope, c.TokensSold)
	return price.Add(price, c.BasePrice)
}

// Remaining returns how many tokens the curve can still sell.
func (c *CurveState) Remaining() *big.Int {
	return new(big.Int).Sub(c.AvailableSupply, c.TokensSold)
}

// Clone returns a deep copy. Apply operations never mutate their input, so
// readers always observe a committed state.
func (c *CurveState) Clone() *CurveState {
	return &CurveState{
		BasePrice:       new(big.Int).Set(c.BasePrice),
		Slope:           new(big.Int).Set(c.Slope),
		TokensSold:      new(big.Int).Set(c.TokensSold),
		ReserveQuote:    new(big.Int).Set(c.ReserveQuote),
		AvailableSupply: new(big.Int).Set(c.AvailableSupply),
		Version:         c.Version,
	}
}
