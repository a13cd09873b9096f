// Package domain defines the core data structures of the pricing and
// settlement core.
package domain

import "fmt"

// Asset is a tradable asset. Native assets are paid directly with the
// settlement transaction and never require a spender authorization.
type Asset struct {
	// Symbol asset ticker, e.g. "M" or "WIKI".
	Symbol string
	// Native true when the asset is the chain's native coin rather than a token.
	Native bool
	// Decimals scaling between core amounts and chain units. Curve-priced
	// tokens are counted in whole tokens (Decimals 18); wei-denominated
	// assets carry 0 because core amounts are already the smallest unit.
	Decimals int
}

// Pair is a base/quote asset pair. Base is the curve-priced token, Quote is
// the asset the curve or pool is denominated in.
type Pair struct {
	Base  Asset
	Quote Asset
}

// String returns the string representation.
func (p Pair) String() string {
	return fmt.Sprintf("%s_%s", p.Base.Symbol, p.Quote.Symbol)
}
