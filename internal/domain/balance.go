package domain

import (
	"math/big"
	"time"
)

// BalanceSnapshot is a read-only view of both assets of a trade pair for one
// participant. Both balances are refreshed together; if either read fails the
// previous snapshot is returned with Stale set. Stale snapshots are advisory
// only and never authorize a sufficiency check for a new trade.
type BalanceSnapshot struct {
	Participant string
	Pair        Pair
	// Base base asset balance, whole tokens scaled to wei.
	Base *big.Int
	// Quote quote asset balance, wei.
	Quote *big.Int
	// Stale true when the snapshot could not be fully refreshed.
	Stale bool
	// Timestamp when the snapshot was last fully refreshed.
	Timestamp time.Time
}

// Clone returns a deep copy of the snapshot.
func (b *BalanceSnapshot) Clone() *BalanceSnapshot {
	if b == nil {
		return nil
	}
	cp := *b
	if b.Base != nil {
		cp.Base = new(big.Int).Set(b.Base)
	}
	if b.Quote != nil {
		cp.Quote = new(big.Int).Set(b.Quote)
	}
	return &cp
}
