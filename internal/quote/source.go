package quote

import "github.com/memekipedia/tradecore/internal/domain"

// Source is a tagged pricing source: either a bonding curve state or an AMM
// pool reserve snapshot. A single dispatch point in the engine picks the
// formula, so no mode booleans leak into callers.
type Source struct {
	kind  domain.SourceKind
	curve *domain.CurveState
	pool  *domain.PoolReserves
}

// CurveSource wraps a bonding curve state. A nil state (the zero Source is
// curve-kind) is a valid source that fails quoting with ErrCurveNotSet.
func CurveSource(c *domain.CurveState) Source {
	return Source{kind: domain.SourceCurve, curve: c}
}

// PoolSource wraps an AMM pool snapshot. A nil snapshot is a valid source
// that fails quoting with ErrPoolNotFound.
func PoolSource(p *domain.PoolReserves) Source {
	return Source{kind: domain.SourcePool, pool: p}
}

// Kind returns the source kind.
func (s Source) Kind() domain.SourceKind {
	return s.kind
}
