package executor

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/memekipedia/tradecore/internal/domain"
)

// ErrCurveNotFound indicates no curve is registered under the given id.
var ErrCurveNotFound = errors.New("curve not found")

// curveEntry serializes mutations of one curve. The mutex is held from fresh
// validation through the committed apply, so two concurrent buys can never
// both validate against the same stale tokensSold. The committed state lives
// in a separate atomic pointer swapped only at commit: quoting and snapshot
// reads never wait on an in-flight settlement.
type curveEntry struct {
	mu    sync.Mutex
	state atomic.Pointer[domain.CurveState]
}

// committed returns the last committed state. States are immutable once
// stored, so the pointer is safe to read without the trade lock.
func (c *curveEntry) committed() *domain.CurveState {
	return c.state.Load()
}

// commit publishes the next committed state. Called only while holding mu.
func (c *curveEntry) commit(next *domain.CurveState) {
	c.state.Store(next)
}

// Registry owns the mirrored curve states. It is the only place curve state
// is mutated; every other component reads snapshots.
type Registry struct {
	mu     sync.RWMutex
	curves map[string]*curveEntry
}

// NewRegistry creates an empty curve registry.
func NewRegistry() *Registry {
	return &Registry{curves: make(map[string]*curveEntry)}
}

// Register adds a curve under an id. Registering an existing id replaces the
// mirrored state, which is only correct at startup before trading begins.
func (r *Registry) Register(id string, state *domain.CurveState) {
	entry := &curveEntry{}
	entry.state.Store(state.Clone())

	r.mu.Lock()
	r.curves[id] = entry
	r.mu.Unlock()
}

// Snapshot returns a copy of the last committed state of the curve. It never
// takes the curve trade lock, so reads return immediately even while a
// settlement on the same curve is awaiting confirmation.
func (r *Registry) Snapshot(id string) (*domain.CurveState, error) {
	r.mu.RLock()
	entry, ok := r.curves[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrCurveNotFound
	}
	return entry.committed().Clone(), nil
}

func (r *Registry) entry(id string) (*curveEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.curves[id]
	if !ok {
		return nil, ErrCurveNotFound
	}
	return entry, nil
}
