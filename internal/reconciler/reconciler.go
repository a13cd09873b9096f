// Package reconciler maintains a best-effort view of both asset balances of
// a trade pair per participant.
package reconciler

import (
	"context"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/events"
)

// BalanceReader reads a single asset balance from the settlement layer.
type BalanceReader interface {
	ReadBalance(ctx context.Context, participant string, asset domain.Asset) (*big.Int, error)
}

type refreshRequest struct {
	participant string
	pair        domain.Pair
}

// Reconciler refreshes balance snapshots on a fixed interval and immediately
// after every terminal trade state. Overlapping refreshes for the same
// participant collapse into one in-flight read. A failed read never produces
// a partial snapshot: the previous one is returned marked stale.
type Reconciler struct {
	reader      BalanceReader
	broadcaster *events.BalanceBroadcaster
	l           *zap.Logger
	interval    time.Duration

	group    singleflight.Group
	triggers chan refreshRequest

	mu        sync.RWMutex
	snapshots map[string]*domain.BalanceSnapshot
	tracked   map[string]refreshRequest
}

// New creates a reconciler polling at the given interval.
func New(reader BalanceReader, broadcaster *events.BalanceBroadcaster, interval time.Duration, l *zap.Logger) *Reconciler {
	return &Reconciler{
		reader:      reader,
		broadcaster: broadcaster,
		l:           l,
		interval:    interval,
		triggers:    make(chan refreshRequest, 64),
		snapshots:   make(map[string]*domain.BalanceSnapshot),
		tracked:     make(map[string]refreshRequest),
	}
}

// Track registers a participant/pair for interval polling.
func (r *Reconciler) Track(participant string, pair domain.Pair) {
	req := refreshRequest{participant: participant, pair: pair}
	r.mu.Lock()
	r.tracked[snapshotKey(participant, pair)] = req
	r.mu.Unlock()
}

// TriggerRefresh requests an immediate refresh. Non-blocking: if the trigger
// queue is full the next interval tick covers it.
func (r *Reconciler) TriggerRefresh(participant string, pair domain.Pair) {
	r.Track(participant, pair)
	select {
	case r.triggers <- refreshRequest{participant: participant, pair: pair}:
	default:
	}
}

// Run polls tracked participants until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.l.Info("balance reconciler started", zap.Duration("poll_interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.l.Info("balance reconciler stopped")
			return ctx.Err()
		case req := <-r.triggers:
			r.refreshLogged(ctx, req)
		case <-ticker.C:
			r.mu.RLock()
			reqs := make([]refreshRequest, 0, len(r.tracked))
			for _, req := range r.tracked {
				reqs = append(reqs, req)
			}
			r.mu.RUnlock()

			for _, req := range reqs {
				r.refreshLogged(ctx, req)
			}
		}
	}
}

// Refresh fetches both balances for the pair. If either read fails the
// previous snapshot is returned with Stale set; transient read errors are
// never surfaced as failures. Stale snapshots are advisory only: sufficiency
// checks for new trades must read live.
func (r *Reconciler) Refresh(ctx context.Context, participant string, pair domain.Pair) *domain.BalanceSnapshot {
	key := snapshotKey(participant, pair)

	v, _, _ := r.group.Do(key, func() (interface{}, error) {
		base, errBase := r.reader.ReadBalance(ctx, participant, pair.Base)
		quoteBal, errQuote := r.reader.ReadBalance(ctx, participant, pair.Quote)

		if errBase != nil || errQuote != nil {
			r.l.Warn("balance read failed, keeping previous snapshot as stale",
				zap.String("participant", participant),
				zap.String("pair", pair.String()),
				zap.NamedError("base_err", errBase),
				zap.NamedError("quote_err", errQuote))
			return r.markStale(key, participant, pair), nil
		}

		snap := &domain.BalanceSnapshot{
			Participant: participant,
			Pair:        pair,
			Base:        base,
			Quote:       quoteBal,
			Timestamp:   time.Now(),
		}

		r.mu.Lock()
		r.snapshots[key] = snap
		r.mu.Unlock()

		r.publish(snap)
		return snap, nil
	})

	return v.(*domain.BalanceSnapshot).Clone()
}

// Snapshot returns the cached snapshot, refreshing when none exists yet.
func (r *Reconciler) Snapshot(ctx context.Context, participant string, pair domain.Pair) *domain.BalanceSnapshot {
	r.mu.RLock()
	snap, ok := r.snapshots[snapshotKey(participant, pair)]
	r.mu.RUnlock()
	if ok {
		return snap.Clone()
	}
	return r.Refresh(ctx, participant, pair)
}

func (r *Reconciler) refreshLogged(ctx context.Context, req refreshRequest) {
	snap := r.Refresh(ctx, req.participant, req.pair)
	r.l.Debug("balances refreshed",
		zap.String("participant", req.participant),
		zap.String("pair", req.pair.String()),
		zap.Bool("stale", snap.Stale))
}

// markStale replaces the previous snapshot with a stale copy instead of
// producing a partial update. Published snapshots are never mutated: readers
// holding an earlier one keep seeing it as it was returned.
func (r *Reconciler) markStale(key, participant string, pair domain.Pair) *domain.BalanceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	stale := r.snapshots[key].Clone()
	if stale == nil {
		stale = &domain.BalanceSnapshot{
			Participant: participant,
			Pair:        pair,
			Base:        new(big.Int),
			Quote:       new(big.Int),
		}
	}
	stale.Stale = true
	r.snapshots[key] = stale
	return stale
}

func (r *Reconciler) publish(snap *domain.BalanceSnapshot) {
	if r.broadcaster == nil {
		return
	}
	r.broadcaster.Publish(events.BalanceEvent{
		Timestamp:   snap.Timestamp,
		Participant: snap.Participant,
		Pair:        snap.Pair.String(),
		Base:        snap.Base.String(),
		Quote:       snap.Quote.String(),
		Stale:       snap.Stale,
	})
}

func snapshotKey(participant string, pair domain.Pair) string {
	return participant + "|" + pair.String()
}
