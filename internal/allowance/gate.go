// Package allowance decides whether a spender authorization is required
// before a trade can be submitted, and tracks the authorization lifecycle.
package allowance

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/domain"
)

// Reader reads the live approved amount from the settlement layer.
type Reader interface {
	ReadAllowance(ctx context.Context, owner, spender string, asset domain.Asset) (*big.Int, error)
}

// Submitter submits an authorization and reports only after it is externally
// confirmed or rejected.
type Submitter interface {
	Authorize(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) error
}

// Gate tracks authorization state per owner/spender/asset triple.
// Sufficiency checks always read live: a cached record is a view, never an
// authorization to skip the read.
type Gate struct {
	reader    Reader
	submitter Submitter
	l         *zap.Logger

	mu      sync.Mutex
	records map[string]*domain.AllowanceRecord
}

// NewGate creates an allowance gate.
func NewGate(reader Reader, submitter Submitter, l *zap.Logger) *Gate {
	return &Gate{
		reader:    reader,
		submitter: submitter,
		l:         l,
		records:   make(map[string]*domain.AllowanceRecord),
	}
}

// NeedsAuthorization reports whether the owner must raise the spender's
// allowance before a trade moving amount of asset can settle. Native asset
// payment paths never require authorization.
func (g *Gate) NeedsAuthorization(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) (bool, error) {
	if asset.Native {
		return false, nil
	}

	approved, err := g.reader.ReadAllowance(ctx, owner, spender, asset)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read allowance for %s", asset.Symbol)
	}

	sufficient := approved.Cmp(amount) >= 0

	g.mu.Lock()
	rec := g.record(owner, spender, asset)
	rec.ApprovedAmount = new(big.Int).Set(approved)
	if sufficient {
		rec.State = domain.AllowanceCheckedSufficient
	} else {
		rec.State = domain.AllowanceCheckedInsufficient
	}
	g.mu.Unlock()

	return !sufficient, nil
}

// EnsureAuthorized submits the authorization and records its confirmation.
// On external failure the record stays in Authorizing and the caller may
// retry: re-approving the same or a larger amount is idempotent.
func (g *Gate) EnsureAuthorized(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) error {
	g.mu.Lock()
	rec := g.record(owner, spender, asset)
	rec.State = domain.AllowanceAuthorizing
	g.mu.Unlock()

	if err := g.submitter.Authorize(ctx, owner, spender, asset, amount); err != nil {
		g.l.Warn("authorization failed",
			zap.String("owner", owner),
			zap.String("spender", spender),
			zap.String("asset", asset.Symbol),
			zap.Error(err))
		return errors.Wrap(domain.ErrAuthorizationFailed, err.Error())
	}

	g.mu.Lock()
	rec.State = domain.AllowanceAuthorized
	rec.ApprovedAmount = new(big.Int).Set(amount)
	g.mu.Unlock()

	g.l.Info("authorization confirmed",
		zap.String("owner", owner),
		zap.String("spender", spender),
		zap.String("asset", asset.Symbol),
		zap.String("amount", amount.String()))
	return nil
}

// State returns the current record state for the triple.
func (g *Gate) State(owner, spender string, asset domain.Asset) domain.AllowanceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[recordKey(owner, spender, asset)]
	if !ok {
		return domain.AllowanceUnknown
	}
	return rec.State
}

// record returns the cached record for the triple, creating it when missing.
// Callers must hold g.mu.
func (g *Gate) record(owner, spender string, asset domain.Asset) *domain.AllowanceRecord {
	key := recordKey(owner, spender, asset)
	rec, ok := g.records[key]
	if !ok {
		rec = &domain.AllowanceRecord{
			Owner:          owner,
			Spender:        spender,
			Asset:          asset,
			ApprovedAmount: new(big.Int),
			State:          domain.AllowanceUnknown,
		}
		g.records[key] = rec
	}
	return rec
}

func recordKey(owner, spender string, asset domain.Asset) string {
	return fmt.Sprintf("%s|%s|%s", owner, spender, asset.Symbol)
}
