// Package executor orchestrates the full trade lifecycle: fresh quote,
// optional authorization, submission, confirmation and local state mirroring.
package executor

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/curve"
	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/quote"
)

// Executor drives trades from intent to terminal state.
//
// Side effects are strictly ordered: no balance refresh before the submission
// outcome is known, no curve mutation before external confirmation. Curve
// mutations are serialized per curve; quoting alone never blocks.
type Executor struct {
	engine     *quote.Engine
	registry   *Registry
	settlement Settlement
	pools      PoolReader
	gate       authorizationGate
	refresher  balanceRefresher
	journal    *tradeJournal
	l          *zap.Logger

	confirmTimeout time.Duration
	// routerSpender the spender of pool-mode trades (the swap router).
	routerSpender string
}

// NewExecutor creates a trade executor. The journal directory holds the WAL
// used to recover in-flight trades after a restart.
func NewExecutor(l *zap.Logger, engine *quote.Engine, registry *Registry, settlement Settlement,
	pools PoolReader, gate authorizationGate, refresher balanceRefresher,
	journalDir string, confirmTimeout time.Duration, routerSpender string) (*Executor, error) {

	journal, err := newTradeJournal(journalDir)
	if err != nil {
		return nil, err
	}

	return &Executor{
		engine:         engine,
		registry:       registry,
		settlement:     settlement,
		pools:          pools,
		gate:           gate,
		refresher:      refresher,
		journal:        journal,
		l:              l,
		confirmTimeout: confirmTimeout,
		routerSpender:  routerSpender,
	}, nil
}

// Close releases the trade journal.
func (e *Executor) Close() error {
	return e.journal.close()
}

// Registry exposes read access to the mirrored curve states.
func (e *Executor) Registry() *Registry {
	return e.registry
}

// PendingTrades returns journaled trades whose outcome is unknown. Their
// submissions may have landed; callers must re-query the ledger before any
// retry.
func (e *Executor) PendingTrades() []string {
	recs := e.journal.pending()
	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.IntentID)
	}
	return ids
}

// Execute runs the intent to a terminal state. The returned result always
// carries the terminal state; a non-nil error classifies the failure.
func (e *Executor) Execute(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeResult, error) {
	if intent == nil || intent.AmountSpecified == nil || intent.AmountSpecified.Sign() <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	if time.Now().After(intent.Deadline) {
		// nothing was submitted, no reconciliation needed
		return &domain.TradeResult{IntentID: intent.ID, State: domain.TradeStateExpired}, domain.ErrExpired
	}

	if intent.CurveID != "" {
		return e.executeCurve(ctx, intent)
	}
	return e.executePool(ctx, intent)
}

// executeCurve holds the per-curve lock from fresh validation through the
// committed apply: two concurrent buys must not both validate against the
// same stale tokensSold.
func (e *Executor) executeCurve(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeResult, error) {
	entry, err := e.registry.entry(intent.CurveID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	state := entry.committed()
	q, err := e.freshQuote(quote.CurveSource(state), intent)
	if err != nil {
		return nil, err
	}

	result, err := e.settle(ctx, intent, q)
	if err != nil || result.State != domain.TradeStateConfirmed {
		return result, err
	}

	var next *domain.CurveState
	if intent.Mode == domain.ModeBuy {
		next, err = curve.ApplyBuy(state, intent.AmountSpecified, q.CounterAmount)
	} else {
		next, err = curve.ApplySell(state, intent.AmountSpecified, q.CounterAmount)
	}
	if err != nil {
		// the ledger confirmed but the mirror refused the transition; the
		// mirror is now behind external truth and must be re-synced
		e.l.Error("confirmed trade failed to apply to curve mirror",
			zap.String("intent_id", intent.ID),
			zap.String("curve_id", intent.CurveID),
			zap.Error(err))
		return result, errors.Wrapf(err, "failed to apply confirmed trade %s", intent.ID)
	}
	entry.commit(next)

	return result, nil
}

func (e *Executor) executePool(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeResult, error) {
	reserves, err := e.pools.ReadPoolReserves(ctx, intent.Pair)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read pool reserves for %s", intent.Pair.String())
	}

	q, err := e.freshQuote(quote.PoolSource(reserves), intent)
	if err != nil {
		return nil, err
	}

	return e.settle(ctx, intent, q)
}

// freshQuote recomputes the quote from committed state. Caller-supplied
// counter amounts are never trusted.
func (e *Executor) freshQuote(src quote.Source, intent *domain.TradeIntent) (domain.Quote, error) {
	var (
		q   domain.Quote
		err error
	)
	if intent.Mode == domain.ModeBuy {
		q, err = e.engine.BuyQuote(src, intent.AmountSpecified)
	} else {
		q, err = e.engine.SellQuote(src, intent.AmountSpecified)
	}
	if err != nil {
		return domain.Quote{}, err
	}

	if !intent.WithinBound(q.CounterAmount) {
		e.l.Info("recomputed quote violates slippage bound",
			zap.String("intent_id", intent.ID),
			zap.String("bound", intent.BoundAmount.String()),
			zap.String("counter", q.CounterAmount.String()))
		return domain.Quote{}, domain.ErrSlippageExceeded
	}
	return q, nil
}

// settle runs authorization, submission and confirmation. It triggers a
// balance refresh on every terminal state it produces.
func (e *Executor) settle(ctx context.Context, intent *domain.TradeIntent, q domain.Quote) (*domain.TradeResult, error) {
	result := &domain.TradeResult{IntentID: intent.ID, State: domain.TradeStateQuoted}
	e.journalState(intent, q, result.State, "")

	asset, spender, amountIn := e.paymentSide(intent, q)
	needs, err := e.gate.NeedsAuthorization(ctx, intent.Participant, spender, asset, amountIn)
	if err != nil {
		return nil, errors.Wrap(err, "allowance check failed")
	}

	if needs {
		result.State = domain.TradeStateAuthorizationPending
		e.journalState(intent, q, result.State, "")

		if err := e.gate.EnsureAuthorized(ctx, intent.Participant, spender, asset, amountIn); err != nil {
			// trade not submitted, no partial state committed; the failed
			// authorization attempt may still have cost fees
			result.State = domain.TradeStateFailed
			e.journalState(intent, q, result.State, "")
			e.triggerRefresh(intent)
			return result, err
		}
	}

	// the authorization wait is network bound, the deadline may have passed
	if time.Now().After(intent.Deadline) {
		result.State = domain.TradeStateExpired
		e.journalState(intent, q, result.State, "")
		return result, domain.ErrExpired
	}

	receipt, err := e.settlement.Submit(ctx, TradeDescriptor{
		ID:           intent.ID,
		Participant:  intent.Participant,
		Mode:         intent.Mode,
		Pair:         intent.Pair,
		CurveID:      intent.CurveID,
		AmountTokens: intent.AmountSpecified,
		BoundAmount:  intent.BoundAmount,
	})
	if err != nil || receipt.Status == SubmitFailed {
		result.State = domain.TradeStateFailed
		e.journalState(intent, q, result.State, receipt.Ref)
		e.triggerRefresh(intent)
		if err != nil {
			return result, errors.Wrap(domain.ErrSubmissionFailed, err.Error())
		}
		return result, domain.ErrSubmissionFailed
	}

	result.State = domain.TradeStateSubmitted
	result.Ref = receipt.Ref
	e.journalState(intent, q, result.State, receipt.Ref)

	status := ConfirmationConfirmed
	if receipt.Status == SubmitPending {
		status, err = e.settlement.AwaitConfirmation(ctx, receipt.Ref, e.confirmTimeout)
		if err != nil {
			status = ConfirmationTimeout
		}
	}

	switch status {
	case ConfirmationConfirmed:
		result.State = domain.TradeStateConfirmed
		if intent.Mode == domain.ModeBuy {
			result.AmountIn = new(big.Int).Set(q.CounterAmount)
			result.AmountOut = new(big.Int).Set(intent.AmountSpecified)
		} else {
			result.AmountIn = new(big.Int).Set(intent.AmountSpecified)
			result.AmountOut = new(big.Int).Set(q.CounterAmount)
		}
		e.journalState(intent, q, result.State, receipt.Ref)
		e.triggerRefresh(intent)
		return result, nil

	case ConfirmationFailed:
		result.State = domain.TradeStateFailed
		e.journalState(intent, q, result.State, receipt.Ref)
		e.triggerRefresh(intent)
		return result, domain.ErrSubmissionFailed

	default:
		// ambiguous: the submission may still land, the journal keeps the
		// trade pending until the caller reconciles against the ledger
		result.State = domain.TradeStateFailed
		e.triggerRefresh(intent)
		return result, domain.ErrConfirmationTimeout
	}
}

// paymentSide returns the asset the participant spends, who spends it, and
// how much. Buys pay the quote asset to the curve or router; sells hand the
// base token over instead.
func (e *Executor) paymentSide(intent *domain.TradeIntent, q domain.Quote) (domain.Asset, string, *big.Int) {
	spender := intent.CurveID
	if spender == "" {
		spender = e.routerSpender
	}
	if intent.Mode == domain.ModeBuy {
		return intent.Pair.Quote, spender, q.CounterAmount
	}
	return intent.Pair.Base, spender, intent.AmountSpecified
}

func (e *Executor) triggerRefresh(intent *domain.TradeIntent) {
	if e.refresher != nil {
		e.refresher.TriggerRefresh(intent.Participant, intent.Pair)
	}
}

func (e *Executor) journalState(intent *domain.TradeIntent, q domain.Quote, state domain.TradeState, ref string) {
	rec := journalRecord{
		IntentID: intent.ID,
		State:    state.String(),
		Ref:      ref,
		Mode:     intent.Mode.String(),
		CurveID:  intent.CurveID,
		Amount:   intent.AmountSpecified.String(),
		Counter:  q.CounterAmount.String(),
		Time:     time.Now(),
	}
	if err := e.journal.append(rec); err != nil {
		e.l.Error("failed to journal trade state",
			zap.String("intent_id", intent.ID),
			zap.String("state", state.String()),
			zap.Error(err))
	}
}
