// Package app wires the pricing and settlement components into the surface
// exposed to API layers.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/executor"
	"github.com/memekipedia/tradecore/internal/quote"
	"github.com/memekipedia/tradecore/internal/reconciler"
)

// Exchange is the facade over the pricing and settlement core: quoting,
// trade execution, balances and curve projections.
type Exchange struct {
	engine     *quote.Engine
	executor   *executor.Executor
	reconciler *reconciler.Reconciler
	pools      executor.PoolReader
	l          *zap.Logger
}

// NewExchange creates the exchange facade.
func NewExchange(l *zap.Logger, engine *quote.Engine, exec *executor.Executor, rec *reconciler.Reconciler, pools executor.PoolReader) *Exchange {
	return &Exchange{
		engine:     engine,
		executor:   exec,
		reconciler: rec,
		pools:      pools,
		l:          l,
	}
}

// Quote computes an advisory quote. Curve quotes run against the last
// committed mirror state; pool quotes read live reserves.
func (e *Exchange) Quote(ctx context.Context, mode domain.Mode, curveID string, pair domain.Pair, amount *big.Int) (domain.Quote, error) {
	src, err := e.source(ctx, curveID, pair)
	if err != nil {
		return domain.Quote{}, err
	}

	if mode == domain.ModeBuy {
		return e.engine.BuyQuote(src, amount)
	}
	return e.engine.SellQuote(src, amount)
}

// NewIntent quotes the trade and derives a slippage-bounded intent from it.
func (e *Exchange) NewIntent(ctx context.Context, participant string, mode domain.Mode, curveID string,
	pair domain.Pair, amount *big.Int, slippageBps int64, deadline time.Time) (*domain.TradeIntent, error) {

	q, err := e.Quote(ctx, mode, curveID, pair, amount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to quote intent")
	}
	return domain.NewTradeIntent(participant, q, curveID, pair, slippageBps, deadline), nil
}

// Execute runs the intent to a terminal state.
func (e *Exchange) Execute(ctx context.Context, intent *domain.TradeIntent) (*domain.TradeResult, error) {
	result, err := e.executor.Execute(ctx, intent)
	if err != nil {
		e.l.Warn("trade execution failed",
			zap.String("intent_id", intent.ID),
			zap.String("mode", intent.Mode.String()),
			zap.Error(err))
		return result, err
	}

	e.l.Info("trade confirmed",
		zap.String("intent_id", intent.ID),
		zap.String("mode", intent.Mode.String()),
		zap.String("pair", intent.Pair.String()),
		zap.String("amount_in", result.AmountIn.String()),
		zap.String("amount_out", result.AmountOut.String()),
		zap.String("ref", result.Ref))
	return result, nil
}

// GetBalances returns the current balance snapshot, refreshing when none is
// cached yet.
func (e *Exchange) GetBalances(ctx context.Context, participant string, pair domain.Pair) *domain.BalanceSnapshot {
	return e.reconciler.Snapshot(ctx, participant, pair)
}

// GetCurveState returns a read-only projection of the mirrored curve state.
func (e *Exchange) GetCurveState(curveID string) (*domain.CurveState, error) {
	return e.executor.Registry().Snapshot(curveID)
}

func (e *Exchange) source(ctx context.Context, curveID string, pair domain.Pair) (quote.Source, error) {
	if curveID != "" {
		state, err := e.executor.Registry().Snapshot(curveID)
		if err != nil {
			return quote.Source{}, err
		}
		return quote.CurveSource(state), nil
	}

	reserves, err := e.pools.ReadPoolReserves(ctx, pair)
	if err != nil {
		return quote.Source{}, errors.Wrapf(err, "failed to read pool reserves for %s", pair.String())
	}
	return quote.PoolSource(reserves), nil
}
