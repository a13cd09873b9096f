// Package settlement provides an in-memory simulated ledger implementing the
// settlement, balance, allowance and pool collaborator interfaces. It backs
// the simulate platform and the test suites.
package settlement

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/curve"
	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/executor"
	"github.com/memekipedia/tradecore/internal/quote"
)

// Ledger is a deterministic in-memory settlement layer. It owns its own copy
// of curve and pool state — the "external truth" the executor mirrors — and
// settles trades atomically under one lock.
type Ledger struct {
	mu     sync.RWMutex
	logger *zap.Logger
	engine *quote.Engine

	balances   map[string]map[string]*big.Int
	allowances map[string]*big.Int
	curves     map[string]*domain.CurveState
	pools      map[string]*domain.PoolReserves
	txs        map[string]executor.ConfirmationStatus
	block      uint64
}

// NewLedger creates an empty simulated ledger.
func NewLedger(logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		logger:     logger,
		engine:     quote.NewEngine(quote.DefaultFeeBps),
		balances:   make(map[string]map[string]*big.Int),
		allowances: make(map[string]*big.Int),
		curves:     make(map[string]*domain.CurveState),
		pools:      make(map[string]*domain.PoolReserves),
		txs:        make(map[string]executor.ConfirmationStatus),
	}
}

// SetBalance seeds a participant balance.
func (l *Ledger) SetBalance(participant string, asset domain.Asset, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.account(participant)[asset.Symbol] = new(big.Int).Set(amount)
}

// RegisterCurve installs ledger-side curve state.
func (l *Ledger) RegisterCurve(id string, state *domain.CurveState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.curves[id] = state.Clone()
}

// RegisterPool installs ledger-side pool reserves for a pair.
func (l *Ledger) RegisterPool(pair domain.Pair, reserves *domain.PoolReserves) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pools[pair.String()] = reserves
}

// CurveState returns a copy of the ledger-side curve state.
func (l *Ledger) CurveState(id string) (*domain.CurveState, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.curves[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Submit settles the trade synchronously against the ledger state and
// returns a pending receipt; finality is reported by AwaitConfirmation.
func (l *Ledger) Submit(ctx context.Context, desc executor.TradeDescriptor) (executor.SubmitReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ref := uuid.NewString()
	status, err := l.settle(desc)
	if err != nil {
		l.logger.Debug("simulated submission rejected",
			zap.String("intent_id", desc.ID),
			zap.Error(err))
		return executor.SubmitReceipt{Status: executor.SubmitFailed, Ref: ref}, err
	}

	l.block++
	l.txs[ref] = status
	return executor.SubmitReceipt{Status: executor.SubmitPending, Ref: ref}, nil
}

// AwaitConfirmation reports the recorded finality of a submitted trade.
func (l *Ledger) AwaitConfirmation(ctx context.Context, ref string, timeout time.Duration) (executor.ConfirmationStatus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	status, ok := l.txs[ref]
	if !ok {
		return executor.ConfirmationFailed, nil
	}
	return status, nil
}

// ReadBalance returns the participant balance for the asset.
func (l *Ledger) ReadBalance(ctx context.Context, participant string, asset domain.Asset) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	bal, ok := l.balances[participant][asset.Symbol]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(bal), nil
}

// ReadAllowance returns the approved amount for the owner/spender/asset triple.
func (l *Ledger) ReadAllowance(ctx context.Context, owner, spender string, asset domain.Asset) (*big.Int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	approved, ok := l.allowances[allowanceKey(owner, spender, asset)]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(approved), nil
}

// Authorize sets the allowance; confirmation is immediate in simulation.
func (l *Ledger) Authorize(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey(owner, spender, asset)] = new(big.Int).Set(amount)
	return nil
}

// ReadPoolReserves returns the registered reserves, or nil when no pool exists.
func (l *Ledger) ReadPoolReserves(ctx context.Context, pair domain.Pair) (*domain.PoolReserves, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	res, ok := l.pools[pair.String()]
	if !ok {
		return nil, nil
	}
	return &domain.PoolReserves{
		ReserveBase:  new(big.Int).Set(res.ReserveBase),
		ReserveQuote: new(big.Int).Set(res.ReserveQuote),
		Block:        l.block,
	}, nil
}

// settle applies the trade to ledger state. Callers hold l.mu.
func (l *Ledger) settle(desc executor.TradeDescriptor) (executor.ConfirmationStatus, error) {
	if desc.CurveID != "" {
		return l.settleCurve(desc)
	}
	return l.settlePool(desc)
}

func (l *Ledger) settleCurve(desc executor.TradeDescriptor) (executor.ConfirmationStatus, error) {
	state, ok := l.curves[desc.CurveID]
	if !ok {
		return executor.ConfirmationFailed, errors.New("unknown curve")
	}

	if desc.Mode == domain.ModeBuy {
		cost, err := curve.QuoteBuy(state, desc.AmountTokens)
		if err != nil {
			return executor.ConfirmationFailed, err
		}
		if cost.Cmp(desc.BoundAmount) > 0 {
			return executor.ConfirmationFailed, errors.New("cost exceeds max input bound")
		}
		if err := l.debit(desc.Participant, desc.Pair.Quote, cost, desc.CurveID); err != nil {
			return executor.ConfirmationFailed, err
		}
		next, err := curve.ApplyBuy(state, desc.AmountTokens, cost)
		if err != nil {
			return executor.ConfirmationFailed, err
		}
		l.curves[desc.CurveID] = next
		l.credit(desc.Participant, desc.Pair.Base, desc.AmountTokens)
		return executor.ConfirmationConfirmed, nil
	}

	proceeds, err := curve.QuoteSell(state, desc.AmountTokens)
	if err != nil {
		return executor.ConfirmationFailed, err
	}
	if proceeds.Cmp(desc.BoundAmount) < 0 {
		return executor.ConfirmationFailed, errors.New("proceeds below min output bound")
	}
	if err := l.debit(desc.Participant, desc.Pair.Base, desc.AmountTokens, desc.CurveID); err != nil {
		return executor.ConfirmationFailed, err
	}
	next, err := curve.ApplySell(state, desc.AmountTokens, proceeds)
	if err != nil {
		return executor.ConfirmationFailed, err
	}
	l.curves[desc.CurveID] = next
	l.credit(desc.Participant, desc.Pair.Quote, proceeds)
	return executor.ConfirmationConfirmed, nil
}

func (l *Ledger) settlePool(desc executor.TradeDescriptor) (executor.ConfirmationStatus, error) {
	res, ok := l.pools[desc.Pair.String()]
	if !ok {
		return executor.ConfirmationFailed, errors.New("pool not found")
	}

	src := quote.PoolSource(res)
	if desc.Mode == domain.ModeBuy {
		q, err := l.engine.BuyQuote(src, desc.AmountTokens)
		if err != nil {
			return executor.ConfirmationFailed, err
		}
		if q.CounterAmount.Cmp(desc.BoundAmount) > 0 {
			return executor.ConfirmationFailed, errors.New("cost exceeds max input bound")
		}
		if err := l.debit(desc.Participant, desc.Pair.Quote, q.CounterAmount, "router"); err != nil {
			return executor.ConfirmationFailed, err
		}
		res.ReserveQuote.Add(res.ReserveQuote, q.CounterAmount)
		res.ReserveBase.Sub(res.ReserveBase, desc.AmountTokens)
		l.credit(desc.Participant, desc.Pair.Base, desc.AmountTokens)
		return executor.ConfirmationConfirmed, nil
	}

	q, err := l.engine.SellQuote(src, desc.AmountTokens)
	if err != nil {
		return executor.ConfirmationFailed, err
	}
	if q.CounterAmount.Cmp(desc.BoundAmount) < 0 {
		return executor.ConfirmationFailed, errors.New("proceeds below min output bound")
	}
	if err := l.debit(desc.Participant, desc.Pair.Base, desc.AmountTokens, "router"); err != nil {
		return executor.ConfirmationFailed, err
	}
	res.ReserveBase.Add(res.ReserveBase, desc.AmountTokens)
	res.ReserveQuote.Sub(res.ReserveQuote, q.CounterAmount)
	l.credit(desc.Participant, desc.Pair.Quote, q.CounterAmount)
	return executor.ConfirmationConfirmed, nil
}

// debit withdraws amount from the participant, consuming allowance for
// non-native assets the way a token transferFrom would.
func (l *Ledger) debit(participant string, asset domain.Asset, amount *big.Int, spender string) error {
	bal, ok := l.balances[participant][asset.Symbol]
	if !ok || bal.Cmp(amount) < 0 {
		return errors.Errorf("insufficient %s balance", asset.Symbol)
	}

	if !asset.Native {
		key := allowanceKey(participant, spender, asset)
		approved, ok := l.allowances[key]
		if !ok || approved.Cmp(amount) < 0 {
			return errors.Errorf("insufficient %s allowance for %s", asset.Symbol, spender)
		}
		approved.Sub(approved, amount)
	}

	bal.Sub(bal, amount)
	return nil
}

func (l *Ledger) credit(participant string, asset domain.Asset, amount *big.Int) {
	acc := l.account(participant)
	bal, ok := acc[asset.Symbol]
	if !ok {
		bal = new(big.Int)
		acc[asset.Symbol] = bal
	}
	bal.Add(bal, amount)
}

// account returns the balance map for a participant. Callers hold l.mu.
func (l *Ledger) account(participant string) map[string]*big.Int {
	acc, ok := l.balances[participant]
	if !ok {
		acc = make(map[string]*big.Int)
		l.balances[participant] = acc
	}
	return acc
}

func allowanceKey(owner, spender string, asset domain.Asset) string {
	return owner + "|" + spender + "|" + asset.Symbol
}
