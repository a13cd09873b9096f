package executor

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/quote"
)

type settlementmock struct {
	mu            sync.Mutex
	submits       int
	submitErr     error
	submitStatus  SubmitStatus
	confirmStatus ConfirmationStatus
	confirmErr    error
	confirmDelay  time.Duration
}

func (s *settlementmock) Submit(_ context.Context, desc TradeDescriptor) (SubmitReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits++
	if s.submitErr != nil {
		return SubmitReceipt{Status: SubmitFailed}, s.submitErr
	}
	return SubmitReceipt{Status: s.submitStatus, Ref: "tx-" + desc.ID}, nil
}

func (s *settlementmock) AwaitConfirmation(_ context.Context, _ string, _ time.Duration) (ConfirmationStatus, error) {
	if s.confirmDelay > 0 {
		time.Sleep(s.confirmDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmStatus, s.confirmErr
}

func (s *settlementmock) submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submits
}

type poolmock struct {
	reserves *domain.PoolReserves
	err      error
}

func (p *poolmock) ReadPoolReserves(_ context.Context, _ domain.Pair) (*domain.PoolReserves, error) {
	return p.reserves, p.err
}

type gatemock struct {
	mu        sync.Mutex
	needs     bool
	authErr   error
	authDelay time.Duration
	spenders  []string
}

func (g *gatemock) NeedsAuthorization(_ context.Context, _, spender string, _ domain.Asset, _ *big.Int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.spenders = append(g.spenders, spender)
	return g.needs, nil
}

func (g *gatemock) EnsureAuthorized(_ context.Context, _, _ string, _ domain.Asset, _ *big.Int) error {
	if g.authDelay > 0 {
		time.Sleep(g.authDelay)
	}
	return g.authErr
}

type refreshmock struct {
	mu    sync.Mutex
	count int
}

func (r *refreshmock) TriggerRefresh(_ string, _ domain.Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *refreshmock) triggered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

var testPair = domain.Pair{
	Base:  domain.Asset{Symbol: "WIKI", Decimals: 18},
	Quote: domain.Asset{Symbol: "M", Native: true},
}

const testCurveID = "curve-1"

func newTestExecutor(t *testing.T, settle Settlement, pools PoolReader, gate *gatemock, refresh *refreshmock) (*Executor, *Registry) {
	t.Helper()

	registry := NewRegistry()
	state, err := domain.NewCurveState(big.NewInt(10_000_000_000), big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))
	require.NoError(t, err)
	registry.Register(testCurveID, state)

	exec, err := NewExecutor(zap.NewNop(), quote.NewEngine(quote.DefaultFeeBps), registry, settle,
		pools, gate, refresh, t.TempDir(), time.Second, "router")
	require.NoError(t, err)
	t.Cleanup(func() { exec.Close() })

	return exec, registry
}

func buyIntent(t *testing.T, registry *Registry, amount int64, slippageBps int64) *domain.TradeIntent {
	t.Helper()
	state, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	q, err := quote.NewEngine(quote.DefaultFeeBps).BuyQuote(quote.CurveSource(state), big.NewInt(amount))
	require.NoError(t, err)
	return domain.NewTradeIntent("alice", q, testCurveID, testPair, slippageBps, time.Now().Add(time.Minute))
}

func TestExecuteExpiredIntentNeverSubmits(t *testing.T) {
	settle := &settlementmock{}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, &refreshmock{})

	intent := buyIntent(t, registry, 1000, 100)
	intent.Deadline = time.Now().Add(-time.Second)

	result, err := exec.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.Equal(t, domain.TradeStateExpired, result.State)
	assert.Zero(t, settle.submitted())
}

func TestExecuteBuyConfirmedUpdatesMirror(t *testing.T) {
	settle := &settlementmock{submitStatus: SubmitPending, confirmStatus: ConfirmationConfirmed}
	refresh := &refreshmock{}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, refresh)

	intent := buyIntent(t, registry, 1000, 100)
	result, err := exec.Execute(context.Background(), intent)
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStateConfirmed, result.State)
	assert.Equal(t, "510000000000000", result.AmountIn.String())
	assert.Equal(t, "1000", result.AmountOut.String())
	assert.Equal(t, "tx-"+intent.ID, result.Ref)

	state, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	assert.Equal(t, "1000", state.TokensSold.String())
	assert.Equal(t, "510000000000000", state.ReserveQuote.String())
	assert.Equal(t, uint64(1), state.Version)

	assert.Equal(t, 1, refresh.triggered())
}

func TestExecuteSlippageViolationNeverSubmits(t *testing.T) {
	settle := &settlementmock{submitStatus: SubmitPending, confirmStatus: ConfirmationConfirmed}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, &refreshmock{})

	intent := buyIntent(t, registry, 1000, 100)
	// the state moved since quoting: the fresh cost exceeds the bound
	intent.BoundAmount = big.NewInt(1)

	_, err := exec.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
	assert.Zero(t, settle.submitted())

	state, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Version)
}

func TestExecuteAuthorizationFailure(t *testing.T) {
	settle := &settlementmock{}
	refresh := &refreshmock{}
	gate := &gatemock{needs: true, authErr: errors.Wrap(domain.ErrAuthorizationFailed, "reverted")}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, gate, refresh)

	intent := buyIntent(t, registry, 1000, 100)
	result, err := exec.Execute(context.Background(), intent)

	assert.ErrorIs(t, err, domain.ErrAuthorizationFailed)
	assert.Equal(t, domain.TradeStateFailed, result.State)
	assert.Zero(t, settle.submitted())
	// a failed authorization attempt may still have cost fees
	assert.Equal(t, 1, refresh.triggered())
}

func TestExecuteDeadlineRecheckedAfterAuthorization(t *testing.T) {
	settle := &settlementmock{}
	gate := &gatemock{needs: true, authDelay: 50 * time.Millisecond}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, gate, &refreshmock{})

	intent := buyIntent(t, registry, 1000, 100)
	// the deadline lapses while the authorization is confirming
	intent.Deadline = time.Now().Add(10 * time.Millisecond)

	result, err := exec.Execute(context.Background(), intent)
	assert.ErrorIs(t, err, domain.ErrExpired)
	assert.Equal(t, domain.TradeStateExpired, result.State)
	assert.Zero(t, settle.submitted())
}

func TestExecuteConfirmationFailedLeavesMirrorUntouched(t *testing.T) {
	settle := &settlementmock{submitStatus: SubmitPending, confirmStatus: ConfirmationFailed}
	refresh := &refreshmock{}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, refresh)

	intent := buyIntent(t, registry, 1000, 100)
	result, err := exec.Execute(context.Background(), intent)

	assert.ErrorIs(t, err, domain.ErrSubmissionFailed)
	assert.Equal(t, domain.TradeStateFailed, result.State)

	state, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Version)
	assert.Equal(t, 1, refresh.triggered())
}

func TestExecuteConfirmationTimeoutKeepsTradePending(t *testing.T) {
	settle := &settlementmock{submitStatus: SubmitPending, confirmStatus: ConfirmationTimeout}
	refresh := &refreshmock{}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, refresh)

	intent := buyIntent(t, registry, 1000, 100)
	result, err := exec.Execute(context.Background(), intent)

	assert.ErrorIs(t, err, domain.ErrConfirmationTimeout)
	assert.Equal(t, domain.TradeStateFailed, result.State)

	// ambiguous outcome: the mirror must not move, the journal keeps the
	// trade open for reconciliation
	state, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Version)
	assert.Contains(t, exec.PendingTrades(), intent.ID)
	assert.Equal(t, 1, refresh.triggered())
}

func TestExecutePoolTradeUsesRouterSpender(t *testing.T) {
	settle := &settlementmock{submitStatus: SubmitPending, confirmStatus: ConfirmationConfirmed}
	gate := &gatemock{}
	pools := &poolmock{reserves: &domain.PoolReserves{
		ReserveBase:  big.NewInt(1_000_000),
		ReserveQuote: big.NewInt(1_000_000_000),
		Block:        7,
	}}
	exec, _ := newTestExecutor(t, settle, pools, gate, &refreshmock{})

	q, err := quote.NewEngine(quote.DefaultFeeBps).BuyQuote(quote.PoolSource(pools.reserves), big.NewInt(100))
	require.NoError(t, err)
	intent := domain.NewTradeIntent("alice", q, "", testPair, 100, time.Now().Add(time.Minute))

	result, err := exec.Execute(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStateConfirmed, result.State)
	assert.Equal(t, []string{"router"}, gate.spenders)
}

func TestSnapshotReturnsDuringInFlightConfirmation(t *testing.T) {
	settle := &settlementmock{
		submitStatus:  SubmitPending,
		confirmStatus: ConfirmationConfirmed,
		confirmDelay:  500 * time.Millisecond,
	}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, &refreshmock{})

	intent := buyIntent(t, registry, 1000, 100)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := exec.Execute(context.Background(), intent)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return settle.submitted() == 1
	}, time.Second, 5*time.Millisecond)

	// the confirmation wait holds the trade lock; reads still serve the last
	// committed state immediately
	start := time.Now()
	state, err := registry.Snapshot(testCurveID)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.Version)
	assert.Less(t, elapsed, 200*time.Millisecond, "snapshot blocked behind an in-flight confirmation")

	<-done
	state, err = registry.Snapshot(testCurveID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.Version)
}

func TestConcurrentBuysSerializePerCurve(t *testing.T) {
	settle := &settlementmock{submitStatus: SubmitPending, confirmStatus: ConfirmationConfirmed}
	exec, registry := newTestExecutor(t, settle, &poolmock{}, &gatemock{}, &refreshmock{})

	const workers = 8
	const amount = 10

	intents := make([]*domain.TradeIntent, workers)
	for i := range intents {
		intents[i] = buyIntent(t, registry, amount, 100)
		// each worker tolerates the price moved by all others
		intents[i].BoundAmount = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	}

	var wg sync.WaitGroup
	for _, intent := range intents {
		wg.Add(1)
		go func(intent *domain.TradeIntent) {
			defer wg.Done()
			_, err := exec.Execute(context.Background(), intent)
			assert.NoError(t, err)
		}(intent)
	}
	wg.Wait()

	state, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	assert.Equal(t, "80", state.TokensSold.String())
	assert.Equal(t, uint64(workers), state.Version)
	assert.Equal(t, workers, settle.submitted())
}
