package settlement

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/allowance"
	"github.com/memekipedia/tradecore/internal/domain"
	"github.com/memekipedia/tradecore/internal/executor"
	"github.com/memekipedia/tradecore/internal/quote"
)

var testPair = domain.Pair{
	Base:  domain.Asset{Symbol: "WIKI", Decimals: 18},
	Quote: domain.Asset{Symbol: "M", Native: true},
}

const testCurveID = "curve-1"

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ledger := NewLedger(zap.NewNop())

	state, err := domain.NewCurveState(big.NewInt(10_000_000_000), big.NewInt(1_000_000_000), big.NewInt(1_000_000_000))
	require.NoError(t, err)
	ledger.RegisterCurve(testCurveID, state)

	ledger.SetBalance("alice", testPair.Quote, big.NewInt(1_000_000_000_000_000))
	return ledger
}

func balance(t *testing.T, ledger *Ledger, participant string, asset domain.Asset) *big.Int {
	t.Helper()
	bal, err := ledger.ReadBalance(context.Background(), participant, asset)
	require.NoError(t, err)
	return bal
}

func TestCurveBuySettles(t *testing.T) {
	ledger := newTestLedger(t)

	receipt, err := ledger.Submit(context.Background(), executor.TradeDescriptor{
		ID:           "intent-1",
		Participant:  "alice",
		Mode:         domain.ModeBuy,
		Pair:         testPair,
		CurveID:      testCurveID,
		AmountTokens: big.NewInt(1000),
		BoundAmount:  big.NewInt(600_000_000_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, executor.SubmitPending, receipt.Status)

	status, err := ledger.AwaitConfirmation(context.Background(), receipt.Ref, time.Second)
	require.NoError(t, err)
	assert.Equal(t, executor.ConfirmationConfirmed, status)

	// 1e15 - 5.1e14 spent
	assert.Equal(t, "490000000000000", balance(t, ledger, "alice", testPair.Quote).String())
	assert.Equal(t, "1000", balance(t, ledger, "alice", testPair.Base).String())

	state, ok := ledger.CurveState(testCurveID)
	require.True(t, ok)
	assert.Equal(t, "1000", state.TokensSold.String())
	assert.Equal(t, "510000000000000", state.ReserveQuote.String())
}

func TestCurveBuyBoundViolationRejected(t *testing.T) {
	ledger := newTestLedger(t)

	receipt, err := ledger.Submit(context.Background(), executor.TradeDescriptor{
		ID:           "intent-1",
		Participant:  "alice",
		Mode:         domain.ModeBuy,
		Pair:         testPair,
		CurveID:      testCurveID,
		AmountTokens: big.NewInt(1000),
		BoundAmount:  big.NewInt(1),
	})
	assert.Error(t, err)
	assert.Equal(t, executor.SubmitFailed, receipt.Status)

	assert.Equal(t, "1000000000000000", balance(t, ledger, "alice", testPair.Quote).String())
	assert.Zero(t, balance(t, ledger, "alice", testPair.Base).Sign())
}

func TestCurveSellConsumesAllowance(t *testing.T) {
	ledger := newTestLedger(t)
	ledger.SetBalance("alice", testPair.Base, big.NewInt(1000))

	state, ok := ledger.CurveState(testCurveID)
	require.True(t, ok)
	require.True(t, state.TokensSold.Sign() == 0)

	// seed the curve position so a sell has something to drain
	_, err := ledger.Submit(context.Background(), executor.TradeDescriptor{
		ID: "seed", Participant: "alice", Mode: domain.ModeBuy, Pair: testPair,
		CurveID: testCurveID, AmountTokens: big.NewInt(1000), BoundAmount: big.NewInt(600_000_000_000_000),
	})
	require.NoError(t, err)

	sell := executor.TradeDescriptor{
		ID: "intent-2", Participant: "alice", Mode: domain.ModeSell, Pair: testPair,
		CurveID: testCurveID, AmountTokens: big.NewInt(500), BoundAmount: big.NewInt(1),
	}

	// the base token is not native: selling without an allowance must fail
	_, err = ledger.Submit(context.Background(), sell)
	assert.Error(t, err)

	require.NoError(t, ledger.Authorize(context.Background(), "alice", testCurveID, testPair.Base, big.NewInt(500)))

	receipt, err := ledger.Submit(context.Background(), sell)
	require.NoError(t, err)
	assert.Equal(t, executor.SubmitPending, receipt.Status)

	approved, err := ledger.ReadAllowance(context.Background(), "alice", testCurveID, testPair.Base)
	require.NoError(t, err)
	assert.Zero(t, approved.Sign(), "settlement consumes the allowance")
}

func TestPoolSwapMovesReserves(t *testing.T) {
	ledger := newTestLedger(t)
	ledger.RegisterPool(testPair, &domain.PoolReserves{
		ReserveBase:  big.NewInt(1_000_000),
		ReserveQuote: big.NewInt(1_000_000_000),
	})

	receipt, err := ledger.Submit(context.Background(), executor.TradeDescriptor{
		ID: "intent-1", Participant: "alice", Mode: domain.ModeBuy, Pair: testPair,
		AmountTokens: big.NewInt(1000), BoundAmount: big.NewInt(10_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, executor.SubmitPending, receipt.Status)

	reserves, err := ledger.ReadPoolReserves(context.Background(), testPair)
	require.NoError(t, err)
	assert.Equal(t, "999000", reserves.ReserveBase.String())
	assert.Equal(t, 1, reserves.ReserveQuote.Cmp(big.NewInt(1_000_000_000)))
	assert.Equal(t, "1000", balance(t, ledger, "alice", testPair.Base).String())
}

func TestReadPoolReservesWithoutPool(t *testing.T) {
	ledger := NewLedger(nil)

	reserves, err := ledger.ReadPoolReserves(context.Background(), testPair)
	require.NoError(t, err)
	assert.Nil(t, reserves)
}

// Full round trip through the executor: a native-quote buy needs no
// authorization, the sell of the non-native token does. The executor mirror
// and the ledger state must agree afterwards.
func TestExecutorRoundTripAgainstLedger(t *testing.T) {
	ledger := newTestLedger(t)

	registry := executor.NewRegistry()
	state, ok := ledger.CurveState(testCurveID)
	require.True(t, ok)
	registry.Register(testCurveID, state)

	engine := quote.NewEngine(quote.DefaultFeeBps)
	gate := allowance.NewGate(ledger, ledger, zap.NewNop())

	exec, err := executor.NewExecutor(zap.NewNop(), engine, registry, ledger, ledger, gate, nil,
		t.TempDir(), time.Second, "router")
	require.NoError(t, err)
	defer exec.Close()

	snapshot, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	buyQuote, err := engine.BuyQuote(quote.CurveSource(snapshot), big.NewInt(1000))
	require.NoError(t, err)
	buy := domain.NewTradeIntent("alice", buyQuote, testCurveID, testPair, 100, time.Now().Add(time.Minute))

	result, err := exec.Execute(context.Background(), buy)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStateConfirmed, result.State)

	snapshot, err = registry.Snapshot(testCurveID)
	require.NoError(t, err)
	sellQuote, err := engine.SellQuote(quote.CurveSource(snapshot), big.NewInt(400))
	require.NoError(t, err)
	sell := domain.NewTradeIntent("alice", sellQuote, testCurveID, testPair, 100, time.Now().Add(time.Minute))

	result, err = exec.Execute(context.Background(), sell)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStateConfirmed, result.State)
	assert.Equal(t, domain.AllowanceAuthorized, gate.State("alice", testCurveID, testPair.Base))

	mirror, err := registry.Snapshot(testCurveID)
	require.NoError(t, err)
	truth, ok := ledger.CurveState(testCurveID)
	require.True(t, ok)
	assert.Equal(t, "600", mirror.TokensSold.String())
	assert.Equal(t, truth.TokensSold.String(), mirror.TokensSold.String())
	assert.Equal(t, truth.ReserveQuote.String(), mirror.ReserveQuote.String())

	assert.Equal(t, "600", balance(t, ledger, "alice", testPair.Base).String())
}
