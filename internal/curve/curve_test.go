package curve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memekipedia/tradecore/internal/domain"
)

func newState(t *testing.T, basePrice, slope, supply int64) *domain.CurveState {
	t.Helper()
	state, err := domain.NewCurveState(big.NewInt(basePrice), big.NewInt(slope), big.NewInt(supply))
	require.NoError(t, err)
	return state
}

func TestQuoteBuyLaunchPricing(t *testing.T) {
	// a fresh launch: 1e10 wei base price, 1e9 wei slope
	state := newState(t, 10_000_000_000, 1_000_000_000, 1_000_000_000)

	cost, err := QuoteBuy(state, big.NewInt(1000))
	require.NoError(t, err)

	// base*1000 + slope*1000*1000/2 = 1e13 + 5e14
	assert.Equal(t, big.NewInt(510_000_000_000_000), cost)
}

func TestQuoteBuyRejectsNonPositive(t *testing.T) {
	state := newState(t, 10, 1, 1000)

	_, err := QuoteBuy(state, big.NewInt(0))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = QuoteBuy(state, big.NewInt(-5))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = QuoteBuy(state, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestQuoteRoundingFavorsReserve(t *testing.T) {
	// slope part of a single-token buy at sold=0 is slope*1*(0+1)/2, an odd
	// half that must round up on the buy and down on the sell
	state := newState(t, 10, 1, 1000)

	cost, err := QuoteBuy(state, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(11), cost)

	after, err := ApplyBuy(state, big.NewInt(1), cost)
	require.NoError(t, err)

	proceeds, err := QuoteSell(after, big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10), proceeds)

	assert.Equal(t, 1, cost.Cmp(proceeds), "round trip must not profit the trader")
}

func TestQuoteBuyPriceIncreasesWithSupplySold(t *testing.T) {
	state := newState(t, 10_000_000_000, 1_000_000_000, 1_000_000_000)

	before, err := QuoteBuy(state, big.NewInt(100))
	require.NoError(t, err)

	cost, err := QuoteBuy(state, big.NewInt(5000))
	require.NoError(t, err)
	state, err = ApplyBuy(state, big.NewInt(5000), cost)
	require.NoError(t, err)

	after, err := QuoteBuy(state, big.NewInt(100))
	require.NoError(t, err)

	assert.Equal(t, 1, after.Cmp(before))
}

func TestQuoteSellMoreThanSold(t *testing.T) {
	state := newState(t, 10, 1, 1000)

	cost, err := QuoteBuy(state, big.NewInt(50))
	require.NoError(t, err)
	state, err = ApplyBuy(state, big.NewInt(50), cost)
	require.NoError(t, err)

	_, err = QuoteSell(state, big.NewInt(51))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	proceeds, err := QuoteSell(state, big.NewInt(50))
	require.NoError(t, err)
	assert.True(t, proceeds.Sign() > 0)
}

func TestApplyBuySupplyGuard(t *testing.T) {
	state := newState(t, 10, 1, 100)

	_, err := ApplyBuy(state, big.NewInt(101), big.NewInt(2000))
	assert.ErrorIs(t, err, domain.ErrSupplyExceeded)

	next, err := ApplyBuy(state, big.NewInt(100), big.NewInt(2000))
	require.NoError(t, err)
	assert.Zero(t, next.Remaining().Sign())

	_, err = ApplyBuy(next, big.NewInt(1), big.NewInt(100))
	assert.ErrorIs(t, err, domain.ErrSupplyExceeded)
}

func TestApplySellReserveGuard(t *testing.T) {
	state := newState(t, 10, 1, 1000)

	cost, err := QuoteBuy(state, big.NewInt(10))
	require.NoError(t, err)
	state, err = ApplyBuy(state, big.NewInt(10), cost)
	require.NoError(t, err)

	tooMuch := new(big.Int).Add(state.ReserveQuote, big.NewInt(1))
	_, err = ApplySell(state, big.NewInt(10), tooMuch)
	assert.ErrorIs(t, err, domain.ErrInsufficientReserve)
}

func TestApplyLeavesInputUntouched(t *testing.T) {
	state := newState(t, 10, 1, 1000)

	next, err := ApplyBuy(state, big.NewInt(7), big.NewInt(100))
	require.NoError(t, err)

	assert.Zero(t, state.TokensSold.Sign())
	assert.Zero(t, state.ReserveQuote.Sign())
	assert.Equal(t, uint64(0), state.Version)

	assert.Equal(t, "7", next.TokensSold.String())
	assert.Equal(t, "100", next.ReserveQuote.String())
	assert.Equal(t, uint64(1), next.Version)
}

func TestBuySellRoundTripNeverProfits(t *testing.T) {
	state := newState(t, 10_000_000_000, 1_000_000_000, 1_000_000_000)

	for _, amount := range []int64{1, 3, 17, 250, 99_999} {
		cost, err := QuoteBuy(state, big.NewInt(amount))
		require.NoError(t, err)

		next, err := ApplyBuy(state, big.NewInt(amount), cost)
		require.NoError(t, err)

		proceeds, err := QuoteSell(next, big.NewInt(amount))
		require.NoError(t, err)

		assert.True(t, cost.Cmp(proceeds) >= 0, "amount %d: cost %s < proceeds %s", amount, cost, proceeds)
		state = next
	}
}
