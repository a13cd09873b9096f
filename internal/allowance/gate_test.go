package allowance

import (
	"context"
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/memekipedia/tradecore/internal/domain"
)

type readermock struct {
	approved *big.Int
	err      error
	calls    int
}

func (r *readermock) ReadAllowance(_ context.Context, _, _ string, _ domain.Asset) (*big.Int, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return new(big.Int).Set(r.approved), nil
}

type submittermock struct {
	err   error
	calls int
}

func (s *submittermock) Authorize(_ context.Context, _, _ string, _ domain.Asset, _ *big.Int) error {
	s.calls++
	return s.err
}

var (
	wiki = domain.Asset{Symbol: "WIKI", Decimals: 18}
	m    = domain.Asset{Symbol: "M", Native: true}
)

func TestNativeAssetNeverNeedsAuthorization(t *testing.T) {
	reader := &readermock{approved: big.NewInt(0)}
	gate := NewGate(reader, &submittermock{}, zap.NewNop())

	needs, err := gate.NeedsAuthorization(context.Background(), "alice", "curve", m, big.NewInt(1000))
	require.NoError(t, err)
	assert.False(t, needs)
	assert.Zero(t, reader.calls, "native path must not read allowance")
}

func TestNeedsAuthorizationReadsLive(t *testing.T) {
	reader := &readermock{approved: big.NewInt(500)}
	gate := NewGate(reader, &submittermock{}, zap.NewNop())

	needs, err := gate.NeedsAuthorization(context.Background(), "alice", "curve", wiki, big.NewInt(1000))
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Equal(t, domain.AllowanceCheckedInsufficient, gate.State("alice", "curve", wiki))

	needs, err = gate.NeedsAuthorization(context.Background(), "alice", "curve", wiki, big.NewInt(100))
	require.NoError(t, err)
	assert.False(t, needs)
	assert.Equal(t, domain.AllowanceCheckedSufficient, gate.State("alice", "curve", wiki))

	// every check hits the settlement layer, the cache is never trusted
	assert.Equal(t, 2, reader.calls)
}

func TestNeedsAuthorizationReadError(t *testing.T) {
	reader := &readermock{err: errors.New("rpc unavailable")}
	gate := NewGate(reader, &submittermock{}, zap.NewNop())

	_, err := gate.NeedsAuthorization(context.Background(), "alice", "curve", wiki, big.NewInt(1000))
	assert.Error(t, err)
}

func TestEnsureAuthorizedConfirms(t *testing.T) {
	submitter := &submittermock{}
	gate := NewGate(&readermock{approved: big.NewInt(0)}, submitter, zap.NewNop())

	err := gate.EnsureAuthorized(context.Background(), "alice", "curve", wiki, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 1, submitter.calls)
	assert.Equal(t, domain.AllowanceAuthorized, gate.State("alice", "curve", wiki))
}

func TestEnsureAuthorizedFailureAllowsRetry(t *testing.T) {
	submitter := &submittermock{err: errors.New("reverted")}
	gate := NewGate(&readermock{approved: big.NewInt(0)}, submitter, zap.NewNop())

	err := gate.EnsureAuthorized(context.Background(), "alice", "curve", wiki, big.NewInt(1000))
	assert.ErrorIs(t, err, domain.ErrAuthorizationFailed)
	assert.Equal(t, domain.AllowanceAuthorizing, gate.State("alice", "curve", wiki))

	// the approval is idempotent, retrying after a failure is safe
	submitter.err = nil
	err = gate.EnsureAuthorized(context.Background(), "alice", "curve", wiki, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, domain.AllowanceAuthorized, gate.State("alice", "curve", wiki))
	assert.Equal(t, 2, submitter.calls)
}

func TestStateUnknownBeforeAnyCheck(t *testing.T) {
	gate := NewGate(&readermock{approved: big.NewInt(0)}, &submittermock{}, zap.NewNop())
	assert.Equal(t, domain.AllowanceUnknown, gate.State("alice", "curve", wiki))
}
