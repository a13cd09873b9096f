package executor

import (
	"context"
	"math/big"
	"time"

	"github.com/memekipedia/tradecore/internal/domain"
)

// SubmitStatus is the synchronous outcome of handing a trade to the
// settlement layer.
type SubmitStatus int

const (
	// SubmitPending accepted, finality unknown.
	SubmitPending SubmitStatus = iota
	// SubmitConfirmed accepted and already final.
	SubmitConfirmed
	// SubmitFailed rejected before entering the ledger.
	SubmitFailed
)

// ConfirmationStatus is the outcome of awaiting finality for a submitted trade.
type ConfirmationStatus int

const (
	// ConfirmationConfirmed the trade settled.
	ConfirmationConfirmed ConfirmationStatus = iota
	// ConfirmationFailed the trade reverted or was dropped.
	ConfirmationFailed
	// ConfirmationTimeout finality unknown within the window. The submission
	// may still land later.
	ConfirmationTimeout
)

// TradeDescriptor is what the settlement layer needs to execute a trade.
type TradeDescriptor struct {
	// ID client reference, equals the intent ID.
	ID          string
	Participant string
	Mode        domain.Mode
	Pair        domain.Pair
	// CurveID target curve contract, empty for pool swaps.
	CurveID string
	// AmountTokens the token side of the trade.
	AmountTokens *big.Int
	// BoundAmount max-in (buys) or min-out (sells), enforced by the ledger too.
	BoundAmount *big.Int
}

// SubmitReceipt references a submitted trade.
type SubmitReceipt struct {
	Status SubmitStatus
	// Ref settlement layer reference, e.g. a transaction hash.
	Ref string
}

// Settlement abstracts the ledger or contract call mechanism executing trades.
type Settlement interface {
	Submit(ctx context.Context, desc TradeDescriptor) (SubmitReceipt, error)
	AwaitConfirmation(ctx context.Context, ref string, timeout time.Duration) (ConfirmationStatus, error)
}

// PoolReader reads constant-product pool reserves for a pair.
type PoolReader interface {
	ReadPoolReserves(ctx context.Context, pair domain.Pair) (*domain.PoolReserves, error)
}

// authorizationGate is the slice of the allowance gate the executor needs.
type authorizationGate interface {
	NeedsAuthorization(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) (bool, error)
	EnsureAuthorized(ctx context.Context, owner, spender string, asset domain.Asset, amount *big.Int) error
}

// balanceRefresher is triggered after every terminal trade state; partial
// failures can still move balances (fees), so the trigger is unconditional.
type balanceRefresher interface {
	TriggerRefresh(participant string, pair domain.Pair)
}
