package domain

import "github.com/pkg/errors"

// Typed errors returned by the pricing and settlement core. Input and
// resource errors are never retried automatically; settlement errors carry
// their own retry semantics (see ErrConfirmationTimeout).
var (
	// ErrInvalidAmount indicates a zero, negative or otherwise malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountTooLarge indicates the requested output exceeds available reserve or supply.
	ErrAmountTooLarge = errors.New("amount exceeds available reserve or supply")
	// ErrExpired indicates the intent deadline elapsed before submission.
	ErrExpired = errors.New("trade intent expired")
	// ErrSlippageExceeded indicates the recomputed counter amount violates the intent bound.
	ErrSlippageExceeded = errors.New("slippage tolerance exceeded")
	// ErrSupplyExceeded indicates a buy would push tokensSold past the curve supply.
	ErrSupplyExceeded = errors.New("curve supply exceeded")
	// ErrInsufficientReserve indicates a sell would drain more than the curve reserve holds.
	ErrInsufficientReserve = errors.New("insufficient curve reserve")
	// ErrCurveNotSet indicates a curve-kind pricing source carries no curve state.
	ErrCurveNotSet = errors.New("curve state not set")
	// ErrPoolNotFound indicates no AMM pool is registered for the pair.
	ErrPoolNotFound = errors.New("pool not found")
	// ErrZeroLiquidity indicates the pool exists but one of its reserves is empty.
	ErrZeroLiquidity = errors.New("pool has zero liquidity")
	// ErrAuthorizationFailed indicates the spender authorization step failed.
	// Re-submitting the same authorization is safe: raising an allowance to the
	// same or higher value is idempotent.
	ErrAuthorizationFailed = errors.New("authorization failed")
	// ErrSubmissionFailed indicates the trade was rejected before entering the
	// ledger. Safe to retry with a fresh quote.
	ErrSubmissionFailed = errors.New("trade submission failed")
	// ErrConfirmationTimeout indicates the submission outcome is unknown. The
	// caller MUST reconcile actual ledger state before retrying: the trade may
	// or may not have landed.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
)
