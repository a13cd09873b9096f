package domain

import "math/big"

// AllowanceState tracks the spender authorization lifecycle for one
// owner/spender/asset triple.
type AllowanceState int

const (
	// AllowanceUnknown no fresh read has been performed.
	AllowanceUnknown AllowanceState = iota
	// AllowanceCheckedSufficient last read covered the requested amount.
	AllowanceCheckedSufficient
	// AllowanceCheckedInsufficient last read fell short, authorization needed.
	AllowanceCheckedInsufficient
	// AllowanceAuthorizing authorization submitted, not yet confirmed.
	AllowanceAuthorizing
	// AllowanceAuthorized authorization externally confirmed.
	AllowanceAuthorized
)

// String returns the string representation of the allowance state.
func (s AllowanceState) String() string {
	switch s {
	case AllowanceCheckedSufficient:
		return "checked_sufficient"
	case AllowanceCheckedInsufficient:
		return "checked_insufficient"
	case AllowanceAuthorizing:
		return "authorizing"
	case AllowanceAuthorized:
		return "authorized"
	default:
		return "unknown"
	}
}

// AllowanceRecord is a cached view of a spender authorization.
type AllowanceRecord struct {
	Owner   string
	Spender string
	Asset   Asset
	// ApprovedAmount wei the spender may move on the owner's behalf.
	ApprovedAmount *big.Int
	// State lifecycle position of the record.
	State AllowanceState
}
