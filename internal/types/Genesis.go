/*

Core types for the genesis pool engine: addresses, pool identity, the lifecycle
status enum and the launch allocation snapshot.

*/

package types

import (
	"cosmossdk.io/math"
)

// PoolID identifies a genesis pool within the manager.
type PoolID uint64

// Address is an opaque account/contract identifier on the host chain.
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

func (a Address) String() string {
	return string(a)
}

// PoolStatus is the lifecycle state of a genesis pool.
type PoolStatus int

const (
	PreListing PoolStatus = iota
	PreLaunch
	PreLaunchDepositDisabled
	Launch
	PartiallyLaunched
	NativeTokenDeposited
	NotQualified
)

func (s PoolStatus) String() string {
	switch s {
	case PreListing:
		return "PRE_LISTING"
	case PreLaunch:
		return "PRE_LAUNCH"
	case PreLaunchDepositDisabled:
		return "PRE_LAUNCH_DEPOSIT_DISABLED"
	case Launch:
		return "LAUNCH"
	case PartiallyLaunched:
		return "PARTIALLY_LAUNCHED"
	case NativeTokenDeposited:
		return "NATIVE_TOKEN_DEPOSITED"
	case NotQualified:
		return "NOT_QUALIFIED"
	default:
		return "UNKNOWN"
	}
}

// AcceptsDeposits reports whether public funding-token deposits are open.
// Only the pre-launch window accepts deposits.
func (s PoolStatus) AcceptsDeposits() bool {
	return s == PreLaunch
}

// IsTerminal reports whether the pool can never transition again. Terminal pools
// stay readable and claim-eligible; they are closed, not destroyed.
func (s PoolStatus) IsTerminal() bool {
	return s == Launch || s == PartiallyLaunched || s == NotQualified
}

// GenesisInfo is the immutable configuration a pool is created with.
type GenesisInfo struct {
	NativeToken  Address `json:"native_token"`
	FundingToken Address `json:"funding_token"`
	TokenOwner   Address `json:"token_owner"`

	// ProposedNativeAmount is the owner's funding target: the native inventory the
	// owner commits to pair against public deposits at launch.
	ProposedNativeAmount math.Int `json:"proposed_native_amount"`

	// Stable selects the stable-curve pool on the router at launch.
	Stable bool `json:"stable"`
}

// Allocation holds the launch-time split computed from totalDeposits against the
// proposed target. Invariant once computed:
//
//	AllocatedNative + RefundableNative == ProposedNativeAmount
type Allocation struct {
	AllocatedNative  math.Int `json:"allocated_native"`
	AllocatedFunding math.Int `json:"allocated_funding"`
	RefundableNative math.Int `json:"refundable_native"`
	Liquidity        math.Int `json:"liquidity"`
}

// ZeroAllocation returns an allocation with every field set to a defined zero.
func ZeroAllocation() Allocation {
	return Allocation{
		AllocatedNative:  math.ZeroInt(),
		AllocatedFunding: math.ZeroInt(),
		RefundableNative: math.ZeroInt(),
		Liquidity:        math.ZeroInt(),
	}
}

// PoolSnapshot is the archival view of a pool persisted after every lifecycle
// transition.
type PoolSnapshot struct {
	PoolID           PoolID     `json:"pool_id"`
	Status           PoolStatus `json:"status"`
	StatusLabel      string     `json:"status_label"`
	NativeToken      Address    `json:"native_token"`
	FundingToken     Address    `json:"funding_token"`
	TokenOwner       Address    `json:"token_owner"`
	TotalDeposits    string     `json:"total_deposits"`
	ProposedNative   string     `json:"proposed_native"`
	AllocatedNative  string     `json:"allocated_native"`
	AllocatedFunding string     `json:"allocated_funding"`
	RefundableNative string     `json:"refundable_native"`
	Liquidity        string     `json:"liquidity"`
	DepositorCount   int        `json:"depositor_count"`
	IncentiveTokens  int        `json:"incentive_tokens"`
}
