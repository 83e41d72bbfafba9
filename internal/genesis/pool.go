/*

The Pool aggregate: one genesis pool's immutable configuration, lifecycle
status, deposit/incentive books, owner native inventory and launch allocation.
All mutation goes through the Manager, which owns the per-pool locks.

*/

package genesis

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/ledger"
	"github.com/meridian-dex/gpm/internal/token"
	"github.com/meridian-dex/gpm/internal/types"
)

// Pool is one genesis pool.
type Pool struct {
	ID     types.PoolID
	Info   types.GenesisInfo
	Status types.PoolStatus

	Deposits   *ledger.DepositBook
	Incentives *ledger.IncentiveBook
	Alloc      types.Allocation

	// nativeBalance is the owner's native-token inventory held in custody,
	// credited by DepositNativeToken and debited by refunds and the launch.
	nativeBalance sdkmath.Int

	// depositWindowEnd closes public deposits once reached; set when the pool
	// enters PreLaunch.
	depositWindowEnd time.Time

	// maturity is the LP maturity set at launch; the owner may unstake once
	// after it passes.
	maturity           time.Time
	TokenOwnerUnstaked bool

	native  token.Contract
	funding token.Contract

	// incentiveContracts keeps the contract handle for every credited incentive
	// token so claims can push without re-resolving.
	incentiveContracts map[types.Address]token.Contract
}

func newPool(id types.PoolID, info types.GenesisInfo, native, funding token.Contract) *Pool {
	return &Pool{
		ID:                 id,
		Info:               info,
		Status:             types.PreListing,
		Deposits:           ledger.NewDepositBook(),
		Incentives:         ledger.NewIncentiveBook(),
		Alloc:              types.ZeroAllocation(),
		nativeBalance:      sdkmath.ZeroInt(),
		native:             native,
		funding:            funding,
		incentiveContracts: make(map[types.Address]token.Contract),
	}
}

// NativeBalance returns the owner's native inventory currently in custody.
func (p *Pool) NativeBalance() sdkmath.Int {
	return p.nativeBalance
}

// DepositWindowEnd returns when public deposits close; zero until PreLaunch.
func (p *Pool) DepositWindowEnd() time.Time {
	return p.depositWindowEnd
}

// Maturity returns the LP maturity time; zero until launch.
func (p *Pool) Maturity() time.Time {
	return p.maturity
}

// Snapshot renders the archival view of the pool.
func (p *Pool) Snapshot() types.PoolSnapshot {
	return types.PoolSnapshot{
		PoolID:           p.ID,
		Status:           p.Status,
		StatusLabel:      p.Status.String(),
		NativeToken:      p.Info.NativeToken,
		FundingToken:     p.Info.FundingToken,
		TokenOwner:       p.Info.TokenOwner,
		TotalDeposits:    p.Deposits.Total().String(),
		ProposedNative:   p.Info.ProposedNativeAmount.String(),
		AllocatedNative:  p.Alloc.AllocatedNative.String(),
		AllocatedFunding: p.Alloc.AllocatedFunding.String(),
		RefundableNative: p.Alloc.RefundableNative.String(),
		Liquidity:        p.Alloc.Liquidity.String(),
		DepositorCount:   len(p.Deposits.Depositors()),
		IncentiveTokens:  len(p.Incentives.Tokens()),
	}
}
