/*

The launch: the one-shot conversion of collected deposits plus matching native
inventory into a liquidity position. This transition carries the strictest
ordering discipline in the engine:

 1. the pool lock is held for the whole operation, so a reentrant call from
    inside the router cannot re-invoke Launch (or any other mutation of this
    pool) before the transition is visible;
 2. status and allocation numbers commit BEFORE the router call, so anything
    the router re-enters to read observes the launched state;
 3. if the router call itself fails, the staged transition is rolled back under
    the still-held lock and the whole call aborts - nothing half-launched
    survives.

*/

package genesis

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/types"
)

// Launch converts the pool's deposits and native inventory into a liquidity
// position. Full launch when totalDeposits meets the owner's target, partial
// otherwise; in either case, once the allocation is computed:
//
//	allocatedNative + refundableNative == proposedNativeAmount
func (m *Manager) Launch(id types.PoolID, maturity time.Time, deadline time.Time) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if p.Status != types.PreLaunchDepositDisabled {
		return fmt.Errorf("%w: launch requires %s, pool is %s",
			types.ErrInvalidState, types.PreLaunchDepositDisabled, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	prevStatus := p.Status
	prevAlloc := p.Alloc
	prevNative := p.nativeBalance

	alloc, full := computeAllocation(p.Deposits.Total(), p.Info.ProposedNativeAmount)

	// Commit the transition before the router call.
	p.Alloc = alloc
	p.nativeBalance = p.nativeBalance.Sub(alloc.AllocatedNative)
	if p.nativeBalance.IsNegative() {
		// Owner inventory was never deposited; launch cannot proceed.
		p.Alloc = prevAlloc
		p.nativeBalance = prevNative
		return fmt.Errorf("%w: native inventory %s short of allocation %s",
			types.ErrInvalidState, prevNative, alloc.AllocatedNative)
	}
	if full {
		p.Status = types.Launch
	} else {
		p.Status = types.PartiallyLaunched
	}
	p.maturity = maturity

	// The router is untrusted and may re-enter; every mutation of this pool is
	// rejected by the held lock until Launch returns.
	_, _, liquidity, err := m.router.AddLiquidity(
		p.Info.NativeToken, p.Info.FundingToken, p.Info.Stable,
		alloc.AllocatedNative, alloc.AllocatedFunding,
		alloc.AllocatedNative, alloc.AllocatedFunding,
		m.treasury, deadline,
	)
	if err != nil {
		// Roll back the staged transition under the lock: all-or-nothing.
		p.Status = prevStatus
		p.Alloc = prevAlloc
		p.nativeBalance = prevNative
		p.maturity = time.Time{}
		return fmt.Errorf("%w: router addLiquidity: %v", types.ErrExternalCall, err)
	}

	p.Alloc.Liquidity = liquidity
	m.retire(id)

	m.logger.Info().
		Uint64("poolID", uint64(id)).
		Str("status", p.Status.String()).
		Str("allocatedNative", alloc.AllocatedNative.String()).
		Str("allocatedFunding", alloc.AllocatedFunding.String()).
		Str("refundableNative", alloc.RefundableNative.String()).
		Str("liquidity", liquidity.String()).
		Time("maturity", maturity).
		Msg("Pool launched")

	m.archive(p)
	return nil
}

// computeAllocation splits the proposed native amount against the collected
// deposits. The owner's funding target is met when totalDeposits covers the
// proposed native amount; below target, native is matched 1:1 against deposits
// and the unfunded remainder becomes refundable.
func computeAllocation(totalDeposits, proposedNative sdkmath.Int) (types.Allocation, bool) {
	alloc := types.ZeroAllocation()
	alloc.AllocatedFunding = totalDeposits

	if totalDeposits.GTE(proposedNative) {
		alloc.AllocatedNative = proposedNative
		alloc.RefundableNative = sdkmath.ZeroInt()
		return alloc, true
	}

	alloc.AllocatedNative = totalDeposits
	alloc.RefundableNative = proposedNative.Sub(totalDeposits)
	return alloc, false
}

// UnstakeOwnerLiquidity flags the owner's one-time unstake of the launched
// position once maturity has passed. Custody of the position itself lives with
// the external staking collaborator; the engine only gates the transition.
func (m *Manager) UnstakeOwnerLiquidity(id types.PoolID, caller types.Address, now time.Time) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if caller != p.Info.TokenOwner {
		return fmt.Errorf("%w: only the token owner can unstake", types.ErrUnauthorized)
	}
	if p.Status != types.Launch && p.Status != types.PartiallyLaunched {
		return fmt.Errorf("%w: unstake requires a launched pool, got %s", types.ErrInvalidState, p.Status)
	}
	if now.Before(p.maturity) {
		return fmt.Errorf("%w: position matures at %s", types.ErrInvalidState, p.maturity)
	}
	if p.TokenOwnerUnstaked {
		return fmt.Errorf("%w: owner already unstaked", types.ErrInvalidState)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	p.TokenOwnerUnstaked = true
	m.logger.Info().Uint64("poolID", uint64(id)).Msg("Owner liquidity unstaked")
	m.archive(p)
	return nil
}
