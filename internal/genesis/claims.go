/*

Claim-side operations. Claimability is a pure predicate over (is-owner,
has-deposit, status, allocation, incentive-presence). The claim operations
follow the batch discipline decided for this engine: debit the whole batch
first, transfer second, and on the first failed transfer re-credit the failed
and not-yet-attempted entries. Tokens already transferred stay settled, so
nothing is lost and nothing is paid twice; the remainder stays claimable.

*/

package genesis

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/ledger"
	"github.com/meridian-dex/gpm/internal/state"
	"github.com/meridian-dex/gpm/internal/types"
)

// IsClaimable reports whether the user has anything claimable on the pool.
func (m *Manager) IsClaimable(id types.PoolID, user types.Address) (bool, error) {
	p, err := m.Pool(id)
	if err != nil {
		return false, err
	}
	return p.claimableBy(user), nil
}

func (p *Pool) claimableBy(user types.Address) bool {
	isOwner := user == p.Info.TokenOwner
	hasDeposit := p.Deposits.AmountOf(user).IsPositive()
	hasIncentives := len(p.Incentives.Tokens()) > 0

	switch p.Status {
	case types.NotQualified:
		// Owner claims the native refund or the incentives back; depositors
		// claim their funding back.
		return isOwner || hasDeposit
	case types.NativeTokenDeposited:
		if isOwner {
			return p.nativeBalance.IsPositive() || hasIncentives
		}
		return hasDeposit
	case types.PreListing, types.PreLaunch, types.PreLaunchDepositDisabled:
		// Ongoing pool: only the owner has a stake to act on.
		return isOwner
	case types.PartiallyLaunched:
		if isOwner {
			// Refund of the unfunded native remainder, or incentives - never
			// nothing.
			return p.nativeBalance.IsPositive() || hasIncentives
		}
		return hasDeposit
	case types.Launch:
		return false
	default:
		return false
	}
}

// ClaimRefund pays back what the pool owes the caller outside of incentives:
// the owner's native inventory (disqualified, withdrawn, or the unfunded
// remainder of a partial launch) or a depositor's funding tokens after
// disqualification.
func (m *Manager) ClaimRefund(id types.PoolID, caller types.Address) (sdkmath.Int, error) {
	p, err := m.Pool(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if caller.IsZero() {
		return sdkmath.ZeroInt(), types.ErrZeroAddress
	}

	release, err := m.lockPool(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	if caller == p.Info.TokenOwner {
		return m.refundOwnerNative(p, caller)
	}
	return m.refundDepositor(p, caller)
}

func (m *Manager) refundOwnerNative(p *Pool, caller types.Address) (sdkmath.Int, error) {
	switch p.Status {
	case types.NotQualified, types.NativeTokenDeposited, types.PartiallyLaunched:
	default:
		return sdkmath.ZeroInt(), fmt.Errorf("%w: owner refund not available while %s",
			types.ErrInvalidState, p.Status)
	}

	amount := p.nativeBalance
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	// Debit, then push.
	p.nativeBalance = sdkmath.ZeroInt()
	if err := p.native.Transfer(caller, amount); err != nil {
		p.nativeBalance = amount
		return sdkmath.ZeroInt(), fmt.Errorf("%w: native refund: %v", types.ErrExternalCall, err)
	}

	m.logger.Info().
		Uint64("poolID", uint64(p.ID)).
		Str("amount", amount.String()).
		Msg("Owner native refund paid")
	m.recordClaim(p.ID, caller, p.Info.NativeToken, amount, "native_refund")
	return amount, nil
}

func (m *Manager) refundDepositor(p *Pool, caller types.Address) (sdkmath.Int, error) {
	if p.Status != types.NotQualified {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit refund requires %s, pool is %s",
			types.ErrInvalidState, types.NotQualified, p.Status)
	}

	amount := p.Deposits.ZeroOut(caller)
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	if err := p.funding.Transfer(caller, amount); err != nil {
		p.Deposits.Restore(caller, amount)
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit refund: %v", types.ErrExternalCall, err)
	}

	m.logger.Info().
		Uint64("poolID", uint64(p.ID)).
		Str("account", caller.String()).
		Str("amount", amount.String()).
		Msg("Deposit refund paid")
	m.recordClaim(p.ID, caller, p.Info.FundingToken, amount, "deposit_refund")
	return amount, nil
}

// stagedPayout is one entry of a claim batch after its ledger debit.
type stagedPayout struct {
	tok    types.Address
	amount sdkmath.Int
}

// ClaimIncentives pays the caller's credited incentive share across every
// incentive token, exactly once, under the pool lock for the whole batch.
// Once the pool is disqualified the incentives return to the token owner; once
// launched (fully or partially) they are apportioned pro-rata to depositors by
// deposit share, truncating down.
func (m *Manager) ClaimIncentives(id types.PoolID, caller types.Address) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if caller.IsZero() {
		return types.ErrZeroAddress
	}
	if !p.Status.IsTerminal() {
		return fmt.Errorf("%w: incentives claimable once terminal, pool is %s",
			types.ErrInvalidState, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	// Stage: compute and commit every debit before the first transfer.
	var plan []stagedPayout
	for _, tok := range p.Incentives.Tokens() {
		owed := m.incentiveShare(p, caller, tok)
		if !owed.IsPositive() {
			continue
		}
		p.Incentives.MarkClaimed(caller, tok, owed)
		plan = append(plan, stagedPayout{tok: tok, amount: owed})
	}
	if len(plan) == 0 {
		return nil
	}

	// Transfer phase. On the first failure, restore the failed and every
	// unattempted entry; entries already transferred stay settled.
	for i, payout := range plan {
		contract := p.incentiveContracts[payout.tok]
		var transferErr error
		if contract == nil {
			transferErr = fmt.Errorf("no contract handle for %s", payout.tok)
		} else {
			transferErr = contract.Transfer(caller, payout.amount)
		}
		if transferErr != nil {
			for _, unwind := range plan[i:] {
				p.Incentives.Unclaim(caller, unwind.tok, unwind.amount)
			}
			return fmt.Errorf("%w: incentive payout %s: %v", types.ErrExternalCall, payout.tok, transferErr)
		}
		m.recordClaim(p.ID, caller, payout.tok, payout.amount, "incentive")
	}

	m.logger.Info().
		Uint64("poolID", uint64(id)).
		Str("account", caller.String()).
		Int("tokens", len(plan)).
		Msg("Incentives claimed")
	return nil
}

// incentiveShare is the caller's unclaimed share of one incentive token.
func (m *Manager) incentiveShare(p *Pool, caller types.Address, tok types.Address) sdkmath.Int {
	credit := p.Incentives.CreditOf(tok)
	claimed := p.Incentives.ClaimedBy(caller, tok)

	var entitled sdkmath.Int
	if p.Status == types.NotQualified {
		// The pool never launched; incentives return to the owner who funded
		// them.
		if caller != p.Info.TokenOwner {
			return sdkmath.ZeroInt()
		}
		entitled = credit
	} else {
		entitled = ledger.ProRata(credit, p.Deposits.AmountOf(caller), p.Deposits.Total())
	}

	owed := entitled.Sub(claimed)
	if owed.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return owed
}

// recordClaim archives a claim receipt, best effort.
func (m *Manager) recordClaim(id types.PoolID, account, tok types.Address, amount sdkmath.Int, kind string) {
	if err := state.SaveClaimReceipt(uint64(id), account.String(), tok.String(), amount.String(), kind); err != nil {
		m.logger.Debug().Err(err).Uint64("poolID", uint64(id)).Msg("Claim receipt not archived")
	}
}
