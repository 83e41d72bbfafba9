/*

Deposit-side operations: the owner's native inventory deposit, public
funding-token deposits, and incentive credits. Effect order is mandatory
throughout: the ledger mutation commits before the external pull transfer, so a
reentrant call during the pull observes already-updated totals and cannot mint
value from nothing. The per-pool lock turns any reentrant mutation of the same
pool into a hard ErrReentrancy.

*/

package genesis

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/token"
	"github.com/meridian-dex/gpm/internal/types"
)

// DepositNativeToken pulls the owner's proposed native allocation into custody
// and moves a PreListing pool to NativeTokenDeposited.
func (m *Manager) DepositNativeToken(id types.PoolID, caller types.Address) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if caller != p.Info.TokenOwner {
		return fmt.Errorf("%w: only the token owner can deposit the native allocation", types.ErrUnauthorized)
	}
	if p.Status != types.PreListing {
		return fmt.Errorf("%w: native deposit requires %s, pool is %s",
			types.ErrInvalidState, types.PreListing, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	amount := p.Info.ProposedNativeAmount

	// Commit before the pull.
	p.nativeBalance = p.nativeBalance.Add(amount)
	p.Status = types.NativeTokenDeposited

	if err := p.native.TransferFrom(caller, m.treasury, amount); err != nil {
		p.nativeBalance = p.nativeBalance.Sub(amount)
		p.Status = types.PreListing
		return fmt.Errorf("%w: native pull: %v", types.ErrExternalCall, err)
	}

	m.logger.Info().
		Uint64("poolID", uint64(id)).
		Str("amount", amount.String()).
		Msg("Owner native allocation deposited")

	m.archive(p)
	return nil
}

// Deposit records a public funding-token deposit and pulls the amount into
// custody. Only pools whose status accepts deposits can be deposited into, and
// only while the deposit window is open.
func (m *Manager) Deposit(id types.PoolID, account types.Address, amount sdkmath.Int) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if account.IsZero() {
		return types.ErrZeroAddress
	}
	if !p.Status.AcceptsDeposits() {
		return fmt.Errorf("%w: deposits not accepted while %s", types.ErrInvalidState, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	// Ledger first: append the account if new, bump its balance and the total.
	if err := p.Deposits.Credit(account, amount); err != nil {
		return err
	}

	// Then the untrusted pull. On failure the whole operation unwinds.
	if err := p.funding.TransferFrom(account, m.treasury, amount); err != nil {
		p.Deposits.Debit(account, amount)
		return fmt.Errorf("%w: funding pull: %v", types.ErrExternalCall, err)
	}

	m.logger.Debug().
		Uint64("poolID", uint64(id)).
		Str("account", account.String()).
		Str("amount", amount.String()).
		Str("totalDeposits", p.Deposits.Total().String()).
		Msg("Deposit recorded")

	return nil
}

// AddIncentive credits bonus tokens to the pool and pulls them into custody.
// Only the token owner may add incentives, and only the pool's native token or
// a pre-approved connector token is accepted.
func (m *Manager) AddIncentive(id types.PoolID, caller types.Address, tok token.Contract, amount sdkmath.Int) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if caller != p.Info.TokenOwner {
		return fmt.Errorf("%w: only the token owner can add incentives", types.ErrUnauthorized)
	}
	if tok == nil {
		return fmt.Errorf("%w: incentive token contract", types.ErrMissingDependency)
	}
	addr := tok.Address()
	if addr != p.Info.NativeToken && !m.connectors[addr] {
		return fmt.Errorf("%w: token %s is neither the native token nor an approved connector",
			types.ErrInvalidState, addr)
	}
	if p.Status.IsTerminal() {
		return fmt.Errorf("%w: incentives closed once %s", types.ErrInvalidState, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	// Credit, then pull.
	if err := p.Incentives.Credit(addr, amount); err != nil {
		return err
	}
	p.incentiveContracts[addr] = tok

	if err := tok.TransferFrom(caller, m.treasury, amount); err != nil {
		// Undo the credit; the book's token set stays append-only.
		p.Incentives.Debit(addr, amount)
		return fmt.Errorf("%w: incentive pull: %v", types.ErrExternalCall, err)
	}

	m.logger.Debug().
		Uint64("poolID", uint64(id)).
		Str("token", addr.String()).
		Str("amount", amount.String()).
		Msg("Incentive credited")

	return nil
}
