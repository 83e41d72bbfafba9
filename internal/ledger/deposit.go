/*

Per-pool deposit bookkeeping. The book is pure state: it never performs token
transfers itself. Callers (the pool lifecycle) commit book mutations first and
make the outbound transfer second, so a reentrant call observes already-updated
totals.

Invariant maintained by every mutation: Total() == sum of per-account amounts.

*/

package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/types"
)

// DepositBook tracks depositor balances for one pool.
type DepositBook struct {
	depositors []types.Address
	amounts    map[types.Address]sdkmath.Int
	total      sdkmath.Int
}

// NewDepositBook returns an empty book.
func NewDepositBook() *DepositBook {
	return &DepositBook{
		amounts: make(map[types.Address]sdkmath.Int),
		total:   sdkmath.ZeroInt(),
	}
}

// Credit records a deposit for the account, appending it to the depositor set on
// first contact. Zero and negative amounts are rejected.
func (b *DepositBook) Credit(account types.Address, amount sdkmath.Int) error {
	if account.IsZero() {
		return types.ErrZeroAddress
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: deposit amount must be positive", types.ErrArithmeticBounds)
	}
	if _, seen := b.amounts[account]; !seen {
		b.depositors = append(b.depositors, account)
		b.amounts[account] = sdkmath.ZeroInt()
	}
	b.amounts[account] = b.amounts[account].Add(amount)
	b.total = b.total.Add(amount)
	return nil
}

// ZeroOut removes the account's whole balance from the book and returns it.
// Used for refund claims; the caller transfers after this commit and calls
// Restore if the transfer fails.
func (b *DepositBook) ZeroOut(account types.Address) sdkmath.Int {
	amount, ok := b.amounts[account]
	if !ok || amount.IsZero() {
		return sdkmath.ZeroInt()
	}
	b.amounts[account] = sdkmath.ZeroInt()
	b.total = b.total.Sub(amount)
	return amount
}

// Restore re-credits a previously zeroed balance after a failed outbound
// transfer, preserving the sum invariant.
func (b *DepositBook) Restore(account types.Address, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	if _, seen := b.amounts[account]; !seen {
		// ZeroOut never removes accounts from the book, so only a restore for an
		// account that never deposited lands here; keep the set append-only.
		b.depositors = append(b.depositors, account)
		b.amounts[account] = sdkmath.ZeroInt()
	}
	b.amounts[account] = b.amounts[account].Add(amount)
	b.total = b.total.Add(amount)
}

// Debit reverses part of a credit after its pull transfer failed, preserving
// the sum invariant. Clamped at zero.
func (b *DepositBook) Debit(account types.Address, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	prev, ok := b.amounts[account]
	if !ok {
		return
	}
	if amount.GT(prev) {
		amount = prev
	}
	b.amounts[account] = prev.Sub(amount)
	b.total = b.total.Sub(amount)
}

// AmountOf returns the account's balance, a defined zero for strangers.
func (b *DepositBook) AmountOf(account types.Address) sdkmath.Int {
	if amount, ok := b.amounts[account]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

// Total returns the running deposit total.
func (b *DepositBook) Total() sdkmath.Int {
	return b.total
}

// Depositors returns a copy of the append-only depositor set.
func (b *DepositBook) Depositors() []types.Address {
	out := make([]types.Address, len(b.depositors))
	copy(out, b.depositors)
	return out
}

// ProRata returns whole * part / total, truncating down, with a defined zero
// when total is zero. The truncation bias always favors the pool, never the
// claimant.
func ProRata(whole, part, total sdkmath.Int) sdkmath.Int {
	if total.IsNil() || total.IsZero() || whole.IsNil() || part.IsNil() {
		return sdkmath.ZeroInt()
	}
	return whole.Mul(part).Quo(total)
}
