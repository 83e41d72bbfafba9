/*

Per-pool incentive bookkeeping: bonus-token credits accumulated per token, with
per-(account, token) claimed markers so a claimant can never be paid the same
share twice. Like the deposit book this is pure state; transfer ordering is the
caller's contract.

*/

package ledger

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/types"
)

// IncentiveBook tracks bonus-token credits for one pool.
type IncentiveBook struct {
	tokens  []types.Address
	credits map[types.Address]sdkmath.Int
	claimed map[types.Address]map[types.Address]sdkmath.Int
}

// NewIncentiveBook returns an empty book.
func NewIncentiveBook() *IncentiveBook {
	return &IncentiveBook{
		credits: make(map[types.Address]sdkmath.Int),
		claimed: make(map[types.Address]map[types.Address]sdkmath.Int),
	}
}

// Credit accumulates an incentive for the token, appending it to the token set
// on first contact.
func (b *IncentiveBook) Credit(tok types.Address, amount sdkmath.Int) error {
	if tok.IsZero() {
		return types.ErrZeroAddress
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: incentive amount must be positive", types.ErrArithmeticBounds)
	}
	if _, seen := b.credits[tok]; !seen {
		b.tokens = append(b.tokens, tok)
		b.credits[tok] = sdkmath.ZeroInt()
	}
	b.credits[tok] = b.credits[tok].Add(amount)
	return nil
}

// Debit reverses part of a credit after its pull transfer failed. The token
// stays in the append-only token set; only the accumulated amount shrinks.
func (b *IncentiveBook) Debit(tok types.Address, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	prev, ok := b.credits[tok]
	if !ok {
		return
	}
	next := prev.Sub(amount)
	if next.IsNegative() {
		next = sdkmath.ZeroInt()
	}
	b.credits[tok] = next
}

// Tokens returns a copy of the append-only incentive-token set.
func (b *IncentiveBook) Tokens() []types.Address {
	out := make([]types.Address, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// CreditOf returns the accumulated credit for the token, a defined zero when
// the token was never credited.
func (b *IncentiveBook) CreditOf(tok types.Address) sdkmath.Int {
	if amount, ok := b.credits[tok]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

// ClaimedBy returns how much of the token the account has already been paid.
func (b *IncentiveBook) ClaimedBy(account, tok types.Address) sdkmath.Int {
	if byToken, ok := b.claimed[account]; ok {
		if amount, ok := byToken[tok]; ok {
			return amount
		}
	}
	return sdkmath.ZeroInt()
}

// MarkClaimed records a payout before the outbound transfer is made.
func (b *IncentiveBook) MarkClaimed(account, tok types.Address, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	byToken, ok := b.claimed[account]
	if !ok {
		byToken = make(map[types.Address]sdkmath.Int)
		b.claimed[account] = byToken
	}
	prev, ok := byToken[tok]
	if !ok {
		prev = sdkmath.ZeroInt()
	}
	byToken[tok] = prev.Add(amount)
}

// Unclaim restores a previously marked payout after its transfer failed, making
// the amount claimable again.
func (b *IncentiveBook) Unclaim(account, tok types.Address, amount sdkmath.Int) {
	if amount.IsNil() || !amount.IsPositive() {
		return
	}
	byToken, ok := b.claimed[account]
	if !ok {
		return
	}
	prev, ok := byToken[tok]
	if !ok {
		return
	}
	next := prev.Sub(amount)
	if next.IsNegative() {
		next = sdkmath.ZeroInt()
	}
	byToken[tok] = next
}
