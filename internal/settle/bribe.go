/*

Epoch-weighted bribe settlement for vote-escrow position holders. Rewards are
credited into per-token per-epoch buckets; a position's earnings for an epoch
are its share of the epoch's voting supply. A per-(position, token) cursor
marks the last settled boundary so no epoch is ever paid twice, and claims
advance the cursor before transferring.

*/

package settle

import (
	"fmt"
	"strconv"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/gpm/internal/guard"
	"github.com/meridian-dex/gpm/internal/logger"
	"github.com/meridian-dex/gpm/internal/token"
	"github.com/meridian-dex/gpm/internal/types"
)

const lockKindPosition = "position"

// cursorKey identifies one (position, token) settlement cursor.
type cursorKey struct {
	position uint64
	tok      types.Address
}

// BribeConfig holds the dependencies for creating a Bribe.
type BribeConfig struct {
	// Name identifies the bribe in logs.
	Name string

	// Escrow is the vote-escrow accounting the claims are weighted with.
	Escrow EscrowView

	// Owners resolves delegate custody; optional.
	Owners OwnershipResolver

	// Custody receives notified rewards.
	Custody types.Address

	// Period is the epoch length; weekly in production.
	Period time.Duration

	// AllowedTokens restricts which tokens may be notified as rewards.
	AllowedTokens []types.Address
}

// Bribe is one gauge's bribe market.
type Bribe struct {
	logger zerolog.Logger
	locks  *guard.EntityLocks
	name   string

	escrow  EscrowView
	owners  OwnershipResolver
	custody types.Address
	period  time.Duration

	// firstEpoch is the epoch the bribe was created in; cursors start here.
	firstEpoch time.Time

	allowed   map[types.Address]bool
	tokens    []types.Address
	contracts map[types.Address]token.Contract
	rewards   map[types.Address]map[time.Time]sdkmath.Int
	cursors   map[cursorKey]time.Time
}

// NewBribe creates a Bribe after validating its dependencies.
func NewBribe(cfg BribeConfig, now time.Time) (*Bribe, error) {
	if cfg.Escrow == nil {
		return nil, fmt.Errorf("%w: escrow", types.ErrMissingDependency)
	}
	if cfg.Custody.IsZero() {
		return nil, fmt.Errorf("%w: custody", types.ErrZeroAddress)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive", types.ErrArithmeticBounds)
	}

	b := &Bribe{
		logger:     logger.GetForComponent("bribe"),
		locks:      guard.NewEntityLocks(),
		name:       cfg.Name,
		escrow:     cfg.Escrow,
		owners:     cfg.Owners,
		custody:    cfg.Custody,
		period:     cfg.Period,
		firstEpoch: now.Truncate(cfg.Period),
		allowed:    make(map[types.Address]bool),
		contracts:  make(map[types.Address]token.Contract),
		rewards:    make(map[types.Address]map[time.Time]sdkmath.Int),
		cursors:    make(map[cursorKey]time.Time),
	}
	for _, tok := range cfg.AllowedTokens {
		if !tok.IsZero() {
			b.allowed[tok] = true
		}
	}
	return b, nil
}

// epochOf floors t to the epoch boundary.
func (b *Bribe) epochOf(t time.Time) time.Time {
	return t.Truncate(b.period)
}

// RewardTokens returns a copy of the append-only reward-token set.
func (b *Bribe) RewardTokens() []types.Address {
	out := make([]types.Address, len(b.tokens))
	copy(out, b.tokens)
	return out
}

// NotifyReward credits a reward into the current epoch's bucket and pulls the
// tokens. Credit commits before the pull.
func (b *Bribe) NotifyReward(caller types.Address, tok token.Contract, amount sdkmath.Int, now time.Time) error {
	if tok == nil {
		return fmt.Errorf("%w: reward token contract", types.ErrMissingDependency)
	}
	addr := tok.Address()
	if !b.allowed[addr] {
		return fmt.Errorf("%w: token %s not allowed as a bribe reward", types.ErrInvalidState, addr)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: reward must be positive", types.ErrArithmeticBounds)
	}

	release, err := b.locks.Acquire("bribe", b.name)
	if err != nil {
		return err
	}
	defer release()

	epoch := b.epochOf(now)
	byEpoch, known := b.rewards[addr]
	if !known {
		byEpoch = make(map[time.Time]sdkmath.Int)
		b.rewards[addr] = byEpoch
		b.tokens = append(b.tokens, addr)
		b.contracts[addr] = tok
	}
	prev, ok := byEpoch[epoch]
	if !ok {
		prev = sdkmath.ZeroInt()
	}
	byEpoch[epoch] = prev.Add(amount)

	if err := tok.TransferFrom(caller, b.custody, amount); err != nil {
		byEpoch[epoch] = prev
		if !known {
			delete(b.rewards, addr)
			delete(b.contracts, addr)
			b.tokens = b.tokens[:len(b.tokens)-1]
		}
		return fmt.Errorf("%w: reward pull: %v", types.ErrExternalCall, err)
	}

	b.logger.Debug().
		Str("bribe", b.name).
		Str("token", addr.String()).
		Time("epoch", epoch).
		Str("amount", amount.String()).
		Msg("Bribe reward notified")
	return nil
}

// epochReward returns the bucket for (token, epoch), a defined zero when empty.
func (b *Bribe) epochReward(tok types.Address, epoch time.Time) sdkmath.Int {
	if byEpoch, ok := b.rewards[tok]; ok {
		if amount, ok := byEpoch[epoch]; ok {
			return amount
		}
	}
	return sdkmath.ZeroInt()
}

// cursor returns the next epoch to settle for (position, token).
func (b *Bribe) cursor(position uint64, tok types.Address) time.Time {
	if at, ok := b.cursors[cursorKey{position, tok}]; ok {
		return at
	}
	return b.firstEpoch
}

// Earned sums the position's share of every completed epoch since its cursor.
// The current (incomplete) epoch never pays.
func (b *Bribe) Earned(position uint64, tok types.Address, now time.Time) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	current := b.epochOf(now)

	for epoch := b.cursor(position, tok); epoch.Before(current); epoch = epoch.Add(b.period) {
		reward := b.epochReward(tok, epoch)
		if reward.IsZero() {
			continue
		}
		supply, err := b.escrow.TotalSupplyAt(epoch)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: totalSupplyAt %s: %v", types.ErrExternalCall, epoch, err)
		}
		if supply.IsZero() {
			continue
		}
		balance, err := b.escrow.BalanceOfAt(position, epoch)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: balanceOfAt %s: %v", types.ErrExternalCall, epoch, err)
		}
		total = total.Add(reward.Mul(balance).Quo(supply))
	}
	return total, nil
}

// stagedClaim is one token's settled amount with its prior cursor, kept so a
// failed transfer can rewind.
type stagedClaim struct {
	tok        types.Address
	amount     sdkmath.Int
	prevCursor time.Time
}

// Claim settles the listed tokens for the position: compute earned per token,
// advance every cursor, then transfer. The position lock covers the whole
// batch. On a failed transfer the failed and unattempted cursors rewind;
// already-paid tokens stay settled.
func (b *Bribe) Claim(position uint64, tokens []types.Address, now time.Time) (map[types.Address]sdkmath.Int, error) {
	release, err := b.locks.Acquire(lockKindPosition, strconv.FormatUint(position, 10))
	if err != nil {
		return nil, err
	}
	defer release()

	beneficiary, err := resolveBeneficiary(b.owners, b.escrow, position, b.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: owner lookup: %v", types.ErrExternalCall, err)
	}
	if beneficiary.IsZero() {
		return nil, types.ErrZeroAddress
	}

	current := b.epochOf(now)

	// Stage: settle every token before any cursor moves, so a failed escrow
	// lookup aborts the whole claim with all cursors untouched. A duplicated
	// token settles once.
	seen := make(map[types.Address]bool, len(tokens))
	var plan []stagedClaim
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		earned, err := b.Earned(position, tok, now)
		if err != nil {
			return nil, err
		}
		plan = append(plan, stagedClaim{tok: tok, amount: earned, prevCursor: b.cursor(position, tok)})
	}

	// Commit: every staged cursor advances together.
	for _, claim := range plan {
		b.cursors[cursorKey{position, claim.tok}] = current
	}

	paid := make(map[types.Address]sdkmath.Int, len(plan))
	for i, claim := range plan {
		if !claim.amount.IsPositive() {
			paid[claim.tok] = sdkmath.ZeroInt()
			continue
		}
		contract := b.contracts[claim.tok]
		var transferErr error
		if contract == nil {
			transferErr = fmt.Errorf("no contract handle for %s", claim.tok)
		} else {
			transferErr = contract.Transfer(beneficiary, claim.amount)
		}
		if transferErr != nil {
			for _, unwind := range plan[i:] {
				b.cursors[cursorKey{position, unwind.tok}] = unwind.prevCursor
			}
			return paid, fmt.Errorf("%w: bribe payout %s: %v", types.ErrExternalCall, claim.tok, transferErr)
		}
		paid[claim.tok] = claim.amount
	}

	b.logger.Debug().
		Str("bribe", b.name).
		Uint64("position", position).
		Str("beneficiary", beneficiary.String()).
		Int("tokens", len(plan)).
		Msg("Bribe claimed")
	return paid, nil
}
