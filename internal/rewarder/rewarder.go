/*

Debt-based per-share reward accounting for auxiliary rewarders attached to
liquidity gauges. Accrual is lazy: every mutating call first folds the elapsed
time into accRewardPerShare, guarding the zero-stake case (skip, never divide),
bounding the reward rate, saturating the elapsed time, and capping accrual at
the injected budget so pending rewards can never exceed what the rewarder was
funded with.

	pending(user) = user.amount * accRewardPerShare / PRECISION - user.rewardDebt

PRECISION is 1e18, so truncation is a negligible always-rounds-down bias: the
engine may underpay dust, never overpay.

*/

package rewarder

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/gpm/internal/guard"
	"github.com/meridian-dex/gpm/internal/logger"
	"github.com/meridian-dex/gpm/internal/token"
	"github.com/meridian-dex/gpm/internal/types"
)

const lockKindRewarder = "rewarder"

// maxAccrualGap saturates the elapsed time folded into one accrual step. A
// rewarder left idle longer accrues as if exactly this long had passed.
const maxAccrualGap = 365 * 24 * time.Hour

var (
	// Precision scales accRewardPerShare.
	Precision = sdkmath.NewIntWithDecimal(1, 18)

	// MaxRewardPerSecond bounds the reward rate so elapsed * rate stays far
	// inside integer range without relying on wraparound.
	MaxRewardPerSecond = sdkmath.NewIntWithDecimal(1, 30)
)

// UserInfo is the per-staker accounting pair.
type UserInfo struct {
	Amount     sdkmath.Int
	RewardDebt sdkmath.Int
}

// Config holds the dependencies for creating a Rewarder.
type Config struct {
	// Name identifies the rewarder in logs and locks.
	Name string

	// RewardToken is the untrusted token paid out by this rewarder.
	RewardToken token.Contract

	// Gauge is the only caller allowed to move stake.
	Gauge types.Address

	// Operator is the only caller allowed to fund the rewarder and set rates.
	Operator types.Address
}

// Rewarder is one per-gauge auxiliary reward stream.
type Rewarder struct {
	logger zerolog.Logger
	locks  *guard.EntityLocks
	name   string

	rewardToken token.Contract
	gauge       types.Address
	operator    types.Address

	rewardPerSecond   sdkmath.Int
	accRewardPerShare sdkmath.Int
	lastRewardTime    time.Time
	totalStaked       sdkmath.Int

	// injected is everything ever funded; allocated is the part already folded
	// into accRewardPerShare. Accrual never exceeds injected - allocated.
	injected  sdkmath.Int
	allocated sdkmath.Int

	users map[types.Address]*UserInfo
}

// New creates a Rewarder after validating its dependencies.
func New(cfg Config, start time.Time) (*Rewarder, error) {
	if cfg.RewardToken == nil {
		return nil, fmt.Errorf("%w: reward token", types.ErrMissingDependency)
	}
	if cfg.Gauge.IsZero() || cfg.Operator.IsZero() {
		return nil, fmt.Errorf("%w: gauge and operator", types.ErrZeroAddress)
	}
	name := cfg.Name
	if name == "" {
		name = cfg.RewardToken.Address().String()
	}

	r := &Rewarder{
		logger:            logger.GetForComponent("rewarder"),
		locks:             guard.NewEntityLocks(),
		name:              name,
		rewardToken:       cfg.RewardToken,
		gauge:             cfg.Gauge,
		operator:          cfg.Operator,
		rewardPerSecond:   sdkmath.ZeroInt(),
		accRewardPerShare: sdkmath.ZeroInt(),
		lastRewardTime:    start,
		totalStaked:       sdkmath.ZeroInt(),
		injected:          sdkmath.ZeroInt(),
		allocated:         sdkmath.ZeroInt(),
		users:             make(map[types.Address]*UserInfo),
	}
	r.logger.Info().Str("rewarder", name).Msg("Rewarder created")
	return r, nil
}

// update folds the elapsed time into accRewardPerShare. Called at the top of
// every mutating operation and by Pending on a throwaway copy of the figures.
func (r *Rewarder) update(now time.Time) {
	acc, allocated := r.accrue(now)
	r.accRewardPerShare = acc
	r.allocated = allocated
	r.lastRewardTime = now
}

// accrue computes the post-accrual figures without mutating.
func (r *Rewarder) accrue(now time.Time) (acc, allocated sdkmath.Int) {
	acc, allocated = r.accRewardPerShare, r.allocated

	elapsed := now.Sub(r.lastRewardTime)
	if elapsed <= 0 {
		return acc, allocated
	}
	if elapsed > maxAccrualGap {
		elapsed = maxAccrualGap
	}
	if r.totalStaked.IsZero() || r.rewardPerSecond.IsZero() {
		return acc, allocated
	}

	reward := r.rewardPerSecond.MulRaw(int64(elapsed / time.Second))
	if budget := r.injected.Sub(allocated); reward.GT(budget) {
		reward = budget
	}
	if !reward.IsPositive() {
		return acc, allocated
	}

	acc = acc.Add(reward.Mul(Precision).Quo(r.totalStaked))
	allocated = allocated.Add(reward)
	return acc, allocated
}

func (r *Rewarder) userInfo(account types.Address) *UserInfo {
	u, ok := r.users[account]
	if !ok {
		u = &UserInfo{Amount: sdkmath.ZeroInt(), RewardDebt: sdkmath.ZeroInt()}
		r.users[account] = u
	}
	return u
}

// Pending returns the user's unpaid reward as of now. Pure view; never exceeds
// the injected budget.
func (r *Rewarder) Pending(account types.Address, now time.Time) sdkmath.Int {
	u, ok := r.users[account]
	if !ok || u.Amount.IsZero() {
		return sdkmath.ZeroInt()
	}
	acc, _ := r.accrue(now)
	pending := u.Amount.Mul(acc).Quo(Precision).Sub(u.RewardDebt)
	if pending.IsNegative() {
		return sdkmath.ZeroInt()
	}
	return pending
}

// TotalStaked returns the staked total.
func (r *Rewarder) TotalStaked() sdkmath.Int {
	return r.totalStaked
}

// Deposit records stake arriving from the gauge, settling the user's pending
// reward first. Amount, debt and totals commit before any outbound transfer.
func (r *Rewarder) Deposit(caller, account types.Address, amount sdkmath.Int, now time.Time) error {
	if caller != r.gauge {
		return fmt.Errorf("%w: only the gauge moves stake", types.ErrUnauthorized)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: stake amount must be positive", types.ErrArithmeticBounds)
	}
	return r.mutateStake(account, amount, false, now)
}

// Withdraw records stake leaving via the gauge, settling pending first.
func (r *Rewarder) Withdraw(caller, account types.Address, amount sdkmath.Int, now time.Time) error {
	if caller != r.gauge {
		return fmt.Errorf("%w: only the gauge moves stake", types.ErrUnauthorized)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: stake amount must be positive", types.ErrArithmeticBounds)
	}
	return r.mutateStake(account, amount.Neg(), true, now)
}

// Harvest pays the user's pending reward without moving stake.
func (r *Rewarder) Harvest(account types.Address, now time.Time) (sdkmath.Int, error) {
	if account.IsZero() {
		return sdkmath.ZeroInt(), types.ErrZeroAddress
	}

	release, err := r.locks.Acquire(lockKindRewarder, r.name)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	r.update(now)
	u := r.userInfo(account)
	pending := u.Amount.Mul(r.accRewardPerShare).Quo(Precision).Sub(u.RewardDebt)
	if !pending.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	// Commit the debt before the outbound transfer.
	prevDebt := u.RewardDebt
	u.RewardDebt = u.Amount.Mul(r.accRewardPerShare).Quo(Precision)

	if err := r.rewardToken.Transfer(account, pending); err != nil {
		u.RewardDebt = prevDebt
		return sdkmath.ZeroInt(), fmt.Errorf("%w: reward payout: %v", types.ErrExternalCall, err)
	}

	r.logger.Debug().
		Str("rewarder", r.name).
		Str("account", account.String()).
		Str("amount", pending.String()).
		Msg("Reward harvested")
	return pending, nil
}

// mutateStake applies a signed stake delta, paying out pending reward first.
func (r *Rewarder) mutateStake(account types.Address, delta sdkmath.Int, withdrawal bool, now time.Time) error {
	if account.IsZero() {
		return types.ErrZeroAddress
	}

	release, err := r.locks.Acquire(lockKindRewarder, r.name)
	if err != nil {
		return err
	}
	defer release()

	r.update(now)
	u := r.userInfo(account)

	newAmount := u.Amount.Add(delta)
	if newAmount.IsNegative() {
		return fmt.Errorf("%w: withdraw %s exceeds stake %s", types.ErrArithmeticBounds, delta.Abs(), u.Amount)
	}

	pending := u.Amount.Mul(r.accRewardPerShare).Quo(Precision).Sub(u.RewardDebt)
	if pending.IsNegative() {
		pending = sdkmath.ZeroInt()
	}

	// Commit amount, debt and the total before the outbound payout.
	prev := *u
	prevTotal := r.totalStaked
	u.Amount = newAmount
	u.RewardDebt = newAmount.Mul(r.accRewardPerShare).Quo(Precision)
	r.totalStaked = r.totalStaked.Add(delta)

	if pending.IsPositive() {
		if err := r.rewardToken.Transfer(account, pending); err != nil {
			*u = prev
			r.totalStaked = prevTotal
			return fmt.Errorf("%w: reward payout: %v", types.ErrExternalCall, err)
		}
	}

	r.logger.Debug().
		Str("rewarder", r.name).
		Str("account", account.String()).
		Bool("withdrawal", withdrawal).
		Str("stake", newAmount.String()).
		Str("paid", pending.String()).
		Msg("Stake mutated")
	return nil
}

// SetRewardPerSecond updates the emission rate, bounded explicitly. The rate
// change accrues the stream up to now first so it never applies retroactively.
func (r *Rewarder) SetRewardPerSecond(caller types.Address, rate sdkmath.Int, now time.Time) error {
	if caller != r.operator {
		return fmt.Errorf("%w: only the operator sets rates", types.ErrUnauthorized)
	}
	if rate.IsNil() || rate.IsNegative() {
		return fmt.Errorf("%w: rate must be non-negative", types.ErrArithmeticBounds)
	}
	if rate.GT(MaxRewardPerSecond) {
		return fmt.Errorf("%w: rate %s above bound %s", types.ErrArithmeticBounds, rate, MaxRewardPerSecond)
	}

	release, err := r.locks.Acquire(lockKindRewarder, r.name)
	if err != nil {
		return err
	}
	defer release()

	r.update(now)
	r.rewardPerSecond = rate
	r.logger.Info().Str("rewarder", r.name).Str("rate", rate.String()).Msg("Reward rate updated")
	return nil
}

// Inject funds the rewarder: credit the budget, then pull the tokens.
func (r *Rewarder) Inject(caller types.Address, amount sdkmath.Int, custody types.Address, now time.Time) error {
	if caller != r.operator {
		return fmt.Errorf("%w: only the operator funds the rewarder", types.ErrUnauthorized)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: injection must be positive", types.ErrArithmeticBounds)
	}

	release, err := r.locks.Acquire(lockKindRewarder, r.name)
	if err != nil {
		return err
	}
	defer release()

	r.update(now)
	r.injected = r.injected.Add(amount)

	if err := r.rewardToken.TransferFrom(caller, custody, amount); err != nil {
		r.injected = r.injected.Sub(amount)
		return fmt.Errorf("%w: reward pull: %v", types.ErrExternalCall, err)
	}

	r.logger.Info().
		Str("rewarder", r.name).
		Str("amount", amount.String()).
		Str("injected", r.injected.String()).
		Msg("Rewarder funded")
	return nil
}
