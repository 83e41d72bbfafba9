/*

Single-token emission distributor. An operator checkpoints the emission for
the current epoch; position holders claim their epoch-weighted share of every
completed checkpoint since their cursor. Same settlement discipline as bribes:
cursor advances before the transfer, and a failed transfer rewinds it.

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

// DistributorConfig holds the dependencies for creating a Distributor.
type DistributorConfig struct {
	Name string

	// Token is the emission token.
	Token token.Contract

	// Escrow weights the claims.
	Escrow EscrowView

	// Owners resolves delegate custody; optional.
	Owners OwnershipResolver

	// Operator is the only account allowed to checkpoint emissions.
	Operator types.Address

	// Custody receives checkpointed emissions.
	Custody types.Address

	Period time.Duration
}

// Distributor pays epoch emissions of one token to escrow positions.
type Distributor struct {
	logger zerolog.Logger
	locks  *guard.EntityLocks
	name   string

	token    token.Contract
	escrow   EscrowView
	owners   OwnershipResolver
	operator types.Address
	custody  types.Address
	period   time.Duration

	firstEpoch  time.Time
	checkpoints map[time.Time]sdkmath.Int
	cursors     map[uint64]time.Time
}

// NewDistributor creates a Distributor after validating its dependencies.
func NewDistributor(cfg DistributorConfig, now time.Time) (*Distributor, error) {
	if cfg.Token == nil {
		return nil, fmt.Errorf("%w: emission token", types.ErrMissingDependency)
	}
	if cfg.Escrow == nil {
		return nil, fmt.Errorf("%w: escrow", types.ErrMissingDependency)
	}
	if cfg.Operator.IsZero() {
		return nil, fmt.Errorf("%w: operator", types.ErrZeroAddress)
	}
	if cfg.Custody.IsZero() {
		return nil, fmt.Errorf("%w: custody", types.ErrZeroAddress)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive", types.ErrArithmeticBounds)
	}

	return &Distributor{
		logger:      logger.GetForComponent("distributor"),
		locks:       guard.NewEntityLocks(),
		name:        cfg.Name,
		token:       cfg.Token,
		escrow:      cfg.Escrow,
		owners:      cfg.Owners,
		operator:    cfg.Operator,
		custody:     cfg.Custody,
		period:      cfg.Period,
		firstEpoch:  now.Truncate(cfg.Period),
		checkpoints: make(map[time.Time]sdkmath.Int),
		cursors:     make(map[uint64]time.Time),
	}, nil
}

func (d *Distributor) epochOf(t time.Time) time.Time {
	return t.Truncate(d.period)
}

// CheckpointEmission credits an emission into the current epoch and pulls the
// tokens from the operator. Credit commits before the pull.
func (d *Distributor) CheckpointEmission(caller types.Address, amount sdkmath.Int, now time.Time) error {
	if caller != d.operator {
		return fmt.Errorf("%w: only the operator may checkpoint emissions", types.ErrUnauthorized)
	}
	if amount.IsNil() || !amount.IsPositive() {
		return fmt.Errorf("%w: emission must be positive", types.ErrArithmeticBounds)
	}

	release, err := d.locks.Acquire("distributor", d.name)
	if err != nil {
		return err
	}
	defer release()

	epoch := d.epochOf(now)
	prev, ok := d.checkpoints[epoch]
	if !ok {
		prev = sdkmath.ZeroInt()
	}
	d.checkpoints[epoch] = prev.Add(amount)

	if err := d.token.TransferFrom(caller, d.custody, amount); err != nil {
		d.checkpoints[epoch] = prev
		return fmt.Errorf("%w: emission pull: %v", types.ErrExternalCall, err)
	}

	d.logger.Debug().
		Str("distributor", d.name).
		Time("epoch", epoch).
		Str("amount", amount.String()).
		Msg("Emission checkpointed")
	return nil
}

func (d *Distributor) cursor(position uint64) time.Time {
	if at, ok := d.cursors[position]; ok {
		return at
	}
	return d.firstEpoch
}

// Earned sums the position's share of every completed checkpoint since its
// cursor. The current epoch never pays.
func (d *Distributor) Earned(position uint64, now time.Time) (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	current := d.epochOf(now)

	for epoch := d.cursor(position); epoch.Before(current); epoch = epoch.Add(d.period) {
		emission, ok := d.checkpoints[epoch]
		if !ok || emission.IsZero() {
			continue
		}
		supply, err := d.escrow.TotalSupplyAt(epoch)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: totalSupplyAt %s: %v", types.ErrExternalCall, epoch, err)
		}
		if supply.IsZero() {
			continue
		}
		balance, err := d.escrow.BalanceOfAt(position, epoch)
		if err != nil {
			return sdkmath.ZeroInt(), fmt.Errorf("%w: balanceOfAt %s: %v", types.ErrExternalCall, epoch, err)
		}
		total = total.Add(emission.Mul(balance).Quo(supply))
	}
	return total, nil
}

// Claim settles all completed epochs for the position and pays in one
// transfer. The cursor advances before the transfer and rewinds on failure.
func (d *Distributor) Claim(position uint64, now time.Time) (sdkmath.Int, error) {
	release, err := d.locks.Acquire(lockKindPosition, strconv.FormatUint(position, 10))
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	defer release()

	beneficiary, err := resolveBeneficiary(d.owners, d.escrow, position, d.logger)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: owner lookup: %v", types.ErrExternalCall, err)
	}
	if beneficiary.IsZero() {
		return sdkmath.ZeroInt(), types.ErrZeroAddress
	}

	earned, err := d.Earned(position, now)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	prev := d.cursor(position)
	d.cursors[position] = d.epochOf(now)

	if !earned.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}

	if err := d.token.Transfer(beneficiary, earned); err != nil {
		d.cursors[position] = prev
		return sdkmath.ZeroInt(), fmt.Errorf("%w: emission payout: %v", types.ErrExternalCall, err)
	}

	d.logger.Debug().
		Str("distributor", d.name).
		Uint64("position", position).
		Str("beneficiary", beneficiary.String()).
		Str("amount", earned.String()).
		Msg("Emissions claimed")
	return earned, nil
}
