/*

Gate-driven lifecycle transitions. These are invoked by the epoch gate at weekly
boundaries; each one validates the source status, takes the pool lock, commits,
and archives. None of them performs an outbound transfer - the launch, which
does, lives in launch.go.

*/

package genesis

import (
	"fmt"
	"time"

	"github.com/meridian-dex/gpm/internal/types"
)

// MarkPreLaunch opens the public deposit window. Side effect required by the
// lifecycle: the pool's native token joins the whitelist.
func (m *Manager) MarkPreLaunch(id types.PoolID, now time.Time) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if p.Status != types.PreListing && p.Status != types.NativeTokenDeposited {
		return fmt.Errorf("%w: pre-launch requires %s or %s, pool is %s",
			types.ErrInvalidState, types.PreListing, types.NativeTokenDeposited, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	p.Status = types.PreLaunch
	p.depositWindowEnd = now.Add(m.depositWindow)
	m.whitelist[p.Info.NativeToken] = true

	m.logger.Info().
		Uint64("poolID", uint64(id)).
		Time("depositWindowEnd", p.depositWindowEnd).
		Msg("Pool entered pre-launch; native token whitelisted")

	m.archive(p)
	return nil
}

// MarkNotQualified terminates the pool. Both the owner and every depositor
// become claim-eligible; the pool leaves the live set but stays registered so
// claims remain open.
func (m *Manager) MarkNotQualified(id types.PoolID) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() {
		return fmt.Errorf("%w: pool already terminal (%s)", types.ErrInvalidState, p.Status)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	p.Status = types.NotQualified
	m.retire(id)

	m.logger.Info().Uint64("poolID", uint64(id)).Msg("Pool disqualified")

	m.archive(p)
	return nil
}

// DisableDeposits closes the deposit window once it has elapsed.
func (m *Manager) DisableDeposits(id types.PoolID, now time.Time) error {
	p, err := m.Pool(id)
	if err != nil {
		return err
	}
	if p.Status != types.PreLaunch {
		return fmt.Errorf("%w: disable-deposits requires %s, pool is %s",
			types.ErrInvalidState, types.PreLaunch, p.Status)
	}
	if now.Before(p.depositWindowEnd) {
		return fmt.Errorf("%w: deposit window open until %s", types.ErrInvalidState, p.depositWindowEnd)
	}

	release, err := m.lockPool(id)
	if err != nil {
		return err
	}
	defer release()

	p.Status = types.PreLaunchDepositDisabled

	m.logger.Info().
		Uint64("poolID", uint64(id)).
		Str("totalDeposits", p.Deposits.Total().String()).
		Msg("Deposit window closed")

	m.archive(p)
	return nil
}
