/*

The EpochGate drives lifecycle transitions at fixed weekly boundaries across all
live pools. Each flip runs in two phases: BeforeEpochFlip qualifies/disqualifies
listed pools, closes elapsed deposit windows and launches pools that already met
their funding target; AtEpochFlip launches whatever remains launchable,
partially if necessary.

Required iteration discipline: the live-pool set is snapshotted into a local
copy before either phase walks it, so a reentrant mutation of the master set
during a per-pool callback cannot skip or double-process a pool in the same
pass. Per-pool qualifier probes are untrusted and wrapped fallibly; a failing
probe leaves that pool unresolved until the next epoch without aborting the
batch.

*/

package epoch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/gpm/internal/genesis"
	"github.com/meridian-dex/gpm/internal/logger"
	"github.com/meridian-dex/gpm/internal/state"
	"github.com/meridian-dex/gpm/internal/types"
)

// Qualifier is the untrusted per-pool eligibility probe consulted at each flip.
type Qualifier interface {
	// EligibleForPreLaunch reports whether a listed pool may open its deposit
	// window. May fail; a failure leaves the pool unresolved.
	EligibleForPreLaunch(snap types.PoolSnapshot) (bool, error)

	// EligibleForDisqualify reports whether a listed pool must be terminated.
	// May fail; a failure leaves the pool unresolved.
	EligibleForDisqualify(snap types.PoolSnapshot) (bool, error)
}

// Config holds the dependencies for creating a Gate.
type Config struct {
	Manager   *genesis.Manager
	Qualifier Qualifier

	// Period is the epoch length; weekly in production.
	Period time.Duration

	// MaturityDelay is how far past the launch the owner's position matures.
	MaturityDelay time.Duration

	// LaunchDeadline is the router deadline granted to each launch call.
	LaunchDeadline time.Duration
}

// Gate runs the epoch boundary logic.
type Gate struct {
	logger zerolog.Logger

	mgr  *genesis.Manager
	qual Qualifier

	period         time.Duration
	maturityDelay  time.Duration
	launchDeadline time.Duration

	// lastPeriodStart is the start of the most recently flipped epoch; zero
	// until the first flip.
	lastPeriodStart time.Time
	epochCount      int
}

// NewGate creates a Gate after validating its dependencies.
func NewGate(cfg Config) (*Gate, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("%w: manager", types.ErrMissingDependency)
	}
	if cfg.Qualifier == nil {
		return nil, fmt.Errorf("%w: qualifier", types.ErrMissingDependency)
	}
	if cfg.Period <= 0 {
		return nil, fmt.Errorf("%w: period must be positive", types.ErrArithmeticBounds)
	}
	if cfg.MaturityDelay < 0 || cfg.LaunchDeadline <= 0 {
		return nil, fmt.Errorf("%w: maturity delay and launch deadline", types.ErrArithmeticBounds)
	}

	g := &Gate{
		logger:         logger.GetForComponent("epoch_gate"),
		mgr:            cfg.Manager,
		qual:           cfg.Qualifier,
		period:         cfg.Period,
		maturityDelay:  cfg.MaturityDelay,
		launchDeadline: cfg.LaunchDeadline,
	}
	g.logger.Info().Dur("period", cfg.Period).Msg("Epoch gate created")
	return g, nil
}

// PeriodStart floors t to the gate's period boundary.
func PeriodStart(t time.Time, period time.Duration) time.Time {
	return t.Truncate(period)
}

// Tick runs the flip when a boundary has been crossed, and is idempotent
// within an epoch: the scheduler may call it as often as it likes.
func (g *Gate) Tick(now time.Time) bool {
	boundary := PeriodStart(now, g.period)
	if !g.lastPeriodStart.IsZero() && !boundary.After(g.lastPeriodStart) {
		return false
	}
	g.lastPeriodStart = boundary

	g.epochCount = g.nextEpochNumber()
	runID := uuid.New().String()
	flipLogger := g.logger.With().Str("run_id", runID).Int("epoch", g.epochCount).Logger()

	flipLogger.Info().Time("boundary", boundary).Msg("--- Epoch flip ---")
	g.BeforeEpochFlip(now, runID, flipLogger)
	g.AtEpochFlip(now, runID, flipLogger)
	flipLogger.Info().Msg("--- Epoch flip completed ---")
	return true
}

// RunLoop drives Tick from a ticker until the context is canceled. The
// scheduler itself carries no epoch logic; all boundary decisions live in Tick.
func (g *Gate) RunLoop(ctx context.Context, interval time.Duration) {
	g.logger.Info().Dur("interval", interval).Msg("Starting epoch gate loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	g.Tick(time.Now())
	for {
		select {
		case <-ctx.Done():
			g.logger.Info().Msg("Epoch gate loop stopped due to context cancellation")
			return
		case <-ticker.C:
			g.Tick(time.Now())
		}
	}
}

// BeforeEpochFlip is the first flip phase: qualify or disqualify listed pools,
// close elapsed deposit windows, and launch pools that already met their
// funding target.
func (g *Gate) BeforeEpochFlip(now time.Time, runID string, flipLogger zerolog.Logger) {
	seen, moved, unresolved := 0, 0, 0

	for _, id := range g.mgr.LiveSnapshot() {
		p, err := g.mgr.Pool(id)
		if err != nil {
			continue
		}
		seen++

		switch p.Status {
		case types.PreListing, types.NativeTokenDeposited:
			switch g.resolveListing(p, now, flipLogger) {
			case resolved:
				moved++
			case probeFailed:
				unresolved++
			}
		case types.PreLaunch:
			if !now.Before(p.DepositWindowEnd()) {
				if err := g.mgr.DisableDeposits(id, now); err != nil {
					flipLogger.Error().Err(err).Uint64("poolID", uint64(id)).Msg("Failed to close deposit window")
					continue
				}
				moved++
				// Target already met: launch in the same pass.
				if p.Deposits.Total().GTE(p.Info.ProposedNativeAmount) {
					g.launch(p, now, flipLogger)
				}
			}
		}
	}

	g.archiveFlip(runID, "before", seen, moved, unresolved, flipLogger)
}

// AtEpochFlip is the second flip phase: launch every pool whose deposit window
// closed, partially when the target was not met.
func (g *Gate) AtEpochFlip(now time.Time, runID string, flipLogger zerolog.Logger) {
	seen, moved, unresolved := 0, 0, 0

	for _, id := range g.mgr.LiveSnapshot() {
		p, err := g.mgr.Pool(id)
		if err != nil {
			continue
		}
		seen++

		if p.Status != types.PreLaunchDepositDisabled {
			continue
		}
		if g.launch(p, now, flipLogger) {
			moved++
		} else {
			unresolved++
		}
	}

	g.archiveFlip(runID, "at", seen, moved, unresolved, flipLogger)
}

type listingOutcome int

const (
	unchanged listingOutcome = iota
	resolved
	probeFailed
)

// resolveListing runs the untrusted qualifier probes for one listed pool.
// Probe failures are contained to this pool.
func (g *Gate) resolveListing(p *genesis.Pool, now time.Time, flipLogger zerolog.Logger) listingOutcome {
	snap := p.Snapshot()

	disqualify, err := g.qual.EligibleForDisqualify(snap)
	if err != nil {
		flipLogger.Warn().Err(err).Uint64("poolID", uint64(p.ID)).
			Msg("Disqualify probe failed; pool unresolved until next epoch")
		return probeFailed
	}
	if disqualify {
		if err := g.mgr.MarkNotQualified(p.ID); err != nil {
			flipLogger.Error().Err(err).Uint64("poolID", uint64(p.ID)).Msg("Failed to disqualify pool")
			return unchanged
		}
		return resolved
	}

	prelaunch, err := g.qual.EligibleForPreLaunch(snap)
	if err != nil {
		flipLogger.Warn().Err(err).Uint64("poolID", uint64(p.ID)).
			Msg("Pre-launch probe failed; pool unresolved until next epoch")
		return probeFailed
	}
	if prelaunch {
		if err := g.mgr.MarkPreLaunch(p.ID, now); err != nil {
			flipLogger.Error().Err(err).Uint64("poolID", uint64(p.ID)).Msg("Failed to open deposit window")
			return unchanged
		}
		return resolved
	}

	return unchanged
}

// launch attempts the pool's launch, logging rather than aborting the batch on
// failure.
func (g *Gate) launch(p *genesis.Pool, now time.Time, flipLogger zerolog.Logger) bool {
	maturity := now.Add(g.maturityDelay)
	deadline := now.Add(g.launchDeadline)
	if err := g.mgr.Launch(p.ID, maturity, deadline); err != nil {
		flipLogger.Error().Err(err).Uint64("poolID", uint64(p.ID)).Msg("Launch failed; retried next epoch")
		return false
	}
	return true
}

// nextEpochNumber advances the persistent epoch counter, falling back to the
// in-memory count when the database is unavailable.
func (g *Gate) nextEpochNumber() int {
	n, err := state.IncrementEpochNumber()
	if err != nil {
		g.logger.Debug().Err(err).Msg("Epoch counter unavailable, using in-memory count")
		return g.epochCount + 1
	}
	return n
}

// archiveFlip persists one flip phase, best effort.
func (g *Gate) archiveFlip(runID, phase string, seen, moved, unresolved int, flipLogger zerolog.Logger) {
	rec := state.FlipRecord{
		RunID:             runID,
		EpochNumber:       g.epochCount,
		Phase:             phase,
		PoolsSeen:         seen,
		PoolsTransitioned: moved,
		PoolsUnresolved:   unresolved,
	}
	if err := state.SaveFlipRecord(rec); err != nil {
		flipLogger.Debug().Err(err).Str("phase", phase).Msg("Flip record not archived")
	}
	flipLogger.Info().
		Str("phase", phase).
		Int("poolsSeen", seen).
		Int("poolsTransitioned", moved).
		Int("poolsUnresolved", unresolved).
		Msg("Flip phase complete")
}
