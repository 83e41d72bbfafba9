/*

This file contains the default timing parameters for the launch engine.

The defaults mirror the production cadence: weekly epochs, a deposit window
that closes before the next flip, and a quarter-long owner lock on launched
liquidity. Every value can be overridden through the environment variables
read in General.go.

*/

package config

import "time"

const (
	// DefaultEpochPeriod is the boundary cadence of the epoch gate. Lifecycle
	// transitions only happen at these boundaries.
	DefaultEpochPeriod = 7 * 24 * time.Hour

	// DefaultTickInterval is how often the gate loop checks for a crossed
	// boundary. The tick is idempotent within an epoch, so a short interval
	// only buys boundary precision.
	DefaultTickInterval = 1 * time.Minute

	// DefaultDepositWindow keeps public deposits open for six days, so every
	// window closes strictly inside the following weekly flip.
	DefaultDepositWindow = 6 * 24 * time.Hour

	// DefaultMaturityDelay locks the owner's launched liquidity for 90 days.
	DefaultMaturityDelay = 90 * 24 * time.Hour

	// DefaultLaunchDeadline bounds how long a router addLiquidity call may
	// remain valid.
	DefaultLaunchDeadline = 1 * time.Hour
)
