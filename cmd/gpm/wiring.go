/*

Collaborator wiring for the standalone binary. The production deployment hands
the engine a live router and a governance-driven qualifier; the standalone
binary wires deterministic stand-ins so the lifecycle can be exercised end to
end against the audit-trail database.

*/

package main

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/meridian-dex/gpm/internal/genesis"
	"github.com/meridian-dex/gpm/internal/types"
)

// simRouter mints a deterministic liquidity figure for every launch. It never
// fails and never re-enters.
type simRouter struct{}

func newRouter() genesis.Router {
	return simRouter{}
}

func (simRouter) AddLiquidity(
	nativeToken, fundingToken types.Address,
	stable bool,
	amountNativeDesired, amountFundingDesired sdkmath.Int,
	amountNativeMin, amountFundingMin sdkmath.Int,
	to types.Address,
	deadline time.Time,
) (sdkmath.Int, sdkmath.Int, sdkmath.Int, error) {
	// sqrt(native * funding) is the constant-product liquidity for a fresh
	// pool; good enough for the standalone wiring.
	liquidity, err := amountNativeDesired.Mul(amountFundingDesired).ToLegacyDec().ApproxSqrt()
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	log.Debug().
		Str("native", nativeToken.String()).
		Str("funding", fundingToken.String()).
		Str("liquidity", liquidity.TruncateInt().String()).
		Msg("Simulated liquidity position created")
	return amountNativeDesired, amountFundingDesired, liquidity.TruncateInt(), nil
}

// permissiveQualifier opens the deposit window for every listed pool that has
// its native inventory deposited and disqualifies nothing.
type permissiveQualifier struct{}

func newQualifier() permissiveQualifier {
	return permissiveQualifier{}
}

func (permissiveQualifier) EligibleForPreLaunch(snap types.PoolSnapshot) (bool, error) {
	return snap.Status == types.NativeTokenDeposited, nil
}

func (permissiveQualifier) EligibleForDisqualify(snap types.PoolSnapshot) (bool, error) {
	return false, nil
}
