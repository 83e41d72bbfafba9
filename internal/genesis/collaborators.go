/*

External collaborator surfaces for the pool lifecycle. Implementations are
untrusted: the router call is a reentry point exactly like a token transfer, so
the lifecycle commits its own state before invoking it.

*/

package genesis

import (
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/meridian-dex/gpm/internal/types"
)

// Router creates the liquidity position at launch.
type Router interface {
	// AddLiquidity pairs the allocated native and funding amounts into a pool
	// position owned by `to`. Returns the amounts actually consumed and the
	// liquidity minted. May synchronously re-enter the engine.
	AddLiquidity(
		nativeToken, fundingToken types.Address,
		stable bool,
		amountNativeDesired, amountFundingDesired sdkmath.Int,
		amountNativeMin, amountFundingMin sdkmath.Int,
		to types.Address,
		deadline time.Time,
	) (amountNative, amountFunding, liquidity sdkmath.Int, err error)
}
