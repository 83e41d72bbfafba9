/*

External collaborator surfaces for claim settlement. The escrow view is the
protocol's own vote-escrow accounting and is required: its errors fail the
enclosing call. The ownership resolver is the delegate-custody indirection and
is untrusted: it is probed fallibly with fallback to direct ownership, so one
misbehaving delegate cannot block payouts for every position it manages.

*/

package settle

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/meridian-dex/gpm/internal/types"
)

// EscrowView exposes the vote-escrow balances claim settlement weighs epochs
// with.
type EscrowView interface {
	// OwnerOf returns the position's direct owner.
	OwnerOf(position uint64) (types.Address, error)

	// BalanceOfAt returns the position's voting balance at an epoch boundary.
	BalanceOfAt(position uint64, epochStart time.Time) (sdkmath.Int, error)

	// TotalSupplyAt returns the total voting supply at an epoch boundary.
	TotalSupplyAt(epochStart time.Time) (sdkmath.Int, error)
}

// OwnershipResolver resolves the original depositor behind a managed position.
type OwnershipResolver interface {
	// OriginalOwner may fail or lie; callers fall back to OwnerOf.
	OriginalOwner(position uint64) (types.Address, error)
}

// resolveBeneficiary returns who a position's claim pays. The delegate lookup
// is fallible; direct ownership is the fallback.
func resolveBeneficiary(owners OwnershipResolver, escrow EscrowView, position uint64, log zerolog.Logger) (types.Address, error) {
	if owners != nil {
		beneficiary, err := owners.OriginalOwner(position)
		if err == nil && !beneficiary.IsZero() {
			return beneficiary, nil
		}
		if err != nil {
			log.Warn().Err(err).Uint64("position", position).
				Msg("Delegate owner lookup failed; falling back to direct ownership")
		}
	}
	return escrow.OwnerOf(position)
}
