/*

Archival writers for the audit trail: pool snapshots after every lifecycle
transition, epoch-flip run records, and claim receipts. All writers fail softly
when the database is not initialized; callers log and continue.

*/

package state

import (
	"fmt"

	"github.com/meridian-dex/gpm/internal/types"
)

// FlipRecord summarizes one phase of one epoch-flip run.
type FlipRecord struct {
	RunID             string
	EpochNumber       int
	Phase             string // "before" or "at"
	PoolsSeen         int
	PoolsTransitioned int
	PoolsUnresolved   int
}

// SavePoolSnapshot archives the pool's current state.
func SavePoolSnapshot(snap types.PoolSnapshot) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO pool_snapshots (
			pool_id, status, native_token, funding_token, token_owner,
			total_deposits, proposed_native, allocated_native, allocated_funding,
			refundable_native, liquidity, depositor_count, incentive_tokens
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);`

	_, err := DB.Exec(insertSQL,
		uint64(snap.PoolID), snap.StatusLabel,
		snap.NativeToken.String(), snap.FundingToken.String(), snap.TokenOwner.String(),
		snap.TotalDeposits, snap.ProposedNative, snap.AllocatedNative, snap.AllocatedFunding,
		snap.RefundableNative, snap.Liquidity, snap.DepositorCount, snap.IncentiveTokens,
	)
	if err != nil {
		return fmt.Errorf("failed to save pool snapshot: %w", err)
	}
	return nil
}

// SaveFlipRecord archives one epoch-flip phase.
func SaveFlipRecord(rec FlipRecord) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO epoch_flips (
			run_id, epoch_number, phase, pools_seen, pools_transitioned, pools_unresolved
		) VALUES ($1, $2, $3, $4, $5, $6);`

	_, err := DB.Exec(insertSQL,
		rec.RunID, rec.EpochNumber, rec.Phase,
		rec.PoolsSeen, rec.PoolsTransitioned, rec.PoolsUnresolved,
	)
	if err != nil {
		return fmt.Errorf("failed to save epoch flip record: %w", err)
	}
	return nil
}

// SaveClaimReceipt archives a paid claim.
func SaveClaimReceipt(poolID uint64, account, token, amount, kind string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	insertSQL := `
		INSERT INTO claim_receipts (pool_id, account, token, amount, claim_kind)
		VALUES ($1, $2, $3, $4, $5);`

	_, err := DB.Exec(insertSQL, poolID, account, token, amount, kind)
	if err != nil {
		return fmt.Errorf("failed to save claim receipt: %w", err)
	}
	return nil
}
