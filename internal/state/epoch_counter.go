/*

This file manages the persistent global epoch counter. The counter is stored in
the database so epoch numbering survives restarts.

*/

package state

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"
)

// GetCurrentEpochNumber retrieves the current epoch number from the database
func GetCurrentEpochNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	query := `SELECT current_epoch FROM epoch_counter WHERE id = 1;`

	var currentEpoch int
	row := DB.QueryRow(query)
	err := row.Scan(&currentEpoch)

	if err != nil {
		if err == sql.ErrNoRows {
			// Should not happen due to the INSERT in EnsureSchema
			log.Warn().Msg("No epoch counter row found, initializing to 0")
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get current epoch number: %w", err)
	}

	return currentEpoch, nil
}

// IncrementEpochNumber increments the epoch counter and returns the new value
func IncrementEpochNumber() (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	updateQuery := `
		UPDATE epoch_counter
		SET current_epoch = current_epoch + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = 1
		RETURNING current_epoch;`

	var newEpoch int
	row := DB.QueryRow(updateQuery)
	err := row.Scan(&newEpoch)

	if err != nil {
		return 0, fmt.Errorf("failed to increment epoch number: %w", err)
	}

	log.Info().Int("newEpoch", newEpoch).Msg("Incremented epoch counter")
	return newEpoch, nil
}
