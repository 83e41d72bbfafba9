// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool. The store is an audit trail: the
// engine's authoritative accounting lives in memory and every Save* function is
// invoked best-effort by its caller.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS pool_snapshots (
			snapshot_id SERIAL PRIMARY KEY,
			snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pool_id BIGINT NOT NULL,
			status VARCHAR(40) NOT NULL,
			native_token VARCHAR(128) NOT NULL,
			funding_token VARCHAR(128) NOT NULL,
			token_owner VARCHAR(128) NOT NULL,
			total_deposits NUMERIC(78, 0) NOT NULL,
			proposed_native NUMERIC(78, 0) NOT NULL,
			allocated_native NUMERIC(78, 0) NOT NULL,
			allocated_funding NUMERIC(78, 0) NOT NULL,
			refundable_native NUMERIC(78, 0) NOT NULL,
			liquidity NUMERIC(78, 0) NOT NULL,
			depositor_count INTEGER NOT NULL,
			incentive_tokens INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_pool ON pool_snapshots(pool_id, snapshot_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_pool_snapshots_status ON pool_snapshots(status);

		CREATE TABLE IF NOT EXISTS epoch_flips (
			flip_id SERIAL PRIMARY KEY,
			run_id UUID NOT NULL,
			epoch_number INTEGER NOT NULL,
			phase VARCHAR(20) NOT NULL,
			flip_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pools_seen INTEGER NOT NULL,
			pools_transitioned INTEGER NOT NULL,
			pools_unresolved INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_epoch_flips_epoch ON epoch_flips(epoch_number DESC);

		CREATE TABLE IF NOT EXISTS claim_receipts (
			receipt_id SERIAL PRIMARY KEY,
			claim_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pool_id BIGINT NOT NULL,
			account VARCHAR(128) NOT NULL,
			token VARCHAR(128) NOT NULL,
			amount NUMERIC(78, 0) NOT NULL,
			claim_kind VARCHAR(30) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_claim_receipts_pool ON claim_receipts(pool_id, claim_timestamp DESC);
		CREATE INDEX IF NOT EXISTS idx_claim_receipts_account ON claim_receipts(account);

		-- Epoch counter table for persistent global epoch tracking
		CREATE TABLE IF NOT EXISTS epoch_counter (
			id INTEGER PRIMARY KEY DEFAULT 1,
			current_epoch INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT single_row_check CHECK (id = 1)
		);

		-- Insert initial row if it doesn't exist
		INSERT INTO epoch_counter (id, current_epoch)
		VALUES (1, 0)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := DB.Exec(schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	log.Info().Msg("Database schema ensured.")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := DB.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
