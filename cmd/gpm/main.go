package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/meridian-dex/gpm/internal/config"
	"github.com/meridian-dex/gpm/internal/epoch"
	"github.com/meridian-dex/gpm/internal/genesis"
	"github.com/meridian-dex/gpm/internal/logger"
	"github.com/meridian-dex/gpm/internal/state"
	"github.com/meridian-dex/gpm/internal/types"

	"github.com/cenkalti/backoff/v4"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// main is the entry point for the genesis pool manager.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Genesis pool manager starting...")

	// Initialize the audit-trail database. The store is best-effort at
	// runtime, but at startup we retry: a booting database should not kill the
	// process.
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	connect := func() error { return state.InitDB(dbCfg) }
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
	if err := backoff.Retry(connect, policy); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// --- 2. Engine Wiring ---
	connectors := make([]types.Address, 0, len(config.ConnectorTokens))
	for _, c := range config.ConnectorTokens {
		connectors = append(connectors, types.Address(c))
	}

	mgr, err := genesis.NewManager(genesis.Config{
		Router:          newRouter(),
		Treasury:        types.Address(config.Treasury),
		DepositWindow:   config.DepositWindow,
		ConnectorTokens: connectors,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create genesis manager")
	}

	gate, err := epoch.NewGate(epoch.Config{
		Manager:        mgr,
		Qualifier:      newQualifier(),
		Period:         config.EpochPeriod,
		MaturityDelay:  config.MaturityDelay,
		LaunchDeadline: config.LaunchDeadline,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create epoch gate")
	}

	// --- 3. Run ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Dur("period", config.EpochPeriod).
		Dur("interval", config.TickInterval).
		Msg("Starting epoch gate loop")
	gate.RunLoop(ctx, config.TickInterval)

	log.Info().Msg("Genesis pool manager stopped")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
