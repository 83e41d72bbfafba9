package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Treasury is the custody account that holds pool funds between deposit
	// and launch.
	Treasury string

	// ConnectorTokens are the pre-approved incentive tokens, comma-separated
	// in the environment.
	ConnectorTokens []string

	// EpochPeriod is the epoch length driving lifecycle flips.
	EpochPeriod time.Duration
	// TickInterval is how often the gate loop polls for a boundary crossing.
	TickInterval time.Duration
	// DepositWindow is how long a pool accepts public deposits after entering
	// pre-launch.
	DepositWindow time.Duration
	// MaturityDelay is how far past a launch the owner's position matures.
	MaturityDelay time.Duration
	// LaunchDeadline is the router deadline granted to each launch call.
	LaunchDeadline time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// The treasury is required; timing parameters fall back to the engine defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Treasury, err = getEnv("TREASURY_ADDRESS")
	if err != nil {
		return err
	}

	ConnectorTokens = getEnvAsList("CONNECTOR_TOKENS")

	EpochPeriod, err = getEnvAsDuration("EPOCH_PERIOD_SECONDS", DefaultEpochPeriod)
	if err != nil {
		return err
	}

	TickInterval, err = getEnvAsDuration("TICK_INTERVAL_SECONDS", DefaultTickInterval)
	if err != nil {
		return err
	}

	DepositWindow, err = getEnvAsDuration("DEPOSIT_WINDOW_SECONDS", DefaultDepositWindow)
	if err != nil {
		return err
	}

	MaturityDelay, err = getEnvAsDuration("MATURITY_DELAY_SECONDS", DefaultMaturityDelay)
	if err != nil {
		return err
	}

	LaunchDeadline, err = getEnvAsDuration("LAUNCH_DEADLINE_SECONDS", DefaultLaunchDeadline)
	if err != nil {
		return err
	}

	log.Debug().
		Str("Treasury", Treasury).
		Int("ConnectorTokens", len(ConnectorTokens)).
		Dur("EpochPeriod", EpochPeriod).
		Dur("DepositWindow", DepositWindow).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsList retrieves a comma-separated environment variable as a slice,
// empty when unset.
func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// getEnvAsDuration retrieves an environment variable holding whole seconds as
// a duration, falling back to the given default when unset.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	seconds, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil || seconds <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive number of seconds, got: " + valueStr)
	}
	return time.Duration(seconds) * time.Second, nil
}
