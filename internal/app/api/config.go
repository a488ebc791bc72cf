package api

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/mmesim/provisioning-api/internal/shared/polling"
)

// Config carries environment-driven settings for the API process.
type Config struct {
	Port              string
	BackendBaseURL    string
	BackendTimeout    time.Duration
	PostgresDSN       string
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
	VerificationPoll  polling.Config
	FlowTTL           time.Duration
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:              envDefault("PORT", "8080"),
		BackendBaseURL:    strings.TrimSpace(os.Getenv("BACKEND_BASE_URL")),
		BackendTimeout:    10 * time.Second,
		PostgresDSN:       strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		TemporalAddress:   envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace: envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:  isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		VerificationPoll:  polling.DefaultConfig,
		FlowTTL:           24 * time.Hour,
	}
	if cfg.BackendBaseURL == "" {
		return Config{}, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if seconds, err := positiveInt("BACKEND_TIMEOUT_SECONDS"); err != nil {
		return Config{}, err
	} else if seconds > 0 {
		cfg.BackendTimeout = time.Duration(seconds) * time.Second
	}
	if seconds, err := positiveInt("VERIFICATION_POLL_INTERVAL_SECONDS"); err != nil {
		return Config{}, err
	} else if seconds > 0 {
		cfg.VerificationPoll.Interval = time.Duration(seconds) * time.Second
	}
	if attempts, err := positiveInt("VERIFICATION_POLL_MAX_ATTEMPTS"); err != nil {
		return Config{}, err
	} else if attempts > 0 {
		cfg.VerificationPoll.MaxAttempts = attempts
	}
	if hours, err := positiveInt("FLOW_TTL_HOURS"); err != nil {
		return Config{}, err
	} else if hours > 0 {
		cfg.FlowTTL = time.Duration(hours) * time.Hour
	}
	return cfg, nil
}

func positiveInt(key string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return value, nil
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}
