package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds settings loaded from environment variables. Command-line
// flags override these per subcommand.
type Config struct {
	Addr           string
	KeysDir        string
	Seed           int64
	MaxRestarts    int
	MaxAttempts    int
	PresetOpponent bool
	Verify         bool
	// MatchTTL is how long a served match may sit untouched before it is
	// dropped. Zero keeps matches forever.
	MatchTTL       time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Addr:           envOrDefault("NAVY_ADDR", ":8080"),
		KeysDir:        envOrDefault("NAVY_KEYS_DIR", "./keys"),
		Seed:           int64(envInt("NAVY_SEED", 0)),
		MaxRestarts:    envInt("NAVY_MAX_RESTARTS", 1000),
		MaxAttempts:    envInt("NAVY_MAX_ATTEMPTS", 2000),
		PresetOpponent: envBool("NAVY_PRESET_OPPONENT", true),
		Verify:         envBool("NAVY_VERIFY", false),
		MatchTTL:       envDuration("NAVY_MATCH_TTL", 30*time.Minute),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return d
}
