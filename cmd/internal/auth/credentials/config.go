package credentials

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
)

const (
	maxConcurrency = 8
	defaultTimeout = 5 * time.Second
)

// Config controls the credential service.
type Config struct {
	Password password.Config

	// Concurrency is the number of hash/verify jobs allowed to run at once.
	Concurrency int
	// Timeout bounds how long a caller waits for a slot plus the job itself.
	Timeout time.Duration
}

// DefaultConfig returns the password defaults with NumCPU slots (clamped to [1..8]).
func DefaultConfig() Config {
	return Config{
		Password:    password.DefaultConfig(),
		Concurrency: defaultConcurrency(),
		Timeout:     defaultTimeout,
	}
}

// LoadConfigFromEnv loads the service config. Password settings are strict
// (invalid values fail); pool settings fall back to safe defaults.
func LoadConfigFromEnv() (Config, error) {
	pw, err := password.FromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("credentials: %w", err)
	}

	cfg := Config{
		Password:    pw,
		Concurrency: envInt("HANSA_HASH_CONCURRENCY", defaultConcurrency()),
		Timeout:     envDuration("HANSA_HASH_TIMEOUT", defaultTimeout),
	}
	if cfg.Concurrency > 4*maxConcurrency {
		cfg.Concurrency = 4 * maxConcurrency
	}
	return cfg, nil
}

func defaultConcurrency() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	if n > maxConcurrency {
		n = maxConcurrency
	}
	return n
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
