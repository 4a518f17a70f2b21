package authapi

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config controls credential API behavior and abuse limits.
type Config struct {
	MaxBodyBytes   int64
	GenerateMaxLen int
	TrustProxy     bool

	// Per-IP window on failed subject checks.
	CheckIPMax    int
	CheckIPWindow time.Duration

	// Progressive per-subject lockout on failed subject checks.
	LockoutShortThreshold  int
	LockoutShortDuration   time.Duration
	LockoutLongThreshold   int
	LockoutLongDuration    time.Duration
	LockoutSevereThreshold int
	LockoutSevereDuration  time.Duration
}

// DefaultConfig returns the defaults LoadConfigFromEnv falls back to.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:           64 << 10, // 64 KiB
		GenerateMaxLen:         128,
		CheckIPMax:             20,
		CheckIPWindow:          5 * time.Minute,
		LockoutShortThreshold:  5,
		LockoutShortDuration:   5 * time.Minute,
		LockoutLongThreshold:   10,
		LockoutLongDuration:    30 * time.Minute,
		LockoutSevereThreshold: 20,
		LockoutSevereDuration:  2 * time.Hour,
	}
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		MaxBodyBytes:           envInt64("HANSA_API_MAX_BODY_BYTES", def.MaxBodyBytes),
		GenerateMaxLen:         envInt("HANSA_API_GENERATE_MAX_LEN", def.GenerateMaxLen),
		TrustProxy:             envBool("HANSA_API_TRUST_PROXY", false),
		CheckIPMax:             envInt("HANSA_API_CHECK_IP_MAX", def.CheckIPMax),
		CheckIPWindow:          envDuration("HANSA_API_CHECK_IP_WINDOW", def.CheckIPWindow),
		LockoutShortThreshold:  envInt("HANSA_API_LOCKOUT_SHORT_THRESHOLD", def.LockoutShortThreshold),
		LockoutShortDuration:   envDuration("HANSA_API_LOCKOUT_SHORT_DURATION", def.LockoutShortDuration),
		LockoutLongThreshold:   envInt("HANSA_API_LOCKOUT_LONG_THRESHOLD", def.LockoutLongThreshold),
		LockoutLongDuration:    envDuration("HANSA_API_LOCKOUT_LONG_DURATION", def.LockoutLongDuration),
		LockoutSevereThreshold: envInt("HANSA_API_LOCKOUT_SEVERE_THRESHOLD", def.LockoutSevereThreshold),
		LockoutSevereDuration:  envDuration("HANSA_API_LOCKOUT_SEVERE_DURATION", def.LockoutSevereDuration),
	}

	// Generated secrets longer than this are never useful and cost response bytes.
	if cfg.GenerateMaxLen > 4096 {
		cfg.GenerateMaxLen = 4096
	}
	return cfg
}

func (c Config) lockoutTiers() []lockoutTier {
	return []lockoutTier{
		{Threshold: c.LockoutSevereThreshold, Duration: c.LockoutSevereDuration},
		{Threshold: c.LockoutLongThreshold, Duration: c.LockoutLongDuration},
		{Threshold: c.LockoutShortThreshold, Duration: c.LockoutShortDuration},
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
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

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
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
