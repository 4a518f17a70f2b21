package password

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Algorithm names the hash primitive used for new hashes.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// DefaultWorkFactor is the bcrypt cost used when nothing else is configured.
const DefaultWorkFactor = 12

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds the size of secrets accepted by Config.Hash and Config.Verify.
// It is an anti-DoS guard, not the strength rule set (see ValidateStrength).
type Policy struct {
	// MaxLength is counted in runes.
	MaxLength int
}

// Config is the single configuration surface for this package.
type Config struct {
	Algorithm  Algorithm
	WorkFactor int
	Params     Argon2idParams
	Policy     Policy
}

// DefaultConfig returns bcrypt at cost 12 with Argon2id parameters ready for opt-in use.
func DefaultConfig() Config {
	// Clamp to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Algorithm:  AlgorithmBcrypt,
		WorkFactor: DefaultWorkFactor,
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - HANSA_PASSWORD_ALGORITHM (bcrypt|argon2id)
// - HANSA_PASSWORD_WORK_FACTOR
// - HANSA_PASSWORD_MAX_LEN
// - HANSA_ARGON2_MEMORY_KIB
// - HANSA_ARGON2_ITERATIONS
// - HANSA_ARGON2_PARALLELISM
// - HANSA_ARGON2_SALT_LEN
// - HANSA_ARGON2_KEY_LEN
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := lookupEnv("HANSA_PASSWORD_ALGORITHM"); ok {
		a, err := ParseAlgorithm(v)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_PASSWORD_ALGORITHM: %w", err)
		}
		cfg.Algorithm = a
	}

	if v, ok := lookupEnv("HANSA_PASSWORD_WORK_FACTOR"); ok {
		n, err := atoiPositiveInt(v, bcrypt.MinCost, bcrypt.MaxCost)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_PASSWORD_WORK_FACTOR: %w", err)
		}
		cfg.WorkFactor = n
	}

	if v, ok := lookupEnv("HANSA_PASSWORD_MAX_LEN"); ok {
		n, err := atoiPositiveInt(v, MaxLength, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := lookupEnv("HANSA_ARGON2_MEMORY_KIB"); ok {
		u, err := atou32(v, 8*1024, 1024*1024) // 8 MiB .. 1 GiB
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = u
	}

	if v, ok := lookupEnv("HANSA_ARGON2_ITERATIONS"); ok {
		u, err := atou32(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = u
	}

	if v, ok := lookupEnv("HANSA_ARGON2_PARALLELISM"); ok {
		u, err := atou32(v, 1, 64)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_ARGON2_PARALLELISM: %w", err)
		}
		p, err := u32ToU8(u)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_ARGON2_PARALLELISM: %w", err)
		}
		cfg.Params.Parallelism = p
	}

	if v, ok := lookupEnv("HANSA_ARGON2_SALT_LEN"); ok {
		u, err := atou32(v, 8, 64)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_ARGON2_SALT_LEN: %w", err)
		}
		cfg.Params.SaltLength = u
	}

	if v, ok := lookupEnv("HANSA_ARGON2_KEY_LEN"); ok {
		u, err := atou32(v, 16, 64)
		if err != nil {
			return Config{}, fmt.Errorf("HANSA_ARGON2_KEY_LEN: %w", err)
		}
		cfg.Params.KeyLength = u
	}

	// Argon2id output shorter than the salt is never useful.
	if cfg.Params.KeyLength < cfg.Params.SaltLength {
		return Config{}, fmt.Errorf(
			"argon2id params invalid: key_len(%d) < salt_len(%d)",
			cfg.Params.KeyLength,
			cfg.Params.SaltLength,
		)
	}

	return cfg, nil
}

// ParseAlgorithm maps a config string onto a supported Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(AlgorithmBcrypt):
		return AlgorithmBcrypt, nil
	case string(AlgorithmArgon2id):
		return AlgorithmArgon2id, nil
	default:
		return "", ErrUnknownAlgorithm
	}
}

func atoiPositiveInt(s string, minVal, maxVal int) (int, error) {
	s = strings.TrimSpace(s)
	i64, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}

	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}

func atou32(s string, minVal, maxVal uint32) (uint32, error) {
	s = strings.TrimSpace(s)
	u64, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an unsigned integer")
	}

	u := uint32(u64)
	if u < minVal || u > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return u, nil
}

func u32ToU8(u uint32) (uint8, error) {
	if u > math.MaxUint8 {
		return 0, fmt.Errorf("out of range [0..%d]", math.MaxUint8)
	}
	return uint8(u), nil
}

// lookupEnv treats blank values as unset.
func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
