package password

import (
	"errors"
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv := []string{
		"HANSA_PASSWORD_ALGORITHM",
		"HANSA_PASSWORD_WORK_FACTOR",
		"HANSA_PASSWORD_MAX_LEN",
		"HANSA_ARGON2_MEMORY_KIB",
		"HANSA_ARGON2_ITERATIONS",
		"HANSA_ARGON2_PARALLELISM",
		"HANSA_ARGON2_SALT_LEN",
		"HANSA_ARGON2_KEY_LEN",
	}
	for _, k := range clearEnv {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Algorithm != AlgorithmBcrypt || cfg.WorkFactor != DefaultWorkFactor {
		t.Fatalf("algorithm defaults mismatch: %+v", cfg)
	}
	if cfg.Policy.MaxLength != def.Policy.MaxLength {
		t.Fatalf("max length mismatch")
	}
	if cfg.Params.MemoryKiB != def.Params.MemoryKiB {
		t.Fatalf("memory mismatch")
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("HANSA_PASSWORD_ALGORITHM", "Argon2id")
	t.Setenv("HANSA_PASSWORD_WORK_FACTOR", "10")
	t.Setenv("HANSA_PASSWORD_MAX_LEN", "200")
	t.Setenv("HANSA_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("HANSA_ARGON2_ITERATIONS", "4")
	t.Setenv("HANSA_ARGON2_PARALLELISM", "2")
	t.Setenv("HANSA_ARGON2_SALT_LEN", "24")
	t.Setenv("HANSA_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Algorithm != AlgorithmArgon2id || cfg.WorkFactor != 10 {
		t.Fatalf("algorithm override failed: %+v", cfg)
	}
	if cfg.Policy.MaxLength != 200 {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		key string
		val string
	}{
		{key: "HANSA_PASSWORD_ALGORITHM", val: "md5"},
		{key: "HANSA_PASSWORD_WORK_FACTOR", val: "3"},
		{key: "HANSA_PASSWORD_WORK_FACTOR", val: "32"},
		{key: "HANSA_PASSWORD_WORK_FACTOR", val: "twelve"},
		{key: "HANSA_PASSWORD_MAX_LEN", val: "64"},
		{key: "HANSA_ARGON2_PARALLELISM", val: "0"},
		{key: "HANSA_ARGON2_MEMORY_KIB", val: "1024"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFromEnv_KeyShorterThanSalt(t *testing.T) {
	t.Setenv("HANSA_ARGON2_SALT_LEN", "32")
	t.Setenv("HANSA_ARGON2_KEY_LEN", "16")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	if a, err := ParseAlgorithm(""); err != nil || a != AlgorithmBcrypt {
		t.Fatalf("empty: got (%q, %v)", a, err)
	}
	if a, err := ParseAlgorithm(" BCRYPT "); err != nil || a != AlgorithmBcrypt {
		t.Fatalf("bcrypt: got (%q, %v)", a, err)
	}
	if _, err := ParseAlgorithm("scrypt"); !errors.Is(err, ErrUnknownAlgorithm) {
		t.Fatalf("expected ErrUnknownAlgorithm, got %v", err)
	}
}
