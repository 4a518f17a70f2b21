package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt only consumes the first 72 bytes of its input.
const bcryptMaxBytes = 72

// bcryptPrehashKey domain-separates the digest of long secrets.
var bcryptPrehashKey = []byte("hansa/bcrypt-prehash/v1")

// bcryptInput returns the bytes fed to bcrypt. Secrets longer than
// bcryptMaxBytes are replaced by base64(HMAC-SHA-256(secret)), 44 bytes, so
// every byte of the secret counts and nothing is truncated.
func bcryptInput(secret string) []byte {
	if len(secret) <= bcryptMaxBytes {
		return []byte(secret)
	}
	m := hmac.New(sha256.New, bcryptPrehashKey)
	_, _ = m.Write([]byte(secret))
	out := make([]byte, base64.StdEncoding.EncodedLen(sha256.Size))
	base64.StdEncoding.Encode(out, m.Sum(nil))
	return out
}

// Hash hashes secret with bcrypt using workFactor as the cost.
// Every call draws a fresh salt. Failures wrap ErrHashingFailure.
// Secrets over 72 bytes are pre-hashed; see bcryptInput.
func Hash(secret string, workFactor int) (string, error) {
	if err := checkBcryptInput(secret, workFactor); err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashingFailure, err)
	}

	b, err := bcrypt.GenerateFromPassword(bcryptInput(secret), workFactor)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrHashingFailure, err)
	}
	return string(b), nil
}

// Verify checks secret against a bcrypt or Argon2id hash.
// Returns (true, nil) for a match, (false, nil) for mismatch,
// and (false, ErrVerificationFailure) for malformed/unsupported hashes.
func Verify(secret, hash string) (bool, error) {
	return verify(secret, hash, absoluteArgon2Limits)
}

// Hash hashes secret with the configured algorithm and cost.
func (c Config) Hash(secret string) (string, error) {
	if utf8.RuneCountInString(secret) > c.maxLength() {
		return "", fmt.Errorf("%w: %w", ErrHashingFailure, ErrSecretTooLong)
	}

	switch c.Algorithm {
	case AlgorithmBcrypt, "":
		return Hash(secret, c.WorkFactor)
	case AlgorithmArgon2id:
		if secret == "" {
			return "", fmt.Errorf("%w: %w", ErrHashingFailure, ErrEmptySecret)
		}
		enc, err := hashArgon2id(secret, c.Params)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrHashingFailure, err)
		}
		return enc, nil
	default:
		return "", fmt.Errorf("%w: %w", ErrHashingFailure, ErrUnknownAlgorithm)
	}
}

// Verify is like the package-level Verify but refuses Argon2id hashes whose
// parameters exceed twice the configured ones.
func (c Config) Verify(secret, hash string) (bool, error) {
	if utf8.RuneCountInString(secret) > c.maxLength() {
		// Nothing this config hashed can be that long.
		return false, nil
	}
	return verify(secret, hash, c.Params)
}

// NeedsRehash reports whether hash was produced with a different algorithm or a
// lower cost than c. Malformed hashes report false; Verify rejects them anyway.
func (c Config) NeedsRehash(hash string) bool {
	algo, ok := DetectAlgorithm(hash)
	if !ok {
		return false
	}

	want := c.Algorithm
	if want == "" {
		want = AlgorithmBcrypt
	}
	if algo != want {
		return true
	}

	switch algo {
	case AlgorithmBcrypt:
		cost, err := bcrypt.Cost([]byte(hash))
		if err != nil {
			return false
		}
		return cost < c.WorkFactor
	case AlgorithmArgon2id:
		p, _, _, err := decodeArgon2id(hash)
		if err != nil {
			return false
		}
		return p.MemoryKiB < c.Params.MemoryKiB ||
			p.Iterations < c.Params.Iterations ||
			p.KeyLength < c.Params.KeyLength
	}
	return false
}

// DetectAlgorithm identifies the primitive behind an encoded hash by its prefix.
func DetectAlgorithm(hash string) (Algorithm, bool) {
	switch {
	case strings.HasPrefix(hash, argon2Prefix):
		return AlgorithmArgon2id, true
	case strings.HasPrefix(hash, "$2a$"), strings.HasPrefix(hash, "$2b$"), strings.HasPrefix(hash, "$2y$"):
		return AlgorithmBcrypt, true
	default:
		return "", false
	}
}

func verify(secret, hash string, limits Argon2idParams) (bool, error) {
	algo, ok := DetectAlgorithm(hash)
	if !ok {
		return false, fmt.Errorf("%w: %w", ErrVerificationFailure, ErrInvalidHash)
	}

	switch algo {
	case AlgorithmArgon2id:
		match, err := verifyArgon2id(secret, hash, limits)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrVerificationFailure, err)
		}
		return match, nil
	default:
		return verifyBcrypt(secret, hash)
	}
}

func verifyBcrypt(secret, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrVerificationFailure, err)
	}
}

func checkBcryptInput(secret string, workFactor int) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if workFactor < bcrypt.MinCost || workFactor > bcrypt.MaxCost {
		return fmt.Errorf("%w: %d not in [%d..%d]", ErrInvalidWorkFactor, workFactor, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func (c Config) maxLength() int {
	if c.Policy.MaxLength <= 0 {
		return MaxLength
	}
	return c.Policy.MaxLength
}
