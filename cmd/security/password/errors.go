package password

import "errors"

// Public, stable errors for callers.
var (
	// ErrHashingFailure wraps any failure of the hash primitive during Hash.
	ErrHashingFailure = errors.New("hashing failure")
	// ErrVerificationFailure wraps any failure to evaluate a comparison during Verify.
	// It is distinct from a non-matching secret, which is (false, nil).
	ErrVerificationFailure = errors.New("verification failure")

	ErrInvalidHash       = errors.New("invalid password hash")
	ErrEmptySecret       = errors.New("empty secret")
	ErrSecretTooLong     = errors.New("secret exceeds maximum length")
	ErrInvalidWorkFactor = errors.New("invalid work factor")
	ErrUnknownAlgorithm  = errors.New("unknown hash algorithm")
	ErrGenerateExhausted = errors.New("could not generate a compliant password")
)
