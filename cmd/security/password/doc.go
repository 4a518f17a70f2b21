// Package password is Hansa's credential policy core.
//
// It exposes four stateless operations:
// - Hash: salted adaptive hashing (bcrypt, work factor = cost)
// - Verify: constant-time comparison against a stored bcrypt or Argon2id hash
// - ValidateStrength: fixed rule set, every violated rule reported
// - Generate: random passwords from a fixed 70-character alphabet
//
// Config carries the runtime choice of algorithm and cost (defaults + env overrides).
//
// Security notes:
//   - Stored hashes are untrusted input during Verify; malformed ones yield ErrVerificationFailure,
//     which is never the same thing as a mismatch.
//   - Argon2id verification refuses hashes whose parameters exceed configured bounds.
//   - bcrypt secrets over 72 bytes are pre-hashed with HMAC-SHA-256, so no
//     secret is truncated and every secret ValidateStrength accepts is hashable.
//   - Nothing in this package logs or retains secrets.
package password
