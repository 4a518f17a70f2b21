// Package credential persists credential hashes keyed by subject.
//
// A Record never carries the raw secret; callers hash through the password
// package before calling Put. Two Store implementations ship with the package:
// an in-memory map for development and tests, and a PostgreSQL store.
package credential
