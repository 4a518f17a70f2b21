package credential

import (
	"context"
	"time"
)

// Record is a persisted credential. Hash is an encoded password hash; the raw
// secret is never stored.
type Record struct {
	ID        string
	Subject   string
	Hash      string
	Algorithm string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PutInput is the input for Store.Put.
type PutInput struct {
	Subject   string
	Hash      string
	Algorithm string

	// Now is injectable for tests; zero means time.Now().UTC().
	Now time.Time
}

// Store is the persistence boundary for credential hashes.
//
// Subjects are normalized with NormalizeSubject by every implementation, so
// "Alice" and " alice " address the same record.
type Store interface {
	// Put inserts or replaces the credential for in.Subject. On replace the ID
	// and CreatedAt of the existing record are kept.
	Put(ctx context.Context, in PutInput) (Record, error)

	// Get returns the record for subject or a NotFoundError.
	Get(ctx context.Context, subject string) (Record, error)

	// Delete removes the record for subject or returns a NotFoundError.
	Delete(ctx context.Context, subject string) error
}

func checkPut(op string, in PutInput) (PutInput, error) {
	in.Subject = NormalizeSubject(in.Subject)
	if !ValidSubject(in.Subject) {
		return in, invalid(op, "invalid subject")
	}
	if in.Hash == "" {
		return in, invalid(op, "hash is required")
	}
	if in.Algorithm == "" {
		return in, invalid(op, "algorithm is required")
	}
	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}
	return in, nil
}

func checkSubject(op, subject string) (string, error) {
	subject = NormalizeSubject(subject)
	if !ValidSubject(subject) {
		return "", invalid(op, "invalid subject")
	}
	return subject, nil
}
