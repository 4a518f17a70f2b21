package credential

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store over PostgreSQL.
//
// The pgx pool is owned by the caller; the store never closes it.
// Schema/table identifiers are quoted through pgx.Identifier.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchema sets the Postgres schema holding the credentials table (default "hansa").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return fmt.Errorf("credential: empty schema")
		}
		if !pgIdentRe.MatchString(schema) {
			return fmt.Errorf("credential: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "hansa",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("credential: nil pool")
	}
	return st, nil
}

// Migrate creates the schema and credentials table if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	table := s.table()
	ddl := fmt.Sprintf(`
CREATE SCHEMA IF NOT EXISTS %s;

CREATE TABLE IF NOT EXISTS %s (
  id TEXT PRIMARY KEY,
  subject_norm TEXT NOT NULL,
  hash TEXT NOT NULL,
  algorithm TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),

  CONSTRAINT chk_credentials_id_ulid_len CHECK (char_length(id) = 26),
  CONSTRAINT uq_credentials_subject_norm UNIQUE (subject_norm)
);
`, pgx.Identifier{s.schema}.Sanitize(), table)

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("credential: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, in PutInput) (Record, error) {
	const op = "credential.Put"

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	in, err := checkPut(op, in)
	if err != nil {
		return Record{}, err
	}

	id, err := NewULID(in.Now)
	if err != nil {
		return Record{}, err
	}

	var out Record
	err = s.pool.QueryRow(ctx,
		`INSERT INTO `+s.table()+` (id, subject_norm, hash, algorithm, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 ON CONFLICT (subject_norm) DO UPDATE
		    SET hash = EXCLUDED.hash,
		        algorithm = EXCLUDED.algorithm,
		        updated_at = EXCLUDED.updated_at
		 RETURNING id, subject_norm, hash, algorithm, created_at, updated_at`,
		id, in.Subject, in.Hash, in.Algorithm, in.Now,
	).Scan(&out.ID, &out.Subject, &out.Hash, &out.Algorithm, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, subject string) (Record, error) {
	const op = "credential.Get"

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	subject, err := checkSubject(op, subject)
	if err != nil {
		return Record{}, err
	}

	var out Record
	err = s.pool.QueryRow(ctx,
		`SELECT id, subject_norm, hash, algorithm, created_at, updated_at
		   FROM `+s.table()+`
		  WHERE subject_norm = $1`,
		subject,
	).Scan(&out.ID, &out.Subject, &out.Hash, &out.Algorithm, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, NotFoundError{Op: op, Subject: subject}
		}
		return Record{}, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, subject string) error {
	const op = "credential.Delete"

	if err := ctx.Err(); err != nil {
		return err
	}
	subject, err := checkSubject(op, subject)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE subject_norm = $1`, subject)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundError{Op: op, Subject: subject}
	}
	return nil
}

// Ping checks connectivity of the underlying pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) table() string {
	return pgx.Identifier{s.schema, "credentials"}.Sanitize()
}
