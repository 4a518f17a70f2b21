package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/credential"
)

const (
	dbConnectTimeout   = 3 * time.Second
	dbReadinessTimeout = 2 * time.Second
)

// pinger reports whether a backing store can serve requests.
type pinger interface {
	Ping(ctx context.Context) error
}

// storeHandle is the credential store plus what the app must close or ping
// for readiness. pool and ready are nil for the in-memory store.
type storeHandle struct {
	store credential.Store
	pool  *pgxpool.Pool
	ready pinger
}

func (h storeHandle) close() {
	if h.pool != nil {
		h.pool.Close()
	}
}

// openStore picks the Postgres store when HANSA_DATABASE_URL is set and the
// in-memory store otherwise. The Postgres schema is migrated before returning.
func openStore(ctx context.Context, cfg Config, log Logger) (storeHandle, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return storeHandle{store: credential.NewMemoryStore()}, nil
	}

	pool, err := newCredentialPool(ctx, cfg)
	if err != nil {
		return storeHandle{}, err
	}

	st, err := credential.NewPostgresStore(pool, credential.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return storeHandle{}, err
	}
	if err := st.Migrate(ctx); err != nil {
		pool.Close()
		return storeHandle{}, fmt.Errorf("migrate credential schema %q: %w", cfg.DBSchema, err)
	}

	log.Info("db.enabled.postgres_store",
		"schema", cfg.DBSchema,
		"max_conns", pool.Config().MaxConns,
		"min_conns", pool.Config().MinConns,
	)
	// The app owns the pool; PostgresStore only borrows it.
	return storeHandle{store: st, pool: pool, ready: st}, nil
}

// newCredentialPool opens the pgx pool backing the credential store and fails
// fast if the database cannot be reached within dbConnectTimeout.
func newCredentialPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse HANSA_DATABASE_URL: %w", err)
	}
	if cfg.DBMaxConns > 0 {
		pcfg.MaxConns = cfg.DBMaxConns
	}
	if cfg.DBMinConns >= 0 && cfg.DBMinConns <= pcfg.MaxConns {
		pcfg.MinConns = cfg.DBMinConns
	}
	if pcfg.ConnConfig.RuntimeParams == nil {
		pcfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := pcfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		pcfg.ConnConfig.RuntimeParams["application_name"] = "hansa"
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect credential database: %w", err)
	}
	return pool, nil
}

// checkReady pings the store within dbReadinessTimeout. A nil pinger is ready
// unless the config demands a database.
func checkReady(ctx context.Context, cfg Config, p pinger) error {
	if p == nil {
		if cfg.ReadinessRequireDB {
			return errDBNotConfigured
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, dbReadinessTimeout)
	defer cancel()
	return p.Ping(ctx)
}
