// Package credentials is the request-facing facade over the password core.
//
// It moves hashing and verification onto a bounded Pool, ties credentials to
// subjects through a credential.Store, and reports metrics through an Observer.
package credentials

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/credential"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
)

// Observer receives service metrics. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveOp(op, result string, d time.Duration)
	ObserveValidation(valid bool)
	SetPoolInflight(n int64)
}

type nopObserver struct{}

func (nopObserver) ObserveOp(string, string, time.Duration) {}
func (nopObserver) ObserveValidation(bool)                  {}
func (nopObserver) SetPoolInflight(int64)                   {}

// Op names used as the "op" metric label.
const (
	OpHash     = "hash"
	OpVerify   = "verify"
	OpGenerate = "generate"
	OpSet      = "set"
	OpCheck    = "check"
	OpDelete   = "delete"
)

// dummySecret is hashed once so checks for unknown subjects still pay for a verify.
const dummySecret = "hansa-dummy-credential-for-timing-only"

// Service wires password hashing to the pool and the credential store.
type Service struct {
	log   *slog.Logger
	cfg   Config
	pool  *Pool
	store credential.Store
	obs   Observer

	dummyOnce sync.Once
	dummyHash string
}

// Option configures optional Service dependencies.
type Option func(*Service)

// WithObserver sets the metrics sink (default: no-op).
func WithObserver(obs Observer) Option {
	return func(s *Service) {
		if obs != nil {
			s.obs = obs
		}
	}
}

// NewService constructs a Service. A nil store selects an in-memory store.
func NewService(log *slog.Logger, cfg Config, store credential.Store, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		store = credential.NewMemoryStore()
	}
	if cfg.Timeout < 0 {
		cfg.Timeout = 0
	}

	s := &Service{
		log:   log,
		cfg:   cfg,
		store: store,
		obs:   nopObserver{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.pool = NewPool(cfg.Concurrency, cfg.Timeout, s.obs.SetPoolInflight)
	return s
}

// Config returns the active configuration.
func (s *Service) Config() Config { return s.cfg }

// Pool returns the underlying worker pool.
func (s *Service) Pool() *Pool { return s.pool }

// Hash hashes secret on the pool. workFactor > 0 forces bcrypt at that cost;
// zero uses the configured algorithm and cost.
func (s *Service) Hash(ctx context.Context, secret string, workFactor int) (string, error) {
	start := time.Now()
	h, err := run(ctx, s.pool, func() (string, error) {
		if workFactor > 0 {
			return password.Hash(secret, workFactor)
		}
		return s.cfg.Password.Hash(secret)
	})
	s.obs.ObserveOp(OpHash, resultLabel(err), time.Since(start))
	if err != nil && !errors.Is(err, ErrBusy) {
		s.log.Info("credential.hash.fail", "err", err)
	}
	return h, err
}

// Verify checks secret against hash on the pool.
func (s *Service) Verify(ctx context.Context, secret, hash string) (bool, error) {
	start := time.Now()
	ok, err := run(ctx, s.pool, func() (bool, error) {
		return s.cfg.Password.Verify(secret, hash)
	})
	s.obs.ObserveOp(OpVerify, matchLabel(ok, err), time.Since(start))
	return ok, err
}

// ValidateStrength applies the strength rules. It is cheap and runs inline.
func (s *Service) ValidateStrength(secret string) password.ValidationResult {
	res := password.ValidateStrength(secret)
	s.obs.ObserveValidation(res.IsValid)
	return res
}

// Generate returns a random secret. strong selects GenerateStrong.
func (s *Service) Generate(length int, strong bool) (string, error) {
	start := time.Now()

	var (
		out string
		err error
	)
	if strong {
		out, err = password.GenerateStrong(length)
	} else {
		out, err = password.Generate(length)
	}
	s.obs.ObserveOp(OpGenerate, resultLabel(err), time.Since(start))
	return out, err
}

// SetCredential validates, hashes and stores secret for subject.
// A secret failing the strength rules returns *WeakSecretError.
func (s *Service) SetCredential(ctx context.Context, subject, secret string) (credential.Record, error) {
	start := time.Now()
	rec, err := s.setCredential(ctx, subject, secret)
	s.obs.ObserveOp(OpSet, resultLabel(err), time.Since(start))
	return rec, err
}

func (s *Service) setCredential(ctx context.Context, subject, secret string) (credential.Record, error) {
	norm := credential.NormalizeSubject(subject)
	if !credential.ValidSubject(norm) {
		return credential.Record{}, credential.OpError{Op: "credentials.SetCredential", Kind: credential.ErrInvalidInput, Msg: "invalid subject"}
	}

	res := s.ValidateStrength(secret)
	if !res.IsValid {
		return credential.Record{}, &WeakSecretError{Result: res}
	}

	hash, err := run(ctx, s.pool, func() (string, error) {
		return s.cfg.Password.Hash(secret)
	})
	if err != nil {
		return credential.Record{}, err
	}

	rec, err := s.store.Put(ctx, credential.PutInput{
		Subject:   norm,
		Hash:      hash,
		Algorithm: string(s.algorithm()),
	})
	if err != nil {
		s.log.Error("credential.store.put.fail", "subject", norm, "err", err)
		return credential.Record{}, err
	}

	s.log.Info("credential.set", "subject", norm, "algorithm", rec.Algorithm)
	return rec, nil
}

// CheckCredential verifies secret against the stored credential of subject.
//
// Unknown subjects report (false, nil) after a verify against a dummy hash so
// callers cannot tell them apart by response or timing. On a match against a
// hash weaker than the current config, the credential is rehashed in place.
func (s *Service) CheckCredential(ctx context.Context, subject, secret string) (bool, error) {
	start := time.Now()
	ok, err := s.checkCredential(ctx, subject, secret)
	s.obs.ObserveOp(OpCheck, matchLabel(ok, err), time.Since(start))
	return ok, err
}

func (s *Service) checkCredential(ctx context.Context, subject, secret string) (bool, error) {
	rec, err := s.store.Get(ctx, subject)
	if err != nil {
		if !credential.IsNotFound(err) && !credential.IsInvalidInput(err) {
			s.log.Error("credential.store.get.fail", "err", err)
			return false, err
		}
		_, dummyErr := run(ctx, s.pool, func() (bool, error) {
			return s.cfg.Password.Verify(secret, s.dummy())
		})
		if errors.Is(dummyErr, ErrBusy) {
			return false, dummyErr
		}
		return false, nil
	}

	ok, err := run(ctx, s.pool, func() (bool, error) {
		return s.cfg.Password.Verify(secret, rec.Hash)
	})
	if err != nil {
		if !errors.Is(err, ErrBusy) {
			s.log.Error("credential.verify.fail", "subject", rec.Subject, "err", err)
		}
		return false, err
	}

	if ok && s.cfg.Password.NeedsRehash(rec.Hash) {
		s.rehash(ctx, rec.Subject, secret)
	}
	return ok, nil
}

// rehash upgrades a stored hash. Failures are logged only; the check already succeeded.
func (s *Service) rehash(ctx context.Context, subject, secret string) {
	hash, err := run(ctx, s.pool, func() (string, error) {
		return s.cfg.Password.Hash(secret)
	})
	if err == nil {
		_, err = s.store.Put(ctx, credential.PutInput{
			Subject:   subject,
			Hash:      hash,
			Algorithm: string(s.algorithm()),
		})
	}
	if err != nil {
		s.log.Warn("credential.rehash.fail", "subject", subject, "err", err)
		return
	}
	s.log.Info("credential.rehash", "subject", subject, "algorithm", s.algorithm())
}

// DeleteCredential removes the credential of subject.
func (s *Service) DeleteCredential(ctx context.Context, subject string) error {
	start := time.Now()
	err := s.store.Delete(ctx, subject)
	s.obs.ObserveOp(OpDelete, resultLabel(err), time.Since(start))
	if err == nil {
		s.log.Info("credential.delete", "subject", credential.NormalizeSubject(subject))
	}
	return err
}

func (s *Service) algorithm() password.Algorithm {
	if s.cfg.Password.Algorithm == "" {
		return password.AlgorithmBcrypt
	}
	return s.cfg.Password.Algorithm
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.cfg.Password.Hash(dummySecret)
		if err != nil {
			s.log.Error("credential.dummy_hash.fail", "err", err)
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBusy):
		return "busy"
	default:
		return "error"
	}
}

func matchLabel(ok bool, err error) string {
	switch {
	case err != nil:
		return resultLabel(err)
	case ok:
		return "match"
	default:
		return "mismatch"
	}
}
