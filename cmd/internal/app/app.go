// Package app wires the Hansa server runtime: config, logging, metrics, the
// credential store, HTTP routes and the realtime strength gateway.
package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	authapi "github.com/wikr-wasd/123Hansa-sub007/cmd/internal/auth/api"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/auth/credentials"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/metrics"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/realtime"
)

// App is the Hansa server runtime: it owns HTTP server wiring and its dependencies.
type App struct {
	cfg Config
	log Logger

	store storeHandle

	metrics *metrics.Metrics
	creds   *credentials.Service
	api     *authapi.Handler
	ws      *realtime.WSGateway
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogColor)
	}

	credCfg, err := credentials.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	sh, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	svc := credentials.NewService(log, credCfg, sh.store, credentials.WithObserver(m))

	api, err := authapi.NewHandler(log, svc, authapi.LoadConfigFromEnv())
	if err != nil {
		sh.close()
		return nil, err
	}

	ws := realtime.NewWSGateway(log, svc, realtime.LoadGatewayConfigFromEnv(), realtime.WithSessionObserver(m))

	log.Info("credentials.ready",
		"algorithm", credCfg.Password.Algorithm,
		"work_factor", credCfg.Password.WorkFactor,
		"concurrency", svc.Pool().Size(),
		"timeout", credCfg.Timeout,
	)

	return &App{
		cfg:     cfg,
		log:     log,
		store:   sh,
		metrics: m,
		creds:   svc,
		api:     api,
		ws:      ws,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.store.ready, a.metrics, a.ws, a.api)

	var h http.Handler = mux
	h = WithSecurityHeaders(h)
	h = WithCORS(h, a.cfg, a.log)
	return WithRequestLogging(h, a.log, a.metrics)
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	base := runtimeBaseURL(a.cfg.HTTPAddr)
	a.log.Info("server.start",
		"addr", a.cfg.HTTPAddr,
		"db_enabled", a.store.pool != nil,
		"api", base+"/credentials",
		"ws", wsBaseURL(base)+"/ws/strength",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.Close()
	a.log.Info("server.stopped")
	return nil
}

// Close releases the DB pool, if any.
func (a *App) Close() {
	a.store.close()
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// runtimeBaseURL turns a listen address into a URL a local client can reach.
func runtimeBaseURL(addr string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "http://" + strings.TrimSpace(addr)
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func wsBaseURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return "ws://" + base
	}
}
