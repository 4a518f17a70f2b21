package app

import (
	"errors"
	"net/http"

	authapi "github.com/wikr-wasd/123Hansa-sub007/cmd/internal/auth/api"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/metrics"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/realtime"
)

var errDBNotConfigured = errors.New("db not configured")

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	ready pinger,
	m *metrics.Metrics,
	ws *realtime.WSGateway,
	api *authapi.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checkReady(r.Context(), cfg, ready); err != nil {
			if errors.Is(err, errDBNotConfigured) {
				http.Error(w, "db not configured", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			log.Info("readyz.db.not_ready", "err", err)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if cfg.MetricsEnabled && m != nil {
		mux.Handle("/metrics", m.Handler())
	}

	if api != nil {
		api.Register(mux)
	}

	if ws != nil {
		mux.HandleFunc("/ws/strength", ws.HandleWS)
	}
}
