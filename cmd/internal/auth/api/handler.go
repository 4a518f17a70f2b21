// Package authapi exposes the credential service over HTTP.
package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/credential"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/auth/credentials"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
)

// CredentialService is the subset of *credentials.Service the handler needs.
type CredentialService interface {
	Hash(ctx context.Context, secret string, workFactor int) (string, error)
	Verify(ctx context.Context, secret, hash string) (bool, error)
	ValidateStrength(secret string) password.ValidationResult
	Generate(length int, strong bool) (string, error)
	SetCredential(ctx context.Context, subject, secret string) (credential.Record, error)
	CheckCredential(ctx context.Context, subject, secret string) (bool, error)
	DeleteCredential(ctx context.Context, subject string) error
}

// Handler wires HTTP credential endpoints to the credential service.
type Handler struct {
	log      *slog.Logger
	cfg      Config
	svc      CredentialService
	throttle *checkThrottle
	now      func() time.Time
}

// HandlerOption configures optional handler dependencies.
type HandlerOption func(*Handler)

// WithClock overrides time.Now for throttling decisions.
func WithClock(now func() time.Time) HandlerOption {
	return func(h *Handler) {
		if h == nil || now == nil {
			return
		}
		h.now = now
	}
}

// NewHandler constructs a credential API Handler.
func NewHandler(log *slog.Logger, svc CredentialService, cfg Config, opts ...HandlerOption) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("authapi: nil credential service")
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	if cfg.GenerateMaxLen <= 0 {
		cfg.GenerateMaxLen = DefaultConfig().GenerateMaxLen
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		svc:      svc,
		throttle: newCheckThrottle(cfg),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}
	return h, nil
}

// Register wires credential routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/credentials/hash", h.handleHash)
	mux.HandleFunc("/credentials/verify", h.handleVerify)
	mux.HandleFunc("/credentials/validate", h.handleValidate)
	mux.HandleFunc("/credentials/generate", h.handleGenerate)
	mux.HandleFunc("/credentials/subjects/{subject}", h.handleSubject)
	mux.HandleFunc("/credentials/subjects/{subject}/check", h.handleCheck)
}

// ---- handlers ----

func (h *Handler) handleHash(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req hashRequest
	if !h.decode(w, r, &req) {
		return
	}

	hash, err := h.svc.Hash(r.Context(), req.Secret, req.WorkFactor)
	if err != nil {
		h.writeServiceError(w, r, "hash", err)
		return
	}
	writeJSON(w, http.StatusOK, hashResponse{Hash: hash})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.svc.Verify(r.Context(), req.Secret, req.Hash)
	if err != nil {
		h.writeServiceError(w, r, "verify", err)
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{Match: ok})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req validateRequestBody
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.ValidateStrength(req.Secret))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// An empty body asks for the defaults.
	var req generateRequest
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeRequestError(w, err)
		return
	}
	if err := validateRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Length > h.cfg.GenerateMaxLen {
		writeError(w, http.StatusBadRequest, "invalid_request", "field 'length' must be at most "+strconv.Itoa(h.cfg.GenerateMaxLen))
		return
	}

	secret, err := h.svc.Generate(req.Length, req.Strong)
	if err != nil {
		if errors.Is(err, password.ErrGenerateExhausted) {
			writeError(w, http.StatusUnprocessableEntity, "generate_exhausted", "no secret passing the strength rules exists at this length")
			return
		}
		h.writeServiceError(w, r, "generate", err)
		return
	}
	writeJSON(w, http.StatusOK, generateResponse{Secret: secret, Length: len(secret)})
}

func (h *Handler) handleSubject(w http.ResponseWriter, r *http.Request) {
	subject := r.PathValue("subject")

	switch r.Method {
	case http.MethodPut:
		var req secretRequest
		if !h.decode(w, r, &req) {
			return
		}
		if _, err := h.svc.SetCredential(r.Context(), subject, req.Secret); err != nil {
			h.writeServiceError(w, r, "set", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		if err := h.svc.DeleteCredential(r.Context(), subject); err != nil {
			h.writeServiceError(w, r, "delete", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "PUT, DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req secretRequest
	if !h.decode(w, r, &req) {
		return
	}

	subject := credential.NormalizeSubject(r.PathValue("subject"))
	ipKey := ""
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		ipKey = ip.String()
	}

	attempt, admitted, retry := h.throttle.reserve(subject, ipKey, h.now())
	if !admitted {
		h.log.Warn("credential.check.throttled", "subject", subject, "ip", ipKey, "retry_after", retry)
		writeRateLimited(w, retry)
		return
	}

	ok, err := h.svc.CheckCredential(r.Context(), subject, req.Secret)
	if err != nil {
		h.throttle.cancel(attempt)
		h.writeServiceError(w, r, "check", err)
		return
	}
	if ok {
		h.throttle.succeed(attempt)
	}
	writeJSON(w, http.StatusOK, matchResponse{Match: ok})
}

// ---- helpers ----

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := readJSON(w, r, h.cfg.MaxBodyBytes, dst); err != nil {
		writeRequestError(w, err)
		return false
	}
	if err := validateRequest(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var weak *credentials.WeakSecretError
	switch {
	case errors.As(err, &weak):
		writeJSON(w, http.StatusUnprocessableEntity, weakSecretResponse{
			Error:      apiError{Code: "weak_secret", Message: "secret does not meet the strength rules"},
			Validation: weak.Result,
		})
	case errors.Is(err, credentials.ErrBusy):
		writeRetryLater(w, http.StatusServiceUnavailable, time.Second, "server_busy", "server busy, retry later")
	case errors.Is(err, password.ErrHashingFailure):
		writeError(w, http.StatusUnprocessableEntity, "hashing_failure", hashFailureMessage(err))
	case errors.Is(err, password.ErrVerificationFailure):
		writeError(w, http.StatusUnprocessableEntity, "verification_failure", "hash is malformed or unsupported")
	case credential.IsInvalidInput(err):
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid subject")
	case credential.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", "credential not found")
	default:
		h.log.Error("credential.api.fail", "op", op, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func hashFailureMessage(err error) string {
	switch {
	case errors.Is(err, password.ErrEmptySecret):
		return "secret must not be empty"
	case errors.Is(err, password.ErrSecretTooLong):
		return "secret is too long for the hashing algorithm"
	case errors.Is(err, password.ErrInvalidWorkFactor):
		return "work factor out of range"
	default:
		return "hashing failed"
	}
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
