// Package realtime serves the live strength meter over WebSocket.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
	v1 "github.com/wikr-wasd/123Hansa-sub007/shared/contracts/strength/v1"

	"github.com/coder/websocket"
)

const (
	wsDefaultSendQueueSize = 64
	wsMinSendQueueSize     = 8

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultReadIdle     = 2 * time.Minute
	wsCloseGrace          = 1 * time.Second

	wsMaxPingFailures = 3

	// Consecutive refused events before the session is closed.
	wsMaxRateStrikes = 3

	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// StrengthChecker evaluates a candidate secret. *credentials.Service satisfies it.
type StrengthChecker interface {
	ValidateStrength(secret string) password.ValidationResult
}

// SessionObserver is notified when sessions open and close. *metrics.Metrics satisfies it.
type SessionObserver interface {
	WSSessionOpened()
	WSSessionClosed()
}

type nopSessionObserver struct{}

func (nopSessionObserver) WSSessionOpened() {}
func (nopSessionObserver) WSSessionClosed() {}

// GatewayConfig controls origin policy, timeouts and per-connection limits.
type GatewayConfig struct {
	DevInsecure    bool
	OriginRequired bool
	AllowedOrigins []string

	WriteTimeout    time.Duration
	ReadIdleTimeout time.Duration
	SendQueueSize   int

	HeartbeatEvery   time.Duration
	HeartbeatTimeout time.Duration

	RateEvents int
	RateWindow time.Duration
}

// LoadGatewayConfigFromEnv reads HANSA_WS_* variables with secure defaults.
func LoadGatewayConfigFromEnv() GatewayConfig {
	cfg := GatewayConfig{
		// InsecureSkipVerify disables websocket.Accept's origin check. Dev only.
		DevInsecure:    envBoolWS("HANSA_WS_DEV_INSECURE", false),
		OriginRequired: envBoolWS("HANSA_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired),
		AllowedOrigins: envCSVWS("HANSA_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins),

		WriteTimeout:    envDurationWS("HANSA_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout),
		ReadIdleTimeout: envDurationWS("HANSA_WS_READ_IDLE_TIMEOUT", wsDefaultReadIdle),
		SendQueueSize:   envIntWS("HANSA_WS_SEND_QUEUE", wsDefaultSendQueueSize),

		HeartbeatEvery:   envDurationWS("HANSA_WS_HEARTBEAT_INTERVAL", heartbeatInterval),
		HeartbeatTimeout: envDurationWS("HANSA_WS_HEARTBEAT_TIMEOUT", heartbeatTimeout),

		RateEvents: envIntWS("HANSA_WS_RATE_EVENTS", rateLimitEvents),
		RateWindow: envDurationWS("HANSA_WS_RATE_WINDOW", rateLimitWindow),
	}
	return cfg.withDefaults()
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = wsDefaultWriteTimeout
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = wsDefaultReadIdle
	}
	if c.SendQueueSize < wsMinSendQueueSize {
		c.SendQueueSize = wsMinSendQueueSize
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = heartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = heartbeatTimeout
	}
	if c.RateEvents <= 0 {
		c.RateEvents = rateLimitEvents
	}
	if c.RateWindow <= 0 {
		c.RateWindow = rateLimitWindow
	}
	return c
}

// WSGateway is the WebSocket entrypoint for the strength meter.
//
// It enforces origin policy, subprotocol selection, rate limits and heartbeats,
// and answers strength_check envelopes with strength_result.
type WSGateway struct {
	log     *slog.Logger
	checker StrengthChecker
	obs     SessionObserver
	cfg     GatewayConfig

	// Derived for websocket.Accept, which only authorizes cross-origin
	// requests whose host matches one of these patterns.
	originPatterns []string
}

// GatewayOption configures optional gateway dependencies.
type GatewayOption func(*WSGateway)

// WithSessionObserver sets the session open/close sink.
func WithSessionObserver(obs SessionObserver) GatewayOption {
	return func(g *WSGateway) {
		if obs != nil {
			g.obs = obs
		}
	}
}

// NewWSGateway constructs a gateway. checker must not be nil.
func NewWSGateway(log *slog.Logger, checker StrengthChecker, cfg GatewayConfig, opts ...GatewayOption) *WSGateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	cfg = cfg.withDefaults()
	g := &WSGateway{
		log:            log,
		checker:        checker,
		obs:            nopSessionObserver{},
		cfg:            cfg,
		originPatterns: deriveOriginPatternsFromAllowedOrigins(cfg.AllowedOrigins),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ServeHTTP adapter so it can be mounted as http.Handler.
func (g *WSGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the read loop.
func (g *WSGateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:       []string{v1.Subprotocol},
		OriginPatterns:     g.originPatterns,
		InsecureSkipVerify: g.cfg.DevInsecure,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != v1.Subprotocol {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", v1.Subprotocol)
		_ = conn.Close(websocket.StatusPolicyViolation, "subprotocol required")
		return
	}

	conn.SetReadLimit(maxFrameBytes)

	now := time.Now().UTC()
	sessionID, err := NewSessionID(now)
	if err != nil {
		g.log.Error("ws.session_id.fail", "err", err)
		_ = conn.Close(websocket.StatusInternalError, "internal error")
		return
	}
	client := NewClient(sessionID, g.cfg.SendQueueSize)

	g.obs.WSSessionOpened()
	defer g.obs.WSSessionClosed()
	g.log.Info("ws.session.open", "session_id", sessionID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var closeOnce sync.Once

	// shutdown is idempotent. It does NOT close client.Send.
	shutdown := func(code websocket.StatusCode, reason string) {
		closeOnce.Do(func() {
			client.Close()
			_ = conn.Close(code, reason)
			cancel()
		})
	}

	rl := NewRateLimiter(g.cfg.RateEvents, g.cfg.RateWindow)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)

		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case env := <-client.Send:
				if err := writeEnvelope(ctx, conn, env, g.cfg.WriteTimeout); err != nil {
					g.log.Info("ws.write.fail", "session_id", sessionID, "close_status", websocket.CloseStatus(err), "err", err)
					shutdown(websocket.StatusAbnormalClosure, "write failed")
					return
				}
			}
		}
	}()

	heartbeatDone := make(chan struct{})
	go func() {
		defer close(heartbeatDone)

		t := time.NewTicker(g.cfg.HeartbeatEvery)
		defer t.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-client.Done():
				return
			case <-t.C:
				hbCtx, hbCancel := context.WithTimeout(ctx, g.cfg.HeartbeatTimeout)
				err := conn.Ping(hbCtx)
				hbCancel()

				if err != nil {
					failures++
					g.log.Info("ws.ping.fail", "session_id", sessionID, "failures", failures, "err", err)
					if failures >= wsMaxPingFailures {
						shutdown(websocket.StatusGoingAway, "heartbeat failed")
						return
					}
					continue
				}
				failures = 0
			}
		}
	}()

	strikes := 0

readLoop:
	for {
		readCtx, readCancel := context.WithTimeout(ctx, g.cfg.ReadIdleTimeout)
		env, err := readEnvelope(readCtx, conn)
		readCancel()

		if err != nil {
			switch classifyReadErr(err) {
			case readErrClose:
				shutdown(websocket.StatusNormalClosure, "peer closed")
				break readLoop
			case readErrCtxDone:
				shutdown(websocket.StatusNormalClosure, "context done")
				break readLoop
			case readErrConnClosed:
				shutdown(websocket.StatusAbnormalClosure, "conn closed")
				break readLoop
			case readErrBadJSON:
				// Malformed frames still pay the rate limit below.
			default:
				g.log.Info("ws.read.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusAbnormalClosure, "read failed")
				break readLoop
			}
		}

		if ok, retry := rl.Reserve(time.Now().UTC()); !ok {
			strikes++
			if strikes >= wsMaxRateStrikes {
				g.log.Info("ws.rate_limited.close", "session_id", sessionID)
				shutdown(websocket.StatusPolicyViolation, "rate limited")
				break readLoop
			}
			g.trySendError(ctx, client, "rate_limited", fmt.Sprintf("retry in %dms", retry.Milliseconds()), "")
			continue readLoop
		}
		strikes = 0

		if err != nil {
			g.trySendError(ctx, client, "bad_json", "invalid JSON", "")
			continue readLoop
		}

		if err := env.Validate(); err != nil {
			g.trySendError(ctx, client, "bad_envelope", err.Error(), "")
			continue readLoop
		}

		switch env.Type {
		case v1.TypeHello:
			if err := g.onHello(ctx, client); err != nil {
				shutdown(websocket.StatusPolicyViolation, "hello failed")
				break readLoop
			}
		case v1.TypeStrengthCheck:
			if err := g.onStrengthCheck(ctx, client, env); err != nil {
				var ce checkError
				if errors.As(err, &ce) {
					g.trySendError(ctx, client, ce.code, ce.msg, ce.requestID)
					continue readLoop
				}
				g.log.Info("ws.strength_check.fail", "session_id", sessionID, "err", err)
				shutdown(websocket.StatusTryAgainLater, "backpressure")
				break readLoop
			}
		default:
			g.trySendError(ctx, client, "unsupported", fmt.Sprintf("unsupported type: %s", env.Type), "")
		}
	}

	shutdown(websocket.StatusNormalClosure, "bye")
	<-writerDone

	select {
	case <-heartbeatDone:
	case <-time.After(wsCloseGrace):
	}
	g.log.Info("ws.session.close", "session_id", sessionID)
}

// ---- handlers ----

// checkError is a client-visible rejection of one strength_check.
type checkError struct {
	code      string
	msg       string
	requestID string
}

func (e checkError) Error() string { return e.code + ": " + e.msg }

func (g *WSGateway) onHello(ctx context.Context, client *Client) error {
	p, _ := json.Marshal(v1.HelloAckPayload{SessionID: client.SessionID})
	if !g.enqueue(ctx, client, newEnvelope(v1.TypeHelloAck, p, time.Now().UTC())) {
		return errors.New("backpressure: hello_ack")
	}
	return nil
}

func (g *WSGateway) onStrengthCheck(ctx context.Context, client *Client, env v1.Envelope) error {
	var p v1.StrengthCheckPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return checkError{code: "bad_payload", msg: "invalid strength_check payload"}
	}
	if utf8.RuneCountInString(p.Secret) > maxSecretChars {
		return checkError{code: "secret_too_long", msg: fmt.Sprintf("max=%d chars", maxSecretChars), requestID: p.RequestID}
	}

	res := g.checker.ValidateStrength(p.Secret)

	out, _ := json.Marshal(v1.StrengthResultPayload{
		RequestID: p.RequestID,
		IsValid:   res.IsValid,
		Errors:    res.Errors,
	})
	if !g.enqueue(ctx, client, newEnvelope(v1.TypeStrengthResult, out, time.Now().UTC())) {
		return errors.New("backpressure: strength_result")
	}
	return nil
}

// ---- send helpers ----

func (g *WSGateway) trySendError(ctx context.Context, client *Client, code, msg, requestID string) {
	p, _ := json.Marshal(v1.ErrorPayload{Code: code, Message: msg, RequestID: requestID})
	_ = g.enqueue(ctx, client, newEnvelope(v1.TypeError, p, time.Now().UTC()))
}

func (g *WSGateway) enqueue(ctx context.Context, client *Client, env v1.Envelope) bool {
	select {
	case <-ctx.Done():
		return false
	case <-client.Done():
		return false
	case client.Send <- env:
		return true
	default:
		return false
	}
}

// ---- envelope IO ----

func newEnvelope(typ string, payload json.RawMessage, ts time.Time) v1.Envelope {
	id, _ := NewEnvelopeID(ts)
	return v1.Envelope{
		V:       v1.Version,
		Type:    typ,
		ID:      id,
		TS:      ts,
		Payload: payload,
	}
}

func readEnvelope(ctx context.Context, conn *websocket.Conn) (v1.Envelope, error) {
	mt, data, err := conn.Read(ctx)
	if err != nil {
		return v1.Envelope{}, err
	}
	if mt != websocket.MessageText && mt != websocket.MessageBinary {
		return v1.Envelope{}, fmt.Errorf("unsupported message type: %v", mt)
	}
	var env v1.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return v1.Envelope{}, err
	}
	return env, nil
}

func writeEnvelope(parent context.Context, conn *websocket.Conn, env v1.Envelope, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// ---- read error classification ----

type readErrKind uint8

const (
	readErrUnknown readErrKind = iota
	readErrClose
	readErrCtxDone
	readErrConnClosed
	readErrBadJSON
)

func classifyReadErr(err error) readErrKind {
	if websocket.CloseStatus(err) != -1 {
		return readErrClose
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return readErrCtxDone
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return readErrConnClosed
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return readErrBadJSON
	}
	return readErrUnknown
}

// ---- origin policy ----

func (g *WSGateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.cfg.OriginRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.cfg.AllowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.cfg.AllowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			return nil
		}
		if origin == a {
			return nil
		}
		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

// deriveOriginPatternsFromAllowedOrigins turns the allowlist into host
// patterns for websocket.Accept, so both origin checks agree.
// websocket.Accept matches the full origin host (including port), so each
// host is also allowed with any port. A "*" entry allows every host.
func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	seen := make(map[string]struct{}, len(allowed)*2)

	for _, a := range allowed {
		if strings.TrimSpace(a) == "*" {
			return []string{"*"}
		}
		h := originHostOnly(a)
		if h == "" {
			continue
		}
		seen[h] = struct{}{}
		seen[h+":*"] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envIntWS(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
