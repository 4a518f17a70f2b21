package authapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wikr-wasd/123Hansa-sub007/cmd/credential"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/internal/auth/credentials"
	"github.com/wikr-wasd/123Hansa-sub007/cmd/security/password"
	"golang.org/x/crypto/bcrypt"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, cfg Config, opts ...HandlerOption) (*httptest.Server, *credentials.Service) {
	t.Helper()

	ccfg := credentials.DefaultConfig()
	ccfg.Password.WorkFactor = bcrypt.MinCost
	ccfg.Concurrency = 2
	ccfg.Timeout = 5 * time.Second
	svc := credentials.NewService(testLogger(), ccfg, credential.NewMemoryStore())

	return newTestServerWith(t, svc, cfg, opts...), svc
}

func newTestServerWith(t *testing.T, svc CredentialService, cfg Config, opts ...HandlerOption) *httptest.Server {
	t.Helper()

	h, err := NewHandler(testLogger(), svc, cfg, opts...)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %q: %v", raw, err)
		}
	}
	return resp, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHashThenVerify(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, DefaultConfig())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/hash", `{"secret":"Abcdef1!","work_factor":5}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hash status=%d body=%v", resp.StatusCode, body)
	}
	hash, _ := body["hash"].(string)
	if cost, err := bcrypt.Cost([]byte(hash)); err != nil || cost != 5 {
		t.Fatalf("unexpected hash %q cost=%d err=%v", hash, cost, err)
	}

	payload, _ := json.Marshal(map[string]string{"secret": "Abcdef1!", "hash": hash})
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/verify", string(payload))
	if resp.StatusCode != http.StatusOK || body["match"] != true {
		t.Fatalf("verify status=%d body=%v", resp.StatusCode, body)
	}

	payload, _ = json.Marshal(map[string]string{"secret": "wrong", "hash": hash})
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/verify", string(payload))
	if resp.StatusCode != http.StatusOK || body["match"] != false {
		t.Fatalf("verify mismatch status=%d body=%v", resp.StatusCode, body)
	}
}

func TestHash_Errors(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, DefaultConfig())

	cases := []struct {
		name   string
		method string
		body   string
		status int
		code   string
	}{
		{name: "wrong method", method: http.MethodGet, body: "", status: http.StatusMethodNotAllowed},
		{name: "bad json", method: http.MethodPost, body: `{"secret":`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "unknown field", method: http.MethodPost, body: `{"secret":"x","salt":"y"}`, status: http.StatusBadRequest, code: "invalid_json"},
		{name: "missing secret", method: http.MethodPost, body: `{}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "work factor too low", method: http.MethodPost, body: `{"secret":"x","work_factor":3}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "over configured max length", method: http.MethodPost, body: `{"secret":"` + strings.Repeat("a", 300) + `"}`, status: http.StatusUnprocessableEntity, code: "hashing_failure"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp, body := doJSON(t, tc.method, srv.URL+"/credentials/hash", tc.body)
			if resp.StatusCode != tc.status {
				t.Fatalf("status=%d want %d body=%v", resp.StatusCode, tc.status, body)
			}
			if tc.code != "" && errorCode(body) != tc.code {
				t.Fatalf("code=%q want %q", errorCode(body), tc.code)
			}
		})
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, DefaultConfig())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/verify", `{"secret":"x","hash":"not-a-hash"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(body) != "verification_failure" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, DefaultConfig())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/validate", `{"secret":"password123"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if body["is_valid"] != false {
		t.Fatalf("expected is_valid=false, got %v", body)
	}
	errs, _ := body["errors"].([]any)
	want := []string{password.MsgNoUppercase, password.MsgNoSpecial, password.MsgCommonPattern}
	if len(errs) != len(want) {
		t.Fatalf("errors=%v want %v", errs, want)
	}
	for i := range want {
		if errs[i] != want[i] {
			t.Fatalf("errors[%d]=%v want %q", i, errs[i], want[i])
		}
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/validate", `{"secret":"Abcdef1!"}`)
	if resp.StatusCode != http.StatusOK || body["is_valid"] != true {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if errs, ok := body["errors"].([]any); !ok || len(errs) != 0 {
		t.Fatalf("expected empty errors array, got %v", body["errors"])
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.GenerateMaxLen = 64
	srv, _ := newTestServer(t, cfg)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/generate", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if s, _ := body["secret"].(string); len(s) != password.DefaultGenerateLength {
		t.Fatalf("default length secret=%q", s)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/generate", `{"length":24,"strong":true}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	s, _ := body["secret"].(string)
	if len(s) != 24 || !password.ValidateStrength(s).IsValid {
		t.Fatalf("expected strong 24-char secret, got %q", s)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/generate", `{"length":65}`)
	if resp.StatusCode != http.StatusBadRequest || errorCode(body) != "invalid_request" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/generate", `{"length":4,"strong":true}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(body) != "generate_exhausted" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
}

func TestSubjectLifecycle(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, DefaultConfig())
	base := srv.URL + "/credentials/subjects/Alice"

	resp, body := doJSON(t, http.MethodPut, base, `{"secret":"password"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || errorCode(body) != "weak_secret" {
		t.Fatalf("weak put status=%d body=%v", resp.StatusCode, body)
	}
	validation, _ := body["validation"].(map[string]any)
	if validation["is_valid"] != false {
		t.Fatalf("expected validation result in body, got %v", body)
	}

	resp, _ = doJSON(t, http.MethodPut, base, `{"secret":"Abcdef1!"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("put status=%d", resp.StatusCode)
	}

	// Subjects are case-insensitive.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/credentials/subjects/alice/check", `{"secret":"Abcdef1!"}`)
	if resp.StatusCode != http.StatusOK || body["match"] != true {
		t.Fatalf("check status=%d body=%v", resp.StatusCode, body)
	}
	resp, body = doJSON(t, http.MethodPost, base+"/check", `{"secret":"Abcdef1?"}`)
	if resp.StatusCode != http.StatusOK || body["match"] != false {
		t.Fatalf("check mismatch status=%d body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodDelete, base, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status=%d", resp.StatusCode)
	}
	resp, body = doJSON(t, http.MethodDelete, base, "")
	if resp.StatusCode != http.StatusNotFound || errorCode(body) != "not_found" {
		t.Fatalf("second delete status=%d body=%v", resp.StatusCode, body)
	}

	// Unknown subjects look like a mismatch.
	resp, body = doJSON(t, http.MethodPost, base+"/check", `{"secret":"Abcdef1!"}`)
	if resp.StatusCode != http.StatusOK || body["match"] != false {
		t.Fatalf("unknown check status=%d body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodGet, base, "")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status=%d", resp.StatusCode)
	}
}

func TestCheck_LocksOutSubject(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CheckIPMax = 1000
	cfg.LockoutShortThreshold = 3
	cfg.LockoutShortDuration = time.Minute

	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	srv, svc := newTestServer(t, cfg, WithClock(func() time.Time { return now }))

	if _, err := svc.SetCredential(context.Background(), "bob", "Abcdef1!"); err != nil {
		t.Fatalf("SetCredential: %v", err)
	}

	url := srv.URL + "/credentials/subjects/bob/check"
	for i := 0; i < 3; i++ {
		resp, body := doJSON(t, http.MethodPost, url, `{"secret":"nope"}`)
		if resp.StatusCode != http.StatusOK || body["match"] != false {
			t.Fatalf("attempt %d: status=%d body=%v", i, resp.StatusCode, body)
		}
	}

	// Even the right secret is refused while locked out.
	resp, body := doJSON(t, http.MethodPost, url, `{"secret":"Abcdef1!"}`)
	if resp.StatusCode != http.StatusTooManyRequests || errorCode(body) != "rate_limited" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("Retry-After=%q want 60", resp.Header.Get("Retry-After"))
	}
}

// slowMismatchService holds every check long enough for parallel requests to overlap.
type slowMismatchService struct {
	CredentialService
	calls atomic.Int64
	delay time.Duration
}

func (s *slowMismatchService) CheckCredential(ctx context.Context, _, _ string) (bool, error) {
	s.calls.Add(1)
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return false, ctx.Err()
	}
	return false, nil
}

func TestCheck_ConcurrentGuessesRespectLockout(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CheckIPMax = 1000
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	svc := &slowMismatchService{delay: 100 * time.Millisecond}
	srv := newTestServerWith(t, svc, cfg, WithClock(func() time.Time { return now }))
	url := srv.URL + "/credentials/subjects/bob/check"

	const workers = 50
	statuses := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(url, "application/json", strings.NewReader(`{"secret":"guess"}`))
			if err != nil {
				statuses <- 0
				return
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	var ok, limited int
	for status := range statuses {
		switch status {
		case http.StatusOK:
			ok++
		case http.StatusTooManyRequests:
			limited++
		default:
			t.Fatalf("unexpected status %d", status)
		}
	}
	if got := svc.calls.Load(); got != int64(cfg.LockoutShortThreshold) {
		t.Fatalf("checks reaching the service=%d want %d", got, cfg.LockoutShortThreshold)
	}
	if ok != cfg.LockoutShortThreshold || limited != workers-cfg.LockoutShortThreshold {
		t.Fatalf("ok=%d limited=%d", ok, limited)
	}
}

type busyCheckService struct {
	CredentialService
}

func (busyCheckService) CheckCredential(context.Context, string, string) (bool, error) {
	return false, credentials.ErrBusy
}

func TestCheck_BusyDoesNotCountAsFailure(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CheckIPMax = 2
	cfg.LockoutShortThreshold = 2
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	srv := newTestServerWith(t, busyCheckService{}, cfg, WithClock(func() time.Time { return now }))

	for i := 0; i < 5; i++ {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/subjects/bob/check", `{"secret":"guess"}`)
		if resp.StatusCode != http.StatusServiceUnavailable || errorCode(body) != "server_busy" {
			t.Fatalf("attempt %d: status=%d body=%v", i, resp.StatusCode, body)
		}
	}
}

type busyService struct {
	CredentialService
}

func (busyService) Hash(context.Context, string, int) (string, error) {
	return "", credentials.ErrBusy
}

func TestHash_BusyIs503(t *testing.T) {
	t.Parallel()

	srv := newTestServerWith(t, busyService{}, DefaultConfig())

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/hash", `{"secret":"Abcdef1!"}`)
	if resp.StatusCode != http.StatusServiceUnavailable || errorCode(body) != "server_busy" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestBodyTooLarge(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 32
	srv, _ := newTestServer(t, cfg)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/credentials/validate", `{"secret":"`+strings.Repeat("a", 64)+`"}`)
	if resp.StatusCode != http.StatusRequestEntityTooLarge || errorCode(body) != "body_too_large" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, body)
	}
}

func TestNewHandler_NilService(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil, nil, DefaultConfig()); err == nil {
		t.Fatalf("expected error for nil service")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "192.0.2.10:5555"
	r.Header.Set("X-Forwarded-For", "bogus, 203.0.113.7, 10.0.0.1")

	if got := clientIP(r, false); got.String() != "192.0.2.10" {
		t.Fatalf("untrusted clientIP=%v", got)
	}
	if got := clientIP(r, true); got.String() != "203.0.113.7" {
		t.Fatalf("trusted clientIP=%v", got)
	}
}
