package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveValidation(true)
	m.ObserveValidation(false)
	m.ObserveValidation(false)
	if got := testutil.ToFloat64(m.validations.WithLabelValues("invalid")); got != 2 {
		t.Fatalf("invalid=%v want 2", got)
	}
	if got := testutil.ToFloat64(m.validations.WithLabelValues("valid")); got != 1 {
		t.Fatalf("valid=%v want 1", got)
	}

	m.ObserveHTTP("2xx")
	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("2xx")); got != 1 {
		t.Fatalf("2xx=%v want 1", got)
	}

	m.SetPoolInflight(3)
	if got := testutil.ToFloat64(m.poolInflight); got != 3 {
		t.Fatalf("inflight=%v want 3", got)
	}

	m.WSSessionOpened()
	m.WSSessionOpened()
	m.WSSessionClosed()
	if got := testutil.ToFloat64(m.wsSessions); got != 1 {
		t.Fatalf("ws sessions=%v want 1", got)
	}

	m.ObserveOp("hash", "ok", 120*time.Millisecond)
	if n := testutil.CollectAndCount(m.opDuration); n != 1 {
		t.Fatalf("op series=%d want 1", n)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveOp("verify", "match", 10*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	for _, want := range []string{
		`hansa_credential_op_duration_seconds_count{op="verify",result="match"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.ObserveOp("hash", "ok", time.Second)
	m.ObserveValidation(true)
	m.SetPoolInflight(1)
	m.ObserveHTTP("5xx")
	m.WSSessionOpened()
	m.WSSessionClosed()
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
}
