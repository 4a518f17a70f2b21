package authapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestReadJSON_Classifies(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		body   string
		status int
		code   string
		msg    string
	}{
		{name: "ok", body: `{"secret":"x"}`},
		{name: "ok trailing space", body: "{\"secret\":\"x\"}\n  "},
		{name: "empty", body: "", status: http.StatusBadRequest, code: "invalid_json", msg: "request body is empty"},
		{name: "truncated", body: `{"secret":`, status: http.StatusBadRequest, code: "invalid_json", msg: "request body is truncated"},
		{name: "syntax", body: `{"secret" "x"}`, status: http.StatusBadRequest, code: "invalid_json", msg: "malformed JSON at offset"},
		{name: "wrong type", body: `{"secret":7}`, status: http.StatusBadRequest, code: "invalid_json", msg: "field 'secret' must be string"},
		{name: "unknown field", body: `{"secret":"x","salt":"y"}`, status: http.StatusBadRequest, code: "invalid_json", msg: `unknown field "salt"`},
		{name: "trailing object", body: `{"secret":"x"}{}`, status: http.StatusBadRequest, code: "invalid_json", msg: "unexpected data"},
		{name: "too large", body: `{"secret":"` + strings.Repeat("a", 100) + `"}`, status: http.StatusRequestEntityTooLarge, code: "body_too_large", msg: "exceeds 64 bytes"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))

			var dst secretRequest
			err := readJSON(httptest.NewRecorder(), r, 64, &dst)
			if tc.status == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Secret != "x" {
					t.Fatalf("secret=%q", dst.Secret)
				}
				return
			}

			var re *requestError
			if !errors.As(err, &re) {
				t.Fatalf("err=%v, want *requestError", err)
			}
			if re.status != tc.status || re.code != tc.code || !strings.Contains(re.msg, tc.msg) {
				t.Fatalf("got %d %s %q, want %d %s containing %q", re.status, re.code, re.msg, tc.status, tc.code, tc.msg)
			}
		})
	}
}

func TestWriteRetryLater_RoundsUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		retry time.Duration
		want  string
	}{
		{retry: 0, want: ""},
		{retry: time.Millisecond, want: "1"},
		{retry: time.Second, want: "1"},
		{retry: 1500 * time.Millisecond, want: "2"},
		{retry: 5 * time.Minute, want: "300"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeRateLimited(rec, tc.retry)
		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("status=%d", rec.Code)
		}
		if got := rec.Header().Get("Retry-After"); got != tc.want {
			t.Fatalf("retry=%v Retry-After=%q want %q", tc.retry, got, tc.want)
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-store" {
			t.Fatalf("Cache-Control=%q", got)
		}
	}
}
