package authapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

// requestError is a rejected request body together with its HTTP answer.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badJSON(format string, args ...any) *requestError {
	return &requestError{status: http.StatusBadRequest, code: "invalid_json", msg: fmt.Sprintf(format, args...)}
}

var errEmptyBody = badJSON("request body is empty")

// readJSON decodes exactly one JSON object of at most maxBytes into dst.
// Failures are *requestError.
func readJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errEmptyBody
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return classifyDecodeError(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return classifyDecodeError(err)
		}
		return badJSON("unexpected data after the JSON object")
	}
	return nil
}

func classifyDecodeError(err error) *requestError {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		return errEmptyBody
	case errors.As(err, &maxErr):
		return &requestError{
			status: http.StatusRequestEntityTooLarge,
			code:   "body_too_large",
			msg:    "request body exceeds " + strconv.FormatInt(maxErr.Limit, 10) + " bytes",
		}
	case errors.Is(err, io.ErrUnexpectedEOF):
		return badJSON("request body is truncated")
	case errors.As(err, &syntaxErr):
		return badJSON("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return badJSON("field '%s' must be %s", typeErr.Field, typeErr.Type)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		return badJSON("unknown field %s", strings.TrimPrefix(err.Error(), "json: unknown field "))
	default:
		return badJSON("invalid JSON body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: apiError{Code: code, Message: msg}})
}

func writeRequestError(w http.ResponseWriter, err error) {
	var re *requestError
	if !errors.As(err, &re) {
		re = badJSON("invalid JSON body")
	}
	writeError(w, re.status, re.code, re.msg)
}

// writeRetryLater answers with status and a whole-second Retry-After, rounded up.
func writeRetryLater(w http.ResponseWriter, status int, retryAfter time.Duration, code, msg string) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	writeError(w, status, code, msg)
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	writeRetryLater(w, http.StatusTooManyRequests, retryAfter, "rate_limited", "too many attempts")
}
