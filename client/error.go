package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Error represents a non-2xx response surfaced by DoStatus. Transport
// failures are never wrapped in it: those propagate from Do untranslated.
type Error struct {
	Method string
	URL    string

	// StatusCode is the HTTP status code of the rejected response.
	StatusCode int

	// RequestID is extracted from the configured RequestID header (response
	// first, falling back to the request).
	RequestID string

	// RetryAfter is parsed from Retry-After when present.
	RetryAfter time.Duration

	// RawBody is a truncated copy of the response body.
	RawBody []byte

	// Cause carries the status text.
	Cause error

	// Retryable indicates whether the error is likely safe to retry
	// (idempotent method and a transient status).
	Retryable bool
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if strings.TrimSpace(e.Method) != "" {
		b.WriteString(strings.ToUpper(strings.TrimSpace(e.Method)))
		b.WriteString(" ")
	}
	if strings.TrimSpace(e.URL) != "" {
		b.WriteString(strings.TrimSpace(e.URL))
		b.WriteString(": ")
	}
	if e.StatusCode != 0 {
		b.WriteString(fmt.Sprintf("http %d", e.StatusCode))
		if t := strings.TrimSpace(http.StatusText(e.StatusCode)); t != "" {
			b.WriteString(" ")
			b.WriteString(t)
		}
	} else {
		b.WriteString("request failed")
	}
	if e.RequestID != "" {
		b.WriteString(" request_id=")
		b.WriteString(e.RequestID)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// AsError extracts *Error.
func AsError(err error) (*Error, bool) {
	var he *Error
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

func IsRetryable(err error) bool {
	he, ok := AsError(err)
	return ok && he.Retryable
}

func IsHTTPStatus(err error, code int) bool {
	he, ok := AsError(err)
	return ok && he.StatusCode == code
}

func idempotentMethod(method string) bool {
	switch strings.ToUpper(strings.TrimSpace(method)) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests,
		http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func responseToError(req *http.Request, resp *http.Response, requestIDHeader string, maxErrBody int64) (*http.Response, error) {
	if resp.Body != nil {
		defer resp.Body.Close()
	}

	var raw []byte
	if resp.Body != nil && maxErrBody != 0 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		raw = b
	}

	// Expose the captured bytes to the caller (debuggability) but avoid holding open sockets.
	resp.Body = io.NopCloser(bytes.NewReader(raw))

	rid := ""
	if requestIDHeader != "" {
		rid = strings.TrimSpace(resp.Header.Get(requestIDHeader))
		if rid == "" {
			rid = strings.TrimSpace(req.Header.Get(requestIDHeader))
		}
	}
	ra, _ := parseRetryAfter(resp, time.Now())

	return resp, &Error{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
		RequestID:  rid,
		RetryAfter: ra,
		RawBody:    raw,
		Cause:      errors.New(http.StatusText(resp.StatusCode)),
		Retryable:  idempotentMethod(req.Method) && transientStatus(resp.StatusCode),
	}
}

func parseRetryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	v := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := t.Sub(now)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}
