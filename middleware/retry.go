// Package middleware provides http.RoundTripper wrappers for the transport
// built by the client façade's default provider. Retry policy lives here, at
// the capability level: the façade itself is a pass-through and never
// re-dispatches a request.
package middleware

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lgc202/httpkit/client"
)

type RetryConfig struct {
	// MaxAttempts includes the initial attempt. If <= 1, retries are disabled.
	MaxAttempts int

	// MaxElapsed is the max total time spent across attempts (including
	// backoff sleeps). If zero, only the request context bounds the attempts.
	MaxElapsed time.Duration

	// Methods lists HTTP methods eligible for retries.
	// If empty, a safe default of idempotent methods is used.
	Methods map[string]bool

	// StatusCodes lists response status codes eligible for retries.
	// If empty, a safe default set is used.
	StatusCodes map[int]bool

	// Backoff computes the sleep duration before the next retry.
	// If nil, DefaultBackoff() is used.
	Backoff Backoff

	// RespectRetryAfter uses the Retry-After header as the backoff for
	// 429/503 when present.
	RespectRetryAfter bool

	// MaxRetryAfter caps Retry-After. If zero, no cap is applied.
	MaxRetryAfter time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		Methods:           defaultRetryMethods(),
		StatusCodes:       defaultRetryStatusCodes(),
		Backoff:           DefaultBackoff(),
		RespectRetryAfter: true,
		MaxRetryAfter:     30 * time.Second,
	}
}

func defaultRetryMethods() map[string]bool {
	return map[string]bool{
		http.MethodGet:     true,
		http.MethodHead:    true,
		http.MethodPut:     true,
		http.MethodDelete:  true,
		http.MethodOptions: true,
		http.MethodTrace:   true,
	}
}

func defaultRetryStatusCodes() map[int]bool {
	return map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusRequestTimeout:      true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
}

// Retry returns a middleware that re-dispatches retryable requests below the
// façade. Bodies are replayed through req.GetBody; a request with a
// non-replayable body is attempted once.
func Retry(cfg RetryConfig) client.Middleware {
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultBackoff()
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return &retryTransport{next: next, cfg: cfg}
	}
}

type retryTransport struct {
	next http.RoundTripper
	cfg  RetryConfig
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	maxAttempts := t.cfg.MaxAttempts
	if maxAttempts <= 1 || !t.cfg.canRetryMethod(req.Method) {
		return t.next.RoundTrip(req)
	}

	ctx := req.Context()
	start := time.Now()

	var lastResp *http.Response
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if t.cfg.MaxElapsed > 0 && time.Since(start) > t.cfg.MaxElapsed {
			break
		}

		// RoundTrippers must not modify the caller's request, so every
		// attempt dispatches its own clone; replays read a fresh body
		// from GetBody.
		attemptReq := req.Clone(ctx)
		if attempt > 1 && req.Body != nil && req.Body != http.NoBody {
			if req.GetBody == nil {
				break
			}
			b, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			attemptReq.Body = b
		}

		resp, err := t.next.RoundTrip(attemptReq)

		if err == nil && resp != nil && !t.cfg.canRetryStatus(resp.StatusCode) {
			return resp, nil
		}

		lastResp = resp
		lastErr = err

		retry := attempt < maxAttempts
		if retry && err != nil {
			retry = retryableNetErr(err)
		}
		if retry && req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
			retry = false
		}
		if !retry {
			break
		}

		// Drain body for connection reuse before retrying.
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
			_ = resp.Body.Close()
		}

		wait := t.cfg.Backoff.Next(attempt)
		if t.cfg.RespectRetryAfter && resp != nil &&
			(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable) {
			if ra, ok := retryAfter(resp, time.Now()); ok {
				wait = ra
				if t.cfg.MaxRetryAfter > 0 && wait > t.cfg.MaxRetryAfter {
					wait = t.cfg.MaxRetryAfter
				}
			}
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if lastResp == nil && lastErr == nil {
		return t.next.RoundTrip(req)
	}
	return lastResp, lastErr
}

func (c RetryConfig) canRetryMethod(method string) bool {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return false
	}
	methods := c.Methods
	if len(methods) == 0 {
		methods = defaultRetryMethods()
	}
	return methods[m]
}

func (c RetryConfig) canRetryStatus(code int) bool {
	statuses := c.StatusCodes
	if len(statuses) == 0 {
		statuses = defaultRetryStatusCodes()
	}
	return statuses[code]
}

func retryableNetErr(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func retryAfter(resp *http.Response, now time.Time) (time.Duration, bool) {
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

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
