package middleware_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lgc202/httpkit/client"
	"github.com/lgc202/httpkit/middleware"
)

func fastBackoff() middleware.Backoff {
	return middleware.ExponentialBackoff{Base: time.Millisecond, Max: 5 * time.Millisecond}
}

func TestRetry_RecoversFrom5xx(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	cfg := middleware.DefaultRetryConfig()
	cfg.Backoff = fastBackoff()
	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithMiddleware(middleware.Retry(cfg)),
	)

	resp, err := c.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&n); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRetry_NoRetryForPOSTByDefault(t *testing.T) {
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&n, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	cfg := middleware.DefaultRetryConfig()
	cfg.Backoff = fastBackoff()
	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithMiddleware(middleware.Retry(cfg)),
	)

	resp, err := c.Post(context.Background(), "/", client.WithBodyBytes([]byte(`{}`)))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&n); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestRetry_ReplaysBodyForIdempotentMethods(t *testing.T) {
	var bodies []string
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		if atomic.AddInt32(&n, 1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := middleware.DefaultRetryConfig()
	cfg.Backoff = fastBackoff()
	cfg.RespectRetryAfter = false
	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithMiddleware(middleware.Retry(cfg)),
	)

	req, err := c.NewRequest(context.Background(), http.MethodPut, "/", client.WithBodyBytes([]byte("payload")))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	_ = resp.Body.Close()

	if len(bodies) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(bodies))
	}
	for i, b := range bodies {
		if b != "payload" {
			t.Fatalf("attempt %d saw body %q", i+1, b)
		}
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestRetry_DoesNotMutateCallerRequest(t *testing.T) {
	var seen []*http.Request
	stub := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		seen = append(seen, r)
		_, _ = io.Copy(io.Discard, r.Body)
		code := http.StatusServiceUnavailable
		if len(seen) == 3 {
			code = http.StatusOK
		}
		return &http.Response{
			StatusCode: code,
			Header:     make(http.Header),
			Body:       http.NoBody,
			Request:    r,
		}, nil
	})

	cfg := middleware.DefaultRetryConfig()
	cfg.Backoff = fastBackoff()
	cfg.RespectRetryAfter = false
	rt := middleware.Retry(cfg)(stub)

	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodPut, "http://example.com/", bytes.NewReader([]byte("payload")))
	if err != nil {
		t.Fatalf("NewRequestWithContext: %v", err)
	}
	origBody := req.Body

	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(seen))
	}
	// The round tripper contract: the caller's request stays untouched
	// even though replay attempts swapped in fresh bodies.
	if req.Body != origBody {
		t.Fatal("caller request body was replaced across retries")
	}
	for i, r := range seen {
		if r == req {
			t.Fatalf("attempt %d dispatched the caller's request instead of a clone", i+1)
		}
	}
}

func TestRetry_RespectsRetryAfter(t *testing.T) {
	var n int32
	var gap time.Duration
	var last time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		if atomic.AddInt32(&n, 1) == 1 {
			last = now
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		gap = now.Sub(last)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := middleware.DefaultRetryConfig()
	cfg.Backoff = fastBackoff()
	c := client.New(
		client.WithBaseURL(srv.URL),
		client.WithMiddleware(middleware.Retry(cfg)),
	)

	resp, err := c.Get(context.Background(), "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	if gap < 900*time.Millisecond {
		t.Fatalf("Retry-After not respected, waited only %s", gap)
	}
}

func TestBackoff_Monotone(t *testing.T) {
	b := middleware.ExponentialBackoff{Base: 100 * time.Millisecond, Max: time.Second}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 5; attempt++ {
		d := b.Next(attempt)
		if d < prev && d != time.Second {
			t.Fatalf("backoff shrank at attempt %d: %s < %s", attempt, d, prev)
		}
		if d > time.Second {
			t.Fatalf("backoff exceeded max: %s", d)
		}
		prev = d
	}
}
