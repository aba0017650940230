package client

import (
	"context"
	"net/http"
	"time"
)

// RateLimiter can be used to throttle outgoing requests.
// It should block until a token is available or ctx is canceled.
// *rate.Limiter from golang.org/x/time/rate satisfies it directly.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// BeforeHook runs before a request is handed to the transport. Returning an
// error aborts the request. attempt is 1 from the façade; transport-level
// retry middleware re-enters below the hooks, so hooks observe one dispatch.
type BeforeHook func(req *http.Request, attempt int) error

// AfterHook observes the outcome of a dispatch.
type AfterHook func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int)

// Middleware wraps an http.RoundTripper. It applies to the networked
// transport built by DefaultProvider; providers with a non-RoundTripper
// engine may ignore it.
type Middleware func(next http.RoundTripper) http.RoundTripper

func chain(rt http.RoundTripper, mws []Middleware) http.RoundTripper {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		rt = mws[i](rt)
	}
	return rt
}
