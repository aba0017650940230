package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client is the single entry point application code uses to issue requests.
// Each application instance owns its own Client; there is no process-global
// registry. The Client starts UNRESOLVED: the configuration handle is
// mutable and the provider replaceable. The first request resolves the
// provider into a concrete Transport and freezes the configuration; from
// then on every call delegates to the cached Transport.
type Client struct {
	cfg *Config

	mu       sync.Mutex
	provider Provider
	resolved Transport
	frozen   *Config

	rateLimiter RateLimiter
	before      []BeforeHook
	after       []AfterHook
}

// New constructs a Client from DefaultConfig() plus the provided options.
func New(opts ...Option) *Client {
	cfg := DefaultConfig()
	for _, o := range opts {
		if o != nil {
			o.apply(&cfg)
		}
	}
	return NewWithConfig(&cfg)
}

// NewWithConfig constructs a Client around a caller-owned configuration.
// The Client keeps the pointer: edits made through it before the first
// request are visible, edits after are inert for the resolved transport.
func NewWithConfig(cfg *Config) *Client {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if cfg.DefaultHeaders == nil {
		cfg.DefaultHeaders = make(http.Header)
	}
	return &Client{cfg: cfg}
}

// Config returns the mutable configuration handle.
func (c *Client) Config() *Config { return c.cfg }

// RegisterProvider replaces the active transport provider. Call it before
// the first request. Calling it afterwards is accepted but has no effect on
// the already-resolved transport; the replacement only matters to a Client
// that has not resolved yet.
func (c *Client) RegisterProvider(p Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = p
}

// Resolved reports whether the transport has been constructed.
func (c *Client) Resolved() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved != nil
}

// resolve returns the cached Transport, constructing it on first call.
// The mutex makes concurrent first calls serialize: exactly one invokes the
// provider, the rest observe the cache. A provider error leaves the Client
// unresolved, so a later call retries.
func (c *Client) resolve() (Transport, *Config, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved != nil {
		return c.resolved, c.frozen, nil
	}
	p := c.provider
	if p == nil {
		p = DefaultProvider
	}
	snap := c.cfg.Clone()
	t, err := p(snap)
	if err != nil {
		return nil, nil, err
	}
	if t == nil {
		return nil, nil, errors.New("provider returned nil transport")
	}
	c.cfg.markFrozen()
	c.frozen = &snap
	c.resolved = t
	return t, c.frozen, nil
}

// view returns the configuration requests should be built from: the frozen
// snapshot once resolved, the live handle before.
func (c *Client) view() *Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen != nil {
		return c.frozen
	}
	return c.cfg
}

// WithHooks adds hooks (executed for every dispatched request).
// Call this during initialization, before the client is used concurrently.
func (c *Client) WithHooks(before []BeforeHook, after []AfterHook) *Client {
	c.before = append(c.before, before...)
	c.after = append(c.after, after...)
	return c
}

// WithRateLimiter installs a client-wide rate limiter.
func (c *Client) WithRateLimiter(rl RateLimiter) *Client {
	c.rateLimiter = rl
	return c
}

// Do executes the request. It mirrors net/http semantics:
// - transport errors are returned as error, untranslated
// - non-2xx responses are returned as resp with nil error
// The first call resolves the provider and freezes the configuration.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.do(req, false)
}

// DoStatus executes the request and converts non-2xx responses into *Error.
// It reads up to MaxErrorBodyBytes from the response body and then closes it.
func (c *Client) DoStatus(req *http.Request) (*http.Response, error) {
	return c.do(req, true)
}

func (c *Client) do(req *http.Request, statusAsError bool) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	t, cfg, err := c.resolve()
	if err != nil {
		return nil, err
	}

	ctx := req.Context()
	if dl, ok := earliestDeadline(ctx, cfg.Timeout, requestTimeout(ctx)); ok {
		ctx2, cancel := withEarlierDeadline(ctx, dl)
		defer cancel()
		ctx = ctx2
	}
	req = req.Clone(ctx)

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	for _, h := range c.before {
		if h == nil {
			continue
		}
		if err := h(req, 1); err != nil {
			return nil, err
		}
	}

	t0 := time.Now()
	resp, err := t.Do(req)
	dur := time.Since(t0)

	for _, h := range c.after {
		if h != nil {
			h(req, resp, err, dur, 1)
		}
	}

	if !statusAsError {
		return resp, err
	}
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	if resp == nil {
		return nil, errors.New("nil response")
	}
	if resp.StatusCode < 400 {
		return resp, nil
	}
	return responseToError(req, resp, cfg.RequestID.Header, cfg.maxErrBody())
}

// Get issues a GET and returns the raw response.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, opts...)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Post issues a POST. Supply the body through request options
// (WithBodyBytes, WithJSON, WithBody).
func (c *Client) Post(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, path, opts...)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// PostJSON issues a POST with a JSON-encoded body.
func (c *Client) PostJSON(ctx context.Context, path string, body any, opts ...RequestOption) (*http.Response, error) {
	opts2 := make([]RequestOption, 0, len(opts)+1)
	opts2 = append(opts2, WithJSON(body))
	opts2 = append(opts2, opts...)
	return c.Post(ctx, path, opts2...)
}

// Close disposes the resolved transport, if any. It does not return the
// Client to the unresolved state; a closed Client should be discarded with
// its application instance.
func (c *Client) Close() error {
	c.mu.Lock()
	t := c.resolved
	c.mu.Unlock()
	if t == nil {
		return nil
	}
	if cl, ok := t.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

func (c *Client) resolveURL(cfg *Config, path string, q url.Values) (*url.URL, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty url/path")
	}
	u, err := url.Parse(p)
	if err != nil {
		return nil, err
	}
	if u.IsAbs() {
		return mergeQuery(u, q), nil
	}
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, errors.New("relative path requires BaseURL")
	}
	// Treat leading "/" as a relative path when BaseURL is set, so BaseURL
	// with a path prefix (e.g. https://host/api/v1) works with "/users" as
	// expected.
	if strings.HasPrefix(u.Path, "/") {
		u2 := *u
		u2.Path = strings.TrimPrefix(u2.Path, "/")
		u = &u2
	}
	return mergeQuery(base.ResolveReference(u), q), nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errors.New("base url must be absolute")}
	}
	// Normalize so relative paths resolve as expected (treat the BaseURL path as a prefix).
	if u.Path != "" && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func mergeQuery(u *url.URL, q url.Values) *url.URL {
	u2 := *u
	if q == nil {
		return &u2
	}
	qq := u2.Query()
	for k, vv := range q {
		for _, v := range vv {
			qq.Add(k, v)
		}
	}
	u2.RawQuery = qq.Encode()
	return &u2
}

func withEarlierDeadline(ctx context.Context, deadline time.Time) (context.Context, context.CancelFunc) {
	if deadline.IsZero() {
		return ctx, func() {}
	}
	if existing, ok := ctx.Deadline(); ok && !existing.After(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

func earliestDeadline(base context.Context, timeouts ...time.Duration) (time.Time, bool) {
	now := time.Now()
	var earliest time.Time
	for _, d := range timeouts {
		if d <= 0 {
			continue
		}
		dd := now.Add(d)
		if earliest.IsZero() || dd.Before(earliest) {
			earliest = dd
		}
	}
	if dl, ok := base.Deadline(); ok {
		if earliest.IsZero() || dl.Before(earliest) {
			earliest = dl
		}
	}
	if earliest.IsZero() {
		return time.Time{}, false
	}
	return earliest, true
}
