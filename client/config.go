package client

import (
	"fmt"
	"net/http"
	"time"
)

// RedirectPolicy controls how the networked transport reacts to 3xx responses.
// The zero value does not follow redirects: the raw 3xx response is returned
// to the caller.
type RedirectPolicy struct {
	// Follow enables redirect following. When false, the first 3xx response
	// is returned as-is (including its status code and Location header).
	Follow bool

	// MaxHops bounds the redirect chain when Follow is true.
	// If zero, DefaultMaxHops is used.
	MaxHops int

	// AllowCycles permits revisiting a URL already seen in the current
	// redirect chain. When false, a revisit aborts the chain with an error.
	AllowCycles bool
}

const DefaultMaxHops = 10

// FollowRedirects returns a policy that follows up to maxHops redirects.
func FollowRedirects(maxHops int) RedirectPolicy {
	return RedirectPolicy{Follow: true, MaxHops: maxHops}
}

// NoRedirects returns a policy that surfaces 3xx responses to the caller.
func NoRedirects() RedirectPolicy {
	return RedirectPolicy{Follow: false}
}

// checkRedirect compiles the policy into a net/http CheckRedirect func.
func (p RedirectPolicy) checkRedirect(req *http.Request, via []*http.Request) error {
	if !p.Follow {
		return http.ErrUseLastResponse
	}
	max := p.MaxHops
	if max <= 0 {
		max = DefaultMaxHops
	}
	if len(via) >= max {
		return fmt.Errorf("stopped after %d redirects", max)
	}
	if !p.AllowCycles {
		target := req.URL.String()
		for _, prev := range via {
			if prev.URL.String() == target {
				return fmt.Errorf("redirect cycle detected at %s", target)
			}
		}
	}
	return nil
}

// Config configures a Client. It is a mutable handle: the Client keeps the
// caller's pointer, so in-place edits made before the first request are
// visible. The first request freezes the configuration — the resolved
// transport is built from a snapshot taken at that moment, and later edits,
// while accepted at the storage level, never reach it.
type Config struct {
	// BaseURL is optional. If set, relative paths passed to NewRequest are
	// resolved against it.
	BaseURL string

	// Timeout sets an upper bound for the whole request. If the request
	// context already has a deadline, the earlier one wins.
	Timeout time.Duration

	// Redirect is compiled into the networked transport at resolution time.
	Redirect RedirectPolicy

	// DefaultHeaders are copied into every request (caller headers win).
	DefaultHeaders http.Header

	// UserAgent is set when the request does not already carry one.
	UserAgent string

	// RequestID configures correlation id propagation.
	RequestID RequestIDConfig

	// Transport tunes the networked round tripper built by DefaultProvider.
	// Providers that bring their own engine may ignore it.
	Transport TransportConfig

	// Middleware wraps the round tripper built by DefaultProvider,
	// outermost first.
	Middleware []Middleware

	// MaxErrorBodyBytes limits how many bytes DoStatus reads into
	// Error.RawBody for non-2xx responses. If zero, DefaultMaxErrorBodyBytes
	// is used.
	MaxErrorBodyBytes int64

	frozen bool
}

const DefaultMaxErrorBodyBytes int64 = 64 << 10 // 64KiB

// DefaultConfig returns a conservative baseline suitable for most services.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		Redirect:          FollowRedirects(DefaultMaxHops),
		DefaultHeaders:    make(http.Header),
		RequestID:         DefaultRequestIDConfig(),
		MaxErrorBodyBytes: DefaultMaxErrorBodyBytes,
	}
}

// Frozen reports whether a transport has already been resolved from this
// configuration. Edits after this point do not affect the resolved transport.
func (c *Config) Frozen() bool { return c.frozen }

// Clone returns a deep copy. The Client snapshots the configuration with
// Clone at resolution time so that the frozen view is immune to caller
// mutation.
func (c *Config) Clone() Config {
	out := *c
	out.frozen = false
	out.DefaultHeaders = make(http.Header, len(c.DefaultHeaders))
	for k, vv := range c.DefaultHeaders {
		for _, v := range vv {
			out.DefaultHeaders.Add(k, v)
		}
	}
	out.Middleware = append([]Middleware(nil), c.Middleware...)
	return out
}

func (c *Config) markFrozen() { c.frozen = true }

func (c *Config) maxErrBody() int64 {
	if c.MaxErrorBodyBytes == 0 {
		return DefaultMaxErrorBodyBytes
	}
	return c.MaxErrorBodyBytes
}
