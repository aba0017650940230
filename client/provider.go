package client

import "net/http"

// Provider produces the concrete Transport the façade delegates to. It is
// invoked at most once per Client, with the configuration snapshot frozen at
// that moment. Providers must return a Transport that is safe for concurrent
// use.
type Provider func(cfg Config) (Transport, error)

// DefaultProvider builds the networked transport: a tuned http.Transport
// from cfg.Transport, wrapped by cfg.Middleware, with the redirect policy
// compiled into the http.Client. This is the provider a fresh Client uses
// when none has been registered.
func DefaultProvider(cfg Config) (Transport, error) {
	rt := chain(NewRoundTripper(cfg.Transport), cfg.Middleware)
	return &netTransport{
		hc: &http.Client{
			Transport:     rt,
			CheckRedirect: cfg.Redirect.checkRedirect,
		},
	}, nil
}

// StaticProvider returns a Provider that hands out a pre-built Transport,
// ignoring the frozen configuration. Useful for registering test doubles.
func StaticProvider(t Transport) Provider {
	return func(Config) (Transport, error) { return t, nil }
}
