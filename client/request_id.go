package client

import "github.com/google/uuid"

type RequestIDFunc func() string

type RequestIDConfig struct {
	// Header is the header name to carry the request id, e.g. "X-Request-ID".
	// If empty, request id injection is disabled.
	Header string

	// New generates a request id when the header is missing.
	// If nil, a default generator is used.
	New RequestIDFunc
}

func DefaultRequestIDConfig() RequestIDConfig {
	return RequestIDConfig{
		Header: "X-Request-ID",
		New:    DefaultRequestID,
	}
}

// DefaultRequestID returns a random UUIDv4. Log hooks pick the id up from
// the request header, so every structured record of a dispatch can be
// correlated with its response.
func DefaultRequestID() string {
	return uuid.NewString()
}
