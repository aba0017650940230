// Package client provides an application-scoped HTTP client façade with a
// swappable transport provider:
// - one Client per application instance, no process-global state
// - configuration stays mutable until the first request, then freezes
// - the concrete transport is produced by a registered Provider and built
//   exactly once, even under concurrent first use
// - request building with base URL, default headers and correlation ids
// - hook points for logging/metrics without hard dependencies
//
// The façade itself never retries and never rewrites transport errors;
// retry and rate-limit policy belong to the transport layer (see the
// middleware package).
package client
