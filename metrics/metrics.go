// Package metrics provides Prometheus instrumentation for the client façade
// through its hook points.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lgc202/httpkit/client"
)

// Collector holds the per-client metric vectors.
type Collector struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewCollector builds the metric vectors and registers them on reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "httpkit_client_requests_total",
			Help: "Outgoing requests by method and status code. code=\"error\" counts transport failures.",
		}, []string{"method", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "httpkit_client_request_duration_seconds",
			Help:    "Outgoing request duration by method.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
	}
	if err := reg.Register(c.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(c.duration); err != nil {
		return nil, err
	}
	return c, nil
}

// AfterHook returns the hook to install via Client.WithHooks.
func (c *Collector) AfterHook() client.AfterHook {
	return func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int) {
		code := "error"
		if err == nil && resp != nil {
			code = strconv.Itoa(resp.StatusCode)
		}
		c.requests.WithLabelValues(req.Method, code).Inc()
		c.duration.WithLabelValues(req.Method).Observe(dur.Seconds())
	}
}
