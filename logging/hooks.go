package logging

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lgc202/httpkit/client"
)

// Hooks returns before/after hooks emitting one structured record per
// dispatched request and one per outcome. Every record carries the
// request's correlation id (read from the configured request-id header),
// so log observers can pair a request with its response lines.
func Hooks(logger *zap.Logger, requestIDHeader string) ([]client.BeforeHook, []client.AfterHook) {
	if requestIDHeader == "" {
		requestIDHeader = client.DefaultRequestIDConfig().Header
	}

	before := []client.BeforeHook{
		func(req *http.Request, attempt int) error {
			logger.Debug("request dispatched",
				zap.String("request_id", req.Header.Get(requestIDHeader)),
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Int("attempt", attempt),
			)
			return nil
		},
	}

	after := []client.AfterHook{
		func(req *http.Request, resp *http.Response, err error, dur time.Duration, attempt int) {
			fields := []zap.Field{
				zap.String("request_id", req.Header.Get(requestIDHeader)),
				zap.String("method", req.Method),
				zap.String("url", req.URL.String()),
				zap.Duration("duration", dur),
				zap.Int("attempt", attempt),
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
				logger.Warn("request failed", fields...)
				return
			}
			fields = append(fields, zap.Int("status", resp.StatusCode))
			logger.Info("request completed", fields...)
		},
	}

	return before, after
}
