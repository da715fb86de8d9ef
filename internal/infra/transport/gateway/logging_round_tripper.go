package gateway

import (
	"log/slog"
	"net/http"

	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
)

// LoggingRoundTripper logs request and response details for every call that
// passes through the gateway. Requests are logged at DEBUG level and responses
// at a level determined by the status code:
// - 5xx: ERROR
// - 4xx: WARN
// - Other: INFO.
type LoggingRoundTripper struct {
	next http.RoundTripper
	log  logging.Logger
}

var _ http.RoundTripper = (*LoggingRoundTripper)(nil)

// NewLoggingRoundTripper creates a new LoggingRoundTripper wrapping next.
func NewLoggingRoundTripper(next http.RoundTripper, log logging.Logger) *LoggingRoundTripper {
	return &LoggingRoundTripper{next: next, log: log}
}

// RoundTrip implements http.RoundTripper.
func (l *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	l.log.DebugContext(ctx, "request", slog.Group("http",
		"url", req.URL.String(),
		"method", req.Method,
	))

	resp, err := l.next.RoundTrip(req)
	if err != nil {
		l.log.ErrorContext(ctx, "request failed", slog.Group("http",
			"url", req.URL.String(),
			"method", req.Method,
		), "error", err)

		//nolint:wrapcheck
		return resp, err
	}

	var level logging.Level

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		level = logging.LevelError
	case resp.StatusCode >= http.StatusBadRequest:
		level = logging.LevelWarn
	default:
		level = logging.LevelInfo
	}

	l.log.Log(ctx, level, "response", slog.Group("http",
		"url", req.URL.String(),
		"method", req.Method,
		"status", resp.StatusCode,
	))

	return resp, nil
}
