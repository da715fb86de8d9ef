package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
)

// SessionGuardRoundTripper watches responses for authorization failures.
// On a 401 it unconditionally clears the credential store and publishes an
// invalidation on the bus, then hands the response through to the caller.
// It never retries and never swallows the response.
type SessionGuardRoundTripper struct {
	next  http.RoundTripper
	store credential.Repository
	bus   *Bus
	log   logging.Logger
}

var _ http.RoundTripper = (*SessionGuardRoundTripper)(nil)

// NewSessionGuardRoundTripper creates a new SessionGuardRoundTripper wrapping next.
func NewSessionGuardRoundTripper(
	next http.RoundTripper,
	store credential.Repository,
	bus *Bus,
	log logging.Logger,
) *SessionGuardRoundTripper {
	return &SessionGuardRoundTripper{
		next:  next,
		store: store,
		bus:   bus,
		log:   log,
	}
}

// RoundTrip implements http.RoundTripper.
func (g *SessionGuardRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := g.next.RoundTrip(req)
	if err != nil {
		//nolint:wrapcheck
		return resp, err
	}

	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	ctx := req.Context()

	if err := g.store.Clear(ctx); err != nil {
		g.log.ErrorContext(ctx, "clear credential failed", "error", err)
	}

	g.bus.Publish(ctx, Invalidation{
		Reason: ReasonAuthorizationFailed,
		Status: resp.StatusCode,
		Path:   req.URL.Path,
		At:     time.Now(),
	})

	g.log.WarnContext(ctx, "session invalidated", slog.Group("http",
		"path", req.URL.Path,
		"status", resp.StatusCode,
	))

	return resp, nil
}
