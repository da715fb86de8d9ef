package gateway

import (
	"fmt"
	"net/http"

	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
)

const (
	// AuthorizationHeader carries the bearer token on authenticated requests.
	AuthorizationHeader = "Authorization"

	bearerPrefix = "Bearer "
)

// BearerRoundTripper attaches the stored bearer token to outgoing requests.
// Requests that already carry an Authorization header pass through untouched,
// and requests without a stored credential proceed unauthenticated. A failing
// credential store aborts the request instead.
type BearerRoundTripper struct {
	next  http.RoundTripper
	store credential.Repository
}

var _ http.RoundTripper = (*BearerRoundTripper)(nil)

// NewBearerRoundTripper creates a new BearerRoundTripper wrapping next.
func NewBearerRoundTripper(next http.RoundTripper, store credential.Repository) *BearerRoundTripper {
	return &BearerRoundTripper{next: next, store: store}
}

// RoundTrip implements http.RoundTripper.
func (b *BearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(AuthorizationHeader) != "" {
		//nolint:wrapcheck
		return b.next.RoundTrip(req)
	}

	cred, ok, err := b.store.Load(req.Context())
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	if !ok || cred.IsZero() {
		//nolint:wrapcheck
		return b.next.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set(AuthorizationHeader, bearerPrefix+cred.Token)

	//nolint:wrapcheck
	return b.next.RoundTrip(req)
}
