package gateway

import (
	"net/http"

	"github.com/google/uuid"

	context_ "github.com/Sosiggg/EnviroSense/internal/infra/context"
)

// RequestIDHeader carries the request ID so backend logs can be correlated
// with client logs.
const RequestIDHeader = "X-Request-ID"

// TracingRoundTripper stamps every outgoing request with a request ID.
// It uses the ID from the request context if present, otherwise generates
// a new one, and mirrors it into the X-Request-ID header.
type TracingRoundTripper struct {
	next http.RoundTripper
}

var _ http.RoundTripper = (*TracingRoundTripper)(nil)

// NewTracingRoundTripper creates a new TracingRoundTripper wrapping next.
func NewTracingRoundTripper(next http.RoundTripper) *TracingRoundTripper {
	return &TracingRoundTripper{next: next}
}

// RoundTrip implements http.RoundTripper.
func (t *TracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID, ok := context_.RequestIDFromContext(req.Context())
	if !ok || requestID == "" {
		requestID = uuid.NewString()
	}

	req = req.Clone(context_.WithRequestID(req.Context(), requestID))

	if req.Header.Get(RequestIDHeader) == "" {
		req.Header.Set(RequestIDHeader, requestID)
	}

	//nolint:wrapcheck
	return t.next.RoundTrip(req)
}
