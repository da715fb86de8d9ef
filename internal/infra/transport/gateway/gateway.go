package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/infra/config"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
)

// Default headers and content types used on every call.
const (
	AcceptHeader      = "Accept"
	ContentTypeHeader = "Content-Type"

	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

var (
	// ErrInvalidBaseURL is returned when the resolved base URL has no scheme or host.
	ErrInvalidBaseURL = errors.New("invalid base url")
	// ErrNilStore is returned when the gateway is constructed without a credential store.
	ErrNilStore = errors.New("nil credential store")
	// ErrNilBus is returned when the gateway is constructed without an invalidation bus.
	ErrNilBus = errors.New("nil invalidation bus")
)

// GatewayConfig holds configuration for the API gateway.
type GatewayConfig struct {
	// Environment selects the backend deployment ("development", "production" or "test")
	Environment string `env:"ENVIRONMENT" default:"production"`

	// BaseURL overrides the deployment's API base URL when non-empty
	BaseURL string `env:"BASE_URL" default:""`

	// Timeout overrides the deployment's request timeout when positive
	Timeout time.Duration `env:"TIMEOUT" default:"0s"`
}

type deploymentDefaults struct {
	baseURL string
	timeout time.Duration
}

// Fixed per-deployment defaults. Development talks to a local backend with a
// short timeout; production talks to the hosted deployment, which cold-starts
// slowly enough to need the long one.
//
//nolint:gochecknoglobals
var environmentDefaults = map[config.Environment]deploymentDefaults{
	config.EnvDevelopment: {baseURL: "http://localhost:8000", timeout: 10 * time.Second},
	config.EnvTest:        {baseURL: "http://localhost:8001", timeout: 15 * time.Second},
	config.EnvProduction:  {baseURL: "https://envirosense-api.onrender.com", timeout: 30 * time.Second},
}

// Gateway is the single HTTP doorway to the EnviroSense API. It owns base URL
// resolution and the transport pipeline: request IDs, request logging, bearer
// token injection and authorization-failure detection.
type Gateway struct {
	env        config.Environment
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	log        logging.Logger
}

// NewGateway creates a Gateway for the deployment selected by cfg. The store
// provides the bearer token for outgoing requests; detected invalidations are
// published on bus. A nil base round tripper defaults to http.DefaultTransport.
// Returns an error if the configuration is invalid or a dependency is missing.
func NewGateway(
	cfg GatewayConfig,
	store credential.Repository,
	bus *Bus,
	base http.RoundTripper,
) (*Gateway, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	if bus == nil {
		return nil, ErrNilBus
	}

	if base == nil {
		base = http.DefaultTransport
	}

	env := config.ParseEnvironment(cfg.Environment)
	defaults := environmentDefaults[env]

	baseURL := defaults.baseURL
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}

	timeout := defaults.timeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	log := logging.GetLogger("infra.transport.gateway").With(
		logging.Group("gateway",
			"environment", env.String(),
			"base_url", baseURL,
		),
	)

	var transport http.RoundTripper = base
	transport = NewSessionGuardRoundTripper(transport, store, bus, log)
	transport = NewBearerRoundTripper(transport, store)
	transport = NewLoggingRoundTripper(transport, log)
	transport = NewTracingRoundTripper(transport)

	return &Gateway{
		env:     env,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		httpClient: &http.Client{ //nolint:exhaustruct
			Transport: transport,
			Timeout:   timeout,
		},
		log: log,
	}, nil
}

// Environment returns the deployment the gateway targets.
func (gw *Gateway) Environment() config.Environment {
	return gw.env
}

// BaseURL returns the resolved API base URL without a trailing slash.
func (gw *Gateway) BaseURL() string {
	return gw.baseURL
}

// Timeout returns the per-request timeout applied by the gateway.
func (gw *Gateway) Timeout() time.Duration {
	return gw.timeout
}

// WebSocketURL resolves the given path against the base URL and switches the
// scheme to its WebSocket counterpart.
func (gw *Gateway) WebSocketURL(path string) (string, error) {
	resolved, err := url.Parse(gw.resolveURL(path))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	switch resolved.Scheme {
	case "http":
		resolved.Scheme = "ws"
	case "https":
		resolved.Scheme = "wss"
	}

	return resolved.String(), nil
}

func (gw *Gateway) resolveURL(path string) string {
	return gw.baseURL + "/" + strings.TrimLeft(path, "/")
}

// NewRequest builds a request against the gateway's base URL with the default
// JSON accept header set.
func (gw *Gateway) NewRequest(
	ctx context.Context,
	method string,
	path string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, gw.resolveURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set(AcceptHeader, contentTypeJSON)

	return req, nil
}

// Do sends the request through the gateway's transport pipeline.
// The caller owns the response body.
func (gw *Gateway) Do(req *http.Request) (*http.Response, error) {
	resp, err := gw.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response into out.
// Non-2xx responses are returned as an APIError.
func (gw *Gateway) GetJSON(ctx context.Context, path string, out any) error {
	req, err := gw.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	return gw.doJSON(req, out)
}

// PostJSON performs a POST request with a JSON body and decodes the JSON
// response into out. Non-2xx responses are returned as an APIError.
func (gw *Gateway) PostJSON(ctx context.Context, path string, body any, out any) error {
	req, err := gw.newJSONRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	return gw.doJSON(req, out)
}

// PutJSON performs a PUT request with a JSON body and decodes the JSON
// response into out. Non-2xx responses are returned as an APIError.
func (gw *Gateway) PutJSON(ctx context.Context, path string, body any, out any) error {
	req, err := gw.newJSONRequest(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}

	return gw.doJSON(req, out)
}

// PostForm performs a POST request with a form-encoded body and decodes the
// JSON response into out. The token endpoint is the only form-encoded call in
// the EnviroSense API.
func (gw *Gateway) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := gw.NewRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}

	req.Header.Set(ContentTypeHeader, contentTypeForm)

	return gw.doJSON(req, out)
}

func (gw *Gateway) newJSONRequest(
	ctx context.Context,
	method string,
	path string,
	body any,
) (*http.Request, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}

	req, err := gw.NewRequest(ctx, method, path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	req.Header.Set(ContentTypeHeader, contentTypeJSON)

	return req, nil
}

func (gw *Gateway) doJSON(req *http.Request, out any) error {
	resp, err := gw.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("request failed: %w", parseAPIError(resp))
	}

	if out == nil {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
