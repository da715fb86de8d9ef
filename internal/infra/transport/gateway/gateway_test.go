package gateway_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/config"
	context_ "github.com/Sosiggg/EnviroSense/internal/infra/context"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
)

// roundTripFunc implements http.RoundTripper for testing.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	//nolint:exhaustruct
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// brokenStore implements credential.Repository and fails every operation.
type brokenStore struct{}

func (brokenStore) Store(context.Context, domain.Credential) error {
	return domain.ErrCredentialStoreUnavailable
}

func (brokenStore) Load(context.Context) (domain.Credential, bool, error) {
	return domain.Credential{}, false, domain.ErrCredentialStoreUnavailable
}

func (brokenStore) Clear(context.Context) error {
	return domain.ErrCredentialStoreUnavailable
}

func (brokenStore) Close() error {
	return nil
}

func newTestGateway(t *testing.T, store credential.Repository, bus *gateway.Bus, rt roundTripFunc) *gateway.Gateway {
	t.Helper()

	gw, err := gateway.NewGateway(gateway.GatewayConfig{
		Environment: "test",
		BaseURL:     "http://api.test.local",
		Timeout:     time.Second,
	}, store, bus, rt)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	return gw
}

func TestGatewayBearerInjection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cred       *domain.Credential
		wantHeader string
	}{
		{
			name:       "attaches stored token",
			cred:       &domain.Credential{Token: "token-1"},
			wantHeader: "Bearer token-1",
		},
		{
			name:       "no credential sends unauthenticated",
			cred:       nil,
			wantHeader: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := credential.NewMemoryCredentialRepository()

			if tt.cred != nil {
				if err := store.Store(ctx, *tt.cred); err != nil {
					t.Fatalf("Store() error = %v", err)
				}
			}

			var gotHeader string

			gw := newTestGateway(t, store, gateway.NewBus(), func(req *http.Request) (*http.Response, error) {
				gotHeader = req.Header.Get(gateway.AuthorizationHeader)

				return jsonResponse(http.StatusOK, `{}`), nil
			})

			if err := gw.GetJSON(ctx, "/api/v1/auth/me", nil); err != nil {
				t.Fatalf("GetJSON() error = %v", err)
			}

			if gotHeader != tt.wantHeader {
				t.Errorf("Authorization = %q, want %q", gotHeader, tt.wantHeader)
			}
		})
	}
}

func TestGatewayPreservesExplicitAuthorization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credential.NewMemoryCredentialRepository()

	if err := store.Store(ctx, domain.Credential{Token: "stored-token"}); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	var gotHeader string

	gw := newTestGateway(t, store, gateway.NewBus(), func(req *http.Request) (*http.Response, error) {
		gotHeader = req.Header.Get(gateway.AuthorizationHeader)

		return jsonResponse(http.StatusOK, `{}`), nil
	})

	req, err := gw.NewRequest(ctx, http.MethodGet, "/api/v1/auth/me", nil)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}

	req.Header.Set(gateway.AuthorizationHeader, "Bearer explicit-token")

	resp, err := gw.Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	if gotHeader != "Bearer explicit-token" {
		t.Errorf("Authorization = %q, want %q", gotHeader, "Bearer explicit-token")
	}
}

func TestGatewayStoreFailureAbortsRequest(t *testing.T) {
	t.Parallel()

	reached := false

	gw, err := gateway.NewGateway(gateway.GatewayConfig{
		Environment: "test",
		BaseURL:     "http://api.test.local",
		Timeout:     time.Second,
	}, brokenStore{}, gateway.NewBus(), roundTripFunc(func(*http.Request) (*http.Response, error) {
		reached = true

		return jsonResponse(http.StatusOK, `{}`), nil
	}))
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	err = gw.GetJSON(context.Background(), "/api/v1/auth/me", nil)
	if !errors.Is(err, domain.ErrCredentialStoreUnavailable) {
		t.Errorf("GetJSON() error = %v, want %v", err, domain.ErrCredentialStoreUnavailable)
	}

	if reached {
		t.Error("request reached the backend despite store failure")
	}
}

func TestGatewaySessionGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		status         int
		wantCleared    bool
		wantInvalidate bool
	}{
		{
			name:           "401 clears credentials and publishes invalidation",
			status:         http.StatusUnauthorized,
			wantCleared:    true,
			wantInvalidate: true,
		},
		{
			name:           "500 passes through untouched",
			status:         http.StatusInternalServerError,
			wantCleared:    false,
			wantInvalidate: false,
		},
		{
			name:           "200 passes through untouched",
			status:         http.StatusOK,
			wantCleared:    false,
			wantInvalidate: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			store := credential.NewMemoryCredentialRepository()

			if err := store.Store(ctx, domain.Credential{Token: "token-1", User: &domain.User{Username: "alice"}}); err != nil {
				t.Fatalf("Store() error = %v", err)
			}

			bus := gateway.NewBus()
			events, cancel := bus.Subscribe()
			defer cancel()

			gw := newTestGateway(t, store, bus, func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, `{"detail":"boom"}`), nil
			})

			err := gw.GetJSON(ctx, "/api/v1/sensor/data", nil)
			if tt.status != http.StatusOK && err == nil {
				t.Fatal("GetJSON() error = nil, want APIError")
			}

			_, ok, loadErr := store.Load(ctx)
			if loadErr != nil {
				t.Fatalf("Load() error = %v", loadErr)
			}

			if cleared := !ok; cleared != tt.wantCleared {
				t.Errorf("credential cleared = %v, want %v", cleared, tt.wantCleared)
			}

			select {
			case inv := <-events:
				if !tt.wantInvalidate {
					t.Fatalf("unexpected invalidation: %+v", inv)
				}

				if inv.Reason != gateway.ReasonAuthorizationFailed {
					t.Errorf("Reason = %q, want %q", inv.Reason, gateway.ReasonAuthorizationFailed)
				}

				if inv.Status != http.StatusUnauthorized {
					t.Errorf("Status = %d, want %d", inv.Status, http.StatusUnauthorized)
				}

				if inv.Path != "/api/v1/sensor/data" {
					t.Errorf("Path = %q, want %q", inv.Path, "/api/v1/sensor/data")
				}
			default:
				if tt.wantInvalidate {
					t.Fatal("no invalidation published")
				}
			}
		})
	}
}

func TestGatewayRequestID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credential.NewMemoryCredentialRepository()

	var gotRequestID string

	gw := newTestGateway(t, store, gateway.NewBus(), func(req *http.Request) (*http.Response, error) {
		gotRequestID = req.Header.Get(gateway.RequestIDHeader)

		return jsonResponse(http.StatusOK, `{}`), nil
	})

	if err := gw.GetJSON(ctx, "/api/v1/auth/me", nil); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if gotRequestID == "" {
		t.Error("X-Request-ID not set")
	}

	// A request ID already in the context wins
	if err := gw.GetJSON(context_.WithRequestID(ctx, "fixed-id"), "/api/v1/auth/me", nil); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	if gotRequestID != "fixed-id" {
		t.Errorf("X-Request-ID = %q, want %q", gotRequestID, "fixed-id")
	}
}

func TestGatewayDefaultHeaders(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := credential.NewMemoryCredentialRepository()

	var gotAccept, gotContentType string

	gw := newTestGateway(t, store, gateway.NewBus(), func(req *http.Request) (*http.Response, error) {
		gotAccept = req.Header.Get(gateway.AcceptHeader)
		gotContentType = req.Header.Get(gateway.ContentTypeHeader)

		return jsonResponse(http.StatusOK, `{}`), nil
	})

	if err := gw.PostJSON(ctx, "/api/v1/auth/register", map[string]string{"username": "alice"}, nil); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}

	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want %q", gotAccept, "application/json")
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
	}
}

func TestGatewayEnvironments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		cfg         gateway.GatewayConfig
		wantEnv     config.Environment
		wantBaseURL string
		wantTimeout time.Duration
	}{
		{
			name:        "development",
			cfg:         gateway.GatewayConfig{Environment: "development"},
			wantEnv:     config.EnvDevelopment,
			wantBaseURL: "http://localhost:8000",
			wantTimeout: 10 * time.Second,
		},
		{
			name:        "test",
			cfg:         gateway.GatewayConfig{Environment: "test"},
			wantEnv:     config.EnvTest,
			wantBaseURL: "http://localhost:8001",
			wantTimeout: 15 * time.Second,
		},
		{
			name:        "production",
			cfg:         gateway.GatewayConfig{Environment: "production"},
			wantEnv:     config.EnvProduction,
			wantBaseURL: "https://envirosense-api.onrender.com",
			wantTimeout: 30 * time.Second,
		},
		{
			name:        "unknown environment falls back to production",
			cfg:         gateway.GatewayConfig{Environment: "staging"},
			wantEnv:     config.EnvProduction,
			wantBaseURL: "https://envirosense-api.onrender.com",
			wantTimeout: 30 * time.Second,
		},
		{
			name: "overrides take precedence",
			cfg: gateway.GatewayConfig{
				Environment: "development",
				BaseURL:     "http://localhost:9999",
				Timeout:     2 * time.Second,
			},
			wantEnv:     config.EnvDevelopment,
			wantBaseURL: "http://localhost:9999",
			wantTimeout: 2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw, err := gateway.NewGateway(tt.cfg, credential.NewMemoryCredentialRepository(), gateway.NewBus(), nil)
			if err != nil {
				t.Fatalf("NewGateway() error = %v", err)
			}

			if gw.Environment() != tt.wantEnv {
				t.Errorf("Environment() = %v, want %v", gw.Environment(), tt.wantEnv)
			}

			if gw.BaseURL() != tt.wantBaseURL {
				t.Errorf("BaseURL() = %q, want %q", gw.BaseURL(), tt.wantBaseURL)
			}

			if gw.Timeout() != tt.wantTimeout {
				t.Errorf("Timeout() = %v, want %v", gw.Timeout(), tt.wantTimeout)
			}
		})
	}
}

func TestGatewayDevelopmentTimeoutShorterThanProduction(t *testing.T) {
	t.Parallel()

	dev, err := gateway.NewGateway(gateway.GatewayConfig{Environment: "development"},
		credential.NewMemoryCredentialRepository(), gateway.NewBus(), nil)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	prod, err := gateway.NewGateway(gateway.GatewayConfig{Environment: "production"},
		credential.NewMemoryCredentialRepository(), gateway.NewBus(), nil)
	if err != nil {
		t.Fatalf("NewGateway() error = %v", err)
	}

	if dev.Timeout() >= prod.Timeout() {
		t.Errorf("development timeout %v not shorter than production %v", dev.Timeout(), prod.Timeout())
	}
}

func TestGatewayWebSocketURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		baseURL string
		path    string
		want    string
	}{
		{
			name:    "http to ws",
			baseURL: "http://localhost:8000",
			path:    "/api/v1/sensor/ws",
			want:    "ws://localhost:8000/api/v1/sensor/ws",
		},
		{
			name:    "https to wss",
			baseURL: "https://envirosense-api.onrender.com",
			path:    "api/v1/sensor/ws",
			want:    "wss://envirosense-api.onrender.com/api/v1/sensor/ws",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw, err := gateway.NewGateway(gateway.GatewayConfig{
				Environment: "test",
				BaseURL:     tt.baseURL,
			}, credential.NewMemoryCredentialRepository(), gateway.NewBus(), nil)
			if err != nil {
				t.Fatalf("NewGateway() error = %v", err)
			}

			got, err := gw.WebSocketURL(tt.path)
			if err != nil {
				t.Fatalf("WebSocketURL() error = %v", err)
			}

			if got != tt.want {
				t.Errorf("WebSocketURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGatewayNilDependencies(t *testing.T) {
	t.Parallel()

	cfg := gateway.GatewayConfig{Environment: "test"}

	if _, err := gateway.NewGateway(cfg, nil, gateway.NewBus(), nil); !errors.Is(err, gateway.ErrNilStore) {
		t.Errorf("NewGateway() without store error = %v, want %v", err, gateway.ErrNilStore)
	}

	if _, err := gateway.NewGateway(cfg, credential.NewMemoryCredentialRepository(), nil, nil); !errors.Is(err, gateway.ErrNilBus) {
		t.Errorf("NewGateway() without bus error = %v, want %v", err, gateway.ErrNilBus)
	}
}

func TestGatewayAPIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
	}{
		{
			name:       "string detail verbatim",
			status:     http.StatusBadRequest,
			body:       `{"detail":"Username already registered"}`,
			wantDetail: "Username already registered",
		},
		{
			name:       "structured detail re-encoded",
			status:     http.StatusUnprocessableEntity,
			body:       `{"detail":[{"loc":["body","email"],"msg":"field required"}]}`,
			wantDetail: `[{"loc":["body","email"],"msg":"field required"}]`,
		},
		{
			name:       "non-json body yields empty detail",
			status:     http.StatusBadGateway,
			body:       `upstream exploded`,
			wantDetail: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw := newTestGateway(t, credential.NewMemoryCredentialRepository(), gateway.NewBus(),
				func(*http.Request) (*http.Response, error) {
					return jsonResponse(tt.status, tt.body), nil
				})

			err := gw.PostJSON(context.Background(), "/api/v1/auth/register", map[string]string{}, nil)
			if err == nil {
				t.Fatal("PostJSON() error = nil, want APIError")
			}

			apiErr, ok := gateway.AsAPIError(err)
			if !ok {
				t.Fatalf("AsAPIError() = false for %v", err)
			}

			if apiErr.Status != tt.status {
				t.Errorf("Status = %d, want %d", apiErr.Status, tt.status)
			}

			if apiErr.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", apiErr.Detail, tt.wantDetail)
			}
		})
	}
}
