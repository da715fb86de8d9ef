package authsvc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
)

// Auth API endpoints, relative to the gateway base URL.
const (
	pathToken          = "/api/v1/auth/token"
	pathRegister       = "/api/v1/auth/register"
	pathMe             = "/api/v1/auth/me"
	pathChangePassword = "/api/v1/auth/change-password"
	pathForgotPassword = "/api/v1/auth/forgot-password"
	pathResetPassword  = "/api/v1/auth/reset-password"
)

// ErrEmptyToken is returned when the backend accepts a login but sends no token.
var ErrEmptyToken = errors.New("empty token in response")

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateMeRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
	Email       string `json:"email"`
}

// HTTPClient implements Client over the EnviroSense API gateway.
// Bearer injection and authorization-failure handling happen in the gateway;
// this client only knows the endpoints and their payloads.
type HTTPClient struct {
	gw  *gateway.Gateway
	log logging.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTPClient talking through the given gateway.
func NewHTTPClient(gw *gateway.Gateway) *HTTPClient {
	return &HTTPClient{
		gw:  gw,
		log: logging.GetLogger("svc.authsvc.http_auth_client"),
	}
}

// Token implements Client.Token. The endpoint follows the OAuth2 password
// flow and expects a form-encoded body.
func (c *HTTPClient) Token(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	var resp tokenResponse

	if err := c.gw.PostForm(ctx, pathToken, form, &resp); err != nil {
		if apiErr, ok := gateway.AsAPIError(err); ok && apiErr.Status == http.StatusUnauthorized {
			err = errors.Join(domain.ErrInvalidCredentials, err)
		}

		return "", fmt.Errorf("request token: %w", err)
	}

	if resp.AccessToken == "" {
		return "", ErrEmptyToken
	}

	return resp.AccessToken, nil
}

// Register implements Client.Register.
func (c *HTTPClient) Register(ctx context.Context, username, email, password string) (string, error) {
	req := registerRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	var resp messageResponse

	if err := c.gw.PostJSON(ctx, pathRegister, req, &resp); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}

	return resp.Message, nil
}

// Me implements Client.Me.
func (c *HTTPClient) Me(ctx context.Context) (domain.User, error) {
	var user domain.User

	if err := c.gw.GetJSON(ctx, pathMe, &user); err != nil {
		return domain.User{}, fmt.Errorf("fetch profile: %w", err)
	}

	return user, nil
}

// UpdateMe implements Client.UpdateMe.
func (c *HTTPClient) UpdateMe(ctx context.Context, username, email string) (domain.User, error) {
	req := updateMeRequest{
		Username: username,
		Email:    email,
	}

	var user domain.User

	if err := c.gw.PutJSON(ctx, pathMe, req, &user); err != nil {
		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

// ChangePassword implements Client.ChangePassword.
func (c *HTTPClient) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	req := changePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}

	if err := c.gw.PostJSON(ctx, pathChangePassword, req, nil); err != nil {
		return fmt.Errorf("change password: %w", err)
	}

	return nil
}

// ForgotPassword implements Client.ForgotPassword.
func (c *HTTPClient) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp messageResponse

	if err := c.gw.PostJSON(ctx, pathForgotPassword, forgotPasswordRequest{Email: email}, &resp); err != nil {
		return "", fmt.Errorf("forgot password: %w", err)
	}

	return resp.Message, nil
}

// ResetPassword implements Client.ResetPassword.
func (c *HTTPClient) ResetPassword(ctx context.Context, resetToken, email, newPassword string) (string, error) {
	req := resetPasswordRequest{
		Token:       resetToken,
		NewPassword: newPassword,
		Email:       email,
	}

	var resp messageResponse

	if err := c.gw.PostJSON(ctx, pathResetPassword, req, &resp); err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}

	return resp.Message, nil
}
