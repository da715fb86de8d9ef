package sessionsvc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	context_ "github.com/Sosiggg/EnviroSense/internal/infra/context"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
	"github.com/Sosiggg/EnviroSense/internal/svc/authsvc"
	"github.com/Sosiggg/EnviroSense/internal/util/token"
)

var (
	// ErrNilAuthClient indicates the service was constructed without an auth client.
	ErrNilAuthClient = errors.New("nil auth client")

	// ErrNilCredentialStore indicates the service was constructed without a credential store.
	ErrNilCredentialStore = errors.New("nil credential store")

	// ErrNilBus indicates the service was constructed without an invalidation bus.
	ErrNilBus = errors.New("nil invalidation bus")
)

// User-facing failure messages. Server-provided details take precedence where
// the backend supplies one.
const (
	msgInitializeFailed     = "Failed to initialize session"
	msgInvalidCredentials   = "Invalid username or password"
	msgLoginFailed          = "Login failed. Please try again."
	msgRegisterFailed       = "Registration failed. Please try again."
	msgUpdateProfileFailed  = "Failed to update profile. Please try again."
	msgChangePasswordFailed = "Failed to change password. Please try again."
	msgForgotPasswordFailed = "Failed to request password reset. Please try again."
	msgResetPasswordFailed  = "Failed to reset password. Please try again."
)

// Service maintains the client-side session state: the authenticated user,
// whether an operation is in flight, and the last operation failure message.
//
// All methods are safe for concurrent use. Operations overlapping in time are
// last-write-wins on the shared state; callers that need strict ordering must
// serialize their calls.
type Service struct {
	Auth  authsvc.Client
	Store credential.Repository
	Log   logging.Logger

	mu      sync.RWMutex
	user    *domain.User
	loading bool
	errMsg  string

	unsubscribe func()
	done        chan struct{}
}

// NewService creates a session service backed by the given auth client and
// credential store. It subscribes to the invalidation bus so that rejected
// sessions detected at the transport layer reset the session out-of-band.
// Returns an error if any dependency is nil.
//
// The service starts in the loading state; call Initialize to settle it.
func NewService(auth authsvc.Client, store credential.Repository, bus *gateway.Bus) (*Service, error) {
	log := logging.GetLogger("svc.sessionsvc.session_service")

	if auth == nil {
		return nil, ErrNilAuthClient
	}

	if store == nil {
		return nil, ErrNilCredentialStore
	}

	if bus == nil {
		return nil, ErrNilBus
	}

	svc := &Service{
		Auth:    auth,
		Store:   store,
		Log:     log,
		loading: true,
		done:    make(chan struct{}),
	}

	events, unsubscribe := bus.Subscribe()
	svc.unsubscribe = unsubscribe

	go svc.watchInvalidations(events)

	return svc, nil
}

// Close unsubscribes from the invalidation bus and waits for the watcher to
// stop. The service must not be used afterwards.
func (s *Service) Close() {
	s.unsubscribe()
	<-s.done
}

// watchInvalidations drops the authenticated user whenever the transport layer
// reports a rejected session. Invalidations are not operation failures, so the
// error message is left untouched.
func (s *Service) watchInvalidations(events <-chan gateway.Invalidation) {
	defer close(s.done)

	for event := range events {
		s.mu.Lock()
		s.user = nil
		s.mu.Unlock()

		s.Log.Warn("session invalidated",
			logging.Group("invalidation", "reason", event.Reason, "status", event.Status, "path", event.Path))
	}
}

// Initialize settles the session from the credential store without touching
// the network. A stored credential with an unexpired token and a cached user
// restores the session; a missing, malformed or expired credential leaves it
// signed out (expired credentials are also removed from the store). Only a
// store read failure is reported as an error.
func (s *Service) Initialize(ctx context.Context) (err error) {
	log := s.Log

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "initialize failed", "error", err)
		} else {
			log.DebugContext(ctx, "session initialized", "authenticated", s.Authenticated())
		}
	}()

	cred, ok, err := s.Store.Load(ctx)
	if err != nil {
		s.setUser(nil)
		s.fail(msgInitializeFailed)

		return fmt.Errorf("load credential: %w", err)
	}

	if !ok {
		s.setUser(nil)

		return nil
	}

	claims, err := token.Peek(cred.Token)
	if err != nil || claims.Expired(time.Now()) {
		if clearErr := s.Store.Clear(ctx); clearErr != nil {
			log.WarnContext(ctx, "discard stale credential failed", "error", clearErr)
		}

		s.setUser(nil)

		//nolint:nilerr // a stale credential is a signed-out session, not a failure
		return nil
	}

	if cred.User != nil {
		user := *cred.User
		s.setUser(&user)
	} else {
		s.setUser(nil)
	}

	return nil
}

// Login authenticates against the backend and establishes the session. The
// access token is persisted before the profile fetch so the request gateway
// can attach it; if the profile fetch fails the persisted credential is rolled
// back and the session stays signed out.
func (s *Service) Login(ctx context.Context, username, password string) (_ domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	// Attach the actor so the transport logs of this flow carry it.
	ctx = context_.WithUsername(ctx, username)

	accessToken, err := s.Auth.Token(ctx, username, password)
	if err != nil {
		s.setUser(nil)

		if errors.Is(err, domain.ErrInvalidCredentials) {
			s.fail(msgInvalidCredentials)
		} else {
			s.fail(msgLoginFailed)
		}

		return domain.User{}, fmt.Errorf("request token: %w", err)
	}

	if err := s.Store.Store(ctx, domain.Credential{Token: accessToken}); err != nil {
		s.setUser(nil)
		s.fail(msgLoginFailed)

		return domain.User{}, fmt.Errorf("persist token: %w", err)
	}

	user, err := s.Auth.Me(ctx)
	if err != nil {
		if clearErr := s.Store.Clear(ctx); clearErr != nil {
			log.WarnContext(ctx, "roll back credential failed", "error", clearErr)
		}

		s.setUser(nil)
		s.fail(msgLoginFailed)

		return domain.User{}, fmt.Errorf("fetch profile: %w", err)
	}

	// Caching the profile is best effort; the token alone keeps the session
	// usable and the profile can be refetched.
	if err := s.Store.Store(ctx, domain.Credential{Token: accessToken, User: &user}); err != nil {
		log.WarnContext(ctx, "cache profile failed", "error", err)
	}

	s.setUser(&user)

	return user, nil
}

// Register creates a new account. The session is not mutated; callers log in
// separately. Returns the backend confirmation message.
func (s *Service) Register(ctx context.Context, username, email, password string) (_ string, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "registration failed", "error", err)
		} else {
			log.DebugContext(ctx, "registration successful")
		}
	}()

	message, err := s.Auth.Register(ctx, username, email, password)
	if err != nil {
		s.fail(detailOr(err, msgRegisterFailed))

		return "", fmt.Errorf("register: %w", err)
	}

	return message, nil
}

// Logout signs the session out. The in-memory state is reset unconditionally;
// clearing the credential store is best effort and its failure is returned.
// Logout never toggles the loading flag.
func (s *Service) Logout(ctx context.Context) (err error) {
	log := s.Log

	defer func() {
		if err != nil {
			log.WarnContext(ctx, "logout incomplete", "error", err)
		} else {
			log.DebugContext(ctx, "logged out")
		}
	}()

	s.mu.Lock()
	s.user = nil
	s.errMsg = ""
	s.mu.Unlock()

	if err := s.Store.Clear(ctx); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}

	return nil
}

// UpdateProfile applies the patch to the authenticated user's profile. Patch
// fields left nil keep their current values. The record returned by the
// backend becomes the new session user and cached snapshot. Requires an
// authenticated session.
func (s *Service) UpdateProfile(ctx context.Context, patch domain.UserPatch) (_ domain.User, err error) {
	log := s.Log

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "profile update failed", "error", err)
		} else {
			log.DebugContext(ctx, "profile updated")
		}
	}()

	s.mu.RLock()
	var snapshot domain.User

	authenticated := s.user != nil
	if authenticated {
		snapshot = *s.user
	}
	s.mu.RUnlock()

	if !authenticated {
		s.fail(msgUpdateProfileFailed)

		return domain.User{}, domain.ErrNotAuthenticated
	}

	merged := patch.Apply(snapshot)

	updated, err := s.Auth.UpdateMe(ctx, merged.Username, merged.Email)
	if err != nil {
		s.fail(detailOr(err, msgUpdateProfileFailed))

		return domain.User{}, fmt.Errorf("update profile: %w", err)
	}

	// The profile endpoint does not echo role assignments; carry them over
	// from the previous snapshot.
	if updated.Roles == nil {
		updated.Roles = snapshot.Roles
	}

	s.cacheUser(ctx, updated)
	s.setUser(&updated)

	return updated, nil
}

// ChangePassword rotates the password of the authenticated user.
func (s *Service) ChangePassword(ctx context.Context, currentPassword, newPassword string) (err error) {
	log := s.Log

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "password change failed", "error", err)
		} else {
			log.DebugContext(ctx, "password changed")
		}
	}()

	if err := s.Auth.ChangePassword(ctx, currentPassword, newPassword); err != nil {
		s.fail(detailOr(err, msgChangePasswordFailed))

		return fmt.Errorf("change password: %w", err)
	}

	return nil
}

// ForgotPassword requests password reset instructions for the given email.
// The backend replies with the same message whether or not the email is
// registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) (_ string, err error) {
	log := s.Log

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "password reset request failed", "error", err)
		} else {
			log.DebugContext(ctx, "password reset requested")
		}
	}()

	message, err := s.Auth.ForgotPassword(ctx, email)
	if err != nil {
		s.fail(detailOr(err, msgForgotPasswordFailed))

		return "", fmt.Errorf("forgot password: %w", err)
	}

	return message, nil
}

// ResetPassword redeems a reset token for a new password.
func (s *Service) ResetPassword(ctx context.Context, resetToken, email, newPassword string) (_ string, err error) {
	log := s.Log

	s.begin()
	defer s.finish()

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "password reset failed", "error", err)
		} else {
			log.DebugContext(ctx, "password reset")
		}
	}()

	message, err := s.Auth.ResetPassword(ctx, resetToken, email, newPassword)
	if err != nil {
		s.fail(detailOr(err, msgResetPasswordFailed))

		return "", fmt.Errorf("reset password: %w", err)
	}

	return message, nil
}

// Authenticated reports whether a user is attached to the session.
func (s *Service) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.user != nil
}

// HasRole reports whether the session user carries the given role. Always
// false when signed out.
func (s *Service) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return false
	}

	return s.user.HasRole(role)
}

// CurrentUser returns a copy of the session user, or nil when signed out.
//
//nolint:nilnil
func (s *Service) CurrentUser() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}

	user := *s.user

	return &user
}

// Loading reports whether an operation is in flight.
func (s *Service) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loading
}

// Err returns the failure message of the last operation, or an empty string.
func (s *Service) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.errMsg
}

// Snapshot returns a consistent copy of the full session state.
func (s *Service) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session := domain.Session{
		User:    nil,
		Loading: s.loading,
		Err:     s.errMsg,
	}

	if s.user != nil {
		user := *s.user
		session.User = &user
	}

	return session
}

// begin marks an operation as in flight and clears the previous failure.
func (s *Service) begin() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
}

// finish marks the operation as settled. Deferred by every operation so the
// loading flag drops on every path.
func (s *Service) finish() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
}

func (s *Service) fail(message string) {
	s.mu.Lock()
	s.errMsg = message
	s.mu.Unlock()
}

func (s *Service) setUser(user *domain.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()
}

// cacheUser rewrites the stored credential with a fresh user snapshot, keeping
// the current token. Best effort.
func (s *Service) cacheUser(ctx context.Context, user domain.User) {
	cred, ok, err := s.Store.Load(ctx)
	if err != nil || !ok {
		return
	}

	cred.User = &user

	if err := s.Store.Store(ctx, cred); err != nil {
		s.Log.WarnContext(ctx, "cache profile failed", "error", err)
	}
}

// detailOr extracts the server-provided detail from an API failure, falling
// back to the given message when there is none.
func detailOr(err error, fallback string) string {
	if apiErr, ok := gateway.AsAPIError(err); ok && apiErr.Detail != "" {
		return apiErr.Detail
	}

	return fallback
}
