package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Sosiggg/EnviroSense/internal/domain"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
	"github.com/Sosiggg/EnviroSense/internal/svc/sessionsvc"
)

// ErrNothingToUpdate is returned when update is called without any field flag.
var ErrNothingToUpdate = errors.New("nothing to update")

// app bundles the wired services handed to every command.
type app struct {
	session   *sessionsvc.Service
	gateway   *gateway.Gateway
	namespace string
}

// failure prints the session's user-facing message before handing the
// underlying error back to run.
func (a *app) failure(verb string, err error) error {
	if message := a.session.Err(); message != "" {
		fmt.Fprintln(os.Stderr, message)
	}

	return fmt.Errorf("%s: %w", verb, err)
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	user, err := a.session.Login(ctx, *username, *password)
	if err != nil {
		return a.failure("login", err)
	}

	fmt.Printf("logged in as %s <%s>\n", user.Username, user.Email)

	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	email := fs.String("email", "", "account email address")
	password := fs.String("password", "", "account password")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	message, err := a.session.Register(ctx, *username, *email, *password)
	if err != nil {
		return a.failure("register", err)
	}

	fmt.Println(message)

	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	fmt.Println("logged out")

	return nil
}

func (a *app) whoami() error {
	user := a.session.CurrentUser()
	if user == nil {
		fmt.Fprintln(os.Stderr, "not signed in")

		return domain.ErrNotAuthenticated
	}

	fmt.Printf("id:       %d\n", user.ID)
	fmt.Printf("username: %s\n", user.Username)
	fmt.Printf("email:    %s\n", user.Email)
	fmt.Printf("active:   %t\n", user.IsActive)

	if len(user.Roles) > 0 {
		fmt.Printf("roles:    %s\n", strings.Join(user.Roles, ", "))
	}

	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	username := fs.String("username", "", "new username")
	email := fs.String("email", "", "new email address")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	// Only flags that were actually passed become part of the patch, so an
	// omitted flag keeps the current value.
	var patch domain.UserPatch

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "username":
			patch.Username = username
		case "email":
			patch.Email = email
		}
	})

	if patch.IsZero() {
		fmt.Fprintln(os.Stderr, "pass -username or -email to change the profile")

		return ErrNothingToUpdate
	}

	user, err := a.session.UpdateProfile(ctx, patch)
	if err != nil {
		return a.failure("update profile", err)
	}

	fmt.Printf("profile updated: %s <%s>\n", user.Username, user.Email)

	return nil
}

func (a *app) changePassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("change-password", flag.ContinueOnError)
	current := fs.String("current", "", "current password")
	newPassword := fs.String("new", "", "new password")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if err := a.session.ChangePassword(ctx, *current, *newPassword); err != nil {
		return a.failure("change password", err)
	}

	fmt.Println("password changed")

	return nil
}

func (a *app) forgotPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forgot-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email address")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	message, err := a.session.ForgotPassword(ctx, *email)
	if err != nil {
		return a.failure("forgot password", err)
	}

	fmt.Println(message)

	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	resetToken := fs.String("token", "", "reset token from the instructions email")
	email := fs.String("email", "", "account email address")
	password := fs.String("password", "", "new password")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	message, err := a.session.ResetPassword(ctx, *resetToken, *email, *password)
	if err != nil {
		return a.failure("reset password", err)
	}

	fmt.Println(message)

	return nil
}

func (a *app) status() error {
	snapshot := a.session.Snapshot()

	fmt.Printf("environment: %s\n", a.gateway.Environment())
	fmt.Printf("base url:    %s\n", a.gateway.BaseURL())
	fmt.Printf("env prefix:  %s\n", a.namespace)

	if snapshot.User == nil {
		fmt.Println("session:     signed out")

		return nil
	}

	fmt.Printf("session:     signed in as %s <%s>\n", snapshot.User.Username, snapshot.User.Email)

	if len(snapshot.User.Roles) > 0 {
		fmt.Printf("roles:       %s\n", strings.Join(snapshot.User.Roles, ", "))
	}

	return nil
}
