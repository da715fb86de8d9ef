package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/Sosiggg/EnviroSense/internal/infra/config"
	context_ "github.com/Sosiggg/EnviroSense/internal/infra/context"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
	"github.com/Sosiggg/EnviroSense/internal/svc/authsvc"
	"github.com/Sosiggg/EnviroSense/internal/svc/sessionsvc"
)

const (
	appName = "envisense"
	svcName = "cli"
)

// ErrUnknownCommand is returned when the first argument names no command.
var ErrUnknownCommand = errors.New("unknown command")

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig   `envPrefix:"LOG_"`
	Gateway gateway.GatewayConfig  `envPrefix:"GATEWAY_"`
	Store   credential.StoreConfig `envPrefix:"STORE_"`
}

func main() {
	var (
		cfg Config
		ctx = context.Background()

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, args []string) (err error) {
	log := logging.GetLogger("cmd.envisense")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "command failed", "error", err)
		} else {
			log.DebugContext(ctx, "command complete")
		}
	}()

	if len(args) == 0 || args[0] == "help" {
		printUsage()

		return nil
	}

	command, commandArgs := args[0], args[1:]

	storeFactory, err := credential.NewRepositoryFactory(cfg.Store)
	if err != nil {
		return fmt.Errorf("select store backend: %w", err)
	}

	store, err := storeFactory()
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.WarnContext(ctx, "close credential store failed", "error", closeErr)
		}
	}()

	bus := gateway.NewBus()

	gw, err := gateway.NewGateway(cfg.Gateway, store, bus, nil)
	if err != nil {
		return fmt.Errorf("new gateway: %w", err)
	}

	session, err := sessionsvc.NewService(authsvc.NewHTTPClient(gw), store, bus)
	if err != nil {
		return fmt.Errorf("new session service: %w", err)
	}
	defer session.Close()

	if err := session.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize session: %w", err)
	}

	if user := session.CurrentUser(); user != nil {
		ctx = context_.WithUsername(ctx, user.Username)
	}

	cli := &app{session: session, gateway: gw, namespace: cfg.Namespace()}

	switch command {
	case "login":
		return cli.login(ctx, commandArgs)
	case "register":
		return cli.register(ctx, commandArgs)
	case "logout":
		return cli.logout(ctx)
	case "whoami":
		return cli.whoami()
	case "update":
		return cli.update(ctx, commandArgs)
	case "change-password":
		return cli.changePassword(ctx, commandArgs)
	case "forgot-password":
		return cli.forgotPassword(ctx, commandArgs)
	case "reset-password":
		return cli.resetPassword(ctx, commandArgs)
	case "status":
		return cli.status()
	default:
		printUsage()

		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `usage: %s <command> [flags]

Commands:
  login            sign in (-username, -password)
  register         create an account (-username, -email, -password)
  logout           sign out and discard the stored credential
  whoami           print the signed-in user
  update           change profile fields (-username, -email)
  change-password  rotate the password (-current, -new)
  forgot-password  request reset instructions (-email)
  reset-password   redeem a reset token (-token, -email, -password)
  status           print session and gateway state
`, appName)
}
