package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Sosiggg/EnviroSense/internal/infra/config"
	"github.com/Sosiggg/EnviroSense/internal/infra/logging"
	"github.com/Sosiggg/EnviroSense/internal/infra/transport/gateway"
	"github.com/Sosiggg/EnviroSense/internal/repo/credential"
	"github.com/Sosiggg/EnviroSense/internal/svc/sensorsvc"
)

const (
	appName = "envisense"
	svcName = "sensorwatch"
)

type Config struct {
	config.EnvConfig

	Log     logging.LoggerConfig   `envPrefix:"LOG_"`
	Gateway gateway.GatewayConfig  `envPrefix:"GATEWAY_"`
	Store   credential.StoreConfig `envPrefix:"STORE_"`
}

func main() {
	var (
		cfg Config

		configPrefix = strings.ToUpper(strings.Join([]string{appName, svcName}, "_"))
		loggerName   = strings.ToLower(strings.Join([]string{appName, svcName}, "."))
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.Parse(ctx, &cfg, configPrefix); err != nil {
		panic(err)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config) (err error) {
	log := logging.GetLogger("cmd.sensorwatch")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "error", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

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

	client, err := sensorsvc.NewStreamClient(gw, store, bus)
	if err != nil {
		return fmt.Errorf("new stream client: %w", err)
	}

	if err := client.Dial(ctx); err != nil {
		return fmt.Errorf("dial sensor stream: %w", err)
	}

	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			log.WarnContext(ctx, "close stream failed", "error", closeErr)
		}
	}()

	log.InfoContext(ctx, "streaming sensor readings", "base_url", gw.BaseURL())

	for reading := range client.Readings() {
		fmt.Printf("%s  temperature=%.1f  humidity=%.1f  obstacle=%t\n",
			reading.Timestamp.Format(time.RFC3339), reading.Temperature, reading.Humidity, reading.Obstacle)
	}

	if dropped := client.Dropped(); dropped > 0 {
		log.WarnContext(ctx, "readings dropped", "count", dropped)
	}

	if err := client.Err(); err != nil {
		return fmt.Errorf("sensor stream ended: %w", err)
	}

	return nil
}
