package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/excon/go/internal/exercise/broadcast"
	"github.com/mcdev12/excon/go/internal/exercise/gateway"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func displayCmd(config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "display",
		Short: "Run a read-only display that mirrors the controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDisplay(ctx, config)
		},
	}
}

// runDisplay never ticks; it only renders what the controller publishes.
func runDisplay(ctx context.Context, config *Config) error {
	reg := newRegistry()
	m := metrics.NewPrometheus(reg)

	layer, err := openSync(ctx, config, m)
	if err != nil {
		return err
	}
	defer layer.Close()
	bus := layer.Bus

	mirror := broadcast.NewMirror()
	gw := gateway.NewService(gateway.DefaultConnectionConfig(), mirror.Snapshot, m)
	unmirror := mirror.Subscribe(gw.Push)
	defer unmirror()

	unsubscribe, err := bus.Follow(ctx, mirror)
	if err != nil {
		return fmt.Errorf("failed to subscribe to sync updates: %w", err)
	}
	defer unsubscribe()

	go gw.Start(ctx)

	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)
	server := setupServer(config.Server, mux, reg, layer.healthChecker())

	log.Info().
		Str("port", config.Server.Port).
		Str("deployment", config.Sync.Deployment).
		Msg("starting exercise display")

	if err := runServer(ctx, server, config.Server.ShutdownTimeout); err != nil {
		return err
	}
	log.Info().Msg("exercise display shutdown complete")
	return nil
}
