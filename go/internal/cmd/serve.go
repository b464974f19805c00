package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/excon/go/internal/exercise"
	"github.com/mcdev12/excon/go/internal/exercise/clock"
	"github.com/mcdev12/excon/go/internal/exercise/gateway"
	"github.com/mcdev12/excon/go/internal/exercise/metrics"
	"github.com/mcdev12/excon/go/internal/exercise/store"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func serveCmd(config *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the controller: master clock, command API and window gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, config)
		},
	}
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func runServe(ctx context.Context, config *Config) error {
	reg := newRegistry()
	m := metrics.NewPrometheus(reg)

	layer, err := openSync(ctx, config, m)
	if err != nil {
		return err
	}
	defer layer.Close()
	bus := layer.Bus

	// Wire up: store → app → command service, with the bus and gateway as store listeners
	st := store.New(store.WithDerivationObserver(m.RecordDerivation))
	app := exercise.NewApp(st)
	if config.Clock.RestoreOnStart {
		app.Hydrate(ctx, bus)
	}
	if err := seedMetadata(ctx, app, config.Exercise); err != nil {
		return err
	}

	gw := gateway.NewService(gateway.DefaultConnectionConfig(), func() (models.DashboardSnapshot, bool) {
		return app.Snapshot(), true
	}, m)
	runner := clock.NewRunner(st, clock.WithPeriod(config.Clock.Period), clock.WithMetrics(m))

	detach := app.Connect(ctx, bus, gw.Push, func(models.DashboardSnapshot) { runner.Wake() })
	defer detach()

	// Displays that started first converge on the hydrated state.
	bus.Publish(ctx, app.Snapshot())

	go gw.Start(ctx)
	go runner.Run(ctx)

	mux := http.NewServeMux()
	exercise.NewService(app).RegisterRoutes(mux)
	mux.Handle(exercise.NewCommandService(app).Handler())
	gw.RegisterRoutes(mux)
	server := setupServer(config.Server, mux, reg, layer.healthChecker())

	log.Info().
		Str("port", config.Server.Port).
		Str("deployment", config.Sync.Deployment).
		Dur("tick_period", config.Clock.Period).
		Msg("starting exercise controller")

	if err := runServer(ctx, server, config.Server.ShutdownTimeout); err != nil {
		return err
	}
	log.Info().Msg("exercise controller shutdown complete")
	return nil
}

// seedMetadata fills metadata fields the checkpoint left empty from the config file.
func seedMetadata(ctx context.Context, app *exercise.App, seed ExerciseConfig) error {
	snap := app.Snapshot()
	var upd exercise.MetadataUpdate
	if snap.ExerciseName == "" && seed.Name != "" {
		upd.ExerciseName = &seed.Name
	}
	if snap.ControllerName == "" && seed.ControllerName != "" {
		upd.ControllerName = &seed.ControllerName
	}
	if snap.ExerciseFinishTime == "" && seed.FinishTime != "" {
		upd.ExerciseFinishTime = &seed.FinishTime
	}
	if upd == (exercise.MetadataUpdate{}) {
		return nil
	}
	if _, err := app.UpdateMetadata(exercise.WithActor(ctx, "config"), upd); err != nil {
		return fmt.Errorf("invalid exercise config: %w", err)
	}
	return nil
}
