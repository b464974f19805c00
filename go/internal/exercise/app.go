// Package exercise is the controller application: it runs commands against the store and
// forwards every committed snapshot to the sync layer and attached windows.
package exercise

import (
	"context"
	"fmt"

	"github.com/mcdev12/excon/go/internal/exercise/store"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Publisher is what the app needs from the sync layer
type Publisher interface {
	Publish(ctx context.Context, snap models.DashboardSnapshot)
}

// SnapshotReader reads the durable checkpoint
type SnapshotReader interface {
	ReadLast(ctx context.Context) *models.DashboardSnapshot
}

// MetadataUpdate carries optional metadata edits. Nil fields are left alone.
type MetadataUpdate = store.MetadataUpdate

// App handles exercise commands
type App struct {
	store *store.Store
}

// NewApp creates a new exercise App
func NewApp(st *store.Store) *App {
	return &App{store: st}
}

// Connect publishes every committed snapshot with pub, then hands it to each sink in
// order. It returns a function that detaches them.
func (a *App) Connect(ctx context.Context, pub Publisher, sinks ...func(models.DashboardSnapshot)) func() {
	return a.store.Subscribe(func(snap models.DashboardSnapshot) {
		if pub != nil {
			pub.Publish(ctx, snap)
		}
		for _, sink := range sinks {
			sink(snap)
		}
	})
}

// Hydrate restores the store from the checkpoint. The restored clock is stopped.
func (a *App) Hydrate(ctx context.Context, reader SnapshotReader) bool {
	snap := reader.ReadLast(ctx)
	if snap == nil {
		log.Info().Msg("no checkpoint to restore")
		return false
	}
	a.store.Restore(*snap)
	log.Info().
		Str("exercise_name", snap.ExerciseName).
		Int("current_seconds", snap.CurrentSeconds).
		Int("injects", len(snap.Injects)).
		Int("resources", len(snap.Resources)).
		Msg("restored exercise from checkpoint")
	return true
}

// Snapshot returns the current state
func (a *App) Snapshot() models.DashboardSnapshot {
	return a.store.Snapshot()
}

func (a *App) StartClock(ctx context.Context) models.DashboardSnapshot {
	a.store.Start()
	log.Info().Str("actor", ActorFrom(ctx)).Int("current_seconds", a.store.CurrentSeconds()).Msg("clock started")
	return a.store.Snapshot()
}

func (a *App) StopClock(ctx context.Context) models.DashboardSnapshot {
	a.store.Stop()
	log.Info().Str("actor", ActorFrom(ctx)).Int("current_seconds", a.store.CurrentSeconds()).Msg("clock stopped")
	return a.store.Snapshot()
}

func (a *App) ResetClock(ctx context.Context) models.DashboardSnapshot {
	a.store.Reset()
	log.Info().Str("actor", ActorFrom(ctx)).Msg("clock reset")
	return a.store.Snapshot()
}

// SetClockTime jumps the clock to an HH:MM:SS value
func (a *App) SetClockTime(ctx context.Context, text string) (models.DashboardSnapshot, error) {
	if err := a.store.SetTime(text); err != nil {
		return models.DashboardSnapshot{}, err
	}
	log.Info().Str("actor", ActorFrom(ctx)).Int("current_seconds", a.store.CurrentSeconds()).Msg("clock set")
	return a.store.Snapshot(), nil
}

// UpdateMetadata applies metadata edits as one update. An invalid finish time leaves
// every field unchanged.
func (a *App) UpdateMetadata(ctx context.Context, upd MetadataUpdate) (models.DashboardSnapshot, error) {
	snap, err := a.store.SetMetadata(upd)
	if err != nil {
		return models.DashboardSnapshot{}, fmt.Errorf("update metadata: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Msg("metadata updated")
	return snap, nil
}

func (a *App) AddInject(ctx context.Context, in store.NewInject) (models.Inject, error) {
	inject, err := a.store.AddInject(in)
	if err != nil {
		return models.Inject{}, fmt.Errorf("add inject: %w", err)
	}
	log.Info().
		Str("actor", ActorFrom(ctx)).
		Str("inject_id", inject.ID).
		Int("number", inject.Number).
		Int("due_seconds", inject.DueSeconds).
		Msg("inject added")
	return inject, nil
}

func (a *App) ImportInjects(ctx context.Context, records []store.NewInject) ([]models.Inject, error) {
	injects, err := a.store.ImportInjects(records)
	if err != nil {
		return nil, fmt.Errorf("import injects: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Int("count", len(injects)).Msg("injects imported")
	return injects, nil
}

func (a *App) UpdateInject(ctx context.Context, id string, upd store.InjectUpdate) (models.Inject, error) {
	inject, err := a.store.UpdateInject(id, upd)
	if err != nil {
		return models.Inject{}, fmt.Errorf("update inject: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("inject_id", id).Msg("inject updated")
	return inject, nil
}

func (a *App) SetInjectDue(ctx context.Context, id, text string) (models.Inject, error) {
	inject, err := a.store.SetInjectDue(id, text)
	if err != nil {
		return models.Inject{}, fmt.Errorf("set inject due: %w", err)
	}
	log.Info().
		Str("actor", ActorFrom(ctx)).
		Str("inject_id", id).
		Int("due_seconds", inject.DueSeconds).
		Msg("inject due time changed")
	return inject, nil
}

func (a *App) ToggleInject(ctx context.Context, id string) (models.Inject, error) {
	inject, err := a.store.ToggleInjectComplete(id)
	if err != nil {
		return models.Inject{}, fmt.Errorf("toggle inject: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("inject_id", id).Str("status", string(inject.Status)).Msg("inject toggled")
	return inject, nil
}

func (a *App) SkipInject(ctx context.Context, id string) (models.Inject, error) {
	inject, err := a.store.SkipInject(id)
	if err != nil {
		return models.Inject{}, fmt.Errorf("skip inject: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("inject_id", id).Msg("inject skipped")
	return inject, nil
}

func (a *App) DeleteInject(ctx context.Context, id string) error {
	if err := a.store.DeleteInject(id); err != nil {
		return fmt.Errorf("delete inject: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("inject_id", id).Msg("inject deleted")
	return nil
}

func (a *App) AddResource(ctx context.Context, in store.NewResource) (models.Resource, error) {
	res, err := a.store.AddResource(in)
	if err != nil {
		return models.Resource{}, fmt.Errorf("add resource: %w", err)
	}
	log.Info().
		Str("actor", ActorFrom(ctx)).
		Str("resource_id", res.ID).
		Int("eta_seconds", res.ETASeconds).
		Msg("resource requested")
	return res, nil
}

func (a *App) ImportResources(ctx context.Context, records []store.ResourceRecord) ([]models.Resource, error) {
	resources, err := a.store.ImportResources(records)
	if err != nil {
		return nil, fmt.Errorf("import resources: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Int("count", len(resources)).Msg("resources imported")
	return resources, nil
}

func (a *App) SetResourceStatus(ctx context.Context, id string, status models.ResourceStatus) (models.Resource, error) {
	res, err := a.store.SetResourceStatus(id, status)
	if err != nil {
		return models.Resource{}, fmt.Errorf("set resource status: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("resource_id", id).Str("status", string(status)).Msg("resource status changed")
	return res, nil
}

func (a *App) SetResourceETA(ctx context.Context, id, text string) (models.Resource, error) {
	res, err := a.store.SetResourceETA(id, text)
	if err != nil {
		return models.Resource{}, fmt.Errorf("set resource eta: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("resource_id", id).Int("eta_seconds", res.ETASeconds).Msg("resource eta changed")
	return res, nil
}

func (a *App) DeleteResource(ctx context.Context, id string) error {
	if err := a.store.DeleteResource(id); err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	log.Info().Str("actor", ActorFrom(ctx)).Str("resource_id", id).Msg("resource deleted")
	return nil
}

// Wipe clears the whole exercise
func (a *App) Wipe(ctx context.Context) models.DashboardSnapshot {
	a.store.Wipe()
	log.Warn().Str("actor", ActorFrom(ctx)).Msg("exercise wiped")
	return a.store.Snapshot()
}
