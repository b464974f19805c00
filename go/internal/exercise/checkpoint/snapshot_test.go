package checkpoint

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/mcdev12/excon/go/internal/models"
)

func sampleSnapshot() models.DashboardSnapshot {
	return models.DashboardSnapshot{
		ExerciseName:       "Harbour Drill",
		ControllerName:     "Alex",
		ExerciseFinishTime: "16:30:00",
		CurrentSeconds:     125,
		IsRunning:          true,
		Injects: []models.Inject{{
			ID: "i-1", Number: 1, Title: "Evac order", DueSeconds: 5,
			Type: models.InjectTypeRadioPhone, Status: models.InjectStatusMissed,
			To: "Sector 4", From: "EOC", AudioName: "evac.mp3", AutoPlayAudio: true,
		}},
		Resources: []models.Resource{{
			ID: "r-1", Label: "Engine 1", ETASeconds: 600,
			Status: models.ResourceStatusEnroute, Kind: models.ResourceKindVehicle,
		}},
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	ctx := context.Background()
	backends := map[string]KV{
		"memory": NewMemoryStore(),
		"sqlite": newTestSQLite(t),
	}
	for name, kv := range backends {
		t.Run(name, func(t *testing.T) {
			for _, want := range []models.DashboardSnapshot{sampleSnapshot(), {}} {
				if !SaveSnapshot(ctx, kv, "controller", "excon.dashboard.state", want) {
					t.Fatalf("save failed")
				}
				got := ReadSnapshot(ctx, kv, "excon.dashboard.state")
				if got == nil {
					t.Fatalf("read returned nil after save")
				}
				if diff := cmp.Diff(want, *got, cmpopts.EquateEmpty()); diff != "" {
					t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestReadSnapshot_MissingOrCorrupt(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	if got := ReadSnapshot(ctx, kv, "excon.dashboard.state"); got != nil {
		t.Fatalf("missing key read as %+v", got)
	}
	_ = kv.Set(ctx, "controller", "excon.dashboard.state", []byte("{not json"))
	if got := ReadSnapshot(ctx, kv, "excon.dashboard.state"); got != nil {
		t.Fatalf("corrupt key read as %+v", got)
	}
}

func TestReadSnapshot_NormalizesNullLists(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()
	_ = kv.Set(ctx, "controller", "k", []byte(`{"exercise_name":"x","injects":null}`))

	got := ReadSnapshot(ctx, kv, "k")
	if got == nil || got.Injects == nil || got.Resources == nil {
		t.Fatalf("lists should be non-nil: %+v", got)
	}
}
