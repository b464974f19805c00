package store

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/excon/go/internal/models"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	n := 0
	opts = append([]Option{WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	})}, opts...)
	return New(opts...)
}

func findInject(t *testing.T, snap models.DashboardSnapshot, id string) models.Inject {
	t.Helper()
	for _, inj := range snap.Injects {
		if inj.ID == id {
			return inj
		}
	}
	t.Fatalf("inject %s not in snapshot", id)
	return models.Inject{}
}

func TestStore_ClockStartStopTick(t *testing.T) {
	s := newTestStore(t)

	if s.Tick() {
		t.Fatalf("tick on a stopped clock must not advance")
	}
	if got := s.CurrentSeconds(); got != 0 {
		t.Fatalf("current seconds = %d, want 0", got)
	}

	s.Start()
	s.Start()
	if !s.IsRunning() {
		t.Fatalf("expected running after start")
	}
	for i := 0; i < 3; i++ {
		if !s.Tick() {
			t.Fatalf("tick %d did not advance", i)
		}
	}
	if got := s.CurrentSeconds(); got != 3 {
		t.Fatalf("current seconds = %d, want 3", got)
	}

	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Fatalf("expected stopped")
	}
	s.Tick()
	if got := s.CurrentSeconds(); got != 3 {
		t.Fatalf("stopped clock advanced to %d", got)
	}

	s.Start()
	s.Reset()
	if s.IsRunning() || s.CurrentSeconds() != 0 {
		t.Fatalf("reset should stop the clock at zero, got running=%v seconds=%d", s.IsRunning(), s.CurrentSeconds())
	}
}

func TestStore_ResetKeepsData(t *testing.T) {
	s := newTestStore(t)
	s.SetExerciseName("Harbour Drill")
	if _, err := s.AddInject(NewInject{Title: "Evac order", DueSeconds: 5}); err != nil {
		t.Fatalf("add inject: %v", err)
	}
	if _, err := s.AddResource(NewResource{Label: "Engine 1", Minutes: 10}); err != nil {
		t.Fatalf("add resource: %v", err)
	}
	_ = s.SetSeconds(42)
	s.Reset()

	snap := s.Snapshot()
	if snap.ExerciseName != "Harbour Drill" || len(snap.Injects) != 1 || len(snap.Resources) != 1 {
		t.Fatalf("reset cleared data: %+v", snap)
	}

	s.Wipe()
	snap = s.Snapshot()
	if snap.ExerciseName != "" || len(snap.Injects) != 0 || len(snap.Resources) != 0 || snap.CurrentSeconds != 0 {
		t.Fatalf("wipe left data behind: %+v", snap)
	}
}

func TestStore_EvacOrderScenario(t *testing.T) {
	s := newTestStore(t)
	s.Start()

	first, err := s.AddInject(NewInject{Title: "Evac order", DueSeconds: 5, Status: models.InjectStatusPending})
	if err != nil {
		t.Fatalf("add inject: %v", err)
	}
	for i := 0; i < 6; i++ {
		s.Tick()
	}

	snap := s.Snapshot()
	got := findInject(t, snap, first.ID)
	if got.Status != models.InjectStatusMissed {
		t.Fatalf("status = %s, want MISSED", got.Status)
	}
	if got.Number != 1 {
		t.Fatalf("number = %d, want 1", got.Number)
	}

	second, err := s.AddInject(NewInject{Title: "Road closure", DueSeconds: 2})
	if err != nil {
		t.Fatalf("add inject: %v", err)
	}
	snap = s.Snapshot()
	if n := findInject(t, snap, first.ID).Number; n != 2 {
		t.Fatalf("first inject number = %d, want 2", n)
	}
	if n := findInject(t, snap, second.ID).Number; n != 1 {
		t.Fatalf("second inject number = %d, want 1", n)
	}
}

func TestStore_MissedBoundary(t *testing.T) {
	s := newTestStore(t)
	inj, _ := s.AddInject(NewInject{Title: "Radio check", DueSeconds: 100})

	_ = s.SetSeconds(99)
	s.Start()
	s.Tick()
	if st := findInject(t, s.Snapshot(), inj.ID).Status; st != models.InjectStatusPending {
		t.Fatalf("at 100 status = %s, want PENDING", st)
	}
	s.Tick()
	if st := findInject(t, s.Snapshot(), inj.ID).Status; st != models.InjectStatusMissed {
		t.Fatalf("at 101 status = %s, want MISSED", st)
	}
	_ = s.SetSeconds(0)
	if st := findInject(t, s.Snapshot(), inj.ID).Status; st != models.InjectStatusMissed {
		t.Fatalf("jump back reverted missed to %s", st)
	}
}

func TestStore_SetSecondsJumpForward(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddInject(NewInject{Title: "A", DueSeconds: 10})
	b, _ := s.AddInject(NewInject{Title: "B", DueSeconds: 1000})
	skipped, _ := s.AddInject(NewInject{Title: "C", DueSeconds: 10})
	if _, err := s.SkipInject(skipped.ID); err != nil {
		t.Fatalf("skip: %v", err)
	}

	if err := s.SetTime("00:05:00"); err != nil {
		t.Fatalf("set time: %v", err)
	}
	snap := s.Snapshot()
	if snap.IsRunning {
		t.Fatalf("setting the time must not start the clock")
	}
	if st := findInject(t, snap, a.ID).Status; st != models.InjectStatusMissed {
		t.Fatalf("A status = %s, want MISSED", st)
	}
	if st := findInject(t, snap, b.ID).Status; st != models.InjectStatusPending {
		t.Fatalf("B status = %s, want PENDING", st)
	}
	if st := findInject(t, snap, skipped.ID).Status; st != models.InjectStatusSkipped {
		t.Fatalf("skipped inject changed to %s", st)
	}
}

func TestStore_EngineScenario(t *testing.T) {
	s := newTestStore(t)
	res, err := s.AddResource(NewResource{Label: "Engine 1", Kind: models.ResourceKindVehicle, Minutes: 10})
	if err != nil {
		t.Fatalf("add resource: %v", err)
	}
	if res.ETASeconds != 600 || res.Status != models.ResourceStatusRequested {
		t.Fatalf("unexpected resource %+v", res)
	}

	for _, next := range []models.ResourceStatus{models.ResourceStatusTasked, models.ResourceStatusEnroute} {
		if _, err := s.SetResourceStatus(res.ID, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	_ = s.SetSeconds(599)
	if st := s.Snapshot().Resources[0].Status; st != models.ResourceStatusEnroute {
		t.Fatalf("at 599 status = %s", st)
	}
	_ = s.SetSeconds(600)
	if st := s.Snapshot().Resources[0].Status; st != models.ResourceStatusArrived {
		t.Fatalf("at 600 status = %s, want ARRIVED", st)
	}
	_ = s.SetSeconds(0)
	if st := s.Snapshot().Resources[0].Status; st != models.ResourceStatusArrived {
		t.Fatalf("clock reset reverted arrival to %s", st)
	}
}

func TestStore_AddResourceUsesCurrentClock(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetSeconds(120)
	res, err := s.AddResource(NewResource{Label: "Medic", Minutes: 5})
	if err != nil {
		t.Fatalf("add resource: %v", err)
	}
	if res.ETASeconds != 420 {
		t.Fatalf("eta = %d, want 420", res.ETASeconds)
	}
}

func TestStore_ResourceTransitionRejections(t *testing.T) {
	s := newTestStore(t)
	res, _ := s.AddResource(NewResource{Label: "Tanker", Minutes: 1})

	if _, err := s.SetResourceStatus(res.ID, models.ResourceStatusArrived); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("requested -> arrived err = %v, want ErrInvalidTransition", err)
	}
	if st := s.Snapshot().Resources[0].Status; st != models.ResourceStatusRequested {
		t.Fatalf("rejected transition changed status to %s", st)
	}

	_, _ = s.SetResourceStatus(res.ID, models.ResourceStatusCancelled)
	for _, next := range []models.ResourceStatus{models.ResourceStatusRequested, models.ResourceStatusTasked, models.ResourceStatusEnroute, models.ResourceStatusArrived} {
		if _, err := s.SetResourceStatus(res.ID, next); !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("cancelled -> %s err = %v", next, err)
		}
	}

	if _, err := s.SetResourceStatus("missing", models.ResourceStatusTasked); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing resource err = %v", err)
	}
}

func TestStore_SetResourceETA(t *testing.T) {
	s := newTestStore(t)
	res, _ := s.AddResource(NewResource{Label: "Helicopter", Kind: models.ResourceKindAir, Minutes: 30})

	if _, err := s.SetResourceETA(res.ID, "00:75:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("invalid eta err = %v", err)
	}
	if eta := s.Snapshot().Resources[0].ETASeconds; eta != 1800 {
		t.Fatalf("invalid eta changed value to %d", eta)
	}

	updated, err := s.SetResourceETA(res.ID, "01:00:00")
	if err != nil || updated.ETASeconds != 3600 {
		t.Fatalf("set eta = %+v, %v", updated, err)
	}
}

func TestStore_InjectManualTransitions(t *testing.T) {
	s := newTestStore(t)
	inj, _ := s.AddInject(NewInject{Title: "Media call", DueSeconds: 60, Type: models.InjectTypeRadioPhone})

	got, err := s.ToggleInjectComplete(inj.ID)
	if err != nil || got.Status != models.InjectStatusCompleted {
		t.Fatalf("toggle = %s, %v", got.Status, err)
	}
	if _, err := s.SkipInject(inj.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("skip completed err = %v", err)
	}
	got, err = s.ToggleInjectComplete(inj.ID)
	if err != nil || got.Status != models.InjectStatusPending {
		t.Fatalf("un-complete = %s, %v", got.Status, err)
	}
	got, err = s.SkipInject(inj.ID)
	if err != nil || got.Status != models.InjectStatusSkipped {
		t.Fatalf("skip = %s, %v", got.Status, err)
	}
	if _, err := s.SkipInject(inj.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("second skip err = %v", err)
	}
	if _, err := s.ToggleInjectComplete(inj.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("toggle skipped err = %v", err)
	}
}

func TestStore_DueEditRenumbers(t *testing.T) {
	s := newTestStore(t)
	a, _ := s.AddInject(NewInject{Title: "A", DueSeconds: 10})
	b, _ := s.AddInject(NewInject{Title: "B", DueSeconds: 20})

	if _, err := s.SetInjectDue(a.ID, "bad"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("bad due err = %v", err)
	}
	if _, err := s.SetInjectDue(a.ID, "00:00:30"); err != nil {
		t.Fatalf("set due: %v", err)
	}
	snap := s.Snapshot()
	if findInject(t, snap, a.ID).Number != 2 || findInject(t, snap, b.ID).Number != 1 {
		t.Fatalf("renumber after due edit failed: %+v", snap.Injects)
	}

	if err := s.DeleteInject(b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := findInject(t, s.Snapshot(), a.ID).Number; n != 1 {
		t.Fatalf("number after delete = %d, want 1", n)
	}
	if err := s.DeleteInject(b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete twice err = %v", err)
	}
}

func TestStore_UpdateInject(t *testing.T) {
	s := newTestStore(t)
	inj, _ := s.AddInject(NewInject{Title: "Old", DueSeconds: 10})

	title := "New title"
	to := "Sector 4"
	got, err := s.UpdateInject(inj.ID, InjectUpdate{Title: &title, To: &to})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.To != to || got.DueSeconds != 10 {
		t.Fatalf("unexpected update result %+v", got)
	}

	empty := "  "
	if _, err := s.UpdateInject(inj.ID, InjectUpdate{Title: &empty}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("empty title err = %v", err)
	}
	bogus := models.InjectType("SMOKE_SIGNAL")
	if _, err := s.UpdateInject(inj.ID, InjectUpdate{Type: &bogus}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad type err = %v", err)
	}
}

func TestStore_ImportIsAllOrNothing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ImportInjects([]NewInject{
		{Title: "One", DueSeconds: 30},
		{Title: "", DueSeconds: 10},
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("import err = %v", err)
	}
	if n := len(s.Snapshot().Injects); n != 0 {
		t.Fatalf("failed import added %d injects", n)
	}

	imported, err := s.ImportInjects([]NewInject{
		{Title: "Late", DueSeconds: 30},
		{Title: "Early", DueSeconds: 10},
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported[0].Number != 2 || imported[1].Number != 1 {
		t.Fatalf("imported numbers = %d,%d", imported[0].Number, imported[1].Number)
	}

	resources, err := s.ImportResources([]ResourceRecord{
		{Label: "Bus", Kind: models.ResourceKindVehicle, ETASeconds: 900},
		{Label: "Water", Kind: models.ResourceKindSupply, ETASeconds: 60, Status: models.ResourceStatusEnroute},
	})
	if err != nil || len(resources) != 2 {
		t.Fatalf("import resources = %v, %v", resources, err)
	}
	if _, err := s.ImportResources([]ResourceRecord{{Label: "X", Kind: "SUBMARINE"}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad kind err = %v", err)
	}
}

func TestStore_FinishTimeUsesWallClock(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetFinishTime("25:00:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("25h finish err = %v", err)
	}
	if err := s.SetFinishTime("9:30:00"); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if got := s.Snapshot().ExerciseFinishTime; got != "09:30:00" {
		t.Fatalf("finish = %q", got)
	}
	if err := s.SetFinishTime(""); err != nil || s.Snapshot().ExerciseFinishTime != "" {
		t.Fatalf("clearing finish time failed: %v", err)
	}
}

func TestStore_SetSecondsRejectsNegative(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetSeconds(10)
	if err := s.SetSeconds(-1); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("negative err = %v", err)
	}
	if err := s.SetTime("1:2:3"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("malformed err = %v", err)
	}
	if got := s.CurrentSeconds(); got != 10 {
		t.Fatalf("rejected input changed clock to %d", got)
	}
}

func TestStore_ListenersSeeDerivedState(t *testing.T) {
	var derivedMissed int
	s := newTestStore(t, WithDerivationObserver(func(missed, arrived int) { derivedMissed += missed }))
	inj, _ := s.AddInject(NewInject{Title: "Evac order", DueSeconds: 0})
	s.Start()

	var seen []models.DashboardSnapshot
	unsubscribe := s.Subscribe(func(snap models.DashboardSnapshot) {
		seen = append(seen, snap)
	})

	s.Tick()
	if len(seen) != 1 {
		t.Fatalf("listener calls = %d, want 1", len(seen))
	}
	if seen[0].CurrentSeconds != 1 || findInject(t, seen[0], inj.ID).Status != models.InjectStatusMissed {
		t.Fatalf("listener saw intermediate state: %+v", seen[0])
	}
	if derivedMissed != 1 {
		t.Fatalf("derivation observer missed = %d", derivedMissed)
	}

	unsubscribe()
	unsubscribe()
	s.Tick()
	if len(seen) != 1 {
		t.Fatalf("listener called after unsubscribe")
	}
}

func TestStore_RejectedMutationDoesNotNotify(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	s.Subscribe(func(models.DashboardSnapshot) { calls++ })

	_ = s.SetTime("nope")
	_ = s.DeleteInject("missing")
	s.Stop()
	if calls != 0 {
		t.Fatalf("listener called %d times for rejected or no-op mutations", calls)
	}
}

func TestStore_RestoreStopsClockAndRenumbers(t *testing.T) {
	s := newTestStore(t)
	s.Restore(models.DashboardSnapshot{
		ExerciseName:   "Restored",
		CurrentSeconds: 90,
		IsRunning:      true,
		Injects: []models.Inject{
			{ID: "b", Title: "B", DueSeconds: 200, Number: 1, Status: models.InjectStatusPending},
			{ID: "a", Title: "A", DueSeconds: 100, Number: 9, Status: models.InjectStatusPending},
		},
		Resources: []models.Resource{},
	})
	snap := s.Snapshot()
	if snap.IsRunning {
		t.Fatalf("restored clock should be stopped")
	}
	want := []models.Inject{
		{ID: "a", Title: "A", DueSeconds: 100, Number: 1, Status: models.InjectStatusPending},
		{ID: "b", Title: "B", DueSeconds: 200, Number: 2, Status: models.InjectStatusPending},
	}
	if diff := cmp.Diff(want, snap.Injects); diff != "" {
		t.Fatalf("restored injects mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := newTestStore(t)
	_, _ = s.AddInject(NewInject{Title: "A", DueSeconds: 1})
	snap := s.Snapshot()
	snap.Injects[0].Title = "mutated"
	if s.Snapshot().Injects[0].Title != "A" {
		t.Fatalf("snapshot shares memory with the store")
	}
}

func TestStore_ETAOverflowRejected(t *testing.T) {
	s := newTestStore(t)
	res, _ := s.AddResource(NewResource{Label: "Engine 2", Minutes: 10})
	for _, next := range []models.ResourceStatus{models.ResourceStatusTasked, models.ResourceStatusEnroute} {
		if _, err := s.SetResourceStatus(res.ID, next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}

	if _, err := s.SetResourceETA(res.ID, "3000000000000000:00:00"); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("overflowing eta err = %v, want ErrInvalidTime", err)
	}
	if _, err := s.AddResource(NewResource{Label: "Engine 3", Minutes: math.MaxInt / 30}); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("overflowing minutes err = %v, want ErrInvalidTime", err)
	}

	s.Start()
	s.Tick()
	got := s.Snapshot().Resources
	if len(got) != 1 || got[0].ETASeconds != 600 || got[0].Status != models.ResourceStatusEnroute {
		t.Fatalf("rejected eta reached the state: %+v", got)
	}
}

func TestStore_ManualEditsApplyStatusRules(t *testing.T) {
	s := newTestStore(t)
	_ = s.SetSeconds(300)

	res, _ := s.AddResource(NewResource{Label: "Ambulance", Minutes: 1})
	if _, err := s.SetResourceETA(res.ID, "00:02:00"); err != nil {
		t.Fatalf("set eta: %v", err)
	}
	if _, err := s.SetResourceStatus(res.ID, models.ResourceStatusTasked); err != nil {
		t.Fatalf("tasked: %v", err)
	}
	got, err := s.SetResourceStatus(res.ID, models.ResourceStatusEnroute)
	if err != nil {
		t.Fatalf("enroute: %v", err)
	}
	if got.Status != models.ResourceStatusArrived {
		t.Fatalf("enroute past eta returned %s, want ARRIVED", got.Status)
	}

	imported, err := s.ImportResources([]ResourceRecord{
		{Label: "Water", ETASeconds: 60, Status: models.ResourceStatusEnroute},
		{Label: "Food", ETASeconds: 900, Status: models.ResourceStatusEnroute},
	})
	if err != nil {
		t.Fatalf("import resources: %v", err)
	}
	if imported[0].Status != models.ResourceStatusArrived || imported[1].Status != models.ResourceStatusEnroute {
		t.Fatalf("imported statuses = %s, %s", imported[0].Status, imported[1].Status)
	}

	inj, _ := s.AddInject(NewInject{Title: "Press briefing", DueSeconds: 600})
	moved, err := s.SetInjectDueSeconds(inj.ID, 120)
	if err != nil {
		t.Fatalf("set due: %v", err)
	}
	if moved.Status != models.InjectStatusMissed {
		t.Fatalf("due moved into the past returned %s, want MISSED", moved.Status)
	}

	late, _ := s.AddInject(NewInject{Title: "Late entry", DueSeconds: 10})
	if late.Status != models.InjectStatusMissed {
		t.Fatalf("past-due add returned %s, want MISSED", late.Status)
	}

	snap := s.Snapshot()
	if snap.IsRunning {
		t.Fatalf("clock should still be stopped")
	}
	for _, r := range snap.Resources {
		if r.Status == models.ResourceStatusEnroute && snap.CurrentSeconds >= r.ETASeconds {
			t.Fatalf("resource %s enroute past its eta", r.Label)
		}
	}
	for _, i := range snap.Injects {
		if i.Status == models.InjectStatusPending && snap.CurrentSeconds > i.DueSeconds {
			t.Fatalf("inject %s pending past due", i.Title)
		}
	}
}

func TestStore_SetMetadataSingleCommit(t *testing.T) {
	s := newTestStore(t)
	calls := 0
	s.Subscribe(func(models.DashboardSnapshot) { calls++ })

	name, controller, finish := "Harbour Storm", "J. Doe", "7:15:00"
	snap, err := s.SetMetadata(MetadataUpdate{ExerciseName: &name, ControllerName: &controller, ExerciseFinishTime: &finish})
	if err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	if calls != 1 {
		t.Fatalf("listener calls = %d, want 1", calls)
	}
	if snap.ExerciseName != name || snap.ControllerName != controller || snap.ExerciseFinishTime != "07:15:00" {
		t.Fatalf("snapshot = %+v", snap)
	}

	other, bad := "Other", "24:00:00"
	if _, err := s.SetMetadata(MetadataUpdate{ExerciseName: &other, ExerciseFinishTime: &bad}); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("bad finish err = %v", err)
	}
	if calls != 1 || s.Snapshot().ExerciseName != name {
		t.Fatalf("rejected metadata edit was applied")
	}
}
