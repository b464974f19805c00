package exercise

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"github.com/mcdev12/excon/go/internal/exercise/gateway"
	"github.com/mcdev12/excon/go/internal/exercise/store"
	"github.com/mcdev12/excon/go/internal/models"
)

func newCommandServer(t *testing.T) (*App, string) {
	t.Helper()
	app, _ := newTestApp(t)
	mux := http.NewServeMux()
	mux.Handle(NewCommandService(app).Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return app, srv.URL
}

func call[Req, Res any](t *testing.T, baseURL, procedure string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, baseURL+procedure, connect.WithCodec(JSONCodec{}))
	req := connect.NewRequest(msg)
	req.Header().Set(gateway.ActorHeader, "rpc-controller")
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func TestCommandService_Clock(t *testing.T) {
	app, url := newCommandServer(t)

	snap, err := call[ClockTimeRequest, models.DashboardSnapshot](t, url, SetClockTimeProcedure, &ClockTimeRequest{Time: "00:05:00"})
	if err != nil {
		t.Fatalf("set clock: %v", err)
	}
	if snap.CurrentSeconds != 300 {
		t.Fatalf("current seconds = %d", snap.CurrentSeconds)
	}

	snap, err = call[Empty, models.DashboardSnapshot](t, url, StartClockProcedure, &Empty{})
	if err != nil {
		t.Fatalf("start clock: %v", err)
	}
	if !snap.IsRunning || !app.Snapshot().IsRunning {
		t.Fatalf("clock not running after start")
	}

	snap, err = call[Empty, models.DashboardSnapshot](t, url, GetStateProcedure, &Empty{})
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if snap.CurrentSeconds != 300 {
		t.Fatalf("state current seconds = %d", snap.CurrentSeconds)
	}
}

func TestCommandService_Injects(t *testing.T) {
	app, url := newCommandServer(t)
	ctx := context.Background()
	if _, err := app.AddInject(ctx, store.NewInject{Title: "Evacuation order", DueSeconds: 300, Type: models.InjectTypeRadioPhone}); err != nil {
		t.Fatalf("add inject: %v", err)
	}

	inj, err := call[ItemTimeRequest, models.Inject](t, url, SetInjectDueProcedure, &ItemTimeRequest{ID: "id-1", Time: "00:10:00"})
	if err != nil {
		t.Fatalf("set due: %v", err)
	}
	if inj.DueSeconds != 600 {
		t.Fatalf("due seconds = %d", inj.DueSeconds)
	}

	inj, err = call[ItemRequest, models.Inject](t, url, ToggleInjectProcedure, &ItemRequest{ID: "id-1"})
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if inj.Status != models.InjectStatusCompleted {
		t.Fatalf("status = %s", inj.Status)
	}

	if _, err := call[ItemRequest, Empty](t, url, DeleteInjectProcedure, &ItemRequest{ID: "id-1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := len(app.Snapshot().Injects); n != 0 {
		t.Fatalf("injects left = %d", n)
	}
}

func TestCommandService_ErrorCodes(t *testing.T) {
	app, url := newCommandServer(t)
	ctx := context.Background()
	if _, err := app.AddInject(ctx, store.NewInject{Title: "Evacuation order", DueSeconds: 300, Type: models.InjectTypeRadioPhone}); err != nil {
		t.Fatalf("add inject: %v", err)
	}
	if _, err := app.ToggleInject(ctx, "id-1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}

	tests := []struct {
		name string
		call func() error
		want connect.Code
	}{
		{
			name: "missing inject",
			call: func() error {
				_, err := call[ItemRequest, models.Inject](t, url, ToggleInjectProcedure, &ItemRequest{ID: "nope"})
				return err
			},
			want: connect.CodeNotFound,
		},
		{
			name: "bad clock time",
			call: func() error {
				_, err := call[ClockTimeRequest, models.DashboardSnapshot](t, url, SetClockTimeProcedure, &ClockTimeRequest{Time: "1:2:3:4"})
				return err
			},
			want: connect.CodeInvalidArgument,
		},
		{
			name: "skip completed inject",
			call: func() error {
				_, err := call[ItemRequest, models.Inject](t, url, SkipInjectProcedure, &ItemRequest{ID: "id-1"})
				return err
			},
			want: connect.CodeFailedPrecondition,
		},
		{
			name: "negative eta",
			call: func() error {
				_, err := call[ItemTimeRequest, models.Resource](t, url, SetResourceETAProcedure, &ItemTimeRequest{ID: "nope", Time: "-00:01:00"})
				return err
			},
			want: connect.CodeInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var cerr *connect.Error
			if !errors.As(err, &cerr) {
				t.Fatalf("err = %v, want a connect error", err)
			}
			if cerr.Code() != tt.want {
				t.Fatalf("code = %v, want %v", cerr.Code(), tt.want)
			}
		})
	}
}

func TestCommandService_CarriesActor(t *testing.T) {
	var seen string
	app := &actorRecordingApp{App: func() *App { a, _ := newTestApp(t); return a }(), seen: &seen}
	mux := http.NewServeMux()
	mux.Handle(NewCommandService(app).Handler())
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	if _, err := call[Empty, models.DashboardSnapshot](t, srv.URL, StopClockProcedure, &Empty{}); err != nil {
		t.Fatalf("stop clock: %v", err)
	}
	if seen != "rpc-controller" {
		t.Fatalf("actor = %q", seen)
	}
}

type actorRecordingApp struct {
	*App
	seen *string
}

func (a *actorRecordingApp) StopClock(ctx context.Context) models.DashboardSnapshot {
	*a.seen = ActorFrom(ctx)
	return a.App.StopClock(ctx)
}
