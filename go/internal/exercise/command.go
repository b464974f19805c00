package exercise

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/mcdev12/excon/go/internal/exercise/gateway"
	"github.com/mcdev12/excon/go/internal/exercise/store"
	"github.com/mcdev12/excon/go/internal/models"
)

// CommandServiceName is the Connect service the command procedures are mounted under
const CommandServiceName = "excon.v1.CommandService"

// Procedure paths of CommandService
const (
	GetStateProcedure          = "/" + CommandServiceName + "/GetState"
	StartClockProcedure        = "/" + CommandServiceName + "/StartClock"
	StopClockProcedure         = "/" + CommandServiceName + "/StopClock"
	ResetClockProcedure        = "/" + CommandServiceName + "/ResetClock"
	SetClockTimeProcedure      = "/" + CommandServiceName + "/SetClockTime"
	UpdateMetadataProcedure    = "/" + CommandServiceName + "/UpdateMetadata"
	SetInjectDueProcedure      = "/" + CommandServiceName + "/SetInjectDue"
	ToggleInjectProcedure      = "/" + CommandServiceName + "/ToggleInject"
	SkipInjectProcedure        = "/" + CommandServiceName + "/SkipInject"
	DeleteInjectProcedure      = "/" + CommandServiceName + "/DeleteInject"
	SetResourceStatusProcedure = "/" + CommandServiceName + "/SetResourceStatus"
	SetResourceETAProcedure    = "/" + CommandServiceName + "/SetResourceETA"
	DeleteResourceProcedure    = "/" + CommandServiceName + "/DeleteResource"
	WipeProcedure              = "/" + CommandServiceName + "/Wipe"
)

// Empty is the message of procedures that take or return nothing
type Empty struct{}

// ClockTimeRequest sets the exercise clock
type ClockTimeRequest struct {
	Time string `json:"time"`
}

// ItemRequest names one inject or resource
type ItemRequest struct {
	ID string `json:"id"`
}

// ItemTimeRequest moves an inject's due time or a resource's ETA
type ItemTimeRequest struct {
	ID   string `json:"id"`
	Time string `json:"time"`
}

// ResourceStatusRequest sets a resource's status
type ResourceStatusRequest struct {
	ID     string                `json:"id"`
	Status models.ResourceStatus `json:"status"`
}

// JSONCodec lets Connect carry the plain Go message types above as JSON
type JSONCodec struct{}

var _ connect.Codec = JSONCodec{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// CommandService exposes the clock, inject and resource commands as Connect unary
// procedures next to the HTTP/JSON routes.
type CommandService struct {
	app ExerciseApp
}

// NewCommandService creates a new Connect command service
func NewCommandService(app ExerciseApp) *CommandService {
	return &CommandService{app: app}
}

// Handler returns the path prefix and handler to mount on a mux
func (s *CommandService) Handler(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetStateProcedure, unary(GetStateProcedure, func(_ context.Context, _ *Empty) (models.DashboardSnapshot, error) {
		return s.app.Snapshot(), nil
	}, opts...))
	mux.Handle(StartClockProcedure, unary(StartClockProcedure, func(ctx context.Context, _ *Empty) (models.DashboardSnapshot, error) {
		return s.app.StartClock(ctx), nil
	}, opts...))
	mux.Handle(StopClockProcedure, unary(StopClockProcedure, func(ctx context.Context, _ *Empty) (models.DashboardSnapshot, error) {
		return s.app.StopClock(ctx), nil
	}, opts...))
	mux.Handle(ResetClockProcedure, unary(ResetClockProcedure, func(ctx context.Context, _ *Empty) (models.DashboardSnapshot, error) {
		return s.app.ResetClock(ctx), nil
	}, opts...))
	mux.Handle(SetClockTimeProcedure, unary(SetClockTimeProcedure, func(ctx context.Context, req *ClockTimeRequest) (models.DashboardSnapshot, error) {
		return s.app.SetClockTime(ctx, req.Time)
	}, opts...))
	mux.Handle(UpdateMetadataProcedure, unary(UpdateMetadataProcedure, func(ctx context.Context, req *MetadataUpdate) (models.DashboardSnapshot, error) {
		return s.app.UpdateMetadata(ctx, *req)
	}, opts...))

	mux.Handle(SetInjectDueProcedure, unary(SetInjectDueProcedure, func(ctx context.Context, req *ItemTimeRequest) (models.Inject, error) {
		return s.app.SetInjectDue(ctx, req.ID, req.Time)
	}, opts...))
	mux.Handle(ToggleInjectProcedure, unary(ToggleInjectProcedure, func(ctx context.Context, req *ItemRequest) (models.Inject, error) {
		return s.app.ToggleInject(ctx, req.ID)
	}, opts...))
	mux.Handle(SkipInjectProcedure, unary(SkipInjectProcedure, func(ctx context.Context, req *ItemRequest) (models.Inject, error) {
		return s.app.SkipInject(ctx, req.ID)
	}, opts...))
	mux.Handle(DeleteInjectProcedure, unary(DeleteInjectProcedure, func(ctx context.Context, req *ItemRequest) (Empty, error) {
		return Empty{}, s.app.DeleteInject(ctx, req.ID)
	}, opts...))

	mux.Handle(SetResourceStatusProcedure, unary(SetResourceStatusProcedure, func(ctx context.Context, req *ResourceStatusRequest) (models.Resource, error) {
		return s.app.SetResourceStatus(ctx, req.ID, req.Status)
	}, opts...))
	mux.Handle(SetResourceETAProcedure, unary(SetResourceETAProcedure, func(ctx context.Context, req *ItemTimeRequest) (models.Resource, error) {
		return s.app.SetResourceETA(ctx, req.ID, req.Time)
	}, opts...))
	mux.Handle(DeleteResourceProcedure, unary(DeleteResourceProcedure, func(ctx context.Context, req *ItemRequest) (Empty, error) {
		return Empty{}, s.app.DeleteResource(ctx, req.ID)
	}, opts...))

	mux.Handle(WipeProcedure, unary(WipeProcedure, func(ctx context.Context, _ *Empty) (models.DashboardSnapshot, error) {
		return s.app.Wipe(ctx), nil
	}, opts...))

	return "/" + CommandServiceName + "/", mux
}

func unary[Req, Res any](procedure string, fn func(context.Context, *Req) (Res, error), opts ...connect.HandlerOption) *connect.Handler {
	return connect.NewUnaryHandler(procedure, func(ctx context.Context, req *connect.Request[Req]) (*connect.Response[Res], error) {
		ctx = WithActor(ctx, req.Header().Get(gateway.ActorHeader))
		res, err := fn(ctx, req.Msg)
		if err != nil {
			return nil, connectError(err)
		}
		return connect.NewResponse(&res), nil
	}, opts...)
}

func connectError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, store.ErrInvalidTime), errors.Is(err, store.ErrInvalidInput):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, store.ErrInvalidTransition):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
