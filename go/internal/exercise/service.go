package exercise

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mcdev12/excon/go/internal/exercise/gateway"
	"github.com/mcdev12/excon/go/internal/exercise/store"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 8 << 20 // inject audio travels as data URLs

// ExerciseApp defines what the service layer needs from the exercise application
type ExerciseApp interface {
	Snapshot() models.DashboardSnapshot
	StartClock(ctx context.Context) models.DashboardSnapshot
	StopClock(ctx context.Context) models.DashboardSnapshot
	ResetClock(ctx context.Context) models.DashboardSnapshot
	SetClockTime(ctx context.Context, text string) (models.DashboardSnapshot, error)
	UpdateMetadata(ctx context.Context, upd MetadataUpdate) (models.DashboardSnapshot, error)
	AddInject(ctx context.Context, in store.NewInject) (models.Inject, error)
	ImportInjects(ctx context.Context, records []store.NewInject) ([]models.Inject, error)
	UpdateInject(ctx context.Context, id string, upd store.InjectUpdate) (models.Inject, error)
	SetInjectDue(ctx context.Context, id, text string) (models.Inject, error)
	ToggleInject(ctx context.Context, id string) (models.Inject, error)
	SkipInject(ctx context.Context, id string) (models.Inject, error)
	DeleteInject(ctx context.Context, id string) error
	AddResource(ctx context.Context, in store.NewResource) (models.Resource, error)
	ImportResources(ctx context.Context, records []store.ResourceRecord) ([]models.Resource, error)
	SetResourceStatus(ctx context.Context, id string, status models.ResourceStatus) (models.Resource, error)
	SetResourceETA(ctx context.Context, id, text string) (models.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	Wipe(ctx context.Context) models.DashboardSnapshot
}

var _ ExerciseApp = (*App)(nil)

// Service exposes the exercise commands over HTTP/JSON
type Service struct {
	app ExerciseApp
}

// NewService creates a new exercise HTTP service
func NewService(app ExerciseApp) *Service {
	return &Service{app: app}
}

// RegisterRoutes registers the command API under /api
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.GetState)

	mux.HandleFunc("POST /api/clock/start", s.StartClock)
	mux.HandleFunc("POST /api/clock/stop", s.StopClock)
	mux.HandleFunc("POST /api/clock/reset", s.ResetClock)
	mux.HandleFunc("PUT /api/clock/time", s.SetClockTime)

	mux.HandleFunc("PATCH /api/meta", s.UpdateMetadata)

	mux.HandleFunc("POST /api/injects", s.AddInject)
	mux.HandleFunc("POST /api/injects/import", s.ImportInjects)
	mux.HandleFunc("PATCH /api/injects/{id}", s.UpdateInject)
	mux.HandleFunc("PUT /api/injects/{id}/due", s.SetInjectDue)
	mux.HandleFunc("POST /api/injects/{id}/toggle", s.ToggleInject)
	mux.HandleFunc("POST /api/injects/{id}/skip", s.SkipInject)
	mux.HandleFunc("DELETE /api/injects/{id}", s.DeleteInject)

	mux.HandleFunc("POST /api/resources", s.AddResource)
	mux.HandleFunc("POST /api/resources/import", s.ImportResources)
	mux.HandleFunc("PUT /api/resources/{id}/status", s.SetResourceStatus)
	mux.HandleFunc("PUT /api/resources/{id}/eta", s.SetResourceETA)
	mux.HandleFunc("DELETE /api/resources/{id}", s.DeleteResource)

	mux.HandleFunc("POST /api/wipe", s.Wipe)
	log.Info().Msg("exercise routes registered")
}

type timeRequest struct {
	Time string `json:"time"`
}

type statusRequest struct {
	Status models.ResourceStatus `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

func (s *Service) StartClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.StartClock(requestContext(r)))
}

func (s *Service) StopClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.StopClock(requestContext(r)))
}

func (s *Service) ResetClock(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.ResetClock(requestContext(r)))
}

func (s *Service) SetClockTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := s.app.SetClockTime(requestContext(r), req.Time)
	respond(w, http.StatusOK, snap, err)
}

func (s *Service) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var req MetadataUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := s.app.UpdateMetadata(requestContext(r), req)
	respond(w, http.StatusOK, snap, err)
}

func (s *Service) AddInject(w http.ResponseWriter, r *http.Request) {
	var req store.NewInject
	if !decodeBody(w, r, &req) {
		return
	}
	inject, err := s.app.AddInject(requestContext(r), req)
	respond(w, http.StatusCreated, inject, err)
}

func (s *Service) ImportInjects(w http.ResponseWriter, r *http.Request) {
	var req []store.NewInject
	if !decodeBody(w, r, &req) {
		return
	}
	injects, err := s.app.ImportInjects(requestContext(r), req)
	respond(w, http.StatusCreated, injects, err)
}

func (s *Service) UpdateInject(w http.ResponseWriter, r *http.Request) {
	var req store.InjectUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	inject, err := s.app.UpdateInject(requestContext(r), r.PathValue("id"), req)
	respond(w, http.StatusOK, inject, err)
}

func (s *Service) SetInjectDue(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	inject, err := s.app.SetInjectDue(requestContext(r), r.PathValue("id"), req.Time)
	respond(w, http.StatusOK, inject, err)
}

func (s *Service) ToggleInject(w http.ResponseWriter, r *http.Request) {
	inject, err := s.app.ToggleInject(requestContext(r), r.PathValue("id"))
	respond(w, http.StatusOK, inject, err)
}

func (s *Service) SkipInject(w http.ResponseWriter, r *http.Request) {
	inject, err := s.app.SkipInject(requestContext(r), r.PathValue("id"))
	respond(w, http.StatusOK, inject, err)
}

func (s *Service) DeleteInject(w http.ResponseWriter, r *http.Request) {
	err := s.app.DeleteInject(requestContext(r), r.PathValue("id"))
	respondNoContent(w, err)
}

func (s *Service) AddResource(w http.ResponseWriter, r *http.Request) {
	var req store.NewResource
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.app.AddResource(requestContext(r), req)
	respond(w, http.StatusCreated, res, err)
}

func (s *Service) ImportResources(w http.ResponseWriter, r *http.Request) {
	var req []store.ResourceRecord
	if !decodeBody(w, r, &req) {
		return
	}
	resources, err := s.app.ImportResources(requestContext(r), req)
	respond(w, http.StatusCreated, resources, err)
}

func (s *Service) SetResourceStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.app.SetResourceStatus(requestContext(r), r.PathValue("id"), req.Status)
	respond(w, http.StatusOK, res, err)
}

func (s *Service) SetResourceETA(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.app.SetResourceETA(requestContext(r), r.PathValue("id"), req.Time)
	respond(w, http.StatusOK, res, err)
}

func (s *Service) DeleteResource(w http.ResponseWriter, r *http.Request) {
	err := s.app.DeleteResource(requestContext(r), r.PathValue("id"))
	respondNoContent(w, err)
}

func (s *Service) Wipe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Wipe(requestContext(r)))
}

func requestContext(r *http.Request) context.Context {
	return WithActor(r.Context(), gateway.ActorFrom(r))
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

// statusFor maps store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTime), errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respond(w http.ResponseWriter, status int, v any, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status, v)
}

func respondNoContent(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("command failed")
	} else {
		log.Debug().Err(err).Int("status", status).Msg("command rejected")
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}
