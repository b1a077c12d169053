// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/types"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SessionDependencies
	PredictionDependencies
	StoryDependencies
	HealthDependencies
}

// SessionDependencies covers session lifecycle operations.
type SessionDependencies interface {
	CreateSession(ctx context.Context, vehicleID int, name string) (model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	CloseSession(ctx context.Context, id string) (model.Session, error)
	ListPredictions(ctx context.Context, id string) ([]model.PredictionRecord, error)
}

// PredictionDependencies runs a submission through preprocessing and inference.
type PredictionDependencies interface {
	Predict(ctx context.Context, req types.PredictionRequest) (types.PredictionResult, error)
}

// StoryDependencies composes race narratives.
type StoryDependencies interface {
	SessionStory(ctx context.Context, id string, req types.SessionStoryRequest) (types.RaceStory, error)
	ComposeStory(ctx context.Context, req types.RaceStoryRequest) (types.RaceStory, error)
}

// HealthDependencies reports readiness.
type HealthDependencies interface {
	Health(ctx context.Context) types.HealthStatus
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	sessionHandler    *SessionHandler
	predictionHandler *PredictionHandler
	storyHandler      *StoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:     NewHealthHandler(deps),
		statsHandler:      NewStatsHandler(statsProvider),
		sessionHandler:    NewSessionHandler(deps),
		predictionHandler: NewPredictionHandler(deps),
		storyHandler:      NewStoryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleMetrics, "healthz"))
	mux.HandleFunc("GET /health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /api/session/create", MetricsMiddleware(s.sessionHandler.HandleCreate, "session_create"))
	mux.HandleFunc("GET /api/session/{id}", MetricsMiddleware(s.sessionHandler.HandleGet, "session_get"))
	mux.HandleFunc("POST /api/session/{id}/close", MetricsMiddleware(s.sessionHandler.HandleClose, "session_close"))
	mux.HandleFunc("GET /api/session/{id}/predictions", MetricsMiddleware(s.sessionHandler.HandlePredictions, "session_predictions"))
	mux.HandleFunc("POST /api/session/{id}/story", MetricsMiddleware(s.storyHandler.HandleSessionStory, "session_story"))

	mux.HandleFunc("POST /api/predict/lap-time", MetricsMiddleware(s.predictionHandler.handle(types.TaskLapTime), "predict_lap_time"))
	mux.HandleFunc("POST /api/predict/pit", MetricsMiddleware(s.predictionHandler.handle(types.TaskPit), "predict_pit"))
	mux.HandleFunc("POST /api/predict/tire", MetricsMiddleware(s.predictionHandler.handle(types.TaskTire), "predict_tire"))
	mux.HandleFunc("POST /api/predict/all", MetricsMiddleware(s.predictionHandler.handle(types.TaskAll), "predict_all"))

	mux.HandleFunc("POST /api/race/story", MetricsMiddleware(s.storyHandler.HandleRaceStory, "race_story"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps the error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := types.Kind(err)
	switch {
	case errors.Is(err, ErrBadRequest):
		status = http.StatusBadRequest
		code = "bad_request"
	case errors.Is(err, types.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrFeatureMismatch):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, types.ErrModelUnavailable):
		status = http.StatusServiceUnavailable
	default:
		code = "internal_error"
	}
	writeError(w, status, code, err)
}

// decodeJSON reads a single JSON document from the request body.
func decodeJSON(r *http.Request, op string, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return WrapKind(op, ErrBadRequest, errEmptyBody)
		}
		return WrapKind(op, ErrBadRequest, err)
	}
	return nil
}
