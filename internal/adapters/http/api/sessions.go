package api

import (
	"net/http"
	"time"

	"github.com/okian/pitwall/internal/domain/model"
)

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

type createSessionRequest struct {
	VehicleID int    `json:"vehicle_id"`
	RaceName  string `json:"race_name"`
}

type sessionResponse struct {
	SessionID       string     `json:"session_id"`
	VehicleID       int        `json:"vehicle_id"`
	RaceName        string     `json:"race_name"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
	PredictionCount int        `json:"prediction_count"`
}

func toSessionResponse(s model.Session) sessionResponse {
	return sessionResponse{
		SessionID:       s.ID,
		VehicleID:       s.VehicleID,
		RaceName:        s.Name,
		Status:          string(s.Status),
		CreatedAt:       s.CreatedAt,
		ClosedAt:        s.ClosedAt,
		PredictionCount: s.PredictionCount(),
	}
}

type predictionsResponse struct {
	SessionID   string                   `json:"session_id"`
	Count       int                      `json:"count"`
	Predictions []model.PredictionRecord `json:"predictions"`
}

// HandleCreate handles POST /api/session/create.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req createSessionRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	s, err := h.deps.CreateSession(r.Context(), req.VehicleID, req.RaceName)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(s))
}

// HandleGet handles GET /api/session/{id}.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// HandleClose handles POST /api/session/{id}/close. Closing twice returns 200 both times.
func (h *SessionHandler) HandleClose(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.CloseSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// HandlePredictions handles GET /api/session/{id}/predictions.
func (h *SessionHandler) HandlePredictions(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	history, err := h.deps.ListPredictions(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, predictionsResponse{SessionID: id, Count: len(history), Predictions: history})
}
