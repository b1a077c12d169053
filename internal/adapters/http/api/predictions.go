package api

import (
	"net/http"
	"strings"

	"github.com/okian/pitwall/internal/domain/types"
)

const idempotencyHeader = "Idempotency-Key"

// PredictionHandler handles telemetry submissions.
type PredictionHandler struct {
	deps PredictionDependencies
}

// NewPredictionHandler creates a new prediction handler.
func NewPredictionHandler(deps PredictionDependencies) *PredictionHandler {
	return &PredictionHandler{deps: deps}
}

type duplicateResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	SessionID string `json:"session_id"`
	Lap       int    `json:"lap"`
}

// handle returns the handler for POST /api/predict/{task}.
func (h *PredictionHandler) handle(task types.Task) http.HandlerFunc {
	op := "api.predict_" + string(task)
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.PredictionRequest
		if err := decodeJSON(r, op, &req); err != nil {
			writeDomainError(w, err)
			return
		}
		req.Task = task
		if req.RequestID == "" {
			req.RequestID = strings.TrimSpace(r.Header.Get(idempotencyHeader))
		}

		res, err := h.deps.Predict(r.Context(), req)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if res.Duplicate {
			writeJSON(w, http.StatusOK, duplicateResponse{
				Status:    "duplicate",
				Duplicate: true,
				SessionID: res.SessionID,
				Lap:       res.Lap,
			})
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
