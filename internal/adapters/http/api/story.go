package api

import (
	"errors"
	"net/http"

	"github.com/okian/pitwall/internal/domain/types"
)

// StoryHandler handles race narrative requests.
type StoryHandler struct {
	deps StoryDependencies
}

// NewStoryHandler creates a new story handler.
func NewStoryHandler(deps StoryDependencies) *StoryHandler {
	return &StoryHandler{deps: deps}
}

// HandleSessionStory handles POST /api/session/{id}/story. The body is optional.
func (h *StoryHandler) HandleSessionStory(w http.ResponseWriter, r *http.Request) {
	const op = "api.session_story"
	var req types.SessionStoryRequest
	if err := decodeJSON(r, op, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeDomainError(w, err)
		return
	}
	st, err := h.deps.SessionStory(r.Context(), r.PathValue("id"), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRaceStory handles POST /api/race/story.
func (h *StoryHandler) HandleRaceStory(w http.ResponseWriter, r *http.Request) {
	const op = "api.race_story"
	var req types.RaceStoryRequest
	if err := decodeJSON(r, op, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	st, err := h.deps.ComposeStory(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
