package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"realtime-voting/internal/domain/poll"
	"realtime-voting/internal/platform/apperr"
)

type createPollRequest struct {
	Title   string   `json:"title"`
	Options []string `json:"options"`
}

type pollResponse struct {
	Poll    *poll.Poll    `json:"poll"`
	Options []poll.Option `json:"options"`
}

// @Summary     Create a poll
// @Tags        polls
// @Accept      json
// @Produce     json
// @Param       request  body      createPollRequest  true  "Poll payload"
// @Success     201      {object}  map[string]string
// @Failure     400      {object}  map[string]string  "invalid body"
// @Failure     500      {object}  map[string]string  "server error"
// @Router      /api/v1/polls [post]
func (h *Handler) handleCreatePoll(w http.ResponseWriter, r *http.Request) {
	var req createPollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}

	p, _, err := h.pollSvc.Create(r.Context(), req.Title, req.Options)
	if err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", err.Error(), err))
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"poll_id": p.ID})
}

// @Summary     Get a poll with its options
// @Tags        polls
// @Produce     json
// @Param       id   path      string  true  "Poll ID"
// @Success     200  {object}  pollResponse
// @Failure     404  {object}  map[string]string  "not found"
// @Failure     500  {object}  map[string]string  "server error"
// @Router      /api/v1/polls/{id} [get]
func (h *Handler) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	p, opts, err := h.pollSvc.Get(r.Context(), pollID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, pollResponse{Poll: p, Options: opts})
}
