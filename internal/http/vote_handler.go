package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"realtime-voting/internal/domain/vote"
	"realtime-voting/internal/platform/apperr"
	"realtime-voting/internal/worker"
)

type castVoteRequest struct {
	OptionID string `json:"option_id"`
}

type castVoteResponse struct {
	Outcome          string `json:"outcome"`
	PreviousOptionID string `json:"previous_option_id,omitempty"`
}

// @Summary     Cast or change a vote
// @Tags        votes
// @Accept      json
// @Produce     json
// @Param       id       path      string           true  "Poll ID"
// @Param       request  body      castVoteRequest  true  "Vote payload"
// @Success     201      {object}  castVoteResponse
// @Failure     400      {object}  map[string]string  "invalid body or option"
// @Failure     404      {object}  map[string]string  "poll not found"
// @Failure     409      {object}  map[string]string  "already voted for this option"
// @Failure     503      {object}  map[string]string  "vote storage unavailable"
// @Router      /api/v1/polls/{id}/votes [post]
func (h *Handler) handleCastVote(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, apperr.BadRequest("invalid_input", "invalid body", err))
		return
	}
	if req.OptionID == "" {
		errorResponse(w, apperr.BadRequest("invalid_input", "option_id is required", nil))
		return
	}

	sessionID, isNew := h.sessions.Resolve(r)
	if isNew {
		if err := h.sessions.Issue(w, sessionID); err != nil {
			errorResponse(w, err)
			return
		}
	}

	res, err := h.voteSvc.Cast(r.Context(), pollID, sessionID, req.OptionID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	select {
	case h.voteCh <- worker.VoteEvent{PollID: pollID, OptionID: req.OptionID, Outcome: res.Outcome.String()}:
	default:
		slog.Debug("vote event channel full, dropping stats event", "poll_id", pollID)
	}

	if res.Outcome == vote.OutcomeDuplicate {
		errorResponse(w, apperr.Conflict("already_voted", "session already voted for this option", nil))
		return
	}

	writeJSON(w, http.StatusCreated, castVoteResponse{
		Outcome:          res.Outcome.String(),
		PreviousOptionID: res.PreviousOptionID,
	})
}

// @Summary     Current tally for a poll
// @Tags        polls
// @Produce     json
// @Param       id   path      string  true  "Poll ID"
// @Success     200  {object}  vote.TallySnapshot
// @Failure     404  {object}  map[string]string  "poll not found"
// @Failure     503  {object}  map[string]string  "vote storage unavailable"
// @Router      /api/v1/polls/{id}/tally [get]
func (h *Handler) handleTally(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	counts, err := h.voteSvc.Tally(r.Context(), pollID)
	if err != nil {
		errorResponse(w, err)
		return
	}

	writeJSON(w, http.StatusOK, vote.TallySnapshot{PollID: pollID, Counts: counts})
}
