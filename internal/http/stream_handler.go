package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"realtime-voting/internal/metrics"
	"realtime-voting/internal/platform/apperr"
	"realtime-voting/internal/stream"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Streams carry no credentials and are read-only; any origin
		// may watch results.
		return true
	},
}

// @Summary     Stream live poll results
// @Description Upgrades to a websocket and pushes a tally snapshot after every accepted vote.
// @Tags        polls
// @Param       id   path  string  true  "Poll ID"
// @Success     101
// @Failure     404  {object}  map[string]string  "poll not found"
// @Router      /api/v1/polls/{id}/results [get]
func (h *Handler) handleResultStream(w http.ResponseWriter, r *http.Request) {
	pollID := chi.URLParam(r, "id")

	ok, err := h.pollSvc.Exists(r.Context(), pollID)
	if err != nil {
		errorResponse(w, err)
		return
	}
	if !ok {
		errorResponse(w, apperr.NotFound("poll_not_found", "poll not found", nil))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		slog.Warn("websocket upgrade failed", "poll_id", pollID, "error", err)
		return
	}

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	sess := stream.New(conn, h.bus.Subscribe(pollID))
	sess.Run(r.Context())
}
