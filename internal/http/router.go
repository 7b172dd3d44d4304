package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"realtime-voting/internal/domain/poll"
	"realtime-voting/internal/domain/vote"
	"realtime-voting/internal/platform/session"
	"realtime-voting/internal/pubsub"
	"realtime-voting/internal/worker"
)

type Handler struct {
	pollSvc  *poll.Service
	voteSvc  *vote.Service
	sessions *session.Manager
	bus      *pubsub.Bus
	voteCh   chan<- worker.VoteEvent
	db       *sql.DB
}

func NewRouter(
	pollSvc *poll.Service,
	voteSvc *vote.Service,
	sessions *session.Manager,
	bus *pubsub.Bus,
	voteCh chan<- worker.VoteEvent,
	db *sql.DB,
) http.Handler {
	h := &Handler{
		pollSvc:  pollSvc,
		voteSvc:  voteSvc,
		sessions: sessions,
		bus:      bus,
		voteCh:   voteCh,
		db:       db,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// The result stream route stays outside the request timeout:
		// the websocket lives as long as the client does.
		r.Get("/polls/{id}/results", h.handleResultStream)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(60 * time.Second))

			r.Post("/polls", h.handleCreatePoll)
			r.Get("/polls/{id}", h.handleGetPoll)
			r.Get("/polls/{id}/tally", h.handleTally)
			r.With(RateLimitVotes(rate.Every(time.Second/10), 5)).Post("/polls/{id}/votes", h.handleCastVote)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not configured",
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
