package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "realtime-voting/docs"
	"realtime-voting/internal/config"
	"realtime-voting/internal/domain/poll"
	"realtime-voting/internal/domain/vote"
	api "realtime-voting/internal/http"
	"realtime-voting/internal/metrics"
	"realtime-voting/internal/platform/database"
	"realtime-voting/internal/platform/session"
	"realtime-voting/internal/pubsub"
	"realtime-voting/internal/repository/postgres"
	"realtime-voting/internal/worker"
)

// @title           Realtime Voting API
// @version         1.0
// @description     Poll voting service with live result streams
// @BasePath        /api/v1
func main() {
	cfg := config.Load()

	metrics.Register()

	db, err := database.NewPostgres(cfg.DB_DSN)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	defer db.Close()

	pollRepo := postgres.NewPollRepo(db)
	voteRepo := postgres.NewVoteRepo(db)

	bus := pubsub.NewBus()

	pollSvc := poll.NewService(pollRepo)
	voteSvc := vote.NewService(voteRepo, pollRepo, bus)

	sessions := session.NewManager(cfg.SessionSecret, "realtime-voting", session.DefaultTTL)

	voteCh := make(chan worker.VoteEvent, 100)
	statsWorker := worker.NewStatsWorker(voteCh)

	router := api.NewRouter(pollSvc, voteSvc, sessions, bus, voteCh, db)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go statsWorker.Run(ctx)

	go func() {
		log.Printf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	<-stop
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}
