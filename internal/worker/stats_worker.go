package worker

import (
	"context"
	"log"

	"realtime-voting/internal/metrics"
)

type VoteEvent struct {
	PollID   string
	OptionID string
	Outcome  string
}

// StatsWorker drains vote events off the request path and records
// per-outcome metrics. Producers enqueue with a non-blocking send, so
// a full channel loses stats, never votes.
type StatsWorker struct {
	Ch <-chan VoteEvent
}

func NewStatsWorker(ch <-chan VoteEvent) *StatsWorker {
	return &StatsWorker{Ch: ch}
}

func (w *StatsWorker) Run(ctx context.Context) {
	log.Println("stats worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("stats worker stopped")
			return
		case ev := <-w.Ch:
			metrics.IncVote(ev.Outcome)
		}
	}
}
