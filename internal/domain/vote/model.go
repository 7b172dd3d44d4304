package vote

import (
	"context"
	"time"
)

type Vote struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	SessionID string    `json:"session_id"`
	OptionID  string    `json:"option_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TallySnapshot is the point-in-time result set broadcast to stream
// subscribers after every accepted vote. Counts include options with
// zero votes.
type TallySnapshot struct {
	PollID string           `json:"poll_id"`
	Counts map[string]int64 `json:"counts"`
}

// Ledger is the durable vote record. A change is delete+insert, never
// an update in place; the UNIQUE (poll_id, session_id) constraint at
// the storage layer is the authoritative duplicate guard.
type Ledger interface {
	Find(ctx context.Context, pollID, sessionID string) (*Vote, error)
	Insert(ctx context.Context, v *Vote) error
	Delete(ctx context.Context, voteID string) error
	Tally(ctx context.Context, pollID string) (map[string]int64, error)
}

type PollStore interface {
	Exists(ctx context.Context, pollID string) (bool, error)
	OptionBelongsToPoll(ctx context.Context, pollID, optionID string) (bool, error)
}

type Publisher interface {
	Publish(pollID string, snap TallySnapshot)
}
