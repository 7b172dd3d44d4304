package vote

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

var (
	ErrPollNotFound      = errors.New("poll not found")
	ErrOptionNotInPoll   = errors.New("option does not belong to poll")
	ErrVoteNotFound      = errors.New("vote not found")
	ErrDuplicateKey      = errors.New("vote already exists for session and poll")
	ErrLedgerUnavailable = errors.New("vote ledger unavailable")
)

type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeChanged
	OutcomeDuplicate
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "accepted"
	case OutcomeChanged:
		return "changed"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

type CastResult struct {
	Outcome          Outcome
	OptionID         string
	PreviousOptionID string
}

// Service decides whether an incoming vote is a first cast, a change,
// or a rejected duplicate, and broadcasts the recomputed tally after
// every accepted mutation.
type Service struct {
	ledger Ledger
	polls  PollStore
	pub    Publisher
	locks  *keyedLock
	log    *slog.Logger
}

func NewService(ledger Ledger, polls PollStore, pub Publisher) *Service {
	return &Service{
		ledger: ledger,
		polls:  polls,
		pub:    pub,
		locks:  newKeyedLock(),
		log:    slog.Default(),
	}
}

func (s *Service) Cast(ctx context.Context, pollID, sessionID, optionID string) (CastResult, error) {
	ok, err := s.polls.Exists(ctx, pollID)
	if err != nil {
		return CastResult{}, err
	}
	if !ok {
		return CastResult{}, ErrPollNotFound
	}

	ok, err = s.polls.OptionBelongsToPoll(ctx, pollID, optionID)
	if err != nil {
		return CastResult{}, err
	}
	if !ok {
		return CastResult{}, ErrOptionNotInPoll
	}

	unlock := s.locks.lock(pollID + "|" + sessionID)
	defer unlock()

	res, err := s.decide(ctx, pollID, sessionID, optionID)
	if err != nil {
		return CastResult{}, err
	}

	if res.Outcome != OutcomeDuplicate {
		s.broadcast(ctx, pollID)
	}
	return res, nil
}

// decide runs the read-check-write sequence under the per-key lock.
// A DuplicateKey raised by the ledger means another instance won a
// concurrent insert; one re-read resolves it instead of surfacing the
// race to the caller.
func (s *Service) decide(ctx context.Context, pollID, sessionID, optionID string) (CastResult, error) {
	for attempt := 0; ; attempt++ {
		existing, err := s.ledger.Find(ctx, pollID, sessionID)
		switch {
		case errors.Is(err, ErrVoteNotFound):
			if err := s.ledger.Insert(ctx, s.newVote(pollID, sessionID, optionID)); err != nil {
				if errors.Is(err, ErrDuplicateKey) && attempt == 0 {
					continue
				}
				return CastResult{}, err
			}
			return CastResult{Outcome: OutcomeAccepted, OptionID: optionID}, nil

		case err != nil:
			return CastResult{}, err

		case existing.OptionID == optionID:
			return CastResult{Outcome: OutcomeDuplicate, OptionID: optionID}, nil

		default:
			if err := s.ledger.Delete(ctx, existing.ID); err != nil {
				return CastResult{}, err
			}
			if err := s.ledger.Insert(ctx, s.newVote(pollID, sessionID, optionID)); err != nil {
				if errors.Is(err, ErrDuplicateKey) && attempt == 0 {
					continue
				}
				return CastResult{}, err
			}
			return CastResult{
				Outcome:          OutcomeChanged,
				OptionID:         optionID,
				PreviousOptionID: existing.OptionID,
			}, nil
		}
	}
}

// broadcast recomputes and publishes the poll tally. The vote is
// already durably committed at this point, so a failed tally read only
// costs subscribers one notification.
func (s *Service) broadcast(ctx context.Context, pollID string) {
	counts, err := s.ledger.Tally(ctx, pollID)
	if err != nil {
		s.log.Warn("tally recompute failed, skipping broadcast",
			"poll_id", pollID,
			"error", err,
		)
		return
	}
	s.pub.Publish(pollID, TallySnapshot{PollID: pollID, Counts: counts})
}

// Tally returns the current counts for a poll, zero-count options
// included.
func (s *Service) Tally(ctx context.Context, pollID string) (map[string]int64, error) {
	ok, err := s.polls.Exists(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPollNotFound
	}
	return s.ledger.Tally(ctx, pollID)
}

func (s *Service) newVote(pollID, sessionID, optionID string) *Vote {
	return &Vote{
		ID:        uuid.NewString(),
		PollID:    pollID,
		SessionID: sessionID,
		OptionID:  optionID,
	}
}
