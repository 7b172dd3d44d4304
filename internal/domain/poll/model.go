package poll

import (
	"context"
	"time"
)

type Poll struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Option struct {
	ID        string    `json:"id"`
	PollID    string    `json:"poll_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, p *Poll, options []Option) error
	GetByID(ctx context.Context, id string) (*Poll, []Option, error)
	Exists(ctx context.Context, id string) (bool, error)
	OptionBelongsToPoll(ctx context.Context, pollID, optionID string) (bool, error)
}
