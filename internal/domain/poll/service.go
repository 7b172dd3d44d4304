package poll

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPollNotFound = errors.New("poll not found")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, title string, optionTitles []string) (*Poll, []Option, error) {
	if len(title) < 2 {
		return nil, nil, errors.New("title must be at least 2 characters")
	}
	if len(optionTitles) < 2 {
		return nil, nil, errors.New("poll must have at least 2 options")
	}

	p := &Poll{
		ID:    uuid.NewString(),
		Title: title,
	}

	options := make([]Option, len(optionTitles))
	for i, t := range optionTitles {
		if t == "" {
			return nil, nil, errors.New("option title required")
		}
		options[i] = Option{
			ID:     uuid.NewString(),
			PollID: p.ID,
			Title:  t,
		}
	}

	if err := s.repo.Create(ctx, p, options); err != nil {
		return nil, nil, err
	}
	return p, options, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Poll, []Option, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	return s.repo.Exists(ctx, id)
}
