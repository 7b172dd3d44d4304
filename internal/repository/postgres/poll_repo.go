package postgres

import (
	"context"
	"database/sql"

	"realtime-voting/internal/domain/poll"
)

type PollRepo struct {
	db *sql.DB
}

func NewPollRepo(db *sql.DB) *PollRepo {
	return &PollRepo{db: db}
}

func (r *PollRepo) Create(ctx context.Context, p *poll.Poll, options []poll.Option) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	queryPoll := `
        INSERT INTO polls (id, title)
        VALUES ($1, $2)
        RETURNING created_at, updated_at
    `

	err = tx.QueryRowContext(ctx, queryPoll, p.ID, p.Title).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return err
	}

	queryOpt := `
        INSERT INTO poll_options (id, poll_id, title)
        VALUES ($1, $2, $3)
        RETURNING created_at
    `

	for i := range options {
		if err := tx.QueryRowContext(ctx, queryOpt, options[i].ID, options[i].PollID, options[i].Title).
			Scan(&options[i].CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PollRepo) GetByID(ctx context.Context, id string) (*poll.Poll, []poll.Option, error) {
	p := &poll.Poll{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, title, created_at, updated_at
        FROM polls WHERE id = $1
    `, id).Scan(&p.ID, &p.Title, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil, poll.ErrPollNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
        SELECT id, poll_id, title, created_at
        FROM poll_options
        WHERE poll_id = $1
        ORDER BY created_at, id
    `, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var opts []poll.Option
	for rows.Next() {
		var o poll.Option
		if err := rows.Scan(&o.ID, &o.PollID, &o.Title, &o.CreatedAt); err != nil {
			return nil, nil, err
		}
		opts = append(opts, o)
	}

	return p, opts, rows.Err()
}

func (r *PollRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM polls WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (r *PollRepo) OptionBelongsToPoll(ctx context.Context, pollID, optionID string) (bool, error) {
	var belongs bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM poll_options WHERE id = $1 AND poll_id = $2)`,
		optionID, pollID).Scan(&belongs)
	return belongs, err
}
