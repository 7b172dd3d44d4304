package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"realtime-voting/internal/domain/vote"
)

// VoteRepo is the durable vote ledger. The UNIQUE (poll_id, session_id)
// constraint on the votes table enforces the one-vote-per-session
// invariant even across service instances.
type VoteRepo struct {
	db *sql.DB
}

func NewVoteRepo(db *sql.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Find(ctx context.Context, pollID, sessionID string) (*vote.Vote, error) {
	v := &vote.Vote{}
	err := r.db.QueryRowContext(ctx, `
        SELECT id, poll_id, session_id, option_id, created_at
        FROM votes
        WHERE poll_id = $1 AND session_id = $2
    `, pollID, sessionID).Scan(&v.ID, &v.PollID, &v.SessionID, &v.OptionID, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, vote.ErrVoteNotFound
	}
	if err != nil {
		return nil, ledgerErr(err)
	}
	return v, nil
}

func (r *VoteRepo) Insert(ctx context.Context, v *vote.Vote) error {
	query := `
        INSERT INTO votes (id, poll_id, session_id, option_id)
        VALUES ($1, $2, $3, $4)
        RETURNING created_at
    `
	err := r.db.QueryRowContext(ctx, query, v.ID, v.PollID, v.SessionID, v.OptionID).
		Scan(&v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return vote.ErrDuplicateKey
		}
		if isForeignKeyViolation(err) {
			return vote.ErrOptionNotInPoll
		}
		return ledgerErr(err)
	}
	return nil
}

func (r *VoteRepo) Delete(ctx context.Context, voteID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM votes WHERE id = $1`, voteID)
	if err != nil {
		return ledgerErr(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return vote.ErrVoteNotFound
	}
	return nil
}

// Tally counts current votes per option. The LEFT JOIN keeps options
// with zero votes in the result.
func (r *VoteRepo) Tally(ctx context.Context, pollID string) (map[string]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT po.id, COUNT(v.id)
        FROM poll_options AS po
        LEFT JOIN votes AS v ON v.option_id = po.id
        WHERE po.poll_id = $1
        GROUP BY po.id
    `, pollID)
	if err != nil {
		return nil, ledgerErr(err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var optID string
		var c int64
		if err := rows.Scan(&optID, &c); err != nil {
			return nil, err
		}
		counts[optID] = c
	}

	return counts, rows.Err()
}

func ledgerErr(err error) error {
	return fmt.Errorf("%w: %v", vote.ErrLedgerUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}
