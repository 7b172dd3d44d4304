package api

import (
	"database/sql"
	"errors"
	"net/http"

	"realtime-voting/internal/domain/poll"
	"realtime-voting/internal/domain/vote"
	"realtime-voting/internal/platform/apperr"
)

func errorResponse(w http.ResponseWriter, err error) {
	appErr := mapError(err)
	writeJSON(w, appErr.StatusCode(), map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}

func mapError(err error) *apperr.AppError {
	if err == nil {
		return apperr.Internal("internal_error", "internal server error", nil)
	}

	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("not_found", "resource not found", err)
	case errors.Is(err, poll.ErrPollNotFound):
		return apperr.NotFound("poll_not_found", "poll not found", err)
	case errors.Is(err, vote.ErrPollNotFound):
		return apperr.NotFound("poll_not_found", "poll not found", err)
	case errors.Is(err, vote.ErrOptionNotInPoll):
		return apperr.BadRequest("invalid_option", "option does not belong to poll", err)
	case errors.Is(err, vote.ErrLedgerUnavailable):
		return apperr.Unavailable("ledger_unavailable", "vote storage unavailable", err)
	default:
		return apperr.Internal("internal_error", http.StatusText(http.StatusInternalServerError), err)
	}
}
