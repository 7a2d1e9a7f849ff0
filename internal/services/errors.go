package services

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound indicates the token does not resolve to a
	// non-deleted consultation session.
	ErrSessionNotFound = errors.New("consultation: session not found")
	// ErrAppointmentNotFound indicates the referenced appointment does not exist.
	ErrAppointmentNotFound = errors.New("consultation: appointment not found")
	// ErrAppointmentCancelled indicates the booking was cancelled before a
	// session could be derived from it.
	ErrAppointmentCancelled = errors.New("consultation: appointment is cancelled")
	// ErrNotParticipant indicates the actor is neither the client nor the
	// lawyer of the session.
	ErrNotParticipant = errors.New("consultation: actor is not a participant")
	// ErrInvalidSessionState rejects lifecycle operations against a terminal
	// session. Unlike join, end is not idempotent: a second end reports this
	// error instead of silently succeeding.
	ErrInvalidSessionState = errors.New("consultation: session is in a terminal state")
	// ErrInvalidEndReason rejects unknown termination reasons.
	ErrInvalidEndReason = errors.New("consultation: invalid end reason")
	// ErrInvalidRating rejects satisfaction ratings outside 1..5.
	ErrInvalidRating = errors.New("consultation: satisfaction rating must be between 1 and 5")
	// ErrEmptyMessage rejects appends that carry neither content nor a file.
	ErrEmptyMessage = errors.New("consultation: message requires content or a file")
	// ErrMessageTooLong rejects content above the thread limit.
	ErrMessageTooLong = errors.New("consultation: message content exceeds maximum length")
	// ErrMessageNotFound indicates the message id does not resolve within the session.
	ErrMessageNotFound = errors.New("consultation: message not found")
)

// JoinWindowError reports a join attempt ahead of the join window, carrying
// the number of whole minutes until the window opens so clients can poll
// intelligently.
type JoinWindowError struct {
	MinutesUntilJoin int
}

func (e *JoinWindowError) Error() string {
	return fmt.Sprintf("consultation: join window opens in %d minute(s)", e.MinutesUntilJoin)
}
