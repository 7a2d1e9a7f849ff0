package handlers

import (
	"errors"

	"github.com/legalbridge/legalbridge/internal/services"
	appErrors "github.com/legalbridge/legalbridge/pkg/errors"
)

// mapServiceError translates service sentinels into client-facing AppErrors.
// Unknown errors pass through and surface as 500s.
func mapServiceError(err error) error {
	var windowErr *services.JoinWindowError
	if errors.As(err, &windowErr) {
		return appErrors.NewNotYetJoinable(windowErr.MinutesUntilJoin)
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrAppointmentNotFound),
		errors.Is(err, services.ErrMessageNotFound):
		return appErrors.ErrNotFound
	case errors.Is(err, services.ErrNotParticipant):
		return appErrors.ErrNotParticipant
	case errors.Is(err, services.ErrInvalidSessionState),
		errors.Is(err, services.ErrAppointmentCancelled):
		return appErrors.ErrInvalidState
	case errors.Is(err, services.ErrInvalidEndReason),
		errors.Is(err, services.ErrInvalidRating),
		errors.Is(err, services.ErrEmptyMessage),
		errors.Is(err, services.ErrMessageTooLong):
		return appErrors.NewBadRequest(err.Error())
	default:
		return err
	}
}
