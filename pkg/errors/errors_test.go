package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	wrapped := Wrap(inner, "operation failed")

	require.ErrorIs(t, wrapped, inner)
	require.Equal(t, "operation failed: boom", wrapped.Error())
}

func TestFromErrorPreservesAppError(t *testing.T) {
	appErr := NewNotYetJoinable(3)
	carried := fmt.Errorf("handler: %w", appErr)

	resolved := FromError(carried)
	require.Equal(t, "consultation.not_yet_joinable", resolved.Code)
	require.Equal(t, http.StatusConflict, resolved.StatusCode)
	require.EqualValues(t, 3, resolved.Details["minutes_until_join"])
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	resolved := FromError(errors.New("db gone"))
	require.Equal(t, ErrInternalServer.Code, resolved.Code)
	require.Equal(t, http.StatusInternalServerError, resolved.StatusCode)
}

func TestWithDetailsCopies(t *testing.T) {
	detailed := ErrInvalidState.WithDetails(map[string]any{"status": "expired"})
	require.Equal(t, ErrInvalidState.Code, detailed.Code)
	require.Nil(t, ErrInvalidState.Details)
	require.Equal(t, "expired", detailed.Details["status"])
}
