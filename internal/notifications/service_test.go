package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legalbridge/legalbridge/internal/database/testutil"
	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/services"
)

func newService(t *testing.T) (*Service, *models.User) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := models.User{DisplayName: "Ana Reyes", Email: "ana@example.com", Role: models.RoleClient}
	require.NoError(t, db.Create(&user).Error)

	svc, err := NewService(db, nil)
	require.NoError(t, err)
	return svc, &user
}

func TestParticipantJoinedPersistsRow(t *testing.T) {
	svc, user := newService(t)

	err := svc.ParticipantJoined(context.Background(), services.ParticipantJoinedEvent{
		SessionToken:      "tok-1",
		JoinerID:          "lawyer-id",
		JoinerDisplayName: "Mark Osei",
		Role:              services.ParticipantLawyer,
		CounterpartID:     user.ID,
		JoinedAt:          time.Now(),
	})
	require.NoError(t, err)

	rows, err := svc.List(context.Background(), user.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, TypeParticipantJoined, rows[0].Type)
	assert.Contains(t, rows[0].Message, "Mark Osei")
	assert.False(t, rows[0].IsRead)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(rows[0].Metadata, &meta))
	assert.Equal(t, "tok-1", meta["session_token"])
	assert.Equal(t, "lawyer", meta["role"])
}

func TestMessagePostedFallsBackToFileBody(t *testing.T) {
	svc, user := newService(t)

	err := svc.MessagePosted(context.Background(), services.MessagePostedEvent{
		SessionToken:      "tok-1",
		MessageID:         7,
		SenderID:          "lawyer-id",
		SenderDisplayName: "Mark Osei",
		HasFile:           true,
		RecipientID:       user.ID,
	})
	require.NoError(t, err)

	rows, err := svc.List(context.Background(), user.ID, true, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sent a file", rows[0].Message)
}

func TestMarkReadFlow(t *testing.T) {
	svc, user := newService(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.SessionEnded(context.Background(), services.SessionEndedEvent{
			SessionToken:    "tok-1",
			Reason:          models.EndReasonCompleted,
			DurationMinutes: 30,
			EndedByID:       "lawyer-id",
			CounterpartID:   user.ID,
		}))
	}

	count, err := svc.UnreadCount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	rows, err := svc.List(context.Background(), user.ID, true, 0)
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(context.Background(), user.ID, rows[0].ID))

	count, err = svc.UnreadCount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	flipped, err := svc.MarkAllRead(context.Background(), user.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, flipped)

	// A second pass finds nothing left to flip.
	flipped, err = svc.MarkAllRead(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, flipped)
}

func TestMarkReadUnknownNotification(t *testing.T) {
	svc, user := newService(t)

	err := svc.MarkRead(context.Background(), user.ID, "00000000-0000-0000-0000-000000000000")
	assert.Error(t, err)
}

func TestDeleteOlderThanKeepsUnread(t *testing.T) {
	svc, user := newService(t)

	require.NoError(t, svc.SessionEnded(context.Background(), services.SessionEndedEvent{
		SessionToken:  "tok-1",
		Reason:        models.EndReasonTimeout,
		CounterpartID: user.ID,
	}))
	require.NoError(t, svc.SessionEnded(context.Background(), services.SessionEndedEvent{
		SessionToken:  "tok-2",
		Reason:        models.EndReasonTimeout,
		CounterpartID: user.ID,
	}))

	rows, err := svc.List(context.Background(), user.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, svc.MarkRead(context.Background(), user.ID, rows[0].ID))

	deleted, err := svc.DeleteOlderThan(context.Background(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	remaining, err := svc.List(context.Background(), user.ID, false, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	assert.False(t, remaining[0].IsRead)
}
