package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legalbridge/legalbridge/internal/models"
)

func TestCreateOrGetSessionIsIdempotent(t *testing.T) {
	f := newFixture(t)

	first, err := f.lifecycle.CreateOrGetSession(context.Background(), f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWaiting, first.Status)
	assert.NotEmpty(t, first.Token)
	assert.Equal(t, f.appt.ID, first.AppointmentID)
	assert.Equal(t, baseTime, first.ScheduledStartAt)
	assert.Equal(t, baseTime.Add(time.Hour), first.ScheduledEndAt)

	second, err := f.lifecycle.CreateOrGetSession(context.Background(), f.appt.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Token, second.Token)

	var count int64
	require.NoError(t, f.db.Model(&models.ConsultationSession{}).
		Where("appointment_id = ?", f.appt.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreateOrGetSessionRejectsBadAppointments(t *testing.T) {
	f := newFixture(t)

	_, err := f.lifecycle.CreateOrGetSession(context.Background(), "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, f.db.Model(&models.Appointment{}).
		Where("id = ?", f.appt.ID).
		Update("status", models.AppointmentCancelled).Error)

	_, err = f.lifecycle.CreateOrGetSession(context.Background(), f.appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentCancelled)
}

func TestGetByTokenUnknown(t *testing.T) {
	f := newFixture(t)

	_, err := f.lifecycle.GetByToken(context.Background(), "no-such-token")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCanJoinWindow(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	cases := []struct {
		name        string
		at          time.Time
		wantJoin    bool
		wantMinutes int
	}{
		{"three minutes early", baseTime.Add(-3 * time.Minute), false, 2},
		{"two minutes early", baseTime.Add(-2 * time.Minute), false, 1},
		{"sixty-one seconds early", baseTime.Add(-61 * time.Second), false, 1},
		{"window opens", baseTime.Add(-time.Minute), true, 0},
		{"at start", baseTime, true, 0},
		{"mid window", baseTime.Add(30 * time.Minute), true, 0},
		{"at scheduled end", baseTime.Add(time.Hour), true, 0},
		{"after scheduled end", baseTime.Add(time.Hour + time.Second), false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, minutes := f.lifecycle.CanJoin(session, f.client.ID, tc.at)
			assert.Equal(t, tc.wantJoin, ok)
			assert.Equal(t, tc.wantMinutes, minutes)
		})
	}

	ok, minutes := f.lifecycle.CanJoin(session, "stranger", baseTime)
	assert.False(t, ok)
	assert.Zero(t, minutes)
}

func TestJoinBeforeWindow(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	f.clock.now = baseTime.Add(-5 * time.Minute)
	_, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)

	var windowErr *JoinWindowError
	require.ErrorAs(t, err, &windowErr)
	assert.Equal(t, 4, windowErr.MinutesUntilJoin)
}

func TestJoinIsIdempotentPerRole(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	joined, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)
	require.NotNil(t, joined.ClientJoinedAt)
	firstJoin := *joined.ClientJoinedAt
	assert.Equal(t, models.SessionWaiting, joined.Status)
	assert.Nil(t, joined.ActualStartAt)

	f.clock.Advance(2 * time.Minute)
	again, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)
	require.NotNil(t, again.ClientJoinedAt)
	assert.Equal(t, firstJoin, *again.ClientJoinedAt)

	messages, err := f.threads.List(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.MessageSystem, messages[0].Type)
	assert.Contains(t, messages[0].Content, "Ana Reyes joined")
	assert.True(t, messages[0].IsRead)
}

func TestConcurrentSameRoleJoins(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	var wg sync.WaitGroup
	results := make([]*models.ConsultationSession, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.lifecycle.Join(context.Background(), session.Token, f.lawyer.ID)
		}(i)
	}
	wg.Wait()

	// Exactly one caller wins the conditional update; the other lands on the
	// idempotent no-op path. Both observe the same joined_at.
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotNil(t, results[0].LawyerJoinedAt)
	require.NotNil(t, results[1].LawyerJoinedAt)
	assert.Equal(t, results[0].LawyerJoinedAt.UTC(), results[1].LawyerJoinedAt.UTC())

	var notices int64
	require.NoError(t, f.db.Model(&models.ConsultationMessage{}).
		Where("session_id = ? AND sender_role = ?", session.ID, models.SenderSystem).
		Count(&notices).Error)
	assert.EqualValues(t, 1, notices)
}

func TestJoinSurvivesNoticeFailure(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	require.NoError(t, f.db.Migrator().DropTable(&models.ConsultationMessage{}))

	joined, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)
	require.NotNil(t, joined.ClientJoinedAt)

	reloaded, err := f.lifecycle.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.NotNil(t, reloaded.ClientJoinedAt)
}

func TestSecondJoinActivates(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)

	f.clock.Advance(3 * time.Minute)
	joined, err := f.lifecycle.Join(context.Background(), session.Token, f.lawyer.ID)
	require.NoError(t, err)

	assert.Equal(t, models.SessionActive, joined.Status)
	require.NotNil(t, joined.ActualStartAt)
	assert.Equal(t, baseTime.Add(3*time.Minute), *joined.ActualStartAt)
	assert.Equal(t, *joined.LawyerJoinedAt, *joined.ActualStartAt)

	messages, err := f.threads.List(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Contains(t, messages[1].Content, "Mark Osei joined")
}

func TestJoinRejectsStranger(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.lifecycle.Join(context.Background(), session.Token, "someone-else")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestEndSessionHappensOnce(t *testing.T) {
	f := newFixture(t)
	session := f.activeSession(t)

	f.clock.Advance(40 * time.Minute)
	ended, err := f.lifecycle.EndSession(context.Background(), session.Token, f.lawyer.ID, models.EndReasonCompleted)
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, ended.Status)
	require.NotNil(t, ended.EndReason)
	assert.Equal(t, models.EndReasonCompleted, *ended.EndReason)
	require.NotNil(t, ended.EndedByID)
	assert.Equal(t, f.lawyer.ID, *ended.EndedByID)
	require.NotNil(t, ended.ActualEndAt)

	record, err := f.analytics.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, record.DurationMinutes)
	assert.True(t, record.CompletedSuccessfully)

	_, err = f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, models.EndReasonCancelled)
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	var count int64
	require.NoError(t, f.db.Model(&models.ConsultationAnalytics{}).
		Where("session_id = ?", session.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestEndSessionDefaultsAndValidatesReason(t *testing.T) {
	f := newFixture(t)
	session := f.activeSession(t)

	_, err := f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, "abandoned")
	assert.ErrorIs(t, err, ErrInvalidEndReason)

	ended, err := f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, "")
	require.NoError(t, err)
	require.NotNil(t, ended.EndReason)
	assert.Equal(t, models.EndReasonCompleted, *ended.EndReason)
}

func TestEndSessionFromWaiting(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	_, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)

	ended, err := f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, models.EndReasonCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, ended.Status)
	assert.Nil(t, ended.ActualStartAt)

	// Never mutually joined, so the roll-up falls back to the booked length.
	record, err := f.analytics.Get(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, record.DurationMinutes)
	assert.False(t, record.CompletedSuccessfully)
}

func TestExpiryCorrectedOnRead(t *testing.T) {
	f := newFixture(t)
	session := f.activeSession(t)

	f.clock.now = baseTime.Add(time.Hour + time.Minute)
	reloaded, err := f.lifecycle.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.SessionExpired, reloaded.Status)
	assert.Nil(t, reloaded.EndReason)

	var stored models.ConsultationSession
	require.NoError(t, f.db.First(&stored, "id = ?", session.ID).Error)
	assert.Equal(t, models.SessionExpired, stored.Status)

	_, err = f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, models.EndReasonCompleted)
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	_, err = f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	assert.ErrorIs(t, err, ErrInvalidSessionState)
}

func TestRateSession(t *testing.T) {
	f := newFixture(t)
	session := f.activeSession(t)

	_, err := f.lifecycle.RateSession(context.Background(), session.Token, f.client.ID, 4)
	assert.ErrorIs(t, err, ErrInvalidSessionState)

	f.clock.Advance(30 * time.Minute)
	_, err = f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, models.EndReasonCompleted)
	require.NoError(t, err)

	_, err = f.lifecycle.RateSession(context.Background(), session.Token, f.client.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = f.lifecycle.RateSession(context.Background(), session.Token, f.client.ID, 6)
	assert.ErrorIs(t, err, ErrInvalidRating)
	_, err = f.lifecycle.RateSession(context.Background(), session.Token, f.lawyer.ID, 4)
	assert.ErrorIs(t, err, ErrNotParticipant)

	before, err := f.analytics.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Nil(t, before.SatisfactionRating)

	rated, err := f.lifecycle.RateSession(context.Background(), session.Token, f.client.ID, 4)
	require.NoError(t, err)
	require.NotNil(t, rated.SatisfactionRating)
	assert.Equal(t, 4, *rated.SatisfactionRating)

	after, err := f.analytics.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.NotNil(t, after.SatisfactionRating)
	assert.Equal(t, 4, *after.SatisfactionRating)
	assert.Equal(t, before.EngagementScore+8, after.EngagementScore)
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	session := f.createSession(t)

	f.clock.now = baseTime.Add(-4 * time.Minute)
	snap := f.lifecycle.Snapshot(session, f.client.ID)
	assert.False(t, snap.CanJoin)
	assert.Equal(t, 3, snap.MinutesUntilJoin)
	assert.False(t, snap.HasExpired)
	assert.Equal(t, 64, snap.TimeRemainingMinutes)

	f.clock.now = baseTime.Add(10 * time.Minute)
	snap = f.lifecycle.Snapshot(session, f.client.ID)
	assert.True(t, snap.CanJoin)
	assert.Zero(t, snap.MinutesUntilJoin)
	assert.Equal(t, 50, snap.TimeRemainingMinutes)

	f.clock.now = baseTime.Add(2 * time.Hour)
	snap = f.lifecycle.Snapshot(session, f.client.ID)
	assert.False(t, snap.CanJoin)
	assert.True(t, snap.HasExpired)
	assert.Zero(t, snap.TimeRemainingMinutes)
}

type recordingBridge struct {
	joins []ParticipantJoinedEvent
	ends  []SessionEndedEvent
	posts []MessagePostedEvent
	fail  bool
}

func (b *recordingBridge) ParticipantJoined(_ context.Context, e ParticipantJoinedEvent) error {
	b.joins = append(b.joins, e)
	if b.fail {
		return errors.New("push unavailable")
	}
	return nil
}

func (b *recordingBridge) SessionEnded(_ context.Context, e SessionEndedEvent) error {
	b.ends = append(b.ends, e)
	if b.fail {
		return errors.New("push unavailable")
	}
	return nil
}

func (b *recordingBridge) MessagePosted(_ context.Context, e MessagePostedEvent) error {
	b.posts = append(b.posts, e)
	if b.fail {
		return errors.New("push unavailable")
	}
	return nil
}

func TestBridgeReceivesLifecycleEvents(t *testing.T) {
	bridge := &recordingBridge{}
	f := newFixture(t, WithNotificationBridge(bridge))
	session := f.createSession(t)

	_, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)
	require.Len(t, bridge.joins, 1)
	assert.Equal(t, f.client.ID, bridge.joins[0].JoinerID)
	assert.Equal(t, f.lawyer.ID, bridge.joins[0].CounterpartID)
	assert.Equal(t, ParticipantClient, bridge.joins[0].Role)

	// A repeated join must not fan out again.
	_, err = f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)
	assert.Len(t, bridge.joins, 1)

	_, err = f.lifecycle.Join(context.Background(), session.Token, f.lawyer.ID)
	require.NoError(t, err)
	require.Len(t, bridge.joins, 2)

	_, err = f.lifecycle.EndSession(context.Background(), session.Token, f.lawyer.ID, models.EndReasonCompleted)
	require.NoError(t, err)
	require.Len(t, bridge.ends, 1)
	assert.Equal(t, models.EndReasonCompleted, bridge.ends[0].Reason)
	assert.Equal(t, f.client.ID, bridge.ends[0].CounterpartID)
}

func TestBridgeFailureDoesNotBlockOperations(t *testing.T) {
	bridge := &recordingBridge{fail: true}
	f := newFixture(t, WithNotificationBridge(bridge))
	session := f.createSession(t)

	_, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)

	_, err = f.lifecycle.EndSession(context.Background(), session.Token, f.client.ID, models.EndReasonCancelled)
	require.NoError(t, err)

	reloaded, err := f.lifecycle.GetByToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, reloaded.Status)
}
