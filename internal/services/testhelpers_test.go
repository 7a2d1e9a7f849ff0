package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/legalbridge/legalbridge/internal/database/testutil"
	"github.com/legalbridge/legalbridge/internal/models"
)

// baseTime is the scheduled start of the fixture appointment. The fixture
// clock starts here, inside the join window.
var baseTime = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type fixture struct {
	db        *gorm.DB
	clock     *testClock
	threads   *MessageThreadService
	analytics *AnalyticsService
	lifecycle *SessionLifecycleService
	client    models.User
	lawyer    models.User
	appt      models.Appointment
}

func newFixture(t *testing.T, opts ...SessionLifecycleOption) *fixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	clock := &testClock{now: baseTime}

	client := models.User{DisplayName: "Ana Reyes", Email: "ana@example.com", Role: models.RoleClient}
	lawyer := models.User{DisplayName: "Mark Osei", Email: "mark@example.com", Role: models.RoleLawyer}
	require.NoError(t, db.Create(&client).Error)
	require.NoError(t, db.Create(&lawyer).Error)

	appt := models.Appointment{
		ClientID:        client.ID,
		LawyerID:        lawyer.ID,
		ScheduledAt:     baseTime,
		DurationMinutes: 60,
		Topic:           "contract review",
		Status:          models.AppointmentBooked,
	}
	require.NoError(t, db.Create(&appt).Error)

	threads, err := NewMessageThreadService(db, WithThreadClock(clock.Now))
	require.NoError(t, err)

	analytics, err := NewAnalyticsService(db, threads)
	require.NoError(t, err)

	opts = append([]SessionLifecycleOption{WithLifecycleClock(clock.Now)}, opts...)
	lifecycle, err := NewSessionLifecycleService(db, threads, analytics, opts...)
	require.NoError(t, err)

	return &fixture{
		db:        db,
		clock:     clock,
		threads:   threads,
		analytics: analytics,
		lifecycle: lifecycle,
		client:    client,
		lawyer:    lawyer,
		appt:      appt,
	}
}

func (f *fixture) createSession(t *testing.T) *models.ConsultationSession {
	t.Helper()
	session, err := f.lifecycle.CreateOrGetSession(context.Background(), f.appt.ID)
	require.NoError(t, err)
	return session
}

func (f *fixture) activeSession(t *testing.T) *models.ConsultationSession {
	t.Helper()
	session := f.createSession(t)
	_, err := f.lifecycle.Join(context.Background(), session.Token, f.client.ID)
	require.NoError(t, err)
	session, err = f.lifecycle.Join(context.Background(), session.Token, f.lawyer.ID)
	require.NoError(t, err)
	return session
}
