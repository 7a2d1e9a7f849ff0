package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/legalbridge/legalbridge/internal/auth"
	"github.com/legalbridge/legalbridge/internal/database/testutil"
	"github.com/legalbridge/legalbridge/internal/middleware"
	"github.com/legalbridge/legalbridge/internal/models"
	"github.com/legalbridge/legalbridge/internal/notifications"
	"github.com/legalbridge/legalbridge/internal/services"
)

type httpFixture struct {
	router *gin.Engine
	db     *gorm.DB
	jwt    *iauth.JWTService
	client models.User
	lawyer models.User
	appt   models.Appointment
}

// newHTTPFixture wires real services over an in-memory database behind the
// consultation routes. The fixture appointment started five minutes ago, so
// its join window is open.
func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	client := models.User{DisplayName: "Ana Reyes", Email: "ana@example.com", Role: models.RoleClient}
	lawyer := models.User{DisplayName: "Mark Osei", Email: "mark@example.com", Role: models.RoleLawyer}
	require.NoError(t, db.Create(&client).Error)
	require.NoError(t, db.Create(&lawyer).Error)

	appt := models.Appointment{
		ClientID:        client.ID,
		LawyerID:        lawyer.ID,
		ScheduledAt:     time.Now().Add(-5 * time.Minute),
		DurationMinutes: 60,
		Status:          models.AppointmentBooked,
	}
	require.NoError(t, db.Create(&appt).Error)

	notifier, err := notifications.NewService(db, nil)
	require.NoError(t, err)

	threads, err := services.NewMessageThreadService(db, services.WithThreadBridge(notifier))
	require.NoError(t, err)
	analytics, err := services.NewAnalyticsService(db, threads)
	require.NoError(t, err)
	lifecycle, err := services.NewSessionLifecycleService(db, threads, analytics,
		services.WithNotificationBridge(notifier))
	require.NoError(t, err)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "legalbridge"})
	require.NoError(t, err)

	consultationHandler, err := NewConsultationHandler(db, lifecycle, analytics)
	require.NoError(t, err)
	messageHandler, err := NewMessageHandler(lifecycle, threads)
	require.NoError(t, err)
	notificationHandler, err := NewNotificationHandler(notifier)
	require.NoError(t, err)

	router := gin.New()
	api := router.Group("/api", middleware.Auth(jwt))
	api.POST("/appointments/:id/session", consultationHandler.CreateForAppointment)

	sessions := api.Group("/consultations/:token")
	sessions.GET("", consultationHandler.Get)
	sessions.POST("/join", consultationHandler.Join)
	sessions.POST("/end", consultationHandler.End)
	sessions.POST("/rate", consultationHandler.Rate)
	sessions.GET("/analytics", consultationHandler.Analytics)
	sessions.GET("/messages", messageHandler.List)
	sessions.POST("/messages", messageHandler.Post)
	sessions.POST("/messages/read", messageHandler.MarkRead)
	sessions.POST("/messages/:messageID/read", messageHandler.MarkOneRead)
	sessions.GET("/messages/unread", messageHandler.UnreadCount)

	api.GET("/notifications", notificationHandler.List)
	api.GET("/notifications/unread", notificationHandler.UnreadCount)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead)
	api.POST("/notifications/read-all", notificationHandler.MarkAllRead)

	return &httpFixture{
		router: router,
		db:     db,
		jwt:    jwt,
		client: client,
		lawyer: lawyer,
		appt:   appt,
	}
}

func (f *httpFixture) token(t *testing.T, user models.User) string {
	t.Helper()
	token, err := f.jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: user.ID, Role: user.Role})
	require.NoError(t, err)
	return token
}

func (f *httpFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func (f *httpFixture) createSessionToken(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/appointments/"+f.appt.ID+"/session", f.token(t, f.client), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	env := decodeEnvelope(t, rec)
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}
