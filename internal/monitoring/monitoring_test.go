package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()
	module, err := NewModule(Options{
		Namespace:               "testns",
		DisableGoCollector:      true,
		DisableProcessCollector: true,
	})
	require.NoError(t, err)
	SetModule(module)
	return module
}

func TestInstrumentationHelpersAreNoopsWithoutModule(t *testing.T) {
	globalModule.Store(nil)

	// None of these may panic when no module is configured.
	AdjustActiveConsultations(1)
	RecordConsultationEnded("completed", time.Minute)
	RecordMessagePosted("client")
	RecordNotificationPush("error")
	RecordExpiryCorrection()
	ObserveAPILatency("GET", "/api/consultations", "200", time.Millisecond)
	RecordMaintenanceRun("notifications", "success")
}

func TestMetricsExposedOverHandler(t *testing.T) {
	module := newTestModule(t)

	AdjustActiveConsultations(2)
	RecordConsultationEnded("cancelled", 5*time.Minute)
	RecordMessagePosted("lawyer")
	RecordExpiryCorrection()

	rec := httptest.NewRecorder()
	module.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, "testns_active_consultations 2")
	require.Contains(t, body, `testns_consultations_ended_total{reason="cancelled"} 1`)
	require.Contains(t, body, `testns_consultation_messages_total{role="lawyer"} 1`)
	require.Contains(t, body, "testns_session_expiry_corrections_total 1")
}
