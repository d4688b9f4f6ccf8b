package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperrors "github.com/eternisai/assignment-relay/internal/errors"
	"github.com/eternisai/assignment-relay/internal/metrics"
	"github.com/eternisai/assignment-relay/internal/relay"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScheduler struct {
	state relay.State
	last  time.Time
}

func (f fakeScheduler) State() relay.State { return f.state }
func (f fakeScheduler) LastCycleAt() time.Time { return f.last }

type fakeChat bool

func (f fakeChat) Ready() bool { return bool(f) }

func init() {
	gin.SetMode(gin.TestMode)
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthRunning(t *testing.T) {
	last := time.Date(2024, 5, 1, 15, 30, 0, 0, time.UTC)
	router := NewRouter(NewHandler(fakeScheduler{state: relay.StateRunning, last: last}, fakeChat(true)), metrics.New())

	rec := get(t, router, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "running", body.Scheduler)
	assert.True(t, body.ChatReady)
	require.NotNil(t, body.LastCycleAt)
	assert.True(t, last.Equal(*body.LastCycleAt))
}

func TestHealthUnavailableUntilRunning(t *testing.T) {
	tests := []struct {
		name  string
		state relay.State
	}{
		{name: "idle", state: relay.StateIdle},
		{name: "terminated", state: relay.StateTerminated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(NewHandler(fakeScheduler{state: tt.state}, fakeChat(false)), metrics.New())

			rec := get(t, router, "/health")
			require.Equal(t, http.StatusServiceUnavailable, rec.Code)

			var body apperrors.APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, "scheduler is not running", body.Error)
			assert.Equal(t, tt.name, body.Details["scheduler"])
		})
	}
}

func TestMetricsRoute(t *testing.T) {
	collector := metrics.New()
	collector.Notification(true)
	router := NewRouter(NewHandler(fakeScheduler{state: relay.StateRunning}, nil), collector)

	rec := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `relay_notifications_total{result="delivered"} 1`)
}
