package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upCheck(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusUp}
}

func TestRunEmptyCheckerIsUp(t *testing.T) {
	report := NewChecker().Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Empty(t, report.Components)
	assert.NotEmpty(t, report.Timestamp)
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("postgres", upCheck)
	c.Register("redis", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDegraded, Message: "slow"}
	})

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)

	c.Register("kafka", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown, Message: "unreachable"}
	})
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	require.Len(t, report.Components, 3)
	assert.Equal(t, "unreachable", report.Components["kafka"].Message)
	assert.NotEmpty(t, report.Components["postgres"].Latency)
}

func TestPingCheck(t *testing.T) {
	up := PingCheck(func(ctx context.Context) error { return nil })
	assert.Equal(t, StatusUp, up(context.Background()).Status)

	down := PingCheck(func(ctx context.Context) error { return errors.New("connection refused") })
	got := down(context.Background())
	assert.Equal(t, StatusDown, got.Status)
	assert.Equal(t, "connection refused", got.Message)
}

func TestLiveHandlerAlwaysOK(t *testing.T) {
	c := NewChecker()
	c.Register("postgres", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown}
	})

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestReadyHandlerReflectsChecks(t *testing.T) {
	c := NewChecker()
	c.Register("postgres", upCheck)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusUp, report.Status)

	c.Register("redis", func(ctx context.Context) ComponentHealth {
		return ComponentHealth{Status: StatusDown, Message: "unreachable"}
	})
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "unreachable", report.Components["redis"].Message)
}
