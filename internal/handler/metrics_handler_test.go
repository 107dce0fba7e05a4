package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	h := NewMetricsHandler(nil, map[string]ReadinessCheck{"store": healthy, "cache": healthy})
	c, w := testContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)

	h = NewMetricsHandler(nil, map[string]ReadinessCheck{"store": healthy, "cache": down})
	c, w = testContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
	assert.Contains(t, w.Body.String(), `"store":"ok"`)
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	c, w := testContext(http.MethodGet, "/metrics", nil)
	NewMetricsHandler(nil, nil).Prometheus(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	metrics := service.NewMetricsService()
	metrics.RecordAllocation("allocate", "success")
	c, w = testContext(http.MethodGet, "/metrics", nil)
	NewMetricsHandler(metrics, nil).Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "allocation")

	c, w = testContext(http.MethodGet, "/health", nil)
	NewMetricsHandler(metrics, nil).Health(c)
	assert.Equal(t, http.StatusOK, w.Code)
}
