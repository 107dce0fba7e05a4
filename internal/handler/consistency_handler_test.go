package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

type verifierStub struct {
	report *models.ConsistencyReport
	err    error
}

func (v verifierStub) Verify(context.Context) (*models.ConsistencyReport, error) {
	return v.report, v.err
}

func TestConsistencyHandlerVerify(t *testing.T) {
	report := &models.ConsistencyReport{
		CheckedRooms: 3,
		Violations:   []models.ConsistencyViolation{{Rule: models.RuleOccupancyCount, RoomID: "r-1"}},
	}
	h := NewConsistencyHandler(verifierStub{report: report})
	c, w := testContext(http.MethodGet, "/admin/consistency", nil)
	h.Verify(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy":false`)
	assert.Contains(t, w.Body.String(), models.RuleOccupancyCount)
}

func TestConsistencyHandlerStoreFailure(t *testing.T) {
	h := NewConsistencyHandler(verifierStub{err: errors.New("connection reset")})
	c, w := testContext(http.MethodGet, "/admin/consistency", nil)
	h.Verify(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
