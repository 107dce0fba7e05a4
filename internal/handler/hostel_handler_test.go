package handler

import (
	"bytes"
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type catalogServiceMock struct {
	created         dto.CreateHostelRequest
	includeArchived bool
	addedTo         string
	listRoomsErr    error
}

func (m *catalogServiceMock) CreateHostel(_ context.Context, req dto.CreateHostelRequest, _ *models.JWTClaims) (*dto.HostelLayout, error) {
	m.created = req
	return &dto.HostelLayout{Hostel: models.Hostel{ID: "h-1", Name: req.Name}}, nil
}

func (m *catalogServiceMock) AddRooms(_ context.Context, hostelID string, req dto.AddRoomsRequest, _ *models.JWTClaims) ([]models.Room, error) {
	m.addedTo = hostelID
	rooms := make([]models.Room, len(req.Rooms))
	for i, spec := range req.Rooms {
		rooms[i] = models.Room{ID: spec.RoomNumber, HostelID: hostelID, RoomNumber: spec.RoomNumber, Capacity: spec.Capacity}
	}
	return rooms, nil
}

func (m *catalogServiceMock) ListHostels(_ context.Context, includeArchived bool) ([]models.Hostel, error) {
	m.includeArchived = includeArchived
	return []models.Hostel{{ID: "h-1"}}, nil
}

func (m *catalogServiceMock) GetHostel(_ context.Context, hostelID string) (*dto.HostelLayout, error) {
	return &dto.HostelLayout{Hostel: models.Hostel{ID: hostelID}}, nil
}

func (m *catalogServiceMock) ListRooms(_ context.Context, hostelID string) ([]models.Room, error) {
	if m.listRoomsErr != nil {
		return nil, m.listRoomsErr
	}
	return []models.Room{{ID: "r-1", HostelID: hostelID}}, nil
}

type lifecycleServiceMock struct {
	deactivated string
	activateReq dto.ActivateRoomRequest
	reconciled  []dto.ReconcileRoomState
	archived    *bool
	reset       string
}

func (m *lifecycleServiceMock) Deactivate(_ context.Context, roomID string, _ *models.JWTClaims) (*dto.DeactivateRoomResult, error) {
	m.deactivated = roomID
	return &dto.DeactivateRoomResult{Room: models.Room{ID: roomID, Status: models.RoomStatusInactive}, Changed: true, ReleasedStudents: []string{"sp-1"}}, nil
}

func (m *lifecycleServiceMock) Activate(_ context.Context, roomID string, req dto.ActivateRoomRequest, _ *models.JWTClaims) (*models.Room, error) {
	m.activateReq = req
	return &models.Room{ID: roomID, Status: models.RoomStatusActive}, nil
}

func (m *lifecycleServiceMock) BulkReconcile(_ context.Context, _ string, states []dto.ReconcileRoomState, _ *models.JWTClaims) (*dto.ReconcileResult, error) {
	m.reconciled = states
	return &dto.ReconcileResult{Unchanged: len(states)}, nil
}

func (m *lifecycleServiceMock) ArchiveHostel(_ context.Context, hostelID string, archived bool, _ *models.JWTClaims) (*models.Hostel, error) {
	m.archived = &archived
	return &models.Hostel{ID: hostelID, IsArchived: archived}, nil
}

func (m *lifecycleServiceMock) ResetHostelAllocations(_ context.Context, hostelID string, _ *models.JWTClaims) (*dto.ResetResult, error) {
	m.reset = hostelID
	return &dto.ResetResult{HostelID: hostelID, RemovedAllocations: 3}, nil
}

func withID(c *gin.Context, id string) *gin.Context {
	c.Params = gin.Params{{Key: "id", Value: id}}
	return c
}

func TestHostelHandlerCreateAndList(t *testing.T) {
	catalog := &catalogServiceMock{}
	h := NewHostelHandler(catalog, nil)

	c, w := testContext(http.MethodPost, "/hostels", bytes.NewBufferString(`{"name":"Aravali","type":"room-only","gender":"male","rooms":[{"roomNumber":"1","capacity":2}]}`))
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.HostelTypeRoomOnly, catalog.created.Type)
	require.Len(t, catalog.created.Rooms, 1)

	c, w = testContext(http.MethodGet, "/hostels?includeArchived=true", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, catalog.includeArchived)

	c, w = testContext(http.MethodGet, "/hostels/h-1", nil)
	h.Get(withID(c, "h-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"h-1"`)
}

func TestHostelHandlerRooms(t *testing.T) {
	catalog := &catalogServiceMock{}
	h := NewHostelHandler(catalog, nil)

	c, w := testContext(http.MethodPost, "/hostels/h-1/rooms", bytes.NewBufferString(`{"rooms":[{"roomNumber":"7","capacity":3}]}`))
	h.AddRooms(withID(c, "h-1"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "h-1", catalog.addedTo)

	catalog.listRoomsErr = appErrors.ErrHostelNotFound
	c, w = testContext(http.MethodGet, "/hostels/missing/rooms", nil)
	h.ListRooms(withID(c, "missing"))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, appErrors.ErrHostelNotFound.Code, decodeError(t, w))
}

func TestHostelHandlerLifecycle(t *testing.T) {
	lifecycle := &lifecycleServiceMock{}
	h := NewHostelHandler(nil, lifecycle)

	c, w := testContext(http.MethodPost, "/rooms/r-1/deactivate", nil)
	h.DeactivateRoom(withID(c, "r-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "r-1", lifecycle.deactivated)
	assert.Contains(t, w.Body.String(), `"releasedStudents":["sp-1"]`)

	c, w = testContext(http.MethodPost, "/rooms/r-1/activate", nil)
	h.ActivateRoom(withID(c, "r-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, lifecycle.activateReq.Capacity)

	c, w = testContext(http.MethodPost, "/rooms/r-1/activate", bytes.NewBufferString(`{"capacity":4}`))
	h.ActivateRoom(withID(c, "r-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, lifecycle.activateReq.Capacity)
	assert.Equal(t, 4, *lifecycle.activateReq.Capacity)

	c, w = testContext(http.MethodPatch, "/hostels/h-1/archive", bytes.NewBufferString(`{"archived":true}`))
	h.Archive(withID(c, "h-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, lifecycle.archived)
	assert.True(t, *lifecycle.archived)

	c, w = testContext(http.MethodPost, "/hostels/h-1/reset-allocations", nil)
	h.Reset(withID(c, "h-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "h-1", lifecycle.reset)
	assert.Contains(t, w.Body.String(), `"removedAllocations":3`)
}

func TestHostelHandlerReconcile(t *testing.T) {
	lifecycle := &lifecycleServiceMock{}
	h := NewHostelHandler(nil, lifecycle)

	c, w := testContext(http.MethodPut, "/hostels/h-1/rooms/reconcile", bytes.NewBufferString(`{"rooms":[{"roomNumber":"1","status":"INACTIVE"},{"roomNumber":"2","capacity":3}]}`))
	h.Reconcile(withID(c, "h-1"))
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, lifecycle.reconciled, 2)
	require.NotNil(t, lifecycle.reconciled[0].Status)
	assert.Equal(t, models.RoomStatusInactive, *lifecycle.reconciled[0].Status)

	c, w = testContext(http.MethodPut, "/hostels/h-1/rooms/reconcile", bytes.NewBufferString(`[`))
	h.Reconcile(withID(c, "h-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
