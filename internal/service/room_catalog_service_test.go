package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository/memory"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

func TestCreateUnitBasedHostel(t *testing.T) {
	store := memory.New()
	notifier := &countingNotifier{}
	svc := NewRoomCatalogService(store, store, notifier, nil, nil)
	ctx := context.Background()

	layout, err := svc.CreateHostel(ctx, dto.CreateHostelRequest{
		Name:   "  Kaveri ",
		Type:   models.HostelTypeUnitBased,
		Gender: "female",
		Units: []dto.UnitSpec{
			{UnitNumber: "G", Floor: 0, Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 2}, {RoomNumber: "2", Capacity: 3}}},
			{UnitNumber: "F1", Floor: 1, Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 1}}},
		},
	}, warden)
	require.NoError(t, err)
	assert.Equal(t, "Kaveri", layout.Name)
	assert.Len(t, layout.Units, 2)
	require.Len(t, layout.Rooms, 3)
	for _, room := range layout.Rooms {
		assert.Equal(t, models.RoomStatusActive, room.Status)
		assert.Equal(t, 0, room.Occupancy)
		assert.NotNil(t, room.UnitID)
	}
	assert.Equal(t, 1, notifier.count())
	require.Len(t, store.AuditLogs(), 1)
	assert.Equal(t, models.AuditActionHostelCreate, store.AuditLogs()[0].Action)

	fetched, err := svc.GetHostel(ctx, layout.ID)
	require.NoError(t, err)
	assert.Len(t, fetched.Rooms, 3)

	added, err := svc.AddRooms(ctx, layout.ID, dto.AddRoomsRequest{UnitNumber: "F2", Floor: 2, Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 4}}}, nil)
	require.NoError(t, err)
	require.Len(t, added, 1)
	fetched, err = svc.GetHostel(ctx, layout.ID)
	require.NoError(t, err)
	assert.Len(t, fetched.Units, 3, "a missing unit is created")

	_, err = svc.AddRooms(ctx, layout.ID, dto.AddRoomsRequest{UnitNumber: "G", Rooms: []dto.RoomSpec{{RoomNumber: "2", Capacity: 1}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	_, err = svc.AddRooms(ctx, layout.ID, dto.AddRoomsRequest{Rooms: []dto.RoomSpec{{RoomNumber: "9", Capacity: 1}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnitRequired)
}

func TestCreateHostelRejectsMismatchedLayouts(t *testing.T) {
	store := memory.New()
	svc := NewRoomCatalogService(store, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateHostel(ctx, dto.CreateHostelRequest{Name: "A", Type: models.HostelTypeUnitBased, Gender: "male", Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 1}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnitRequired)
	_, err = svc.CreateHostel(ctx, dto.CreateHostelRequest{Name: "B", Type: models.HostelTypeRoomOnly, Gender: "male", Units: []dto.UnitSpec{{UnitNumber: "A"}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnitMismatch)
	_, err = svc.CreateHostel(ctx, dto.CreateHostelRequest{Name: "C", Type: models.HostelTypeRoomOnly, Gender: "male", Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 1}, {RoomNumber: "1", Capacity: 2}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateInBatch)
	_, err = svc.CreateHostel(ctx, dto.CreateHostelRequest{Name: "D", Type: "tower", Gender: "male"}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	_, err = svc.CreateHostel(ctx, dto.CreateHostelRequest{Name: "E", Type: models.HostelTypeRoomOnly, Gender: "male", Rooms: []dto.RoomSpec{{RoomNumber: "1", Capacity: 0}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	hostels, err := svc.ListHostels(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, hostels, "rejected layouts leave nothing behind")
}

func TestAddRoomsToRoomOnlyHostel(t *testing.T) {
	w := newWorld(t, 0)
	svc := NewRoomCatalogService(w.store, nil, nil, nil, nil)
	ctx := context.Background()

	added, err := svc.AddRooms(ctx, w.aravali.ID, dto.AddRoomsRequest{Rooms: []dto.RoomSpec{{RoomNumber: "11", Capacity: 2}}}, nil)
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Nil(t, added[0].UnitID)

	_, err = svc.AddRooms(ctx, w.aravali.ID, dto.AddRoomsRequest{UnitNumber: "A", Rooms: []dto.RoomSpec{{RoomNumber: "12", Capacity: 2}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrUnitMismatch)
	_, err = svc.AddRooms(ctx, "missing", dto.AddRoomsRequest{Rooms: []dto.RoomSpec{{RoomNumber: "12", Capacity: 2}}}, nil)
	assert.ErrorIs(t, err, appErrors.ErrHostelNotFound)

	rooms, err := svc.ListRooms(ctx, w.aravali.ID)
	require.NoError(t, err)
	assert.Len(t, rooms, 4)
	_, err = svc.GetHostel(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrHostelNotFound)
}
