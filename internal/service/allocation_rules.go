package service

import (
	"fmt"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// checkAddressing enforces that unit-based hostels are addressed through the room's own unit and
// room-only hostels without one.
func checkAddressing(hostel *models.Hostel, room *models.Room, unitID *string) error {
	supplied := unitID != nil && *unitID != ""
	switch hostel.Type {
	case models.HostelTypeUnitBased:
		if !supplied {
			return appErrors.ErrUnitRequired
		}
		if room.UnitID == nil || *room.UnitID != *unitID {
			return appErrors.Clone(appErrors.ErrUnitMismatch, fmt.Sprintf("room %s does not belong to unit %s", room.RoomNumber, *unitID))
		}
	default:
		if supplied || room.UnitID != nil {
			return appErrors.Clone(appErrors.ErrUnitMismatch, "room-only hostels do not use units")
		}
	}
	return nil
}

// checkPlacement applies the room state checks in their canonical order. sameRoom skips the
// capacity check when a student moves between beds of the room already holding them.
func checkPlacement(room *models.Room, bedNumber int, sameRoom bool) error {
	if !room.Active() {
		return appErrors.Clone(appErrors.ErrRoomInactive, fmt.Sprintf("room %s is inactive", room.RoomNumber))
	}
	if !sameRoom && !room.HasSpace() {
		return appErrors.Clone(appErrors.ErrRoomFull, fmt.Sprintf("room %s is full (%d/%d)", room.RoomNumber, room.Occupancy, room.Capacity))
	}
	if bedNumber < 1 || bedNumber > room.Capacity {
		return appErrors.Clone(appErrors.ErrInvalidBed, fmt.Sprintf("bed %d outside 1..%d", bedNumber, room.Capacity))
	}
	return nil
}
