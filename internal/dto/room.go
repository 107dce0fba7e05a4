package dto

import "github.com/noah-isme/hostel-allocation-api/internal/models"

// RoomSpec describes a room to create.
type RoomSpec struct {
	RoomNumber string `json:"roomNumber" validate:"required"`
	Capacity   int    `json:"capacity" validate:"required,min=1"`
}

// UnitSpec describes a unit and its rooms.
type UnitSpec struct {
	UnitNumber string     `json:"unitNumber" validate:"required"`
	Floor      int        `json:"floor" validate:"min=0"`
	Rooms      []RoomSpec `json:"rooms" validate:"dive"`
}

// CreateHostelRequest sets up a hostel. Unit-based hostels list rooms under Units, room-only
// hostels under Rooms.
type CreateHostelRequest struct {
	Name   string            `json:"name" validate:"required"`
	Type   models.HostelType `json:"type" validate:"required,oneof=unit-based room-only"`
	Gender string            `json:"gender" validate:"required"`
	Units  []UnitSpec        `json:"units,omitempty" validate:"dive"`
	Rooms  []RoomSpec        `json:"rooms,omitempty" validate:"dive"`
}

// HostelLayout is a hostel with its units and rooms.
type HostelLayout struct {
	models.Hostel
	Units []models.Unit `json:"units"`
	Rooms []models.Room `json:"rooms"`
}

// AddRoomsRequest appends rooms to an existing hostel. UnitNumber is required for unit-based
// hostels; the unit is created when it does not exist yet.
type AddRoomsRequest struct {
	UnitNumber string     `json:"unitNumber,omitempty"`
	Floor      int        `json:"floor" validate:"min=0"`
	Rooms      []RoomSpec `json:"rooms" validate:"required,min=1,dive"`
}

// ArchiveHostelRequest toggles hostel visibility.
type ArchiveHostelRequest struct {
	Archived bool `json:"archived"`
}

// ActivateRoomRequest optionally restores a capacity.
type ActivateRoomRequest struct {
	Capacity *int `json:"capacity,omitempty"`
}

// DeactivateRoomResult reports the cascade of a deactivation.
type DeactivateRoomResult struct {
	Room             models.Room `json:"room"`
	Changed          bool        `json:"changed"`
	ReleasedStudents []string    `json:"releasedStudents"`
}

// ReconcileRoomState is a desired room state for reconciliation.
type ReconcileRoomState struct {
	RoomNumber string             `json:"roomNumber" validate:"required"`
	UnitNumber *string            `json:"unitNumber,omitempty"`
	Status     *models.RoomStatus `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Capacity   *int               `json:"capacity,omitempty" validate:"omitempty,min=1"`
}

// ReconcileRoomsRequest wraps desired states.
type ReconcileRoomsRequest struct {
	Rooms []ReconcileRoomState `json:"rooms" validate:"required,min=1"`
}

// ReconcileError reports a desired state that could not be applied.
type ReconcileError struct {
	Index      int     `json:"index"`
	RoomNumber string  `json:"roomNumber"`
	UnitNumber *string `json:"unitNumber,omitempty"`
	Code       string  `json:"code"`
	Message    string  `json:"message"`
}

// ReconcileResult summarises the applied diff.
type ReconcileResult struct {
	Activated        []string         `json:"activated"`
	Deactivated      []string         `json:"deactivated"`
	CapacityUpdated  []string         `json:"capacityUpdated"`
	Unchanged        int              `json:"unchanged"`
	ReleasedStudents []string         `json:"releasedStudents"`
	Errors           []ReconcileError `json:"errors"`
}

// ResetResult reports a hostel-wide reset.
type ResetResult struct {
	HostelID           string `json:"hostelId"`
	RemovedAllocations int    `json:"removedAllocations"`
	ClearedProfiles    int    `json:"clearedProfiles"`
	RoomsReset         int    `json:"roomsReset"`
}
