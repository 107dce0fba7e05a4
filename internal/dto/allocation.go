package dto

import "github.com/noah-isme/hostel-allocation-api/internal/models"

// AllocateRequest binds a student to a bed.
type AllocateRequest struct {
	RoomID           string  `json:"roomId" validate:"required"`
	StudentProfileID string  `json:"studentProfileId" validate:"required"`
	BedNumber        int     `json:"bedNumber"`
	UnitID           *string `json:"unitId,omitempty"`
}

// ReassignRequest moves a student's active allocation to another bed.
type ReassignRequest struct {
	RoomID    string  `json:"roomId" validate:"required"`
	BedNumber int     `json:"bedNumber"`
	UnitID    *string `json:"unitId,omitempty"`
}

// AllocationResponse enriches an allocation with room addressing.
type AllocationResponse struct {
	models.RoomAllocation
	RoomNumber string `json:"roomNumber"`
	RoomStatus string `json:"roomStatus"`
	Occupancy  int    `json:"occupancy"`
	Capacity   int    `json:"capacity"`
}
