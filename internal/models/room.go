package models

import "time"

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "ACTIVE"
	RoomStatusInactive RoomStatus = "INACTIVE"
)

// Room is a bookable room. Occupancy mirrors the number of active allocations and only
// changes through the allocation and lifecycle stores; there is no generic update path.
type Room struct {
	ID               string     `db:"id" json:"id"`
	HostelID         string     `db:"hostel_id" json:"hostelId"`
	UnitID           *string    `db:"unit_id" json:"unitId,omitempty"`
	RoomNumber       string     `db:"room_number" json:"roomNumber"`
	Capacity         int        `db:"capacity" json:"capacity"`
	Occupancy        int        `db:"occupancy" json:"occupancy"`
	Status           RoomStatus `db:"status" json:"status"`
	OriginalCapacity *int       `db:"original_capacity" json:"originalCapacity,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`
}

// Active reports whether the room accepts allocations.
func (r *Room) Active() bool {
	return r != nil && r.Status == RoomStatusActive
}

// HasSpace reports whether another bed can be taken.
func (r *Room) HasSpace() bool {
	return r != nil && r.Occupancy < r.Capacity
}

// UnitValue returns the unit id or an empty string for room-only rooms.
func (r *Room) UnitValue() string {
	if r == nil || r.UnitID == nil {
		return ""
	}
	return *r.UnitID
}
