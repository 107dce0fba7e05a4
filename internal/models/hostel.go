package models

import "time"

// HostelType controls how rooms inside a hostel are addressed.
type HostelType string

const (
	// HostelTypeUnitBased hostels address rooms through an intermediate unit (wing/floor block).
	HostelTypeUnitBased HostelType = "unit-based"
	// HostelTypeRoomOnly hostels address rooms directly by room number.
	HostelTypeRoomOnly HostelType = "room-only"
)

// Valid reports whether the type is one of the supported addressing schemes.
func (t HostelType) Valid() bool {
	return t == HostelTypeUnitBased || t == HostelTypeRoomOnly
}

// Hostel is the top-level residence grouping rooms (and units).
type Hostel struct {
	ID         string     `db:"id" json:"id"`
	Name       string     `db:"name" json:"name"`
	Type       HostelType `db:"type" json:"type"`
	Gender     string     `db:"gender" json:"gender"`
	IsArchived bool       `db:"is_archived" json:"isArchived"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updatedAt"`
}

// Unit groups rooms inside a unit-based hostel.
type Unit struct {
	ID         string    `db:"id" json:"id"`
	HostelID   string    `db:"hostel_id" json:"hostelId"`
	UnitNumber string    `db:"unit_number" json:"unitNumber"`
	Floor      int       `db:"floor" json:"floor"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
