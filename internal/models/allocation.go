package models

import "time"

// AllocationStatus marks whether an allocation still holds its bed.
type AllocationStatus string

const (
	AllocationStatusActive  AllocationStatus = "ACTIVE"
	AllocationStatusVacated AllocationStatus = "VACATED"
)

// RoomAllocation binds one student to one bed.
type RoomAllocation struct {
	ID               string           `db:"id" json:"id"`
	HostelID         string           `db:"hostel_id" json:"hostelId"`
	RoomID           string           `db:"room_id" json:"roomId"`
	UnitID           *string          `db:"unit_id" json:"unitId,omitempty"`
	StudentProfileID string           `db:"student_profile_id" json:"studentProfileId"`
	BedNumber        int              `db:"bed_number" json:"bedNumber"`
	Status           AllocationStatus `db:"status" json:"status"`
	CreatedBy        *string          `db:"created_by" json:"createdBy,omitempty"`
	LastUpdatedBy    *string          `db:"last_updated_by" json:"lastUpdatedBy,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updatedAt"`
	VacatedAt        *time.Time       `db:"vacated_at" json:"vacatedAt,omitempty"`
}

// Active reports whether the allocation still occupies its bed.
func (a *RoomAllocation) Active() bool {
	return a != nil && a.Status == AllocationStatusActive
}
