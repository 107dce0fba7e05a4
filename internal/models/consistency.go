package models

import "time"

// Consistency rules checked by the verifier.
const (
	RuleOccupancyCount   = "occupancy_matches_active_allocations"
	RuleCapacity         = "occupancy_within_capacity"
	RuleBedUnique        = "single_active_allocation_per_bed"
	RuleStudentUnique    = "single_active_allocation_per_student"
	RuleUnitAddressing   = "unit_addressing"
	RuleBedRange         = "bed_within_capacity"
	RuleInactiveEmpty    = "inactive_room_empty"
	RuleBackReference    = "back_reference_points_to_active_allocation"
	RuleOriginalCapacity = "inactive_room_remembers_capacity"
)

// ConsistencyViolation describes one broken rule.
type ConsistencyViolation struct {
	Rule     string `json:"rule"`
	HostelID string `json:"hostelId,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
	EntityID string `json:"entityId,omitempty"`
	Message  string `json:"message"`
}

// ConsistencyReport is the verifier output.
type ConsistencyReport struct {
	CheckedHostels     int                    `json:"checkedHostels"`
	CheckedRooms       int                    `json:"checkedRooms"`
	CheckedAllocations int                    `json:"checkedAllocations"`
	Violations         []ConsistencyViolation `json:"violations"`
	CheckedAt          time.Time              `json:"checkedAt"`
}

// Healthy reports whether no rule is broken.
func (r *ConsistencyReport) Healthy() bool {
	return r != nil && len(r.Violations) == 0
}
