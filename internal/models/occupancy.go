package models

import "time"

// UnknownDegree buckets residents without a recorded degree in the summary.
const UnknownDegree = "Unknown"

// SheetRow is one bed of the flat occupancy sheet. Inactive rooms yield a single row with BedNumber 0.
type SheetRow struct {
	HostelID     string     `json:"hostelId"`
	HostelName   string     `json:"hostelName"`
	UnitNumber   string     `json:"unitNumber,omitempty"`
	Floor        *int       `json:"floor,omitempty"`
	RoomID       string     `json:"roomId"`
	RoomNumber   string     `json:"roomNumber"`
	RoomStatus   RoomStatus `json:"roomStatus"`
	Capacity     int        `json:"capacity"`
	Occupancy    int        `json:"occupancy"`
	BedNumber    int        `json:"bedNumber"`
	AllocationID string     `json:"allocationId,omitempty"`
	StudentName  string     `json:"studentName,omitempty"`
	RollNumber   string     `json:"rollNumber,omitempty"`
	Email        string     `json:"email,omitempty"`
	Degree       string     `json:"degree,omitempty"`
}

// Vacant reports whether nobody holds the bed.
func (r SheetRow) Vacant() bool {
	return r.AllocationID == ""
}

// SummaryEntry is one active allocation reduced to its (degree, hostel) coordinates.
type SummaryEntry struct {
	Degree     *string `db:"degree"`
	HostelID   string  `db:"hostel_id"`
	HostelName string  `db:"hostel_name"`
}

// SummaryRow holds per-hostel counts for one degree.
type SummaryRow struct {
	Degree string         `json:"degree"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// AllocationSummary is the degree by hostel cross-tabulation of active allocations.
type AllocationSummary struct {
	Hostels      []string       `json:"hostels"`
	Rows         []SummaryRow   `json:"rows"`
	ColumnTotals map[string]int `json:"columnTotals"`
	GrandTotal   int            `json:"grandTotal"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}
