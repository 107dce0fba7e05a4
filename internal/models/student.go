package models

import "time"

// StudentProfile carries resident information and the pointer to the active allocation.
type StudentProfile struct {
	ID                      string    `db:"id" json:"id"`
	UserID                  string    `db:"user_id" json:"userId"`
	RollNumber              string    `db:"roll_number" json:"rollNumber"`
	Degree                  *string   `db:"degree" json:"degree,omitempty"`
	CurrentRoomAllocationID *string   `db:"current_room_allocation_id" json:"currentRoomAllocationId,omitempty"`
	CreatedAt               time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time `db:"updated_at" json:"updatedAt"`
}

// StudentDirectoryEntry joins a student profile with its user account.
type StudentDirectoryEntry struct {
	StudentProfileID        string  `db:"student_profile_id" json:"studentProfileId"`
	UserID                  string  `db:"user_id" json:"userId"`
	FullName                string  `db:"full_name" json:"fullName"`
	Email                   string  `db:"email" json:"email"`
	RollNumber              string  `db:"roll_number" json:"rollNumber"`
	Degree                  *string `db:"degree" json:"degree,omitempty"`
	CurrentRoomAllocationID *string `db:"current_room_allocation_id" json:"currentRoomAllocationId,omitempty"`
}
