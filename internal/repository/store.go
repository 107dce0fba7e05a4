package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

// Constraint names shared by the PostgreSQL schema and the in-memory store.
const (
	ConstraintActiveBed       = "room_allocations_active_bed_uidx"
	ConstraintActiveStudent   = "room_allocations_active_student_uidx"
	ConstraintUserEmail       = "users_email_key"
	ConstraintRollNumber      = "student_profiles_roll_number_key"
	ConstraintOccupancy       = "rooms_occupancy_check"
	ConstraintRoomNumber      = "rooms_number_uidx"
	ConstraintUnitNumber      = "units_hostel_number_key"
	ConstraintCurrentAllocRef = "student_profiles_current_allocation_fkey"
)

var (
	// ErrCapacityExceeded is returned when an occupancy adjustment would leave the room outside [0, capacity]
	// or the room is not active.
	ErrCapacityExceeded = errors.New("room occupancy out of range")
	// ErrTransient marks serialization failures and deadlocks that are safe to retry.
	ErrTransient = errors.New("transient transaction conflict")
)

// ConstraintError reports a unique or check constraint violation.
type ConstraintError struct {
	Constraint string
	Err        error
}

func (e *ConstraintError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("constraint %s violated", e.Constraint)
	}
	return fmt.Sprintf("constraint %s violated: %v", e.Constraint, e.Err)
}

func (e *ConstraintError) Unwrap() error {
	return e.Err
}

// ConstraintName extracts the violated constraint, if any.
func ConstraintName(err error) (string, bool) {
	var cerr *ConstraintError
	if errors.As(err, &cerr) {
		return cerr.Constraint, true
	}
	return "", false
}

// IsRetryable reports whether an aborted transaction may be re-run against fresh state.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrCapacityExceeded) {
		return true
	}
	name, ok := ConstraintName(err)
	if !ok {
		return false
	}
	return name == ConstraintActiveBed || name == ConstraintActiveStudent || name == ConstraintOccupancy
}

// RoomActivation restores a room to service with the given capacity.
type RoomActivation struct {
	RoomID   string
	Capacity int
}

// CapacityChange rewrites the capacity of a room. Inactive rooms store it as their original capacity.
type CapacityChange struct {
	RoomID   string
	Capacity int
}

// MoveAllocation rewrites the placement of an active allocation without minting a new id.
type MoveAllocation struct {
	AllocationID string
	RoomID       string
	UnitID       *string
	BedNumber    int
	ActorID      *string
}

// ResetCounts reports the effects of a hostel-wide reset.
type ResetCounts struct {
	Allocations int
	Profiles    int
	Rooms       int
}

// AllocationReader is the read side shared by views and transactions. Missing single rows
// are reported as sql.ErrNoRows.
type AllocationReader interface {
	GetHostel(ctx context.Context, id string) (*models.Hostel, error)
	ListHostels(ctx context.Context, includeArchived bool) ([]models.Hostel, error)
	FindHostels(ctx context.Context, ids []string) ([]models.Hostel, error)
	GetUnit(ctx context.Context, id string) (*models.Unit, error)
	ListUnitsByHostel(ctx context.Context, hostelID string) ([]models.Unit, error)
	FindUnitsByHostels(ctx context.Context, hostelIDs []string) ([]models.Unit, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)
	ListRoomsByHostel(ctx context.Context, hostelID string) ([]models.Room, error)
	FindRoomsByHostels(ctx context.Context, hostelIDs []string) ([]models.Room, error)
	GetAllocation(ctx context.Context, id string) (*models.RoomAllocation, error)
	FindAllocations(ctx context.Context, ids []string) ([]models.RoomAllocation, error)
	FindActiveAllocationByBed(ctx context.Context, roomID string, bedNumber int) (*models.RoomAllocation, error)
	FindActiveAllocationByStudent(ctx context.Context, studentProfileID string) (*models.RoomAllocation, error)
	ListActiveAllocationsByRooms(ctx context.Context, roomIDs []string) ([]models.RoomAllocation, error)
	ListActiveAllocationsByStudents(ctx context.Context, studentProfileIDs []string) ([]models.RoomAllocation, error)
	GetStudentProfile(ctx context.Context, id string) (*models.StudentProfile, error)
	ListProfilesWithAllocation(ctx context.Context) ([]models.StudentProfile, error)
	FindStudentsByEmails(ctx context.Context, emails []string) ([]models.StudentDirectoryEntry, error)
	FindStudentsByRollNumbers(ctx context.Context, rollNumbers []string) ([]models.StudentDirectoryEntry, error)
	FindUsersByEmails(ctx context.Context, emails []string) ([]models.User, error)
	ListStudentDirectory(ctx context.Context, studentProfileIDs []string) ([]models.StudentDirectoryEntry, error)
	ListSummaryEntries(ctx context.Context) ([]models.SummaryEntry, error)
}

// AllocationTx is the only write path for occupancy counters, allocation rows and the student
// back-reference. Its methods run inside one storage transaction.
type AllocationTx interface {
	AllocationReader

	LockRoom(ctx context.Context, id string) (*models.Room, error)
	LockRooms(ctx context.Context, ids []string) ([]models.Room, error)
	LockRoomsByHostel(ctx context.Context, hostelID string) ([]models.Room, error)

	InsertAllocation(ctx context.Context, allocation *models.RoomAllocation) error
	MoveAllocation(ctx context.Context, move MoveAllocation) error
	VacateAllocation(ctx context.Context, id string, actorID *string) error
	AdjustOccupancy(ctx context.Context, roomID string, delta int) error
	SetCurrentAllocation(ctx context.Context, studentProfileID, allocationID string) error
	ClearCurrentAllocation(ctx context.Context, studentProfileID, allocationID string) error

	DeactivateRooms(ctx context.Context, roomIDs []string) ([]string, error)
	ActivateRooms(ctx context.Context, activations []RoomActivation) error
	UpdateRoomCapacities(ctx context.Context, changes []CapacityChange) error
	ResetHostelAllocations(ctx context.Context, hostelID string) (ResetCounts, error)
	SetHostelArchived(ctx context.Context, hostelID string, archived bool) error

	CreateHostel(ctx context.Context, hostel *models.Hostel) error
	CreateUnit(ctx context.Context, unit *models.Unit) error
	CreateRoom(ctx context.Context, room *models.Room) error
	CreateUser(ctx context.Context, user *models.User) error
	CreateStudentProfile(ctx context.Context, profile *models.StudentProfile) error
}

// TxRunner executes units of work. A non-nil error from fn or from commit leaves no side effects.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx AllocationTx) error) error
	View(ctx context.Context, fn func(ctx context.Context, r AllocationReader) error) error
}

// QueryObserver receives storage timings.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

func observe(o QueryObserver, label string, start time.Time) {
	if o == nil {
		return
	}
	o.ObserveDBQuery(label, time.Since(start))
}
