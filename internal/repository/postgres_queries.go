package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

const (
	hostelColumns     = "id, name, type, gender, is_archived, created_at, updated_at"
	unitColumns       = "id, hostel_id, unit_number, floor, created_at"
	roomColumns       = "id, hostel_id, unit_id, room_number, capacity, occupancy, status, original_capacity, created_at, updated_at"
	allocationColumns = "id, hostel_id, room_id, unit_id, student_profile_id, bed_number, status, created_by, last_updated_by, created_at, updated_at, vacated_at"
	profileColumns    = "id, user_id, roll_number, degree, current_room_allocation_id, created_at, updated_at"
	userColumns       = "id, email, password_hash, full_name, role, active, created_at, updated_at"

	directorySelect = `SELECT sp.id AS student_profile_id, u.id AS user_id, u.full_name, u.email, sp.roll_number, sp.degree, sp.current_room_allocation_id
	FROM student_profiles sp JOIN users u ON u.id = sp.user_id`
)

// pgQueries implements AllocationReader over either the pool or a transaction.
type pgQueries struct {
	ext sqlx.ExtContext
}

func (q *pgQueries) GetHostel(ctx context.Context, id string) (*models.Hostel, error) {
	var hostel models.Hostel
	if err := sqlx.GetContext(ctx, q.ext, &hostel, "SELECT "+hostelColumns+" FROM hostels WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &hostel, nil
}

func (q *pgQueries) ListHostels(ctx context.Context, includeArchived bool) ([]models.Hostel, error) {
	query := "SELECT " + hostelColumns + " FROM hostels"
	if !includeArchived {
		query += " WHERE is_archived = FALSE"
	}
	query += " ORDER BY name ASC"
	var hostels []models.Hostel
	if err := sqlx.SelectContext(ctx, q.ext, &hostels, query); err != nil {
		return nil, fmt.Errorf("list hostels: %w", err)
	}
	return hostels, nil
}

func (q *pgQueries) FindHostels(ctx context.Context, ids []string) ([]models.Hostel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var hostels []models.Hostel
	if err := sqlx.SelectContext(ctx, q.ext, &hostels, "SELECT "+hostelColumns+" FROM hostels WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find hostels: %w", err)
	}
	return hostels, nil
}

func (q *pgQueries) GetUnit(ctx context.Context, id string) (*models.Unit, error) {
	var unit models.Unit
	if err := sqlx.GetContext(ctx, q.ext, &unit, "SELECT "+unitColumns+" FROM units WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (q *pgQueries) ListUnitsByHostel(ctx context.Context, hostelID string) ([]models.Unit, error) {
	var units []models.Unit
	if err := sqlx.SelectContext(ctx, q.ext, &units, "SELECT "+unitColumns+" FROM units WHERE hostel_id = $1 ORDER BY unit_number ASC", hostelID); err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

func (q *pgQueries) FindUnitsByHostels(ctx context.Context, hostelIDs []string) ([]models.Unit, error) {
	if len(hostelIDs) == 0 {
		return nil, nil
	}
	var units []models.Unit
	if err := sqlx.SelectContext(ctx, q.ext, &units, "SELECT "+unitColumns+" FROM units WHERE hostel_id = ANY($1)", pq.Array(hostelIDs)); err != nil {
		return nil, fmt.Errorf("find units: %w", err)
	}
	return units, nil
}

func (q *pgQueries) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := sqlx.GetContext(ctx, q.ext, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &room, nil
}

func (q *pgQueries) ListRoomsByHostel(ctx context.Context, hostelID string) ([]models.Room, error) {
	var rooms []models.Room
	if err := sqlx.SelectContext(ctx, q.ext, &rooms, "SELECT "+roomColumns+" FROM rooms WHERE hostel_id = $1 ORDER BY room_number ASC", hostelID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

func (q *pgQueries) FindRoomsByHostels(ctx context.Context, hostelIDs []string) ([]models.Room, error) {
	if len(hostelIDs) == 0 {
		return nil, nil
	}
	var rooms []models.Room
	if err := sqlx.SelectContext(ctx, q.ext, &rooms, "SELECT "+roomColumns+" FROM rooms WHERE hostel_id = ANY($1)", pq.Array(hostelIDs)); err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	return rooms, nil
}

func (q *pgQueries) GetAllocation(ctx context.Context, id string) (*models.RoomAllocation, error) {
	var allocation models.RoomAllocation
	if err := sqlx.GetContext(ctx, q.ext, &allocation, "SELECT "+allocationColumns+" FROM room_allocations WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (q *pgQueries) FindAllocations(ctx context.Context, ids []string) ([]models.RoomAllocation, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var allocations []models.RoomAllocation
	if err := sqlx.SelectContext(ctx, q.ext, &allocations, "SELECT "+allocationColumns+" FROM room_allocations WHERE id = ANY($1)", pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find allocations: %w", err)
	}
	return allocations, nil
}

func (q *pgQueries) FindActiveAllocationByBed(ctx context.Context, roomID string, bedNumber int) (*models.RoomAllocation, error) {
	var allocation models.RoomAllocation
	const query = "SELECT " + allocationColumns + " FROM room_allocations WHERE room_id = $1 AND bed_number = $2 AND status = 'ACTIVE'"
	if err := sqlx.GetContext(ctx, q.ext, &allocation, query, roomID, bedNumber); err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (q *pgQueries) FindActiveAllocationByStudent(ctx context.Context, studentProfileID string) (*models.RoomAllocation, error) {
	var allocation models.RoomAllocation
	const query = "SELECT " + allocationColumns + " FROM room_allocations WHERE student_profile_id = $1 AND status = 'ACTIVE'"
	if err := sqlx.GetContext(ctx, q.ext, &allocation, query, studentProfileID); err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (q *pgQueries) ListActiveAllocationsByRooms(ctx context.Context, roomIDs []string) ([]models.RoomAllocation, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	var allocations []models.RoomAllocation
	const query = "SELECT " + allocationColumns + " FROM room_allocations WHERE room_id = ANY($1) AND status = 'ACTIVE' ORDER BY room_id, bed_number"
	if err := sqlx.SelectContext(ctx, q.ext, &allocations, query, pq.Array(roomIDs)); err != nil {
		return nil, fmt.Errorf("list allocations by rooms: %w", err)
	}
	return allocations, nil
}

func (q *pgQueries) ListActiveAllocationsByStudents(ctx context.Context, studentProfileIDs []string) ([]models.RoomAllocation, error) {
	if len(studentProfileIDs) == 0 {
		return nil, nil
	}
	var allocations []models.RoomAllocation
	const query = "SELECT " + allocationColumns + " FROM room_allocations WHERE student_profile_id = ANY($1) AND status = 'ACTIVE'"
	if err := sqlx.SelectContext(ctx, q.ext, &allocations, query, pq.Array(studentProfileIDs)); err != nil {
		return nil, fmt.Errorf("list allocations by students: %w", err)
	}
	return allocations, nil
}

func (q *pgQueries) GetStudentProfile(ctx context.Context, id string) (*models.StudentProfile, error) {
	var profile models.StudentProfile
	if err := sqlx.GetContext(ctx, q.ext, &profile, "SELECT "+profileColumns+" FROM student_profiles WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (q *pgQueries) ListProfilesWithAllocation(ctx context.Context) ([]models.StudentProfile, error) {
	var profiles []models.StudentProfile
	const query = "SELECT " + profileColumns + " FROM student_profiles WHERE current_room_allocation_id IS NOT NULL"
	if err := sqlx.SelectContext(ctx, q.ext, &profiles, query); err != nil {
		return nil, fmt.Errorf("list allocated profiles: %w", err)
	}
	return profiles, nil
}

func (q *pgQueries) FindStudentsByEmails(ctx context.Context, emails []string) ([]models.StudentDirectoryEntry, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	var entries []models.StudentDirectoryEntry
	if err := sqlx.SelectContext(ctx, q.ext, &entries, directorySelect+" WHERE LOWER(u.email) = ANY($1)", pq.Array(emails)); err != nil {
		return nil, fmt.Errorf("find students by email: %w", err)
	}
	return entries, nil
}

func (q *pgQueries) FindStudentsByRollNumbers(ctx context.Context, rollNumbers []string) ([]models.StudentDirectoryEntry, error) {
	if len(rollNumbers) == 0 {
		return nil, nil
	}
	var entries []models.StudentDirectoryEntry
	if err := sqlx.SelectContext(ctx, q.ext, &entries, directorySelect+" WHERE sp.roll_number = ANY($1)", pq.Array(rollNumbers)); err != nil {
		return nil, fmt.Errorf("find students by roll number: %w", err)
	}
	return entries, nil
}

func (q *pgQueries) FindUsersByEmails(ctx context.Context, emails []string) ([]models.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := sqlx.SelectContext(ctx, q.ext, &users, "SELECT "+userColumns+" FROM users WHERE LOWER(email) = ANY($1)", pq.Array(emails)); err != nil {
		return nil, fmt.Errorf("find users by email: %w", err)
	}
	return users, nil
}

func (q *pgQueries) ListStudentDirectory(ctx context.Context, studentProfileIDs []string) ([]models.StudentDirectoryEntry, error) {
	if len(studentProfileIDs) == 0 {
		return nil, nil
	}
	var entries []models.StudentDirectoryEntry
	if err := sqlx.SelectContext(ctx, q.ext, &entries, directorySelect+" WHERE sp.id = ANY($1)", pq.Array(studentProfileIDs)); err != nil {
		return nil, fmt.Errorf("list student directory: %w", err)
	}
	return entries, nil
}

func (q *pgQueries) ListSummaryEntries(ctx context.Context) ([]models.SummaryEntry, error) {
	const query = `SELECT sp.degree, h.id AS hostel_id, h.name AS hostel_name
	FROM room_allocations ra
	JOIN student_profiles sp ON sp.id = ra.student_profile_id
	JOIN hostels h ON h.id = ra.hostel_id
	WHERE ra.status = 'ACTIVE'`
	var entries []models.SummaryEntry
	if err := sqlx.SelectContext(ctx, q.ext, &entries, query); err != nil {
		return nil, fmt.Errorf("list summary entries: %w", err)
	}
	return entries, nil
}
