package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

// pgTx adds the write path on top of the transactional reader.
type pgTx struct {
	pgQueries
}

func (t *pgTx) LockRoom(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	if err := sqlx.GetContext(ctx, t.ext, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, err
	}
	return &room, nil
}

// LockRooms locks in id order so concurrent batches touching overlapping rooms cannot deadlock.
func (t *pgTx) LockRooms(ctx context.Context, ids []string) ([]models.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rooms []models.Room
	const query = "SELECT " + roomColumns + " FROM rooms WHERE id = ANY($1) ORDER BY id FOR UPDATE"
	if err := sqlx.SelectContext(ctx, t.ext, &rooms, query, pq.Array(ids)); err != nil {
		return nil, translateError(fmt.Errorf("lock rooms: %w", err))
	}
	return rooms, nil
}

func (t *pgTx) LockRoomsByHostel(ctx context.Context, hostelID string) ([]models.Room, error) {
	var rooms []models.Room
	const query = "SELECT " + roomColumns + " FROM rooms WHERE hostel_id = $1 ORDER BY id FOR UPDATE"
	if err := sqlx.SelectContext(ctx, t.ext, &rooms, query, hostelID); err != nil {
		return nil, translateError(fmt.Errorf("lock hostel rooms: %w", err))
	}
	return rooms, nil
}

func (t *pgTx) InsertAllocation(ctx context.Context, allocation *models.RoomAllocation) error {
	if allocation.ID == "" {
		allocation.ID = uuid.NewString()
	}
	if allocation.Status == "" {
		allocation.Status = models.AllocationStatusActive
	}
	now := time.Now().UTC()
	if allocation.CreatedAt.IsZero() {
		allocation.CreatedAt = now
	}
	allocation.UpdatedAt = now
	const query = `INSERT INTO room_allocations
	(id, hostel_id, room_id, unit_id, student_profile_id, bed_number, status, created_by, last_updated_by, created_at, updated_at, vacated_at)
	VALUES (:id, :hostel_id, :room_id, :unit_id, :student_profile_id, :bed_number, :status, :created_by, :last_updated_by, :created_at, :updated_at, :vacated_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.ext, query, allocation); err != nil {
		return translateError(fmt.Errorf("insert allocation: %w", err))
	}
	return nil
}

// MoveAllocation points an active allocation at another bed. hostel_id follows the target room so
// hostel-scoped resets and summaries see the row where it now lives.
func (t *pgTx) MoveAllocation(ctx context.Context, move MoveAllocation) error {
	const query = `UPDATE room_allocations
	SET room_id = $2, hostel_id = (SELECT hostel_id FROM rooms WHERE id = $2), unit_id = $3, bed_number = $4, last_updated_by = $5, updated_at = NOW()
	WHERE id = $1 AND status = 'ACTIVE'`
	result, err := t.ext.ExecContext(ctx, query, move.AllocationID, move.RoomID, move.UnitID, move.BedNumber, move.ActorID)
	if err != nil {
		return translateError(fmt.Errorf("move allocation: %w", err))
	}
	return expectRow(result, "move allocation")
}

func (t *pgTx) VacateAllocation(ctx context.Context, id string, actorID *string) error {
	const query = `UPDATE room_allocations
	SET status = 'VACATED', vacated_at = NOW(), updated_at = NOW(), last_updated_by = $2
	WHERE id = $1 AND status = 'ACTIVE'`
	result, err := t.ext.ExecContext(ctx, query, id, actorID)
	if err != nil {
		return translateError(fmt.Errorf("vacate allocation: %w", err))
	}
	return expectRow(result, "vacate allocation")
}

// AdjustOccupancy applies delta only while the room stays active and within [0, capacity].
func (t *pgTx) AdjustOccupancy(ctx context.Context, roomID string, delta int) error {
	if delta == 0 {
		return nil
	}
	const query = `UPDATE rooms SET occupancy = occupancy + $2, updated_at = NOW()
	WHERE id = $1 AND status = 'ACTIVE' AND occupancy + $2 >= 0 AND occupancy + $2 <= capacity`
	result, err := t.ext.ExecContext(ctx, query, roomID, delta)
	if err != nil {
		return translateError(fmt.Errorf("adjust occupancy: %w", err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check occupancy update rows: %w", err)
	}
	if rows == 0 {
		return ErrCapacityExceeded
	}
	return nil
}

func (t *pgTx) SetCurrentAllocation(ctx context.Context, studentProfileID, allocationID string) error {
	const query = `UPDATE student_profiles SET current_room_allocation_id = $2, updated_at = NOW() WHERE id = $1`
	result, err := t.ext.ExecContext(ctx, query, studentProfileID, allocationID)
	if err != nil {
		return translateError(fmt.Errorf("set current allocation: %w", err))
	}
	return expectRow(result, "set current allocation")
}

func (t *pgTx) ClearCurrentAllocation(ctx context.Context, studentProfileID, allocationID string) error {
	const query = `UPDATE student_profiles SET current_room_allocation_id = NULL, updated_at = NOW()
	WHERE id = $1 AND current_room_allocation_id = $2`
	if _, err := t.ext.ExecContext(ctx, query, studentProfileID, allocationID); err != nil {
		return translateError(fmt.Errorf("clear current allocation: %w", err))
	}
	return nil
}

// DeactivateRooms clears back-references, removes every allocation row of the rooms and parks the
// capacity in original_capacity. Rooms already inactive keep their stored capacity. It returns the
// profiles that lost an active allocation.
func (t *pgTx) DeactivateRooms(ctx context.Context, roomIDs []string) ([]string, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	ids := pq.Array(roomIDs)

	var released []string
	const selectQuery = `SELECT student_profile_id FROM room_allocations WHERE room_id = ANY($1) AND status = 'ACTIVE' ORDER BY student_profile_id`
	if err := sqlx.SelectContext(ctx, t.ext, &released, selectQuery, ids); err != nil {
		return nil, translateError(fmt.Errorf("collect released students: %w", err))
	}

	const clearQuery = `UPDATE student_profiles SET current_room_allocation_id = NULL, updated_at = NOW()
	WHERE current_room_allocation_id IN (SELECT id FROM room_allocations WHERE room_id = ANY($1))`
	if _, err := t.ext.ExecContext(ctx, clearQuery, ids); err != nil {
		return nil, translateError(fmt.Errorf("clear back-references: %w", err))
	}

	if _, err := t.ext.ExecContext(ctx, `DELETE FROM room_allocations WHERE room_id = ANY($1)`, ids); err != nil {
		return nil, translateError(fmt.Errorf("delete room allocations: %w", err))
	}

	const roomQuery = `UPDATE rooms
	SET status = 'INACTIVE', original_capacity = capacity, capacity = 0, occupancy = 0, updated_at = NOW()
	WHERE id = ANY($1) AND status = 'ACTIVE'`
	if _, err := t.ext.ExecContext(ctx, roomQuery, ids); err != nil {
		return nil, translateError(fmt.Errorf("deactivate rooms: %w", err))
	}
	return released, nil
}

func (t *pgTx) ActivateRooms(ctx context.Context, activations []RoomActivation) error {
	if len(activations) == 0 {
		return nil
	}
	ids := make([]string, len(activations))
	capacities := make([]int64, len(activations))
	for i, a := range activations {
		ids[i] = a.RoomID
		capacities[i] = int64(a.Capacity)
	}
	const query = `UPDATE rooms AS r
	SET status = 'ACTIVE', capacity = v.capacity, original_capacity = NULL, occupancy = 0, updated_at = NOW()
	FROM (SELECT UNNEST($1::text[]) AS id, UNNEST($2::int[]) AS capacity) AS v
	WHERE r.id = v.id AND r.status = 'INACTIVE'`
	if _, err := t.ext.ExecContext(ctx, query, pq.Array(ids), pq.Array(capacities)); err != nil {
		return translateError(fmt.Errorf("activate rooms: %w", err))
	}
	return nil
}

func (t *pgTx) UpdateRoomCapacities(ctx context.Context, changes []CapacityChange) error {
	if len(changes) == 0 {
		return nil
	}
	ids := make([]string, len(changes))
	capacities := make([]int64, len(changes))
	for i, c := range changes {
		ids[i] = c.RoomID
		capacities[i] = int64(c.Capacity)
	}
	const query = `UPDATE rooms AS r
	SET capacity = CASE WHEN r.status = 'ACTIVE' THEN v.capacity ELSE r.capacity END,
	    original_capacity = CASE WHEN r.status = 'INACTIVE' THEN v.capacity ELSE r.original_capacity END,
	    updated_at = NOW()
	FROM (SELECT UNNEST($1::text[]) AS id, UNNEST($2::int[]) AS capacity) AS v
	WHERE r.id = v.id`
	if _, err := t.ext.ExecContext(ctx, query, pq.Array(ids), pq.Array(capacities)); err != nil {
		return translateError(fmt.Errorf("update room capacities: %w", err))
	}
	return nil
}

func (t *pgTx) ResetHostelAllocations(ctx context.Context, hostelID string) (ResetCounts, error) {
	var counts ResetCounts

	const clearQuery = `UPDATE student_profiles SET current_room_allocation_id = NULL, updated_at = NOW()
	WHERE current_room_allocation_id IN (SELECT id FROM room_allocations WHERE hostel_id = $1)`
	result, err := t.ext.ExecContext(ctx, clearQuery, hostelID)
	if err != nil {
		return counts, translateError(fmt.Errorf("clear hostel back-references: %w", err))
	}
	counts.Profiles = affected(result)

	result, err = t.ext.ExecContext(ctx, `DELETE FROM room_allocations WHERE hostel_id = $1`, hostelID)
	if err != nil {
		return counts, translateError(fmt.Errorf("delete hostel allocations: %w", err))
	}
	counts.Allocations = affected(result)

	result, err = t.ext.ExecContext(ctx, `UPDATE rooms SET occupancy = 0, updated_at = NOW() WHERE hostel_id = $1 AND occupancy <> 0`, hostelID)
	if err != nil {
		return counts, translateError(fmt.Errorf("reset hostel occupancy: %w", err))
	}
	counts.Rooms = affected(result)
	return counts, nil
}

func (t *pgTx) SetHostelArchived(ctx context.Context, hostelID string, archived bool) error {
	result, err := t.ext.ExecContext(ctx, `UPDATE hostels SET is_archived = $2, updated_at = NOW() WHERE id = $1`, hostelID, archived)
	if err != nil {
		return fmt.Errorf("archive hostel: %w", err)
	}
	return expectRow(result, "archive hostel")
}

func (t *pgTx) CreateHostel(ctx context.Context, hostel *models.Hostel) error {
	if hostel.ID == "" {
		hostel.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	hostel.CreatedAt, hostel.UpdatedAt = now, now
	const query = `INSERT INTO hostels (id, name, type, gender, is_archived, created_at, updated_at)
	VALUES (:id, :name, :type, :gender, :is_archived, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.ext, query, hostel); err != nil {
		return translateError(fmt.Errorf("create hostel: %w", err))
	}
	return nil
}

func (t *pgTx) CreateUnit(ctx context.Context, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	unit.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO units (id, hostel_id, unit_number, floor, created_at)
	VALUES (:id, :hostel_id, :unit_number, :floor, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.ext, query, unit); err != nil {
		return translateError(fmt.Errorf("create unit: %w", err))
	}
	return nil
}

func (t *pgTx) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = models.RoomStatusActive
	}
	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	const query = `INSERT INTO rooms (id, hostel_id, unit_id, room_number, capacity, occupancy, status, original_capacity, created_at, updated_at)
	VALUES (:id, :hostel_id, :unit_id, :room_number, :capacity, 0, :status, :original_capacity, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.ext, query, room); err != nil {
		return translateError(fmt.Errorf("create room: %w", err))
	}
	room.Occupancy = 0
	return nil
}

func (t *pgTx) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	const query = `INSERT INTO users (id, email, password_hash, full_name, role, active, created_at, updated_at)
	VALUES (:id, :email, :password_hash, :full_name, :role, :active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.ext, query, user); err != nil {
		return translateError(fmt.Errorf("create user: %w", err))
	}
	return nil
}

func (t *pgTx) CreateStudentProfile(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	profile.CreatedAt, profile.UpdatedAt = now, now
	const query = `INSERT INTO student_profiles (id, user_id, roll_number, degree, current_room_allocation_id, created_at, updated_at)
	VALUES (:id, :user_id, :roll_number, :degree, :current_room_allocation_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, t.ext, query, profile); err != nil {
		return translateError(fmt.Errorf("create student profile: %w", err))
	}
	return nil
}

func expectRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func affected(result sql.Result) int {
	rows, err := result.RowsAffected()
	if err != nil {
		return 0
	}
	return int(rows)
}
