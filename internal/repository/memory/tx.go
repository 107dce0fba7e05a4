package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
)

type txn struct {
	reader
}

func conflict(name string, format string, args ...interface{}) error {
	return &repository.ConstraintError{Constraint: name, Err: fmt.Errorf(format, args...)}
}

func now() time.Time {
	return time.Now().UTC()
}

func strPtr(s string) *string {
	return &s
}

func (t *txn) LockRoom(ctx context.Context, id string) (*models.Room, error) {
	return t.GetRoom(ctx, id)
}

func (t *txn) LockRooms(_ context.Context, ids []string) ([]models.Room, error) {
	out := make([]models.Room, 0, len(ids))
	for id := range toSet(ids) {
		if room, ok := t.st.rooms[id]; ok {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *txn) LockRoomsByHostel(ctx context.Context, hostelID string) ([]models.Room, error) {
	return t.FindRoomsByHostels(ctx, []string{hostelID})
}

func (t *txn) checkActiveUnique(a models.RoomAllocation) error {
	for id, other := range t.st.allocations {
		if id == a.ID || !other.Active() {
			continue
		}
		if other.RoomID == a.RoomID && other.BedNumber == a.BedNumber {
			return conflict(repository.ConstraintActiveBed, "bed %d of room %s already taken by %s", a.BedNumber, a.RoomID, id)
		}
		if other.StudentProfileID == a.StudentProfileID {
			return conflict(repository.ConstraintActiveStudent, "student %s already holds %s", a.StudentProfileID, id)
		}
	}
	return nil
}

func (t *txn) InsertAllocation(_ context.Context, allocation *models.RoomAllocation) error {
	if allocation.ID == "" {
		allocation.ID = uuid.NewString()
	}
	if allocation.Status == "" {
		allocation.Status = models.AllocationStatusActive
	}
	if _, exists := t.st.allocations[allocation.ID]; exists {
		return conflict("room_allocations_pkey", "allocation %s exists", allocation.ID)
	}
	if _, ok := t.st.rooms[allocation.RoomID]; !ok {
		return conflict("room_allocations_room_id_fkey", "room %s missing", allocation.RoomID)
	}
	if _, ok := t.st.profiles[allocation.StudentProfileID]; !ok {
		return conflict("room_allocations_student_profile_id_fkey", "student profile %s missing", allocation.StudentProfileID)
	}
	if allocation.BedNumber < 1 {
		return conflict("room_allocations_bed_number_check", "bed number %d", allocation.BedNumber)
	}
	if allocation.Active() {
		if err := t.checkActiveUnique(*allocation); err != nil {
			return err
		}
	}
	ts := now()
	if allocation.CreatedAt.IsZero() {
		allocation.CreatedAt = ts
	}
	allocation.UpdatedAt = ts
	t.st.allocations[allocation.ID] = *allocation
	return nil
}

func (t *txn) MoveAllocation(_ context.Context, move repository.MoveAllocation) error {
	current, ok := t.st.allocations[move.AllocationID]
	if !ok || !current.Active() {
		return sql.ErrNoRows
	}
	room, ok := t.st.rooms[move.RoomID]
	if !ok {
		return conflict("room_allocations_room_id_fkey", "room %s missing", move.RoomID)
	}
	current.RoomID = move.RoomID
	current.HostelID = room.HostelID
	current.UnitID = move.UnitID
	current.BedNumber = move.BedNumber
	current.LastUpdatedBy = move.ActorID
	current.UpdatedAt = now()
	if err := t.checkActiveUnique(current); err != nil {
		return err
	}
	t.st.allocations[current.ID] = current
	return nil
}

func (t *txn) VacateAllocation(_ context.Context, id string, actorID *string) error {
	current, ok := t.st.allocations[id]
	if !ok || !current.Active() {
		return sql.ErrNoRows
	}
	ts := now()
	current.Status = models.AllocationStatusVacated
	current.VacatedAt = &ts
	current.UpdatedAt = ts
	current.LastUpdatedBy = actorID
	t.st.allocations[id] = current
	return nil
}

func (t *txn) AdjustOccupancy(_ context.Context, roomID string, delta int) error {
	if delta == 0 {
		return nil
	}
	room, ok := t.st.rooms[roomID]
	if !ok || !room.Active() {
		return repository.ErrCapacityExceeded
	}
	next := room.Occupancy + delta
	if next < 0 || next > room.Capacity {
		return repository.ErrCapacityExceeded
	}
	room.Occupancy = next
	room.UpdatedAt = now()
	t.st.rooms[roomID] = room
	return nil
}

func (t *txn) SetCurrentAllocation(_ context.Context, studentProfileID, allocationID string) error {
	profile, ok := t.st.profiles[studentProfileID]
	if !ok {
		return sql.ErrNoRows
	}
	if _, ok := t.st.allocations[allocationID]; !ok {
		return conflict(repository.ConstraintCurrentAllocRef, "allocation %s missing", allocationID)
	}
	profile.CurrentRoomAllocationID = strPtr(allocationID)
	profile.UpdatedAt = now()
	t.st.profiles[studentProfileID] = profile
	return nil
}

func (t *txn) ClearCurrentAllocation(_ context.Context, studentProfileID, allocationID string) error {
	profile, ok := t.st.profiles[studentProfileID]
	if !ok || profile.CurrentRoomAllocationID == nil || *profile.CurrentRoomAllocationID != allocationID {
		return nil
	}
	profile.CurrentRoomAllocationID = nil
	profile.UpdatedAt = now()
	t.st.profiles[studentProfileID] = profile
	return nil
}

// removeAllocations hard-deletes the matching rows and clears every back-reference to them.
// It returns the profiles whose active allocation was removed.
func (t *txn) removeAllocations(match func(models.RoomAllocation) bool) (removed int, cleared int, released []string) {
	doomed := make(map[string]struct{})
	for id, a := range t.st.allocations {
		if !match(a) {
			continue
		}
		doomed[id] = struct{}{}
		if a.Active() {
			released = append(released, a.StudentProfileID)
		}
	}
	ts := now()
	for id, p := range t.st.profiles {
		if p.CurrentRoomAllocationID == nil {
			continue
		}
		if _, ok := doomed[*p.CurrentRoomAllocationID]; ok {
			p.CurrentRoomAllocationID = nil
			p.UpdatedAt = ts
			t.st.profiles[id] = p
			cleared++
		}
	}
	for id := range doomed {
		delete(t.st.allocations, id)
	}
	sort.Strings(released)
	return len(doomed), cleared, released
}

func (t *txn) DeactivateRooms(_ context.Context, roomIDs []string) ([]string, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	set := toSet(roomIDs)
	_, _, released := t.removeAllocations(func(a models.RoomAllocation) bool {
		_, ok := set[a.RoomID]
		return ok
	})
	ts := now()
	for id := range set {
		room, ok := t.st.rooms[id]
		if !ok {
			continue
		}
		if room.Active() {
			capacity := room.Capacity
			room.OriginalCapacity = &capacity
			room.Capacity = 0
			room.Status = models.RoomStatusInactive
		}
		room.Occupancy = 0
		room.UpdatedAt = ts
		t.st.rooms[id] = room
	}
	return released, nil
}

func (t *txn) ActivateRooms(_ context.Context, activations []repository.RoomActivation) error {
	ts := now()
	for _, a := range activations {
		room, ok := t.st.rooms[a.RoomID]
		if !ok || room.Active() {
			continue
		}
		if a.Capacity < 1 {
			return conflict("rooms_capacity_check", "room %s capacity %d", a.RoomID, a.Capacity)
		}
		room.Status = models.RoomStatusActive
		room.Capacity = a.Capacity
		room.OriginalCapacity = nil
		room.Occupancy = 0
		room.UpdatedAt = ts
		t.st.rooms[a.RoomID] = room
	}
	return nil
}

func (t *txn) UpdateRoomCapacities(_ context.Context, changes []repository.CapacityChange) error {
	ts := now()
	for _, c := range changes {
		room, ok := t.st.rooms[c.RoomID]
		if !ok {
			continue
		}
		if room.Active() {
			if c.Capacity < room.Occupancy || c.Capacity < 1 {
				return conflict(repository.ConstraintOccupancy, "room %s capacity %d below occupancy %d", c.RoomID, c.Capacity, room.Occupancy)
			}
			room.Capacity = c.Capacity
		} else {
			capacity := c.Capacity
			room.OriginalCapacity = &capacity
		}
		room.UpdatedAt = ts
		t.st.rooms[c.RoomID] = room
	}
	return nil
}

func (t *txn) ResetHostelAllocations(_ context.Context, hostelID string) (repository.ResetCounts, error) {
	removed, cleared, _ := t.removeAllocations(func(a models.RoomAllocation) bool {
		return a.HostelID == hostelID
	})
	counts := repository.ResetCounts{Allocations: removed, Profiles: cleared}
	ts := now()
	for id, room := range t.st.rooms {
		if room.HostelID != hostelID || room.Occupancy == 0 {
			continue
		}
		room.Occupancy = 0
		room.UpdatedAt = ts
		t.st.rooms[id] = room
		counts.Rooms++
	}
	return counts, nil
}

func (t *txn) SetHostelArchived(_ context.Context, hostelID string, archived bool) error {
	hostel, ok := t.st.hostels[hostelID]
	if !ok {
		return sql.ErrNoRows
	}
	hostel.IsArchived = archived
	hostel.UpdatedAt = now()
	t.st.hostels[hostelID] = hostel
	return nil
}

func (t *txn) CreateHostel(_ context.Context, hostel *models.Hostel) error {
	if hostel.ID == "" {
		hostel.ID = uuid.NewString()
	}
	if _, exists := t.st.hostels[hostel.ID]; exists {
		return conflict("hostels_pkey", "hostel %s exists", hostel.ID)
	}
	ts := now()
	hostel.CreatedAt, hostel.UpdatedAt = ts, ts
	t.st.hostels[hostel.ID] = *hostel
	return nil
}

func (t *txn) CreateUnit(_ context.Context, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if _, ok := t.st.hostels[unit.HostelID]; !ok {
		return conflict("units_hostel_id_fkey", "hostel %s missing", unit.HostelID)
	}
	for _, other := range t.st.units {
		if other.HostelID == unit.HostelID && other.UnitNumber == unit.UnitNumber {
			return conflict(repository.ConstraintUnitNumber, "unit %s exists in hostel %s", unit.UnitNumber, unit.HostelID)
		}
	}
	unit.CreatedAt = now()
	t.st.units[unit.ID] = *unit
	return nil
}

func (t *txn) CreateRoom(_ context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.Status == "" {
		room.Status = models.RoomStatusActive
	}
	if _, ok := t.st.hostels[room.HostelID]; !ok {
		return conflict("rooms_hostel_id_fkey", "hostel %s missing", room.HostelID)
	}
	if room.UnitID != nil {
		if _, ok := t.st.units[*room.UnitID]; !ok {
			return conflict("rooms_unit_id_fkey", "unit %s missing", *room.UnitID)
		}
	}
	for _, other := range t.st.rooms {
		if other.HostelID == room.HostelID && other.UnitValue() == room.UnitValue() && other.RoomNumber == room.RoomNumber {
			return conflict(repository.ConstraintRoomNumber, "room %s exists", room.RoomNumber)
		}
	}
	ts := now()
	room.Occupancy = 0
	room.CreatedAt, room.UpdatedAt = ts, ts
	t.st.rooms[room.ID] = *room
	return nil
}

func (t *txn) CreateUser(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	for _, other := range t.st.users {
		if strings.EqualFold(other.Email, user.Email) {
			return conflict(repository.ConstraintUserEmail, "email %s exists", user.Email)
		}
	}
	ts := now()
	user.CreatedAt, user.UpdatedAt = ts, ts
	t.st.users[user.ID] = *user
	return nil
}

func (t *txn) CreateStudentProfile(_ context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if _, ok := t.st.users[profile.UserID]; !ok {
		return conflict("student_profiles_user_id_fkey", "user %s missing", profile.UserID)
	}
	for _, other := range t.st.profiles {
		if other.RollNumber == profile.RollNumber {
			return conflict(repository.ConstraintRollNumber, "roll number %s exists", profile.RollNumber)
		}
	}
	ts := now()
	profile.CreatedAt, profile.UpdatedAt = ts, ts
	t.st.profiles[profile.ID] = *profile
	return nil
}
