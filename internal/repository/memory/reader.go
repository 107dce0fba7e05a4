package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
)

type reader struct {
	st *state
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (r *reader) GetHostel(_ context.Context, id string) (*models.Hostel, error) {
	hostel, ok := r.st.hostels[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &hostel, nil
}

func (r *reader) ListHostels(_ context.Context, includeArchived bool) ([]models.Hostel, error) {
	out := make([]models.Hostel, 0, len(r.st.hostels))
	for _, h := range r.st.hostels {
		if h.IsArchived && !includeArchived {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *reader) FindHostels(_ context.Context, ids []string) ([]models.Hostel, error) {
	out := make([]models.Hostel, 0, len(ids))
	for id := range toSet(ids) {
		if h, ok := r.st.hostels[id]; ok {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) GetUnit(_ context.Context, id string) (*models.Unit, error) {
	unit, ok := r.st.units[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &unit, nil
}

func (r *reader) ListUnitsByHostel(ctx context.Context, hostelID string) ([]models.Unit, error) {
	units, _ := r.FindUnitsByHostels(ctx, []string{hostelID})
	sort.Slice(units, func(i, j int) bool { return units[i].UnitNumber < units[j].UnitNumber })
	return units, nil
}

func (r *reader) FindUnitsByHostels(_ context.Context, hostelIDs []string) ([]models.Unit, error) {
	set := toSet(hostelIDs)
	out := make([]models.Unit, 0)
	for _, u := range r.st.units {
		if _, ok := set[u.HostelID]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) GetRoom(_ context.Context, id string) (*models.Room, error) {
	room, ok := r.st.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &room, nil
}

func (r *reader) ListRoomsByHostel(ctx context.Context, hostelID string) ([]models.Room, error) {
	rooms, _ := r.FindRoomsByHostels(ctx, []string{hostelID})
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].RoomNumber < rooms[j].RoomNumber })
	return rooms, nil
}

func (r *reader) FindRoomsByHostels(_ context.Context, hostelIDs []string) ([]models.Room, error) {
	set := toSet(hostelIDs)
	out := make([]models.Room, 0)
	for _, room := range r.st.rooms {
		if _, ok := set[room.HostelID]; ok {
			out = append(out, room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) GetAllocation(_ context.Context, id string) (*models.RoomAllocation, error) {
	allocation, ok := r.st.allocations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &allocation, nil
}

func (r *reader) FindAllocations(_ context.Context, ids []string) ([]models.RoomAllocation, error) {
	out := make([]models.RoomAllocation, 0, len(ids))
	for id := range toSet(ids) {
		if a, ok := r.st.allocations[id]; ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) FindActiveAllocationByBed(_ context.Context, roomID string, bedNumber int) (*models.RoomAllocation, error) {
	for _, a := range r.st.allocations {
		if a.Active() && a.RoomID == roomID && a.BedNumber == bedNumber {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *reader) FindActiveAllocationByStudent(_ context.Context, studentProfileID string) (*models.RoomAllocation, error) {
	for _, a := range r.st.allocations {
		if a.Active() && a.StudentProfileID == studentProfileID {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *reader) ListActiveAllocationsByRooms(_ context.Context, roomIDs []string) ([]models.RoomAllocation, error) {
	set := toSet(roomIDs)
	out := make([]models.RoomAllocation, 0)
	for _, a := range r.st.allocations {
		if _, ok := set[a.RoomID]; ok && a.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RoomID != out[j].RoomID {
			return out[i].RoomID < out[j].RoomID
		}
		return out[i].BedNumber < out[j].BedNumber
	})
	return out, nil
}

func (r *reader) ListActiveAllocationsByStudents(_ context.Context, studentProfileIDs []string) ([]models.RoomAllocation, error) {
	set := toSet(studentProfileIDs)
	out := make([]models.RoomAllocation, 0)
	for _, a := range r.st.allocations {
		if _, ok := set[a.StudentProfileID]; ok && a.Active() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentProfileID < out[j].StudentProfileID })
	return out, nil
}

func (r *reader) GetStudentProfile(_ context.Context, id string) (*models.StudentProfile, error) {
	profile, ok := r.st.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &profile, nil
}

func (r *reader) ListProfilesWithAllocation(_ context.Context) ([]models.StudentProfile, error) {
	out := make([]models.StudentProfile, 0)
	for _, p := range r.st.profiles {
		if p.CurrentRoomAllocationID != nil {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) directory(match func(models.StudentProfile, models.User) bool) []models.StudentDirectoryEntry {
	out := make([]models.StudentDirectoryEntry, 0)
	for _, p := range r.st.profiles {
		u, ok := r.st.users[p.UserID]
		if !ok || !match(p, u) {
			continue
		}
		out = append(out, models.StudentDirectoryEntry{
			StudentProfileID:        p.ID,
			UserID:                  u.ID,
			FullName:                u.FullName,
			Email:                   u.Email,
			RollNumber:              p.RollNumber,
			Degree:                  p.Degree,
			CurrentRoomAllocationID: p.CurrentRoomAllocationID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentProfileID < out[j].StudentProfileID })
	return out
}

func (r *reader) FindStudentsByEmails(_ context.Context, emails []string) ([]models.StudentDirectoryEntry, error) {
	set := toSet(emails)
	return r.directory(func(_ models.StudentProfile, u models.User) bool {
		_, ok := set[strings.ToLower(u.Email)]
		return ok
	}), nil
}

func (r *reader) FindStudentsByRollNumbers(_ context.Context, rollNumbers []string) ([]models.StudentDirectoryEntry, error) {
	set := toSet(rollNumbers)
	return r.directory(func(p models.StudentProfile, _ models.User) bool {
		_, ok := set[p.RollNumber]
		return ok
	}), nil
}

func (r *reader) FindUsersByEmails(_ context.Context, emails []string) ([]models.User, error) {
	set := toSet(emails)
	out := make([]models.User, 0)
	for _, u := range r.st.users {
		if _, ok := set[strings.ToLower(u.Email)]; ok {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *reader) ListStudentDirectory(_ context.Context, studentProfileIDs []string) ([]models.StudentDirectoryEntry, error) {
	set := toSet(studentProfileIDs)
	return r.directory(func(p models.StudentProfile, _ models.User) bool {
		_, ok := set[p.ID]
		return ok
	}), nil
}

func (r *reader) ListSummaryEntries(_ context.Context) ([]models.SummaryEntry, error) {
	out := make([]models.SummaryEntry, 0)
	for _, a := range r.st.allocations {
		if !a.Active() {
			continue
		}
		hostel, ok := r.st.hostels[a.HostelID]
		if !ok {
			continue
		}
		entry := models.SummaryEntry{HostelID: hostel.ID, HostelName: hostel.Name}
		if p, ok := r.st.profiles[a.StudentProfileID]; ok {
			entry.Degree = p.Degree
		}
		out = append(out, entry)
	}
	return out, nil
}
