package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// ConsistencyService audits the whole allocation surface from one read snapshot. It never repairs.
type ConsistencyService struct {
	store  repository.TxRunner
	logger *zap.Logger
	now    func() time.Time
}

// NewConsistencyService constructs the verifier.
func NewConsistencyService(store repository.TxRunner, logger *zap.Logger) *ConsistencyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsistencyService{store: store, logger: logger, now: time.Now}
}

type consistencySnapshot struct {
	hostels    []models.Hostel
	units      []models.Unit
	rooms      []models.Room
	active     []models.RoomAllocation
	profiles   []models.StudentProfile
	referenced []models.RoomAllocation
}

// Verify checks every room, active allocation and student back-reference.
func (s *ConsistencyService) Verify(ctx context.Context) (*models.ConsistencyReport, error) {
	var snap consistencySnapshot
	err := s.store.View(ctx, func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		if snap.hostels, err = r.ListHostels(ctx, true); err != nil {
			return err
		}
		hostelIDs := make([]string, len(snap.hostels))
		for i, h := range snap.hostels {
			hostelIDs[i] = h.ID
		}
		if snap.units, err = r.FindUnitsByHostels(ctx, hostelIDs); err != nil {
			return err
		}
		if snap.rooms, err = r.FindRoomsByHostels(ctx, hostelIDs); err != nil {
			return err
		}
		roomIDs := make([]string, len(snap.rooms))
		for i, room := range snap.rooms {
			roomIDs[i] = room.ID
		}
		if snap.active, err = r.ListActiveAllocationsByRooms(ctx, roomIDs); err != nil {
			return err
		}
		if snap.profiles, err = r.ListProfilesWithAllocation(ctx); err != nil {
			return err
		}
		refs := make([]string, 0, len(snap.profiles))
		for _, p := range snap.profiles {
			if p.CurrentRoomAllocationID != nil {
				refs = append(refs, *p.CurrentRoomAllocationID)
			}
		}
		snap.referenced, err = r.FindAllocations(ctx, refs)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read allocation state")
	}

	report := checkConsistency(snap)
	report.CheckedAt = s.now().UTC()
	if !report.Healthy() {
		s.logger.Warn("allocation state inconsistent", zap.Int("violations", len(report.Violations)))
	}
	return report, nil
}

func checkConsistency(snap consistencySnapshot) *models.ConsistencyReport {
	report := &models.ConsistencyReport{
		CheckedHostels:     len(snap.hostels),
		CheckedRooms:       len(snap.rooms),
		CheckedAllocations: len(snap.active),
		Violations:         []models.ConsistencyViolation{},
	}
	add := func(rule, hostelID, roomID, entityID, format string, args ...interface{}) {
		report.Violations = append(report.Violations, models.ConsistencyViolation{
			Rule:     rule,
			HostelID: hostelID,
			RoomID:   roomID,
			EntityID: entityID,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	hostels := make(map[string]models.Hostel, len(snap.hostels))
	for _, h := range snap.hostels {
		hostels[h.ID] = h
	}
	units := make(map[string]models.Unit, len(snap.units))
	for _, u := range snap.units {
		units[u.ID] = u
	}
	rooms := make(map[string]models.Room, len(snap.rooms))
	perRoom := make(map[string]int, len(snap.rooms))
	for _, r := range snap.rooms {
		rooms[r.ID] = r
	}

	type bedKey struct {
		room string
		bed  int
	}
	beds := make(map[bedKey]string, len(snap.active))
	byStudent := make(map[string]string, len(snap.active))
	for _, a := range snap.active {
		perRoom[a.RoomID]++
		room, ok := rooms[a.RoomID]
		if !ok {
			add(models.RuleOccupancyCount, a.HostelID, a.RoomID, a.ID, "allocation references missing room")
			continue
		}
		key := bedKey{a.RoomID, a.BedNumber}
		if other, dup := beds[key]; dup {
			add(models.RuleBedUnique, room.HostelID, room.ID, a.ID, "bed %d also held by allocation %s", a.BedNumber, other)
		} else {
			beds[key] = a.ID
		}
		if other, dup := byStudent[a.StudentProfileID]; dup {
			add(models.RuleStudentUnique, room.HostelID, room.ID, a.ID, "student %s also holds allocation %s", a.StudentProfileID, other)
		} else {
			byStudent[a.StudentProfileID] = a.ID
		}
		if a.UnitID == nil && room.UnitID != nil || a.UnitID != nil && (room.UnitID == nil || *a.UnitID != *room.UnitID) {
			add(models.RuleUnitAddressing, room.HostelID, room.ID, a.ID, "allocation unit differs from room unit")
		}
		if a.HostelID != room.HostelID {
			add(models.RuleUnitAddressing, room.HostelID, room.ID, a.ID, "allocation hostel %s differs from room hostel", a.HostelID)
		}
		if room.Active() && (a.BedNumber < 1 || a.BedNumber > room.Capacity) {
			add(models.RuleBedRange, room.HostelID, room.ID, a.ID, "bed %d outside 1..%d", a.BedNumber, room.Capacity)
		}
	}

	for _, room := range snap.rooms {
		count := perRoom[room.ID]
		if room.Occupancy != count {
			add(models.RuleOccupancyCount, room.HostelID, room.ID, room.ID, "occupancy %d but %d active allocations", room.Occupancy, count)
		}
		if room.Occupancy < 0 || room.Occupancy > room.Capacity {
			add(models.RuleCapacity, room.HostelID, room.ID, room.ID, "occupancy %d outside 0..%d", room.Occupancy, room.Capacity)
		}
		hostel, ok := hostels[room.HostelID]
		switch {
		case !ok:
			add(models.RuleUnitAddressing, room.HostelID, room.ID, room.ID, "room references missing hostel")
		case hostel.Type == models.HostelTypeUnitBased:
			unit, found := units[room.UnitValue()]
			if room.UnitID == nil || !found || unit.HostelID != room.HostelID {
				add(models.RuleUnitAddressing, room.HostelID, room.ID, room.ID, "unit-based room without a unit of its hostel")
			}
		default:
			if room.UnitID != nil {
				add(models.RuleUnitAddressing, room.HostelID, room.ID, room.ID, "room-only hostel room carries a unit")
			}
		}
		if !room.Active() {
			if count > 0 || room.Occupancy != 0 {
				add(models.RuleInactiveEmpty, room.HostelID, room.ID, room.ID, "inactive room holds %d allocations, occupancy %d", count, room.Occupancy)
			}
			if room.OriginalCapacity == nil || *room.OriginalCapacity < 1 {
				add(models.RuleOriginalCapacity, room.HostelID, room.ID, room.ID, "inactive room lost its capacity")
			}
		}
	}

	referenced := make(map[string]models.RoomAllocation, len(snap.referenced))
	for _, a := range snap.referenced {
		referenced[a.ID] = a
	}
	pointed := make(map[string]string, len(snap.profiles))
	for _, p := range snap.profiles {
		if p.CurrentRoomAllocationID == nil {
			continue
		}
		id := *p.CurrentRoomAllocationID
		pointed[p.ID] = id
		a, ok := referenced[id]
		switch {
		case !ok:
			add(models.RuleBackReference, "", "", p.ID, "profile points at missing allocation %s", id)
		case !a.Active():
			add(models.RuleBackReference, a.HostelID, a.RoomID, p.ID, "profile points at %s allocation %s", a.Status, id)
		case a.StudentProfileID != p.ID:
			add(models.RuleBackReference, a.HostelID, a.RoomID, p.ID, "profile points at allocation %s of student %s", id, a.StudentProfileID)
		}
	}
	for _, a := range snap.active {
		if pointed[a.StudentProfileID] != a.ID {
			add(models.RuleBackReference, a.HostelID, a.RoomID, a.StudentProfileID, "active allocation %s is not referenced by its student", a.ID)
		}
	}
	return report
}
