package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// RoomLifecycleService moves rooms between ACTIVE and INACTIVE, archives hostels and resets
// hostel-wide allocations. Deactivation and reset hard-delete the affected allocation rows.
type RoomLifecycleService struct {
	tx       txRetrier
	audit    auditWriter
	notifier occupancyNotifier
	logger   *zap.Logger
}

// NewRoomLifecycleService constructs the lifecycle manager.
func NewRoomLifecycleService(store repository.TxRunner, audit auditWriter, notifier occupancyNotifier, metrics *MetricsService, cfg AllocationConfig, logger *zap.Logger) *RoomLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomLifecycleService{
		tx:       txRetrier{store: store, maxRetries: cfg.MaxTxRetries, metrics: metrics, logger: logger},
		audit:    audit,
		notifier: notifier,
		logger:   logger,
	}
}

// Deactivate takes a room out of service. Deactivating an inactive room is a no-op.
func (s *RoomLifecycleService) Deactivate(ctx context.Context, roomID string, actor *models.JWTClaims) (*dto.DeactivateRoomResult, error) {
	var result dto.DeactivateRoomResult
	err := s.tx.run(ctx, "deactivate_room", func(ctx context.Context, tx repository.AllocationTx) error {
		result = dto.DeactivateRoomResult{ReleasedStudents: []string{}}
		room, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return notFound(err, appErrors.ErrRoomNotFound, "room not found")
		}
		if !room.Active() {
			result.Room = *room
			return nil
		}
		released, err := tx.DeactivateRooms(ctx, []string{room.ID})
		if err != nil {
			return err
		}
		updated, err := tx.GetRoom(ctx, room.ID)
		if err != nil {
			return err
		}
		result.Room = *updated
		result.Changed = true
		if released != nil {
			result.ReleasedStudents = released
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Changed {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoomDeactivate, "room", roomID, nil, map[string]interface{}{
			"releasedStudents": result.ReleasedStudents,
			"originalCapacity": result.Room.OriginalCapacity,
		})
		s.changed(ctx)
	}
	return &result, nil
}

// Activate returns a room to service, empty. The capacity is the caller's, else the remembered
// original capacity, else the current one. Activating an active room is a no-op.
func (s *RoomLifecycleService) Activate(ctx context.Context, roomID string, req dto.ActivateRoomRequest, actor *models.JWTClaims) (*models.Room, error) {
	if req.Capacity != nil && *req.Capacity < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity must be at least 1")
	}
	var room *models.Room
	changed := false
	err := s.tx.run(ctx, "activate_room", func(ctx context.Context, tx repository.AllocationTx) error {
		changed = false
		current, err := tx.LockRoom(ctx, roomID)
		if err != nil {
			return notFound(err, appErrors.ErrRoomNotFound, "room not found")
		}
		if current.Active() {
			room = current
			return nil
		}
		capacity := restoredCapacity(current, req.Capacity)
		if capacity < 1 {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("room %s has no capacity to restore", current.RoomNumber))
		}
		if err := tx.ActivateRooms(ctx, []repository.RoomActivation{{RoomID: current.ID, Capacity: capacity}}); err != nil {
			return err
		}
		room, err = tx.GetRoom(ctx, current.ID)
		changed = err == nil
		return err
	})
	if err != nil {
		return nil, err
	}
	if changed {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoomActivate, "room", roomID, nil, map[string]interface{}{"capacity": room.Capacity})
		s.changed(ctx)
	}
	return room, nil
}

func restoredCapacity(room *models.Room, requested *int) int {
	if requested != nil {
		return *requested
	}
	if room.OriginalCapacity != nil {
		return *room.OriginalCapacity
	}
	return room.Capacity
}

// BulkReconcile diffs the desired room states of a hostel against the stored ones and applies the
// changes in three batched writes. Entries that cannot be applied are reported, the rest commit.
func (s *RoomLifecycleService) BulkReconcile(ctx context.Context, hostelID string, states []dto.ReconcileRoomState, actor *models.JWTClaims) (*dto.ReconcileResult, error) {
	if len(states) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one room state is required")
	}
	var result *dto.ReconcileResult
	err := s.tx.run(ctx, "reconcile_rooms", func(ctx context.Context, tx repository.AllocationTx) error {
		hostel, err := tx.GetHostel(ctx, hostelID)
		if err != nil {
			return notFound(err, appErrors.ErrHostelNotFound, "hostel not found")
		}
		rooms, err := tx.LockRoomsByHostel(ctx, hostel.ID)
		if err != nil {
			return err
		}
		units, err := tx.ListUnitsByHostel(ctx, hostel.ID)
		if err != nil {
			return err
		}
		roomIDs := make([]string, len(rooms))
		for i, r := range rooms {
			roomIDs[i] = r.ID
		}
		active, err := tx.ListActiveAllocationsByRooms(ctx, roomIDs)
		if err != nil {
			return err
		}

		plan := planReconcile(hostel, rooms, units, active, states)
		result = plan.result

		if len(plan.deactivate) > 0 {
			released, err := tx.DeactivateRooms(ctx, plan.deactivate)
			if err != nil {
				return err
			}
			result.ReleasedStudents = append(result.ReleasedStudents, released...)
		}
		if err := tx.ActivateRooms(ctx, plan.activate); err != nil {
			return err
		}
		return tx.UpdateRoomCapacities(ctx, plan.capacities)
	})
	if err != nil {
		return nil, err
	}
	if len(result.Activated)+len(result.Deactivated)+len(result.CapacityUpdated) > 0 {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoomReconcile, "hostel", hostelID, nil, result)
		s.changed(ctx)
	}
	return result, nil
}

type reconcilePlan struct {
	result     *dto.ReconcileResult
	deactivate []string
	activate   []repository.RoomActivation
	capacities []repository.CapacityChange
}

func planReconcile(hostel *models.Hostel, rooms []models.Room, units []models.Unit, active []models.RoomAllocation, states []dto.ReconcileRoomState) reconcilePlan {
	plan := reconcilePlan{result: &dto.ReconcileResult{
		Activated:        []string{},
		Deactivated:      []string{},
		CapacityUpdated:  []string{},
		ReleasedStudents: []string{},
		Errors:           []dto.ReconcileError{},
	}}

	unitIDs := make(map[string]string, len(units))
	for _, u := range units {
		unitIDs[u.UnitNumber] = u.ID
	}
	byKey := make(map[string]models.Room, len(rooms))
	for _, r := range rooms {
		byKey[r.UnitValue()+"\x00"+r.RoomNumber] = r
	}
	highestBed := make(map[string]int, len(rooms))
	for _, a := range active {
		if a.BedNumber > highestBed[a.RoomID] {
			highestBed[a.RoomID] = a.BedNumber
		}
	}

	seen := make(map[string]int, len(states))
	for i, state := range states {
		fail := func(err *appErrors.Error) {
			plan.result.Errors = append(plan.result.Errors, dto.ReconcileError{
				Index:      i,
				RoomNumber: state.RoomNumber,
				UnitNumber: state.UnitNumber,
				Code:       err.Code,
				Message:    err.Message,
			})
		}
		if state.RoomNumber == "" {
			fail(appErrors.Clone(appErrors.ErrValidation, "roomNumber is required"))
			continue
		}
		if state.Status != nil && *state.Status != models.RoomStatusActive && *state.Status != models.RoomStatusInactive {
			fail(appErrors.Clone(appErrors.ErrValidation, "status must be ACTIVE or INACTIVE"))
			continue
		}
		if state.Capacity != nil && *state.Capacity < 1 {
			fail(appErrors.Clone(appErrors.ErrValidation, "capacity must be at least 1"))
			continue
		}

		unitID := ""
		hasUnit := state.UnitNumber != nil && *state.UnitNumber != ""
		if hostel.Type == models.HostelTypeUnitBased {
			if !hasUnit {
				fail(appErrors.ErrUnitRequired)
				continue
			}
			id, ok := unitIDs[*state.UnitNumber]
			if !ok {
				fail(appErrors.Clone(appErrors.ErrUnitNotFound, fmt.Sprintf("unit %s not found", *state.UnitNumber)))
				continue
			}
			unitID = id
		} else if hasUnit {
			fail(appErrors.Clone(appErrors.ErrUnitMismatch, "room-only hostels do not use units"))
			continue
		}

		key := unitID + "\x00" + state.RoomNumber
		room, ok := byKey[key]
		if !ok {
			fail(appErrors.Clone(appErrors.ErrRoomNotFound, fmt.Sprintf("room %s not found", state.RoomNumber)))
			continue
		}
		if first, dup := seen[key]; dup {
			fail(appErrors.Clone(appErrors.ErrDuplicateInBatch, fmt.Sprintf("room %s already listed at index %d", state.RoomNumber, first)))
			continue
		}
		seen[key] = i

		wantStatus := room.Status
		if state.Status != nil {
			wantStatus = *state.Status
		}
		switch {
		case wantStatus == models.RoomStatusInactive && room.Active():
			plan.deactivate = append(plan.deactivate, room.ID)
			plan.result.Deactivated = append(plan.result.Deactivated, room.ID)
			if state.Capacity != nil && *state.Capacity != room.Capacity {
				plan.capacities = append(plan.capacities, repository.CapacityChange{RoomID: room.ID, Capacity: *state.Capacity})
				plan.result.CapacityUpdated = append(plan.result.CapacityUpdated, room.ID)
			}
		case wantStatus == models.RoomStatusActive && !room.Active():
			capacity := restoredCapacity(&room, state.Capacity)
			if capacity < 1 {
				fail(appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("room %s has no capacity to restore", room.RoomNumber)))
				continue
			}
			plan.activate = append(plan.activate, repository.RoomActivation{RoomID: room.ID, Capacity: capacity})
			plan.result.Activated = append(plan.result.Activated, room.ID)
		case state.Capacity != nil && *state.Capacity != effectiveCapacity(room):
			if room.Active() && (*state.Capacity < room.Occupancy || *state.Capacity < highestBed[room.ID]) {
				fail(appErrors.Clone(appErrors.ErrCapacityBelowOccupancy, fmt.Sprintf("room %s holds %d residents up to bed %d", room.RoomNumber, room.Occupancy, highestBed[room.ID])))
				continue
			}
			plan.capacities = append(plan.capacities, repository.CapacityChange{RoomID: room.ID, Capacity: *state.Capacity})
			plan.result.CapacityUpdated = append(plan.result.CapacityUpdated, room.ID)
		default:
			plan.result.Unchanged++
		}
	}
	return plan
}

// effectiveCapacity is the capacity a room offers when active.
func effectiveCapacity(room models.Room) int {
	if !room.Active() && room.OriginalCapacity != nil {
		return *room.OriginalCapacity
	}
	return room.Capacity
}

// ArchiveHostel toggles listing visibility. Rooms and allocations are untouched.
func (s *RoomLifecycleService) ArchiveHostel(ctx context.Context, hostelID string, archived bool, actor *models.JWTClaims) (*models.Hostel, error) {
	var hostel *models.Hostel
	err := s.tx.run(ctx, "archive_hostel", func(ctx context.Context, tx repository.AllocationTx) error {
		if err := tx.SetHostelArchived(ctx, hostelID, archived); err != nil {
			return notFound(err, appErrors.ErrHostelNotFound, "hostel not found")
		}
		var err error
		hostel, err = tx.GetHostel(ctx, hostelID)
		return err
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionHostelArchive, "hostel", hostelID, nil, map[string]bool{"archived": archived})
	s.changed(ctx)
	return hostel, nil
}

// ResetHostelAllocations removes every allocation of a hostel, clears the affected
// back-references and zeroes room occupancy, leaving status and capacity untouched.
func (s *RoomLifecycleService) ResetHostelAllocations(ctx context.Context, hostelID string, actor *models.JWTClaims) (*dto.ResetResult, error) {
	var counts repository.ResetCounts
	err := s.tx.run(ctx, "reset_hostel", func(ctx context.Context, tx repository.AllocationTx) error {
		hostel, err := tx.GetHostel(ctx, hostelID)
		if err != nil {
			return notFound(err, appErrors.ErrHostelNotFound, "hostel not found")
		}
		if _, err := tx.LockRoomsByHostel(ctx, hostel.ID); err != nil {
			return err
		}
		counts, err = tx.ResetHostelAllocations(ctx, hostel.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	result := &dto.ResetResult{
		HostelID:           hostelID,
		RemovedAllocations: counts.Allocations,
		ClearedProfiles:    counts.Profiles,
		RoomsReset:         counts.Rooms,
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionHostelReset, "hostel", hostelID, nil, result)
	s.changed(ctx)
	return result, nil
}

func (s *RoomLifecycleService) changed(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.OccupancyChanged(ctx)
	}
}
