package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// AllocationConfig tunes the single-item engine.
type AllocationConfig struct {
	MaxTxRetries int
}

// AllocationService is the consistency engine for single allocations. It is the only code path
// that creates, moves or vacates allocation rows outside the bulk processor and the lifecycle manager.
type AllocationService struct {
	store     repository.TxRunner
	tx        txRetrier
	audit     auditWriter
	notifier  occupancyNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAllocationService constructs the engine. audit, notifier and metrics may be nil.
func NewAllocationService(store repository.TxRunner, audit auditWriter, notifier occupancyNotifier, metrics *MetricsService, validate *validator.Validate, cfg AllocationConfig, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxTxRetries < 0 {
		cfg.MaxTxRetries = 0
	}
	return &AllocationService{
		store:     store,
		tx:        txRetrier{store: store, maxRetries: cfg.MaxTxRetries, metrics: metrics, logger: logger},
		audit:     audit,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
	}
}

// Allocate binds a student to a bed. The allocation row, the occupancy increment and the
// back-reference are written in one transaction.
func (s *AllocationService) Allocate(ctx context.Context, req dto.AllocateRequest, actor *models.JWTClaims) (*models.RoomAllocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}

	var created *models.RoomAllocation
	err := s.tx.run(ctx, "allocate", func(ctx context.Context, tx repository.AllocationTx) error {
		created = nil
		room, err := tx.LockRoom(ctx, req.RoomID)
		if err != nil {
			return notFound(err, appErrors.ErrRoomNotFound, "room not found")
		}
		hostel, err := tx.GetHostel(ctx, room.HostelID)
		if err != nil {
			return notFound(err, appErrors.ErrHostelNotFound, "hostel not found")
		}
		profile, err := tx.GetStudentProfile(ctx, req.StudentProfileID)
		if err != nil {
			return notFound(err, appErrors.ErrStudentNotFound, "student profile not found")
		}
		if err := checkAddressing(hostel, room, req.UnitID); err != nil {
			return err
		}
		if err := checkPlacement(room, req.BedNumber, false); err != nil {
			return err
		}
		if err := ensureBedFree(ctx, tx, room.ID, req.BedNumber, ""); err != nil {
			return err
		}
		if err := ensureStudentFree(ctx, tx, profile.ID); err != nil {
			return err
		}

		allocation := &models.RoomAllocation{
			HostelID:         hostel.ID,
			RoomID:           room.ID,
			UnitID:           room.UnitID,
			StudentProfileID: profile.ID,
			BedNumber:        req.BedNumber,
			Status:           models.AllocationStatusActive,
			CreatedBy:        userIDPtr(actor),
			LastUpdatedBy:    userIDPtr(actor),
		}
		if err := tx.InsertAllocation(ctx, allocation); err != nil {
			return err
		}
		if err := tx.AdjustOccupancy(ctx, room.ID, 1); err != nil {
			return err
		}
		if err := tx.SetCurrentAllocation(ctx, profile.ID, allocation.ID); err != nil {
			return err
		}
		created = allocation
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAllocationCreate, "room_allocation", created.ID, nil, created)
	s.changed(ctx)
	return created, nil
}

// Deallocate vacates an active allocation, decrements the room and clears the back-reference.
func (s *AllocationService) Deallocate(ctx context.Context, allocationID string, actor *models.JWTClaims) error {
	if allocationID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "allocation id is required")
	}

	var vacated *models.RoomAllocation
	err := s.tx.run(ctx, "deallocate", func(ctx context.Context, tx repository.AllocationTx) error {
		allocation, err := tx.GetAllocation(ctx, allocationID)
		if err != nil {
			return notFound(err, appErrors.ErrAllocationNotFound, "allocation not found")
		}
		if !allocation.Active() {
			return appErrors.Clone(appErrors.ErrAllocationNotFound, "allocation already vacated")
		}
		if _, err := tx.LockRoom(ctx, allocation.RoomID); err != nil {
			return notFound(err, appErrors.ErrRoomNotFound, "room not found")
		}
		if err := tx.VacateAllocation(ctx, allocation.ID, userIDPtr(actor)); err != nil {
			return notFound(err, appErrors.ErrAllocationNotFound, "allocation already vacated")
		}
		if err := tx.AdjustOccupancy(ctx, allocation.RoomID, -1); err != nil {
			return err
		}
		if err := tx.ClearCurrentAllocation(ctx, allocation.StudentProfileID, allocation.ID); err != nil {
			return err
		}
		vacated = allocation
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAllocationVacate, "room_allocation", vacated.ID, vacated, nil)
	s.changed(ctx)
	return nil
}

// Reassign moves the student's active allocation to another bed, keeping the allocation id.
// Occupancy only changes when the room changes. The target is addressed as in Allocate, so rooms of
// unit-based hostels need their unit.
func (s *AllocationService) Reassign(ctx context.Context, studentProfileID string, req dto.ReassignRequest, actor *models.JWTClaims) (*models.RoomAllocation, error) {
	if studentProfileID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student profile id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reassignment payload")
	}

	var before, after *models.RoomAllocation
	err := s.tx.run(ctx, "reassign", func(ctx context.Context, tx repository.AllocationTx) error {
		before, after = nil, nil
		profile, err := tx.GetStudentProfile(ctx, studentProfileID)
		if err != nil {
			return notFound(err, appErrors.ErrStudentNotFound, "student profile not found")
		}
		current, err := tx.FindActiveAllocationByStudent(ctx, profile.ID)
		if err != nil {
			return notFound(err, appErrors.ErrAllocationNotFound, "student has no active allocation")
		}

		locked, err := tx.LockRooms(ctx, []string{current.RoomID, req.RoomID})
		if err != nil {
			return err
		}
		var target *models.Room
		for i := range locked {
			if locked[i].ID == req.RoomID {
				target = &locked[i]
			}
		}
		if target == nil {
			return appErrors.Clone(appErrors.ErrRoomNotFound, "room not found")
		}
		hostel, err := tx.GetHostel(ctx, target.HostelID)
		if err != nil {
			return notFound(err, appErrors.ErrHostelNotFound, "hostel not found")
		}

		if err := checkAddressing(hostel, target, req.UnitID); err != nil {
			return err
		}
		sameRoom := current.RoomID == target.ID
		if err := checkPlacement(target, req.BedNumber, sameRoom); err != nil {
			return err
		}
		if err := ensureBedFree(ctx, tx, target.ID, req.BedNumber, current.ID); err != nil {
			return err
		}

		snapshot := *current
		before = &snapshot
		if sameRoom && current.BedNumber == req.BedNumber {
			after = current
			return nil
		}
		if err := tx.MoveAllocation(ctx, repository.MoveAllocation{
			AllocationID: current.ID,
			RoomID:       target.ID,
			UnitID:       target.UnitID,
			BedNumber:    req.BedNumber,
			ActorID:      userIDPtr(actor),
		}); err != nil {
			return notFound(err, appErrors.ErrAllocationNotFound, "allocation no longer active")
		}
		if !sameRoom {
			if err := tx.AdjustOccupancy(ctx, current.RoomID, -1); err != nil {
				return err
			}
			if err := tx.AdjustOccupancy(ctx, target.ID, 1); err != nil {
				return err
			}
		}
		if err := tx.SetCurrentAllocation(ctx, profile.ID, current.ID); err != nil {
			return err
		}
		after, err = tx.GetAllocation(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if before.RoomID != after.RoomID || before.BedNumber != after.BedNumber {
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAllocationReassign, "room_allocation", after.ID, before, after)
		s.changed(ctx)
	}
	return after, nil
}

// Get returns an allocation by id regardless of its status.
func (s *AllocationService) Get(ctx context.Context, allocationID string) (*models.RoomAllocation, error) {
	var allocation *models.RoomAllocation
	err := s.store.View(ctx, func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		allocation, err = r.GetAllocation(ctx, allocationID)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAllocationNotFound, "allocation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocation")
	}
	return allocation, nil
}

func (s *AllocationService) changed(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.OccupancyChanged(ctx)
	}
}

// ensureBedFree fails with BedOccupied when another active allocation holds the bed. except is
// the allocation being moved.
func ensureBedFree(ctx context.Context, r repository.AllocationReader, roomID string, bedNumber int, except string) error {
	occupant, err := r.FindActiveAllocationByBed(ctx, roomID, bedNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if occupant.ID == except {
		return nil
	}
	return appErrors.Clone(appErrors.ErrBedOccupied, fmt.Sprintf("bed %d is already occupied", bedNumber))
}

func ensureStudentFree(ctx context.Context, r repository.AllocationReader, studentProfileID string) error {
	existing, err := r.FindActiveAllocationByStudent(ctx, studentProfileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	return appErrors.Clone(appErrors.ErrStudentAlreadyAllocated, fmt.Sprintf("student already holds allocation %s", existing.ID))
}
