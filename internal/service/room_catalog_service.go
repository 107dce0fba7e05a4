package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/internal/repository"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

// RoomCatalogService creates hostels, units and rooms. It never writes occupancy and offers no
// generic room update; status and capacity change only through the lifecycle manager.
type RoomCatalogService struct {
	store     repository.TxRunner
	audit     auditWriter
	notifier  occupancyNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomCatalogService constructs the catalog.
func NewRoomCatalogService(store repository.TxRunner, audit auditWriter, notifier occupancyNotifier, validate *validator.Validate, logger *zap.Logger) *RoomCatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RoomCatalogService{store: store, audit: audit, notifier: notifier, validator: validate, logger: logger}
}

// CreateHostel creates a hostel with its initial units and rooms in one transaction.
func (s *RoomCatalogService) CreateHostel(ctx context.Context, req dto.CreateHostelRequest, actor *models.JWTClaims) (*dto.HostelLayout, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid hostel payload")
	}
	switch req.Type {
	case models.HostelTypeUnitBased:
		if len(req.Rooms) > 0 {
			return nil, appErrors.Clone(appErrors.ErrUnitRequired, "unit-based hostels list rooms under units")
		}
		if err := uniqueUnits(req.Units); err != nil {
			return nil, err
		}
	case models.HostelTypeRoomOnly:
		if len(req.Units) > 0 {
			return nil, appErrors.Clone(appErrors.ErrUnitMismatch, "room-only hostels do not use units")
		}
		if err := uniqueRooms(req.Rooms); err != nil {
			return nil, err
		}
	}

	layout := &dto.HostelLayout{Units: []models.Unit{}, Rooms: []models.Room{}}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.AllocationTx) error {
		layout.Units, layout.Rooms = layout.Units[:0], layout.Rooms[:0]
		layout.Hostel = models.Hostel{Name: req.Name, Type: req.Type, Gender: req.Gender}
		if err := tx.CreateHostel(ctx, &layout.Hostel); err != nil {
			return err
		}
		for _, spec := range req.Units {
			unit := models.Unit{HostelID: layout.Hostel.ID, UnitNumber: spec.UnitNumber, Floor: spec.Floor}
			if err := tx.CreateUnit(ctx, &unit); err != nil {
				return err
			}
			layout.Units = append(layout.Units, unit)
			rooms, err := createRooms(ctx, tx, layout.Hostel.ID, &unit.ID, spec.Rooms)
			if err != nil {
				return err
			}
			layout.Rooms = append(layout.Rooms, rooms...)
		}
		rooms, err := createRooms(ctx, tx, layout.Hostel.ID, nil, req.Rooms)
		if err != nil {
			return err
		}
		layout.Rooms = append(layout.Rooms, rooms...)
		return nil
	})
	if err != nil {
		return nil, mapStorageError(err, "create hostel")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionHostelCreate, "hostel", layout.Hostel.ID, nil, layout)
	s.changed(ctx)
	return layout, nil
}

// AddRooms appends rooms to a hostel. For unit-based hostels the unit is created when missing.
func (s *RoomCatalogService) AddRooms(ctx context.Context, hostelID string, req dto.AddRoomsRequest, actor *models.JWTClaims) ([]models.Room, error) {
	req.UnitNumber = strings.TrimSpace(req.UnitNumber)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rooms payload")
	}
	if err := uniqueRooms(req.Rooms); err != nil {
		return nil, err
	}

	var created []models.Room
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.AllocationTx) error {
		hostel, err := tx.GetHostel(ctx, hostelID)
		if err != nil {
			return notFound(err, appErrors.ErrHostelNotFound, "hostel not found")
		}
		var unitID *string
		switch hostel.Type {
		case models.HostelTypeUnitBased:
			if req.UnitNumber == "" {
				return appErrors.ErrUnitRequired
			}
			unit, err := s.ensureUnit(ctx, tx, hostel.ID, req.UnitNumber, req.Floor)
			if err != nil {
				return err
			}
			unitID = &unit.ID
		default:
			if req.UnitNumber != "" {
				return appErrors.Clone(appErrors.ErrUnitMismatch, "room-only hostels do not use units")
			}
		}

		existing, err := tx.ListRoomsByHostel(ctx, hostel.ID)
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(existing))
		for _, r := range existing {
			if r.UnitValue() == derefString(unitID) {
				taken[r.RoomNumber] = struct{}{}
			}
		}
		for _, spec := range req.Rooms {
			if _, dup := taken[spec.RoomNumber]; dup {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("room %s already exists", spec.RoomNumber))
			}
		}

		created, err = createRooms(ctx, tx, hostel.ID, unitID, req.Rooms)
		return err
	})
	if err != nil {
		return nil, mapStorageError(err, "add rooms")
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionRoomsAdd, "hostel", hostelID, nil, created)
	s.changed(ctx)
	return created, nil
}

func (s *RoomCatalogService) ensureUnit(ctx context.Context, tx repository.AllocationTx, hostelID, unitNumber string, floor int) (*models.Unit, error) {
	units, err := tx.ListUnitsByHostel(ctx, hostelID)
	if err != nil {
		return nil, err
	}
	for i := range units {
		if units[i].UnitNumber == unitNumber {
			return &units[i], nil
		}
	}
	unit := &models.Unit{HostelID: hostelID, UnitNumber: unitNumber, Floor: floor}
	if err := tx.CreateUnit(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// ListHostels returns hostels ordered by name. Archived hostels are hidden unless includeArchived.
func (s *RoomCatalogService) ListHostels(ctx context.Context, includeArchived bool) ([]models.Hostel, error) {
	var hostels []models.Hostel
	err := s.store.View(ctx, func(ctx context.Context, r repository.AllocationReader) error {
		var err error
		hostels, err = r.ListHostels(ctx, includeArchived)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list hostels")
	}
	if hostels == nil {
		hostels = []models.Hostel{}
	}
	return hostels, nil
}

// GetHostel returns the hostel with its units and rooms.
func (s *RoomCatalogService) GetHostel(ctx context.Context, hostelID string) (*dto.HostelLayout, error) {
	layout := &dto.HostelLayout{}
	err := s.store.View(ctx, func(ctx context.Context, r repository.AllocationReader) error {
		hostel, err := r.GetHostel(ctx, hostelID)
		if err != nil {
			return err
		}
		layout.Hostel = *hostel
		if layout.Units, err = r.ListUnitsByHostel(ctx, hostelID); err != nil {
			return err
		}
		layout.Rooms, err = r.ListRoomsByHostel(ctx, hostelID)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrHostelNotFound, "hostel not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hostel")
	}
	if layout.Units == nil {
		layout.Units = []models.Unit{}
	}
	if layout.Rooms == nil {
		layout.Rooms = []models.Room{}
	}
	return layout, nil
}

// ListRooms returns the rooms of a hostel.
func (s *RoomCatalogService) ListRooms(ctx context.Context, hostelID string) ([]models.Room, error) {
	layout, err := s.GetHostel(ctx, hostelID)
	if err != nil {
		return nil, err
	}
	return layout.Rooms, nil
}

func (s *RoomCatalogService) changed(ctx context.Context) {
	if s.notifier != nil {
		s.notifier.OccupancyChanged(ctx)
	}
}

func createRooms(ctx context.Context, tx repository.AllocationTx, hostelID string, unitID *string, specs []dto.RoomSpec) ([]models.Room, error) {
	rooms := make([]models.Room, 0, len(specs))
	for _, spec := range specs {
		room := models.Room{
			HostelID:   hostelID,
			UnitID:     unitID,
			RoomNumber: strings.TrimSpace(spec.RoomNumber),
			Capacity:   spec.Capacity,
			Status:     models.RoomStatusActive,
		}
		if err := tx.CreateRoom(ctx, &room); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func uniqueUnits(units []dto.UnitSpec) error {
	seen := make(map[string]struct{}, len(units))
	for _, u := range units {
		if _, dup := seen[u.UnitNumber]; dup {
			return appErrors.Clone(appErrors.ErrDuplicateInBatch, fmt.Sprintf("unit %s listed twice", u.UnitNumber))
		}
		seen[u.UnitNumber] = struct{}{}
		if err := uniqueRooms(u.Rooms); err != nil {
			return err
		}
	}
	return nil
}

func uniqueRooms(rooms []dto.RoomSpec) error {
	seen := make(map[string]struct{}, len(rooms))
	for _, r := range rooms {
		key := strings.TrimSpace(r.RoomNumber)
		if _, dup := seen[key]; dup {
			return appErrors.Clone(appErrors.ErrDuplicateInBatch, fmt.Sprintf("room %s listed twice", key))
		}
		seen[key] = struct{}{}
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
