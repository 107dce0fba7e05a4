package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type roomCatalogService interface {
	CreateHostel(ctx context.Context, req dto.CreateHostelRequest, actor *models.JWTClaims) (*dto.HostelLayout, error)
	AddRooms(ctx context.Context, hostelID string, req dto.AddRoomsRequest, actor *models.JWTClaims) ([]models.Room, error)
	ListHostels(ctx context.Context, includeArchived bool) ([]models.Hostel, error)
	GetHostel(ctx context.Context, hostelID string) (*dto.HostelLayout, error)
	ListRooms(ctx context.Context, hostelID string) ([]models.Room, error)
}

type roomLifecycleService interface {
	Deactivate(ctx context.Context, roomID string, actor *models.JWTClaims) (*dto.DeactivateRoomResult, error)
	Activate(ctx context.Context, roomID string, req dto.ActivateRoomRequest, actor *models.JWTClaims) (*models.Room, error)
	BulkReconcile(ctx context.Context, hostelID string, states []dto.ReconcileRoomState, actor *models.JWTClaims) (*dto.ReconcileResult, error)
	ArchiveHostel(ctx context.Context, hostelID string, archived bool, actor *models.JWTClaims) (*models.Hostel, error)
	ResetHostelAllocations(ctx context.Context, hostelID string, actor *models.JWTClaims) (*dto.ResetResult, error)
}

// HostelHandler exposes hostel catalog and room lifecycle endpoints.
type HostelHandler struct {
	catalog   roomCatalogService
	lifecycle roomLifecycleService
}

// NewHostelHandler builds a new handler.
func NewHostelHandler(catalog roomCatalogService, lifecycle roomLifecycleService) *HostelHandler {
	return &HostelHandler{catalog: catalog, lifecycle: lifecycle}
}

// Create godoc
// @Summary Create a hostel with its units and rooms
// @Tags Hostels
// @Accept json
// @Produce json
// @Param payload body dto.CreateHostelRequest true "Hostel layout"
// @Success 201 {object} response.Envelope
// @Router /hostels [post]
func (h *HostelHandler) Create(c *gin.Context) {
	var req dto.CreateHostelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid hostel payload"))
		return
	}
	layout, err := h.catalog.CreateHostel(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, layout)
}

// List godoc
// @Summary List hostels
// @Tags Hostels
// @Produce json
// @Param includeArchived query bool false "Include archived hostels"
// @Success 200 {object} response.Envelope
// @Router /hostels [get]
func (h *HostelHandler) List(c *gin.Context) {
	includeArchived, _ := strconv.ParseBool(c.Query("includeArchived"))
	hostels, err := h.catalog.ListHostels(c.Request.Context(), includeArchived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hostels, nil)
}

// Get godoc
// @Summary Get a hostel layout
// @Tags Hostels
// @Produce json
// @Param id path string true "Hostel ID"
// @Success 200 {object} response.Envelope
// @Router /hostels/{id} [get]
func (h *HostelHandler) Get(c *gin.Context) {
	layout, err := h.catalog.GetHostel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, layout, nil)
}

// ListRooms godoc
// @Summary List rooms of a hostel
// @Tags Hostels
// @Produce json
// @Param id path string true "Hostel ID"
// @Success 200 {object} response.Envelope
// @Router /hostels/{id}/rooms [get]
func (h *HostelHandler) ListRooms(c *gin.Context) {
	rooms, err := h.catalog.ListRooms(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// AddRooms godoc
// @Summary Add rooms to a hostel
// @Tags Hostels
// @Accept json
// @Produce json
// @Param id path string true "Hostel ID"
// @Param payload body dto.AddRoomsRequest true "Rooms"
// @Success 201 {object} response.Envelope
// @Router /hostels/{id}/rooms [post]
func (h *HostelHandler) AddRooms(c *gin.Context) {
	var req dto.AddRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rooms payload"))
		return
	}
	rooms, err := h.catalog.AddRooms(c.Request.Context(), c.Param("id"), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rooms)
}

// Archive godoc
// @Summary Archive or unarchive a hostel
// @Tags Hostels
// @Accept json
// @Produce json
// @Param id path string true "Hostel ID"
// @Param payload body dto.ArchiveHostelRequest true "Archive flag"
// @Success 200 {object} response.Envelope
// @Router /hostels/{id}/archive [patch]
func (h *HostelHandler) Archive(c *gin.Context) {
	var req dto.ArchiveHostelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid archive payload"))
		return
	}
	hostel, err := h.lifecycle.ArchiveHostel(c.Request.Context(), c.Param("id"), req.Archived, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, hostel, nil)
}

// Reset godoc
// @Summary Remove every allocation of a hostel
// @Tags Hostels
// @Produce json
// @Param id path string true "Hostel ID"
// @Success 200 {object} response.Envelope
// @Router /hostels/{id}/reset-allocations [post]
func (h *HostelHandler) Reset(c *gin.Context) {
	result, err := h.lifecycle.ResetHostelAllocations(c.Request.Context(), c.Param("id"), middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reconcile godoc
// @Summary Reconcile room states of a hostel
// @Tags Hostels
// @Accept json
// @Produce json
// @Param id path string true "Hostel ID"
// @Param payload body dto.ReconcileRoomsRequest true "Desired room states"
// @Success 200 {object} response.Envelope
// @Router /hostels/{id}/rooms/reconcile [put]
func (h *HostelHandler) Reconcile(c *gin.Context) {
	var req dto.ReconcileRoomsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}
	result, err := h.lifecycle.BulkReconcile(c.Request.Context(), c.Param("id"), req.Rooms, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// DeactivateRoom godoc
// @Summary Deactivate a room
// @Description Removes every allocation of the room and remembers its capacity.
// @Tags Rooms
// @Produce json
// @Param id path string true "Room ID"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/deactivate [post]
func (h *HostelHandler) DeactivateRoom(c *gin.Context) {
	result, err := h.lifecycle.Deactivate(c.Request.Context(), c.Param("id"), middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ActivateRoom godoc
// @Summary Activate a room
// @Tags Rooms
// @Accept json
// @Produce json
// @Param id path string true "Room ID"
// @Param payload body dto.ActivateRoomRequest false "Capacity to restore"
// @Success 200 {object} response.Envelope
// @Router /rooms/{id}/activate [post]
func (h *HostelHandler) ActivateRoom(c *gin.Context) {
	var req dto.ActivateRoomRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid activation payload"))
			return
		}
	}
	room, err := h.lifecycle.Activate(c.Request.Context(), c.Param("id"), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, room, nil)
}
