package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type allocationService interface {
	Allocate(ctx context.Context, req dto.AllocateRequest, actor *models.JWTClaims) (*models.RoomAllocation, error)
	Deallocate(ctx context.Context, allocationID string, actor *models.JWTClaims) error
	Reassign(ctx context.Context, studentProfileID string, req dto.ReassignRequest, actor *models.JWTClaims) (*models.RoomAllocation, error)
	Get(ctx context.Context, allocationID string) (*models.RoomAllocation, error)
}

type bulkAllocationService interface {
	Process(ctx context.Context, req dto.BulkAllocationRequest, actor *models.JWTClaims) (*dto.BulkAllocationResult, error)
	ImportRoster(ctx context.Context, r io.Reader, filename string, createProfiles bool, actor *models.JWTClaims) (*dto.BulkAllocationResult, error)
}

// AllocationHandler exposes single and bulk bed allocation endpoints.
type AllocationHandler struct {
	allocations allocationService
	bulk        bulkAllocationService
}

// NewAllocationHandler builds a new handler.
func NewAllocationHandler(allocations allocationService, bulk bulkAllocationService) *AllocationHandler {
	return &AllocationHandler{allocations: allocations, bulk: bulk}
}

// Allocate godoc
// @Summary Allocate a bed to a student
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.AllocateRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var req dto.AllocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	allocation, err := h.allocations.Allocate(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, allocation)
}

// Get godoc
// @Summary Get an allocation
// @Tags Allocations
// @Produce json
// @Param id path string true "Allocation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	allocation, err := h.allocations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Deallocate godoc
// @Summary Vacate an allocation
// @Tags Allocations
// @Param id path string true "Allocation ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /allocations/{id} [delete]
func (h *AllocationHandler) Deallocate(c *gin.Context) {
	if err := h.allocations.Deallocate(c.Request.Context(), c.Param("id"), middleware.Claims(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reassign godoc
// @Summary Move a student's active allocation to another bed
// @Description The allocation id is preserved across the move.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Student profile ID"
// @Param payload body dto.ReassignRequest true "Target bed"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/allocation [put]
func (h *AllocationHandler) Reassign(c *gin.Context) {
	var req dto.ReassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reassignment payload"))
		return
	}
	allocation, err := h.allocations.Reassign(c.Request.Context(), c.Param("id"), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, allocation, nil)
}

// Bulk godoc
// @Summary Allocate a roster batch
// @Description Returns 201 when every row commits, 207 on partial success and 422 when no row commits.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.BulkAllocationRequest true "Roster rows"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allocations/bulk [post]
func (h *AllocationHandler) Bulk(c *gin.Context) {
	var req dto.BulkAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}
	result, err := h.bulk.Process(c.Request.Context(), req, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondBulk(c, result)
}

// Upload godoc
// @Summary Upload a CSV or XLSX roster
// @Tags Allocations
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Roster file (.csv or .xlsx)"
// @Param createProfiles formData bool false "Provision missing student accounts"
// @Success 201 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allocations/bulk/upload [post]
func (h *AllocationHandler) Upload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "roster file is required"))
		return
	}
	createProfiles := false
	if raw := c.PostForm("createProfiles"); raw != "" {
		if createProfiles, err = strconv.ParseBool(raw); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "createProfiles must be a boolean"))
			return
		}
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unable to read roster file"))
		return
	}
	defer file.Close()

	result, err := h.bulk.ImportRoster(c.Request.Context(), file, header.Filename, createProfiles, middleware.Claims(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respondBulk(c, result)
}

func respondBulk(c *gin.Context, result *dto.BulkAllocationResult) {
	status := http.StatusCreated
	switch result.Status {
	case dto.BulkStatusPartial:
		status = http.StatusMultiStatus
	case dto.BulkStatusFailed:
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, result, nil, map[string]interface{}{"status": result.Status})
}
