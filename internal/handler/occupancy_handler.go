package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type occupancyService interface {
	ProjectSheet(ctx context.Context, hostelID string) ([]models.SheetRow, error)
	ProjectAllocationSummary(ctx context.Context) (*models.AllocationSummary, error)
}

type exportService interface {
	RenderSheet(ctx context.Context, hostelID, format string) (*dto.RenderedFile, error)
	RenderSummary(ctx context.Context, format string) (*dto.RenderedFile, error)
	Create(ctx context.Context, req dto.ExportRequest) (*dto.ExportResult, error)
	Open(ctx context.Context, token string) (io.ReadCloser, *dto.RenderedFile, error)
}

// OccupancyHandler serves occupancy projections and their exports.
type OccupancyHandler struct {
	occupancy occupancyService
	exports   exportService
}

// NewOccupancyHandler builds a new handler.
func NewOccupancyHandler(occupancy occupancyService, exports exportService) *OccupancyHandler {
	return &OccupancyHandler{occupancy: occupancy, exports: exports}
}

// Sheet godoc
// @Summary Occupancy sheet of a hostel
// @Description One row per bed; inactive rooms appear once with bed 0. Pass format to download.
// @Tags Occupancy
// @Produce json
// @Param id path string true "Hostel ID"
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {object} response.Envelope
// @Router /occupancy/hostels/{id}/sheet [get]
func (h *OccupancyHandler) Sheet(c *gin.Context) {
	hostelID := c.Param("id")
	if format := strings.TrimSpace(c.Query("format")); format != "" {
		file, err := h.exports.RenderSheet(c.Request.Context(), hostelID, format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Data)
		return
	}
	rows, err := h.occupancy.ProjectSheet(c.Request.Context(), hostelID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "rows", len(rows))
	response.JSON(c, http.StatusOK, rows, nil, middleware.ExtractMeta(c))
}

// Summary godoc
// @Summary Degree by hostel allocation matrix
// @Tags Occupancy
// @Produce json
// @Param format query string false "csv, xlsx or pdf"
// @Success 200 {object} response.Envelope
// @Router /occupancy/summary [get]
func (h *OccupancyHandler) Summary(c *gin.Context) {
	if format := strings.TrimSpace(c.Query("format")); format != "" {
		file, err := h.exports.RenderSummary(c.Request.Context(), format)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, file.Filename, file.ContentType, file.Data)
		return
	}
	summary, err := h.occupancy.ProjectAllocationSummary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "generatedAt", summary.GeneratedAt)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// CreateExport godoc
// @Summary Store a projection export behind a signed link
// @Tags Occupancy
// @Accept json
// @Produce json
// @Param payload body dto.ExportRequest true "Export request"
// @Success 201 {object} response.Envelope
// @Router /occupancy/exports [post]
func (h *OccupancyHandler) CreateExport(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	result, err := h.exports.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Download godoc
// @Summary Download a stored export
// @Tags Occupancy
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /occupancy/exports/download [get]
func (h *OccupancyHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	rc, file, err := h.exports.Open(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, -1, file.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", file.Filename),
	})
}
