package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	"github.com/noah-isme/hostel-allocation-api/pkg/response"
)

type consistencyVerifier interface {
	Verify(ctx context.Context) (*models.ConsistencyReport, error)
}

// ConsistencyHandler exposes the read-only allocation audit.
type ConsistencyHandler struct {
	verifier consistencyVerifier
}

// NewConsistencyHandler builds a new handler.
func NewConsistencyHandler(verifier consistencyVerifier) *ConsistencyHandler {
	return &ConsistencyHandler{verifier: verifier}
}

// Verify godoc
// @Summary Verify allocation invariants across the store
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/consistency [get]
func (h *ConsistencyHandler) Verify(c *gin.Context) {
	report, err := h.verifier.Verify(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"healthy": report.Healthy()})
}
