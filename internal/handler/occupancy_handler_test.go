package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/middleware"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
)

type occupancyServiceMock struct {
	sheetFor string
}

func (m *occupancyServiceMock) ProjectSheet(_ context.Context, hostelID string) ([]models.SheetRow, error) {
	m.sheetFor = hostelID
	return []models.SheetRow{{RoomNumber: "1", BedNumber: 1}, {RoomNumber: "1", BedNumber: 2}}, nil
}

func (m *occupancyServiceMock) ProjectAllocationSummary(context.Context) (*models.AllocationSummary, error) {
	return &models.AllocationSummary{Hostels: []string{"Aravali"}, GrandTotal: 4, GeneratedAt: time.Now()}, nil
}

type exportServiceMock struct {
	renderedFormat string
	created        dto.ExportRequest
	openErr        error
}

func (m *exportServiceMock) RenderSheet(_ context.Context, hostelID, format string) (*dto.RenderedFile, error) {
	m.renderedFormat = format
	if format == "docx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported format")
	}
	return &dto.RenderedFile{Filename: "occupancy_sheet_" + hostelID + ".csv", ContentType: "text/csv", Data: []byte("Hostel,Unit\n")}, nil
}

func (m *exportServiceMock) RenderSummary(_ context.Context, format string) (*dto.RenderedFile, error) {
	m.renderedFormat = format
	return &dto.RenderedFile{Filename: "allocation_summary.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.3")}, nil
}

func (m *exportServiceMock) Create(_ context.Context, req dto.ExportRequest) (*dto.ExportResult, error) {
	m.created = req
	return &dto.ExportResult{ID: "exp-1", DownloadURL: "/api/v1/occupancy/exports/download?token=abc"}, nil
}

func (m *exportServiceMock) Open(_ context.Context, token string) (io.ReadCloser, *dto.RenderedFile, error) {
	if m.openErr != nil {
		return nil, nil, m.openErr
	}
	return io.NopCloser(strings.NewReader("payload:" + token)), &dto.RenderedFile{Filename: "sheet.csv", ContentType: "text/csv"}, nil
}

func TestOccupancyHandlerSheetJSON(t *testing.T) {
	occupancy := &occupancyServiceMock{}
	h := NewOccupancyHandler(occupancy, &exportServiceMock{})

	c, w := testContext(http.MethodGet, "/occupancy/hostels/h-1/sheet", nil)
	middleware.WithResponseMeta()(c)
	h.Sheet(withID(c, "h-1"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "h-1", occupancy.sheetFor)
	assert.Contains(t, w.Body.String(), `"rows":2`)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestOccupancyHandlerSheetDownload(t *testing.T) {
	exports := &exportServiceMock{}
	h := NewOccupancyHandler(&occupancyServiceMock{}, exports)

	c, w := testContext(http.MethodGet, "/occupancy/hostels/h-1/sheet?format=csv", nil)
	h.Sheet(withID(c, "h-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", exports.renderedFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="occupancy_sheet_h-1.csv"`, w.Header().Get("Content-Disposition"))

	c, w = testContext(http.MethodGet, "/occupancy/hostels/h-1/sheet?format=docx", nil)
	h.Sheet(withID(c, "h-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOccupancyHandlerSummary(t *testing.T) {
	exports := &exportServiceMock{}
	h := NewOccupancyHandler(&occupancyServiceMock{}, exports)

	c, w := testContext(http.MethodGet, "/occupancy/summary", nil)
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"grandTotal":4`)

	c, w = testContext(http.MethodGet, "/occupancy/summary?format=pdf", nil)
	h.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))
	assert.Equal(t, "pdf", exports.renderedFormat)
}

func TestOccupancyHandlerExports(t *testing.T) {
	exports := &exportServiceMock{}
	h := NewOccupancyHandler(&occupancyServiceMock{}, exports)

	c, w := testContext(http.MethodPost, "/occupancy/exports", bytes.NewBufferString(`{"type":"sheet","hostelId":"h-1","format":"xlsx"}`))
	h.CreateExport(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, dto.ExportRequest{Type: dto.ExportTypeSheet, HostelID: "h-1", Format: "xlsx"}, exports.created)
	assert.Contains(t, w.Body.String(), "download?token=abc")

	c, w = testContext(http.MethodGet, "/occupancy/exports/download?token=abc", nil)
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payload:abc", w.Body.String())
	assert.Equal(t, `attachment; filename="sheet.csv"`, w.Header().Get("Content-Disposition"))
}

func TestOccupancyHandlerDownloadRejections(t *testing.T) {
	exports := &exportServiceMock{}
	h := NewOccupancyHandler(nil, exports)

	c, w := testContext(http.MethodGet, "/occupancy/exports/download", nil)
	h.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	exports.openErr = appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	c, w = testContext(http.MethodGet, "/occupancy/exports/download?token=old", nil)
	h.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
