package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/export"
	"github.com/noah-isme/hostel-allocation-api/pkg/storage"
)

type projectionSource interface {
	ProjectSheet(ctx context.Context, hostelID string) ([]models.SheetRow, error)
	ProjectAllocationSummary(ctx context.Context) (*models.AllocationSummary, error)
}

type renderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

type expiringStorage interface {
	CleanupOlderThan(ctx context.Context, ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders occupancy projections and stores them behind expiring download links.
type ExportService struct {
	projections projectionSource
	store       storage.Store
	signer      *storage.SignedURLSigner
	renderers   map[string]renderer
	validator   *validator.Validate
	cfg         ExportConfig
	logger      *zap.Logger
	now         func() time.Time
}

// NewExportService constructs an ExportService. store and signer may be nil when only direct
// rendering is used.
func NewExportService(projections projectionSource, store storage.Store, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	renderers := map[string]renderer{}
	for _, r := range []renderer{export.NewCSVExporter(), export.NewXLSXExporter(), export.NewPDFExporter()} {
		renderers[r.Extension()] = r
	}
	return &ExportService{
		projections: projections,
		store:       store,
		signer:      signer,
		renderers:   renderers,
		validator:   validator.New(),
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// RenderSheet renders the occupancy sheet of a hostel.
func (s *ExportService) RenderSheet(ctx context.Context, hostelID, format string) (*dto.RenderedFile, error) {
	return s.Render(ctx, dto.ExportRequest{Type: dto.ExportTypeSheet, HostelID: hostelID, Format: format})
}

// RenderSummary renders the degree by hostel summary.
func (s *ExportService) RenderSummary(ctx context.Context, format string) (*dto.RenderedFile, error) {
	return s.Render(ctx, dto.ExportRequest{Type: dto.ExportTypeSummary, Format: format})
}

// Render builds the requested projection and encodes it in memory.
func (s *ExportService) Render(ctx context.Context, req dto.ExportRequest) (*dto.RenderedFile, error) {
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	r, ok := s.renderers[req.Format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", req.Format))
	}

	var (
		dataset export.Dataset
		label   string
	)
	switch req.Type {
	case dto.ExportTypeSheet:
		rows, err := s.projections.ProjectSheet(ctx, req.HostelID)
		if err != nil {
			return nil, err
		}
		dataset = sheetDataset(rows)
		label = "occupancy_sheet_" + req.HostelID
		if len(rows) > 0 {
			label = "occupancy_sheet_" + rows[0].HostelName
		}
	default:
		summary, err := s.projections.ProjectAllocationSummary(ctx)
		if err != nil {
			return nil, err
		}
		dataset = summaryDataset(summary)
		label = "allocation_summary"
	}

	payload, err := r.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.RenderedFile{
		Filename:    fmt.Sprintf("%s_%s.%s", sanitizeFilename(label), s.now().UTC().Format("20060102_150405"), r.Extension()),
		ContentType: r.ContentType(),
		Data:        payload,
	}, nil
}

// Create renders and stores an export and returns its download link. Stores that presign get a
// direct URL; otherwise the link carries a signed token served by Open.
func (s *ExportService) Create(ctx context.Context, req dto.ExportRequest) (*dto.ExportResult, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage not configured")
	}
	file, err := s.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	key := path.Join(string(req.Type), id, file.Filename)
	if err := s.store.Save(ctx, key, file.Data, file.ContentType); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}

	result := &dto.ExportResult{
		ID:          id,
		Filename:    file.Filename,
		ContentType: file.ContentType,
		Size:        int64(len(file.Data)),
	}
	if presigner, ok := s.store.(storage.Presigner); ok {
		url, err := presigner.PresignGet(ctx, key, s.cfg.ResultTTL)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to presign export")
		}
		result.DownloadURL = url
		result.ExpiresAt = s.now().Add(s.cfg.ResultTTL).UTC()
		return result, nil
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export signing not configured")
	}
	token, expiresAt, err := s.signer.Generate(id, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	result.DownloadURL = fmt.Sprintf("%s/occupancy/exports/download?token=%s", prefix, token)
	result.ExpiresAt = expiresAt.UTC()
	return result, nil
}

// Open resolves a download token to the stored file.
func (s *ExportService) Open(ctx context.Context, token string) (io.ReadCloser, *dto.RenderedFile, error) {
	if s.store == nil || s.signer == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "export storage not configured")
	}
	_, key, _, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download token")
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	meta := &dto.RenderedFile{Filename: path.Base(key)}
	if r, ok := s.renderers[strings.TrimPrefix(path.Ext(key), ".")]; ok {
		meta.ContentType = r.ContentType()
	}
	return rc, meta, nil
}

// Cleanup removes stored exports older than the result TTL. Stores that expire objects on their
// own, such as S3 lifecycle rules, are skipped.
func (s *ExportService) Cleanup(ctx context.Context) ([]string, error) {
	expiring, ok := s.store.(expiringStorage)
	if !ok {
		return nil, nil
	}
	return expiring.CleanupOlderThan(ctx, s.cfg.ResultTTL)
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Cleanup(ctx)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				s.logger.Info("expired exports removed", zap.Int("count", len(deleted)))
			}
		}
	}
}

var sheetHeaders = []string{"Hostel", "Unit", "Floor", "Room", "Status", "Capacity", "Occupancy", "Bed", "Student", "Roll Number", "Email", "Degree"}

func sheetDataset(rows []models.SheetRow) export.Dataset {
	data := export.Dataset{Headers: sheetHeaders, Rows: make([][]string, 0, len(rows))}
	for _, row := range rows {
		floor := ""
		if row.Floor != nil {
			floor = strconv.Itoa(*row.Floor)
		}
		data.Rows = append(data.Rows, []string{
			row.HostelName,
			row.UnitNumber,
			floor,
			row.RoomNumber,
			string(row.RoomStatus),
			strconv.Itoa(row.Capacity),
			strconv.Itoa(row.Occupancy),
			strconv.Itoa(row.BedNumber),
			row.StudentName,
			row.RollNumber,
			row.Email,
			row.Degree,
		})
	}
	if len(rows) > 0 {
		data.Title = "Occupancy " + rows[0].HostelName
	}
	return data
}

func summaryDataset(summary *models.AllocationSummary) export.Dataset {
	headers := append([]string{"Degree"}, summary.Hostels...)
	headers = append(headers, "Total")
	data := export.Dataset{Title: "Allocation Summary", Headers: headers, Rows: make([][]string, 0, len(summary.Rows))}
	for _, row := range summary.Rows {
		record := []string{row.Degree}
		for _, hostel := range summary.Hostels {
			record = append(record, strconv.Itoa(row.Counts[hostel]))
		}
		data.Rows = append(data.Rows, append(record, strconv.Itoa(row.Total)))
	}
	footer := []string{"Total"}
	for _, hostel := range summary.Hostels {
		footer = append(footer, strconv.Itoa(summary.ColumnTotals[hostel]))
	}
	data.Footer = append(footer, strconv.Itoa(summary.GrandTotal))
	return data
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
