package dto

import "time"

// ExportType selects the projection to export.
type ExportType string

const (
	ExportTypeSheet   ExportType = "sheet"
	ExportTypeSummary ExportType = "summary"
)

// ExportRequest asks for a stored export.
type ExportRequest struct {
	Type     ExportType `json:"type" validate:"required,oneof=sheet summary"`
	HostelID string     `json:"hostelId,omitempty" validate:"required_if=Type sheet"`
	Format   string     `json:"format" validate:"required,oneof=csv xlsx pdf"`
}

// ExportResult points at a stored export.
type ExportResult struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	DownloadURL string    `json:"downloadUrl"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// RenderedFile is an in-memory projection export.
type RenderedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}
