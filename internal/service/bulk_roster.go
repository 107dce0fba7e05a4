package service

import (
	"context"
	"io"

	"github.com/noah-isme/hostel-allocation-api/internal/dto"
	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/roster"
)

// ImportRoster parses a CSV or XLSX roster and runs it through Process. Malformed files are
// rejected as a whole; row numbers in the report count data rows from 1.
func (s *BulkAllocationService) ImportRoster(ctx context.Context, r io.Reader, filename string, createProfiles bool, actor *models.JWTClaims) (*dto.BulkAllocationResult, error) {
	format, err := roster.DetectFormat(filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "roster must be a .csv or .xlsx file")
	}
	rows, err := roster.Parse(r, format, s.cfg.MaxRows)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "roster has no data rows")
	}
	return s.Process(ctx, RosterRequest(rows, createProfiles), actor)
}

// RosterRequest converts parsed roster rows into a bulk request.
func RosterRequest(rows []roster.Row, createProfiles bool) dto.BulkAllocationRequest {
	req := dto.BulkAllocationRequest{CreateProfiles: createProfiles, Rows: make([]dto.BulkAllocationRow, len(rows))}
	for i, row := range rows {
		req.Rows[i] = dto.BulkAllocationRow{
			Email:      row.Email,
			FullName:   row.FullName,
			RollNumber: row.RollNumber,
			Degree:     row.Degree,
			Password:   row.Password,
			HostelID:   row.HostelID,
			UnitNumber: row.UnitNumber,
			RoomNumber: row.RoomNumber,
			BedNumber:  row.BedNumber,
		}
	}
	return req
}
