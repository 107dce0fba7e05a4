// Package roster reads bulk allocation rosters from CSV and XLSX files.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Row is one roster line. Line is the 1-based line of the source file, header included.
type Row struct {
	Line       int
	Email      string
	FullName   string
	RollNumber string
	Degree     string
	Password   string
	HostelID   string
	UnitNumber string
	RoomNumber string
	BedNumber  int
}

// Format is a supported roster encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

var (
	// ErrUnsupportedFormat is returned for files that are neither CSV nor XLSX.
	ErrUnsupportedFormat = errors.New("roster: unsupported file format")
	// ErrMissingColumn is returned when a required header is absent.
	ErrMissingColumn = errors.New("roster: missing required column")
	// ErrTooManyRows is returned when the roster exceeds the configured limit.
	ErrTooManyRows = errors.New("roster: too many rows")
)

// LineError locates a malformed cell.
type LineError struct {
	Line   int
	Column string
	Err    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("roster line %d column %s: %v", e.Line, e.Column, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

type field int

const (
	fieldEmail field = iota
	fieldFullName
	fieldRollNumber
	fieldDegree
	fieldPassword
	fieldHostelID
	fieldUnitNumber
	fieldRoomNumber
	fieldBedNumber
)

var headerAliases = map[string]field{
	"email":      fieldEmail,
	"fullname":   fieldFullName,
	"name":       fieldFullName,
	"rollnumber": fieldRollNumber,
	"rollno":     fieldRollNumber,
	"degree":     fieldDegree,
	"password":   fieldPassword,
	"hostelid":   fieldHostelID,
	"hostel":     fieldHostelID,
	"unitnumber": fieldUnitNumber,
	"unit":       fieldUnitNumber,
	"roomnumber": fieldRoomNumber,
	"room":       fieldRoomNumber,
	"bednumber":  fieldBedNumber,
	"bed":        fieldBedNumber,
}

var required = map[field]string{
	fieldEmail:      "email",
	fieldHostelID:   "hostelId",
	fieldRoomNumber: "roomNumber",
	fieldBedNumber:  "bedNumber",
}

// DetectFormat picks the format from a file name.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")) {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
}

// Parse reads a roster in the given format. maxRows <= 0 disables the limit.
func Parse(r io.Reader, format Format, maxRows int) ([]Row, error) {
	var (
		records [][]string
		err     error
	)
	switch format {
	case FormatCSV:
		records, err = readCSV(r)
	case FormatXLSX:
		records, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return decode(records, maxRows)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv roster: %w", err)
	}
	return records, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx roster: %w", err)
	}
	defer f.Close() //nolint:errcheck
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx roster has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read xlsx roster: %w", err)
	}
	return rows, nil
}

func decode(records [][]string, maxRows int) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: roster is empty", ErrMissingColumn)
	}
	columns := make(map[field]int)
	for i, h := range records[0] {
		if f, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, dup := columns[f]; !dup {
				columns[f] = i
			}
		}
	}
	for f, name := range required {
		if _, ok := columns[f]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if blank(record) {
			continue
		}
		if maxRows > 0 && len(rows) == maxRows {
			return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, maxRows)
		}
		cell := func(f field) string {
			idx, ok := columns[f]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}
		row := Row{
			Line:       i + 2,
			Email:      cell(fieldEmail),
			FullName:   cell(fieldFullName),
			RollNumber: cell(fieldRollNumber),
			Degree:     cell(fieldDegree),
			Password:   cell(fieldPassword),
			HostelID:   cell(fieldHostelID),
			UnitNumber: cell(fieldUnitNumber),
			RoomNumber: cell(fieldRoomNumber),
		}
		if raw := cell(fieldBedNumber); raw != "" {
			bed, err := strconv.Atoi(raw)
			if err != nil {
				return nil, &LineError{Line: row.Line, Column: "bedNumber", Err: fmt.Errorf("%q is not a number", raw)}
			}
			row.BedNumber = bed
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(h)
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
