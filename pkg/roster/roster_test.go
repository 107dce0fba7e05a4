package roster

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCSV(t *testing.T) {
	input := "Email,Full Name,roll_number,Degree,hostelId,Unit,Room Number,Bed\n" +
		"a@x.io, Ann ,R1,BSc,h1,U1,101,1\n" +
		",,,,,,,\n" +
		"b@x.io,Bob,R2,,h1,U1,101,2\n"
	rows, err := Parse(strings.NewReader(input), FormatCSV, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{Line: 2, Email: "a@x.io", FullName: "Ann", RollNumber: "R1", Degree: "BSc", HostelID: "h1", UnitNumber: "U1", RoomNumber: "101", BedNumber: 1}, rows[0])
	assert.Equal(t, 4, rows[1].Line)
	assert.Equal(t, "", rows[1].Degree)
}

func TestParseCSVMissingColumn(t *testing.T) {
	_, err := Parse(strings.NewReader("email,hostelId,bedNumber\na@x.io,h1,1\n"), FormatCSV, 0)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseCSVBadBed(t *testing.T) {
	_, err := Parse(strings.NewReader("email,hostelId,roomNumber,bedNumber\na@x.io,h1,101,one\n"), FormatCSV, 0)
	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 2, lineErr.Line)
	assert.Equal(t, "bedNumber", lineErr.Column)
}

func TestParseCSVRowLimit(t *testing.T) {
	input := "email,hostelId,roomNumber,bedNumber\na@x.io,h1,101,1\nb@x.io,h1,101,2\n"
	_, err := Parse(strings.NewReader(input), FormatCSV, 1)
	assert.ErrorIs(t, err, ErrTooManyRows)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]interface{}{"email", "fullName", "hostelId", "roomNumber", "bedNumber"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"a@x.io", "Ann", "h1", "7", 3}))
	buf := &bytes.Buffer{}
	require.NoError(t, f.Write(buf))
	require.NoError(t, f.Close())

	rows, err := Parse(buf, FormatXLSX, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "7", rows[0].RoomNumber)
	assert.Equal(t, 3, rows[0].BedNumber)
}

func TestDetectFormat(t *testing.T) {
	format, err := DetectFormat("roster.XLSX")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)

	_, err = DetectFormat("roster.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
