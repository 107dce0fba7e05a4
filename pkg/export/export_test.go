package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Title:   "Allocation Summary",
		Headers: []string{"Degree", "Hall A", "Total"},
		Rows: [][]string{
			{"BSc", "2", "2"},
			{"Unknown", "1"},
		},
		Footer: []string{"Total", "3", "3"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.Equal(t, "Degree,Hall A,Total\nBSc,2,2\nUnknown,1,\nTotal,3,3\n", string(out))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{})
	assert.Error(t, err)
	_, err = NewXLSXExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestExportersRejectWideRows(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{Headers: []string{"a"}, Rows: [][]string{{"1", "2"}}})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestXLSXExporterRender(t *testing.T) {
	out, err := NewXLSXExporter().Render(sampleDataset())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Allocation Summary")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Degree", "Hall A", "Total"}, rows[0])
	assert.Equal(t, "Unknown", rows[2][0])
	assert.Equal(t, "1", rows[2][1])
	assert.Equal(t, []string{"Total", "3", "3"}, rows[3])
}

func TestSheetTitleSanitises(t *testing.T) {
	assert.Equal(t, "A B", sheetTitle("A/B"))
	assert.Len(t, []rune(sheetTitle("a very long worksheet title that overflows")), 31)
	assert.Equal(t, "Sheet1", sheetTitle(""))
}
