package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// XLSXExporter renders datasets into a single-sheet workbook with a bold, frozen header row.
// Cells holding integers are written as numbers.
type XLSXExporter struct {
	SheetName string
}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{SheetName: "Sheet1"}
}

// ContentType of rendered documents.
func (e *XLSXExporter) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Extension of rendered documents.
func (e *XLSXExporter) Extension() string { return "xlsx" }

// Render builds the workbook in memory.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if err := data.validate("xlsx"); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	sheet := e.SheetName
	if sheet == "" {
		sheet = "Sheet1"
	}
	if data.Title != "" {
		sheet = sheetTitle(data.Title)
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("name xlsx sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create xlsx style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("open xlsx stream: %w", err)
	}
	if err := sw.SetPanes(&excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze xlsx header: %w", err)
	}
	headerRow := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		headerRow[i] = excelize.Cell{StyleID: bold, Value: h}
	}
	if err := sw.SetRow("A1", headerRow); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}

	records := data.records()
	for i, record := range records {
		cells := make([]interface{}, len(record))
		footer := i == len(records)-1 && len(data.Footer) > 0
		for j, value := range record {
			var v interface{} = value
			if n, err := strconv.Atoi(value); err == nil {
				v = n
			}
			if footer {
				v = excelize.Cell{StyleID: bold, Value: v}
			}
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, cells); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush xlsx stream: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// sheetTitle trims a title to a valid worksheet name.
func sheetTitle(title string) string {
	invalid := map[rune]bool{':': true, '\\': true, '/': true, '?': true, '*': true, '[': true, ']': true}
	out := make([]rune, 0, 31)
	for _, r := range title {
		if invalid[r] {
			r = ' '
		}
		out = append(out, r)
		if len(out) == 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Sheet1"
	}
	return string(out)
}
