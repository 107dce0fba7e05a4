package export

import "fmt"

// Dataset is tabular export content. Footer, when set, is rendered as a closing totals row.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Footer  []string
}

func (d Dataset) validate(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	for i, row := range d.Rows {
		if len(row) > len(d.Headers) {
			return fmt.Errorf("%s row %d has %d cells for %d headers", format, i+1, len(row), len(d.Headers))
		}
	}
	return nil
}

// records returns the body rows followed by the footer, every row padded to the header width.
func (d Dataset) records() [][]string {
	out := make([][]string, 0, len(d.Rows)+1)
	for _, row := range d.Rows {
		out = append(out, pad(row, len(d.Headers)))
	}
	if len(d.Footer) > 0 {
		out = append(out, pad(d.Footer, len(d.Headers)))
	}
	return out
}

func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}
