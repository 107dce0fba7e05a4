package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-isatty"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

// renderer prints tables, styled only when writing to a terminal.
type renderer struct {
	w      io.Writer
	styled bool
}

func newRenderer(w io.Writer) *renderer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &renderer{w: w, styled: styled}
}

func (r *renderer) table(headers []string, rows [][]string) {
	t := table.New().Headers(headers...).Rows(rows...)
	if r.styled {
		t = t.Border(lipgloss.RoundedBorder()).StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	} else {
		t = t.Border(lipgloss.ASCIIBorder()).StyleFunc(func(int, int) lipgloss.Style {
			return cellStyle
		})
	}
	fmt.Fprintln(r.w, t.Render())
}

func (r *renderer) status(ok bool, msg string) {
	label := "OK"
	style := okStyle
	if !ok {
		label = "FAIL"
		style = failStyle
	}
	if r.styled {
		label = style.Render(label)
	}
	fmt.Fprintf(r.w, "%s %s\n", label, msg)
}
