package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hostel-allocation-api/internal/app"
)

func (c *cli) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print active allocations by degree and hostel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.Occupancy.ProjectAllocationSummary(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, summary)
			}

			headers := append([]string{"Degree"}, summary.Hostels...)
			headers = append(headers, "Total")
			rows := make([][]string, 0, len(summary.Rows)+1)
			for _, row := range summary.Rows {
				line := []string{row.Degree}
				for _, hostel := range summary.Hostels {
					line = append(line, strconv.Itoa(row.Counts[hostel]))
				}
				rows = append(rows, append(line, strconv.Itoa(row.Total)))
			}
			totals := []string{"Total"}
			for _, hostel := range summary.Hostels {
				totals = append(totals, strconv.Itoa(summary.ColumnTotals[hostel]))
			}
			rows = append(rows, append(totals, strconv.Itoa(summary.GrandTotal)))
			newRenderer(out).table(headers, rows)
			return nil
		},
	}
}

func (c *cli) exportSheetCmd() *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export-sheet <hostelId>",
		Short: "Write the bed-level occupancy sheet of a hostel to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			file, err := a.Exports.RenderSheet(ctx, args[0], format)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if output == "-" {
				_, err := out.Write(file.Data)
				return err
			}
			path := output
			if path == "" {
				path = file.Filename
			}
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				return err
			}
			if c.asJSON {
				return c.printJSON(out, map[string]interface{}{"path": path, "contentType": file.ContentType, "size": len(file.Data)})
			}
			fmt.Fprintf(out, "wrote %s (%d bytes)\n", path, len(file.Data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "csv, xlsx or pdf")
	cmd.Flags().StringVarP(&output, "out", "o", "", "destination path, - for stdout (default: generated file name)")
	return cmd
}
