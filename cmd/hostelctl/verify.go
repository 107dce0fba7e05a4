package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/hostel-allocation-api/internal/app"
)

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check stored occupancy data against the allocation rules",
		Long:  "verify recomputes occupancy from allocations and exits non-zero when any rule is broken.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Consistency.Verify(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				if err := c.printJSON(out, report); err != nil {
					return err
				}
			} else {
				r := newRenderer(out)
				r.status(report.Healthy(), fmt.Sprintf("checked %d hostels, %d rooms, %d allocations",
					report.CheckedHostels, report.CheckedRooms, report.CheckedAllocations))
				if !report.Healthy() {
					rows := make([][]string, 0, len(report.Violations))
					for _, v := range report.Violations {
						rows = append(rows, []string{v.Rule, v.HostelID, v.RoomID, v.EntityID, v.Message})
					}
					r.table([]string{"Rule", "Hostel", "Room", "Entity", "Message"}, rows)
				}
			}
			if !report.Healthy() {
				return fmt.Errorf("%d consistency violations found", len(report.Violations))
			}
			return nil
		},
	}
}
