package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/hostel-allocation-api/internal/app"
	"github.com/noah-isme/hostel-allocation-api/internal/dto"
)

func (c *cli) importRosterCmd() *cobra.Command {
	var createProfiles bool
	cmd := &cobra.Command{
		Use:   "import-roster <file>",
		Short: "Allocate students listed in a CSV or XLSX roster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			a, err := c.open(ctx, app.Options{Cache: true})
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Bulk.ImportRoster(ctx, f, filepath.Base(args[0]), createProfiles, operator)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, result)
			}
			r := newRenderer(out)
			r.status(result.Status != dto.BulkStatusFailed,
				fmt.Sprintf("%s: %d of %d rows applied", result.Status, result.SucceededCount, result.Total))
			if len(result.Failed) > 0 {
				rows := make([][]string, 0, len(result.Failed))
				for _, failed := range result.Failed {
					rows = append(rows, []string{strconv.Itoa(failed.Row), failed.Input.Email, failed.Code, failed.Message})
				}
				r.table([]string{"Row", "Email", "Code", "Message"}, rows)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&createProfiles, "create-profiles", false, "create missing student accounts and profiles")
	return cmd
}

func (c *cli) reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <hostelId> <file>",
		Short: "Apply desired room states from a JSON or YAML file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := readRoomStates(args[1])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := c.open(ctx, app.Options{Cache: true})
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Lifecycle.BulkReconcile(ctx, args[0], states, operator)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, result)
			}
			r := newRenderer(out)
			r.table([]string{"Activated", "Deactivated", "Capacity updated", "Unchanged", "Released students"}, [][]string{{
				strconv.Itoa(len(result.Activated)),
				strconv.Itoa(len(result.Deactivated)),
				strconv.Itoa(len(result.CapacityUpdated)),
				strconv.Itoa(result.Unchanged),
				strconv.Itoa(len(result.ReleasedStudents)),
			}})
			if len(result.Errors) > 0 {
				rows := make([][]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					unit := ""
					if e.UnitNumber != nil {
						unit = *e.UnitNumber
					}
					rows = append(rows, []string{strconv.Itoa(e.Index), unit, e.RoomNumber, e.Code, e.Message})
				}
				r.table([]string{"Index", "Unit", "Room", "Code", "Message"}, rows)
			}
			return nil
		},
	}
}

// readRoomStates accepts either a list of states or an object with a rooms list.
func readRoomStates(path string) ([]dto.ReconcileRoomState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw interface{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("%s: room states must be a .json, .yaml or .yml file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if wrapped, ok := raw.(map[string]interface{}); ok {
		raw = wrapped["rooms"]
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var states []dto.ReconcileRoomState
	if err := json.Unmarshal(normalized, &states); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("%s lists no room states", path)
	}
	return states, nil
}

func (c *cli) resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset <hostelId>",
		Short: "Vacate every bed in a hostel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset hostel %s without --yes", args[0])
			}

			ctx := cmd.Context()
			a, err := c.open(ctx, app.Options{Cache: true})
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Lifecycle.ResetHostelAllocations(ctx, args[0], operator)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if c.asJSON {
				return c.printJSON(out, result)
			}
			newRenderer(out).status(true, fmt.Sprintf("hostel %s reset: %d allocations removed, %d profiles cleared, %d rooms reset",
				result.HostelID, result.RemovedAllocations, result.ClearedProfiles, result.RoomsReset))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
