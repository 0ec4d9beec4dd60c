package app

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/fleethub/internal/fleethub/core/model"
)

func newVehiclesCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "vehicles",
		Aliases: []string{"vehicle", "v"},
		Short:   "List, show and remove vehicles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every known vehicle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			vs, err := c.ListVehicles(cmd.Context())
			if err != nil {
				return err
			}
			return o.printVehicles(cmd.OutOrStdout(), vs...)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Show one vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			v, err := c.GetVehicle(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return o.printVehicles(cmd.OutOrStdout(), v)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove ID",
		Short: "Forget a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			if err := c.RemoveVehicle(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "vehicle %s removed\n", args[0])
			return nil
		},
	})

	return cmd
}

func newUnlockCommand(o *rootOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "unlock ID",
		Short: "Send an unlock command to a vehicle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			res, err := c.Unlock(cmd.Context(), args[0], wait)
			if err != nil {
				return err
			}
			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			t := newTable()
			t.AddRow("TOKEN", "VEHICLE", "STATUS", "ATTEMPTS")
			t.AddRow(res.Command.Token, res.Command.VehicleID, res.Command.Status, res.Command.Attempts)
			printTable(cmd.OutOrStdout(), t)
			if res.Vehicle != nil {
				return o.printVehicles(cmd.OutOrStdout(), *res.Vehicle)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "Wait up to this long for the vehicle to confirm (0 returns once queued).")
	return cmd
}

func newCommandCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "command TOKEN",
		Short: "Show an in-flight command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			command, err := c.GetCommand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), command)
			}
			t := newTable()
			t.AddRow("TOKEN", "VEHICLE", "ACTION", "STATUS", "ATTEMPTS", "AGE")
			t.AddRow(command.Token, command.VehicleID, command.Action, command.Status, command.Attempts,
				time.Since(command.CreatedAt).Round(time.Millisecond))
			printTable(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func newCancelCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel TOKEN",
		Short: "Cancel an in-flight command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			command, err := c.CancelCommand(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), command)
			}
			t := newTable()
			t.AddRow("TOKEN", "VEHICLE", "STATUS", "ATTEMPTS")
			t.AddRow(command.Token, command.VehicleID, command.Status, command.Attempts)
			printTable(cmd.OutOrStdout(), t)
			return nil
		},
	}
}

func (o *rootOptions) printVehicles(w io.Writer, vs ...model.VehicleState) error {
	if o.output == "json" {
		return writeJSON(w, vs)
	}
	t := newTable()
	t.AddRow("ID", "NAME", "BATTERY", "AVAILABLE", "LATITUDE", "LONGITUDE", "UPDATED")
	for _, v := range vs {
		avail := fmt.Sprint(v.Available)
		if v.Optimistic {
			avail += " (pending)"
		}
		t.AddRow(v.ID, v.DisplayName(), fmt.Sprintf("%d%%", v.Battery), avail,
			fmt.Sprintf("%.6f", v.Position.Latitude), fmt.Sprintf("%.6f", v.Position.Longitude),
			v.Timestamp.Format(time.RFC3339))
	}
	printTable(w, t)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
