package app

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newSubjectsCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subjects",
		Aliases: []string{"subject"},
		Short:   "Report positions and inspect geofence subjects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "position ID LAT LON",
		Short: "Report a user position and print the geofence event it caused",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid latitude %q", args[1])
			}
			lon, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid longitude %q", args[2])
			}
			c, err := o.client()
			if err != nil {
				return err
			}
			ev, err := c.ReportPosition(cmd.Context(), args[0], lat, lon)
			if err != nil {
				return err
			}
			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), ev)
			}
			if ev == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "no event")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", ev.SubjectID, ev.Type, ev.ZoneID)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get ID",
		Short: "Show the geofence state of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			st, err := c.GetSubject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), st)
			}
			t := newTable()
			t.AddRow("ID", "KIND", "STATE", "ZONE", "ALERTED")
			t.AddRow(st.ID, st.Kind, st.State, st.ZoneID, st.HasAlerted)
			printTable(cmd.OutOrStdout(), t)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "close ID",
		Short: "Drop the geofence state of a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			if err := c.CloseSubject(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject %s closed\n", args[0])
			return nil
		},
	})

	return cmd
}

func newZonesCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "zones",
		Short: "List restricted zones and boundary lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := o.client()
			if err != nil {
				return err
			}
			zones, err := c.Zones(cmd.Context())
			if err != nil {
				return err
			}
			borders, err := c.Borders(cmd.Context())
			if err != nil {
				return err
			}
			if o.output == "json" {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"zones": zones, "borders": borders})
			}
			t := newTable()
			t.AddRow("KIND", "ID", "NAME", "VERTICES")
			for _, z := range zones {
				t.AddRow("zone", z.ID, z.Name, len(z.Ring))
			}
			for _, b := range borders {
				t.AddRow("border", b.ID, b.Name, len(b.Points))
			}
			printTable(cmd.OutOrStdout(), t)
			return nil
		},
	}
}
