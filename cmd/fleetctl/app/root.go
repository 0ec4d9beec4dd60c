// Package app implements fleetctl, the operator CLI of the hub.
package app

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/autopeer-io/fleethub/pkg/client"
)

type rootOptions struct {
	server   string
	grpcAddr string
	timeout  time.Duration
	output   string
}

func NewFleetctlCommand() *cobra.Command {
	o := &rootOptions{
		server:   "http://127.0.0.1:8080",
		grpcAddr: "127.0.0.1:8090",
		timeout:  30 * time.Second,
		output:   "table",
	}

	cmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Inspect and operate a FleetHub",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if o.output != "table" && o.output != "json" {
				return fmt.Errorf("--output must be table or json, got %q", o.output)
			}
			return nil
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&o.server, "server", "s", o.server, "Base URL of the hub HTTP API.")
	fs.StringVar(&o.grpcAddr, "grpc-addr", o.grpcAddr, "Address of the hub gRPC health service.")
	fs.DurationVar(&o.timeout, "timeout", o.timeout, "Timeout of each request.")
	fs.StringVarP(&o.output, "output", "o", o.output, "Output format: table or json.")

	cmd.AddCommand(
		newVehiclesCommand(o),
		newUnlockCommand(o),
		newCommandCommand(o),
		newCancelCommand(o),
		newSubjectsCommand(o),
		newZonesCommand(o),
		newHealthCommand(o),
	)
	return cmd
}

func (o *rootOptions) client() (*client.Client, error) {
	return client.New(o.server, o.timeout)
}

func newTable() *uitable.Table {
	t := uitable.New()
	t.MaxColWidth = 48
	t.Wrap = true
	return t
}

func printTable(w io.Writer, t *uitable.Table) {
	fmt.Fprintln(w, t)
}
