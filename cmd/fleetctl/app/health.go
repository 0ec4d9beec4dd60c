package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/autopeer-io/fleethub/pkg/client"
)

func newHealthCommand(o *rootOptions) *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Query the hub gRPC health service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := client.CheckHealth(cmd.Context(), o.grpcAddr, service, o.timeout)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			if status != "SERVING" {
				return fmt.Errorf("hub is %s", status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "Health service name; empty checks the whole server.")
	return cmd
}
