package main

import (
	"os"

	"github.com/autopeer-io/fleethub/cmd/fleetctl/app"
)

func main() {
	if err := app.NewFleetctlCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
