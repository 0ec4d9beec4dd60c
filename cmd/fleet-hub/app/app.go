package app

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	genericapiserver "k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/fleethub/cmd/fleet-hub/app/options"
	"github.com/autopeer-io/fleethub/pkg/app"
	"github.com/autopeer-io/fleethub/pkg/log"
)

const (
	commandName = "fleet-hub"
	commandDesc = `The FleetHub keeps a live registry of rental vehicles from their MQTT
status reports, enforces restricted zones for vehicles and users, and
publishes unlock commands with at-least-once delivery.`
)

func NewApp() *app.App {
	opts := options.NewHubOptions()
	application := app.NewApp(
		commandName,
		"Launch a FleetHub server",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithEnvPrefix("FLEETHUB"),
		app.WithDefaultValidArgs(),
		app.WithConfigReload(reloadLogLevel),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.HubOptions) app.RunFunc {
	return func() error {
		ctx := genericapiserver.SetupSignalContext()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		server, err := cfg.NewHubServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create hub server: %w", err)
		}

		return server.Run(ctx)
	}
}

// reloadLogLevel applies log.level from a rewritten config file. Other
// settings need a restart.
func reloadLogLevel(v *viper.Viper, _ fsnotify.Event) {
	level := v.GetString("log.level")
	if err := log.SetLevel(level); err != nil {
		log.Warn("Ignoring invalid log level from config", "level", level, "err", err.Error())
		return
	}
	log.Info("Log level reloaded", "level", level)
}
