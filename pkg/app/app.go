// Package app builds cobra commands from option structs bound to flags,
// environment and an optional config file.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	cliflag "k8s.io/component-base/cli/flag"
	"k8s.io/component-base/cli/globalflag"
)

const usageColumns = 100

// RunFunc is the entry point of an application once options are loaded.
type RunFunc func() error

// ReloadFunc is called when the config file of a running application changes.
type ReloadFunc func(v *viper.Viper, e fsnotify.Event)

// App is the main structure of a cli application.
type App struct {
	basename    string
	shortDesc   string
	description string
	envPrefix   string
	options     NamedFlagSetOptions
	run         RunFunc
	reload      ReloadFunc
	args        cobra.PositionalArgs
	silence     bool
	cmd         *cobra.Command
}

// Option defines optional parameters for initializing the application structure.
type Option func(*App)

// WithOptions sets the options loaded from flags, env and config file.
func WithOptions(opts NamedFlagSetOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the application startup callback.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.run = run }
}

// WithDescription sets the long description of the command.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithEnvPrefix sets the environment variable prefix. It defaults to the
// upper-cased basename.
func WithEnvPrefix(prefix string) Option {
	return func(a *App) { a.envPrefix = prefix }
}

// WithConfigReload registers fn to run when the config file changes.
func WithConfigReload(fn ReloadFunc) Option {
	return func(a *App) { a.reload = fn }
}

// WithSilence suppresses usage output on errors.
func WithSilence() Option {
	return func(a *App) { a.silence = true }
}

// WithDefaultValidArgs rejects positional arguments.
func WithDefaultValidArgs() Option {
	return func(a *App) {
		a.args = func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				if len(arg) > 0 {
					return fmt.Errorf("%q does not take any arguments, got %q", cmd.CommandPath(), args)
				}
			}
			return nil
		}
	}
}

// NewApp creates a new application instance based on the given name and options.
func NewApp(basename string, shortDesc string, opts ...Option) *App {
	a := &App{
		basename:  basename,
		shortDesc: shortDesc,
		envPrefix: strings.ToUpper(strings.NewReplacer("-", "", ".", "").Replace(basename)),
	}
	for _, o := range opts {
		o(a)
	}
	a.buildCommand()
	return a
}

// Command returns the cobra command of the application.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Run launches the application and exits the process on failure.
func (a *App) Run() {
	if err := a.cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *App) buildCommand() {
	cmd := &cobra.Command{
		Use:           a.basename,
		Short:         a.shortDesc,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: a.silence,
		Args:          a.args,
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)
	cmd.Flags().SortFlags = true

	var namedFlagSets cliflag.NamedFlagSets
	if a.options != nil {
		namedFlagSets = a.options.Flags()
	}
	addConfigFlag(namedFlagSets.FlagSet("global"))
	globalflag.AddGlobalFlags(namedFlagSets.FlagSet("global"), cmd.Name())
	for _, f := range namedFlagSets.FlagSets {
		cmd.Flags().AddFlagSet(f)
	}

	cliflag.SetUsageAndHelpFunc(cmd, namedFlagSets, usageColumns)

	if a.run != nil {
		cmd.RunE = a.runCommand
	}
	a.cmd = cmd
}

func (a *App) runCommand(cmd *cobra.Command, _ []string) error {
	if a.options != nil {
		v, err := newViper(a.envPrefix, cmd.Flags())
		if err != nil {
			return err
		}
		if err := v.Unmarshal(a.options); err != nil {
			return fmt.Errorf("failed to decode configuration: %w", err)
		}
		if err := a.options.Complete(); err != nil {
			return err
		}
		if err := a.options.Validate(); err != nil {
			return err
		}
		watchConfig(v, a.reload)
	}
	return a.run()
}
