package app

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autopeer-io/fleethub/pkg/log"
)

const configFlagName = "config"

var cfgFile string

// addConfigFlag registers --config on fs.
func addConfigFlag(fs *pflag.FlagSet) {
	fs.StringVarP(&cfgFile, configFlagName, "c", cfgFile, "Read configuration from specified `FILE`, "+
		"support JSON, TOML, YAML, HCL, or Java properties formats.")
}

// newViper returns a viper bound to fs, the optional config file and the
// environment. Keys are flag names; env names are prefix_KEY with '.' and '-'
// replaced by '_'.
func newViper(envPrefix string, fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file(%s): %w", cfgFile, err)
		}
		log.Info("Using config file", "file", filepath.Clean(v.ConfigFileUsed()))
	}
	return v, nil
}

// watchConfig calls onChange every time the config file is written.
func watchConfig(v *viper.Viper, onChange func(*viper.Viper, fsnotify.Event)) {
	if v.ConfigFileUsed() == "" || onChange == nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Info("Config file changed", "file", e.Name, "op", e.Op.String())
		onChange(v, e)
	})
	v.WatchConfig()
}
