// Package config resolves runtime options from flags, FORENSICWATCH_*
// environment variables and an optional config file, in that order.
package config

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"forensicwatch/internal/dirs"
	"forensicwatch/internal/model"
)

// EnvPrefix scopes environment variables, e.g. FORENSICWATCH_SERVER.
const EnvPrefix = "FORENSICWATCH"

// Defaults.
const (
	DefaultServer            = "http://localhost:8000"
	DefaultReconnectAttempts = 5
	DefaultReconnectBase     = time.Second
	DefaultReconnectMax      = 30 * time.Second
)

// flagKeys maps persistent flag names to viper keys.
var flagKeys = map[string]string{
	"server":    "server",
	"verbose":   "verbose",
	"log-file":  "log_file",
	"user":      "user",
	"mongo-uri": "mongo_uri",
	"no-ui":     "no_ui",
}

// Init wires Viper with config paths, env, defaults and flag bindings.
// It is non-fatal: a missing config file is not an error.
func Init(root *cobra.Command) error {
	_ = dirs.EnsureAll()

	if cfgDir, err := dirs.ConfigDir(); err == nil {
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // config.{yaml|yml|json|toml}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server", DefaultServer)
	viper.SetDefault("reconnect.max_attempts", DefaultReconnectAttempts)
	viper.SetDefault("reconnect.base", DefaultReconnectBase)
	viper.SetDefault("reconnect.max", DefaultReconnectMax)

	root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = viper.BindPFlag(key, f)
		}
	})

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

// Load reads the resolved options.
func Load() model.CLIOptions {
	return model.CLIOptions{
		Server:   viper.GetString("server"),
		Verbose:  viper.GetBool("verbose"),
		LogFile:  viper.GetString("log_file"),
		User:     viper.GetString("user"),
		MongoURI: viper.GetString("mongo_uri"),
		NoUI:     viper.GetBool("no_ui"),
		Reconnect: model.ReconnectOptions{
			MaxAttempts: viper.GetInt("reconnect.max_attempts"),
			Base:        viper.GetDuration("reconnect.base"),
			Max:         viper.GetDuration("reconnect.max"),
		},
	}
}

// ConfigFile returns the config file in use, or "" when none was found.
func ConfigFile() string {
	return viper.ConfigFileUsed()
}
