package mcp

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"

	"github.com/fluxfullcircle/fluxdna/pkg/sockpath"
)

// Config holds all configuration for the MCP server.
type Config struct {
	Daemon DaemonConfig `mapstructure:"daemon"`
}

// DaemonConfig holds settings for connecting to the fluxdnad API.
type DaemonConfig struct {
	Socket string `mapstructure:"socket"`
}

// LoadConfig reads the MCP server configuration from file, env vars and
// defaults.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("daemon.socket", sockpath.DefaultSocketPath())

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("fluxdna-mcp")
		v.AddConfigPath("/etc/fluxdna")
		v.AddConfigPath("$HOME/.config/fluxdna")
		v.AddConfigPath(".")
	}

	v.BindEnv("daemon.socket", "FLUXDNA_DAEMON_SOCKET")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
