package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filippo.io/age"
	"github.com/spf13/viper"

	"github.com/fluxfullcircle/fluxdna/internal/secrets"
	"github.com/fluxfullcircle/fluxdna/pkg/sockpath"
)

// Config is the top-level daemon configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Plugin   PluginConfig   `mapstructure:"plugin"`
	Options  OptionsConfig  `mapstructure:"options"`
	Scripts  ScriptsConfig  `mapstructure:"scripts"`
	Web      WebConfig      `mapstructure:"web"`
	Security SecurityConfig `mapstructure:"security"`

	// Identities decrypt ENC[...] values in the options file.
	Identities []age.Identity `mapstructure:"-"`
}

// ServerConfig holds control socket settings.
type ServerConfig struct {
	Socket string `mapstructure:"socket"`
}

// NATSConfig holds embedded NATS settings.
type NATSConfig struct {
	DataDir     string        `mapstructure:"data_dir"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Token       string        `mapstructure:"token"`
	EventMaxAge time.Duration `mapstructure:"event_max_age"`
}

// PluginConfig holds the site plugin settings.
type PluginConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	LanguagesDir string        `mapstructure:"languages_dir"`
	Locale       string        `mapstructure:"locale"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Activate     bool          `mapstructure:"activate"`
}

// OptionsConfig locates the site options file.
type OptionsConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// ScriptsConfig holds Lua extension script settings.
type ScriptsConfig struct {
	Dir             string        `mapstructure:"dir"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	VerifyIntegrity bool          `mapstructure:"verify_integrity"`
}

// WebConfig holds site front end settings. An empty Listen disables it.
type WebConfig struct {
	Listen   string `mapstructure:"listen"`
	SiteName string `mapstructure:"site_name"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// SecurityConfig holds application-level security settings.
type SecurityConfig struct {
	// RenderSecret, when set, requires signed NATS render requests.
	RenderSecret string `mapstructure:"render_secret"`
}

// LoadConfig reads configuration from file and env.
func LoadConfig(cfgFile string) (Config, error) {
	v := viper.New()

	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".config", "fluxdna")

	v.SetDefault("server.socket", sockpath.DefaultSocketPath())
	v.SetDefault("nats.data_dir", filepath.Join(homeDir, ".local", "share", "fluxdna", "nats"))
	v.SetDefault("nats.event_max_age", 7*24*time.Hour)

	v.SetDefault("plugin.base_url", "/wp-content/plugins/flux-dna")
	v.SetDefault("plugin.languages_dir", filepath.Join(configDir, "languages"))
	v.SetDefault("plugin.cache_ttl", 5*time.Minute)
	v.SetDefault("plugin.activate", true)

	v.SetDefault("options.file", filepath.Join(configDir, "options.toml"))
	v.SetDefault("options.watch", true)

	v.SetDefault("scripts.dir", filepath.Join(configDir, "scripts"))
	v.SetDefault("scripts.handler_timeout", 5*time.Second)
	v.SetDefault("scripts.verify_integrity", false)

	v.SetDefault("web.listen", "127.0.0.1:8080")
	v.SetDefault("web.site_name", "Flux")

	v.SetConfigType("toml")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("fluxdna")
		v.AddConfigPath("/etc/fluxdna")
		v.AddConfigPath("$HOME/.config/fluxdna")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("FLUXDNA")
	v.AutomaticEnv()

	v.BindEnv("nats.token", "FLUXDNA_NATS_TOKEN")
	v.BindEnv("plugin.locale", "FLUXDNA_LOCALE")
	v.BindEnv("web.username", "FLUXDNA_WEB_USERNAME")
	v.BindEnv("web.password", "FLUXDNA_WEB_PASSWORD")
	v.BindEnv("security.render_secret", "FLUXDNA_RENDER_SECRET")

	// Only a searched-for config file is optional; an explicit one must load.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	identities, err := secrets.ResolveIdentity(v)
	if err != nil {
		return Config{}, fmt.Errorf("resolve encryption identity: %w", err)
	}
	if err := secrets.DecryptViperConfig(v, identities); err != nil {
		return Config{}, fmt.Errorf("decrypt config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.Identities = identities
	return cfg, nil
}
