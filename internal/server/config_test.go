package server

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"

	"github.com/fluxfullcircle/fluxdna/internal/secrets"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(secrets.EnvAgeKey, "")
	t.Setenv(secrets.EnvAgeKeyFile, "")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Plugin.CacheTTL != 5*time.Minute || !cfg.Plugin.Activate || !cfg.Options.Watch {
		t.Errorf("plugin/options = %+v %+v", cfg.Plugin, cfg.Options)
	}
	if cfg.Scripts.HandlerTimeout != 5*time.Second || cfg.NATS.EventMaxAge != 7*24*time.Hour {
		t.Errorf("scripts/nats = %+v %+v", cfg.Scripts, cfg.NATS)
	}
	if cfg.Server.Socket == "" {
		t.Error("socket default missing")
	}
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv(secrets.EnvAgeKey, "")
	t.Setenv(secrets.EnvAgeKeyFile, "")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FLUXDNA_LOCALE", "de_DE")

	path := filepath.Join(t.TempDir(), "fluxdna.toml")
	os.WriteFile(path, []byte(`
[plugin]
base_url = "https://cdn.example.com/flux-dna"
cache_ttl = "30s"

[scripts]
verify_integrity = true
`), 0644)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Plugin.BaseURL != "https://cdn.example.com/flux-dna" || cfg.Plugin.CacheTTL != 30*time.Second {
		t.Errorf("plugin = %+v", cfg.Plugin)
	}
	if cfg.Plugin.Locale != "de_DE" || !cfg.Scripts.VerifyIntegrity {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_EncryptedSecret(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(secrets.EnvAgeKeyFile, "")
	id, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	enc, err := secrets.Encrypt("hunter2", id.Recipient())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "fluxdna.toml")
	os.WriteFile(path, []byte("[security]\nrender_secret = \""+enc+"\"\n"), 0644)

	t.Setenv(secrets.EnvAgeKey, id.String())
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Security.RenderSecret != "hunter2" || len(cfg.Identities) != 1 {
		t.Errorf("secret = %q identities = %d", cfg.Security.RenderSecret, len(cfg.Identities))
	}

	t.Setenv(secrets.EnvAgeKey, "")
	if _, err := LoadConfig(path); !errors.Is(err, secrets.ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestLoadConfig_ExplicitFileErrors(t *testing.T) {
	t.Setenv(secrets.EnvAgeKey, "")
	t.Setenv(secrets.EnvAgeKeyFile, "")
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[plugin\nlocale = "), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing", filepath.Join(dir, "missing.toml")},
		{"malformed", bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(tt.path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
