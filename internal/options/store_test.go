package options

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"filippo.io/age"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/secrets"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOpen_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	writeFile(t, path, `
ga_tracking_id = "UA-123"
gtm_tracking_id = ""
hotjar_tracking_id = 998877
`)

	s, err := Open(path, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if v, ok := s.Get(KeyAnalytics); !ok || v != "UA-123" {
		t.Errorf("ga_tracking_id = (%q, %v)", v, ok)
	}
	if _, ok := s.Get(KeyTagManager); ok {
		t.Error("empty value should read as absent")
	}
	if _, ok := s.Get(KeyPixel); ok {
		t.Error("missing key should read as absent")
	}
	if v, ok := s.Get(KeyHotjar); !ok || v != "998877" {
		t.Errorf("hotjar_tracking_id = (%q, %v)", v, ok)
	}
}

func TestOpen_MissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "absent.yaml"), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("keys = %v, want none", s.Keys())
	}
}

func TestOpen_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	writeFile(t, path, "ga_tracking_id = = =")

	if _, err := Open(path, nil, zerolog.Nop()); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestOpen_EncryptedValue(t *testing.T) {
	identity, _ := age.GenerateX25519Identity()
	enc, err := secrets.Encrypt("GTM-9", identity.Recipient())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "options.yaml")
	writeFile(t, path, "gtm_tracking_id: \""+enc+"\"\n")

	s, err := Open(path, []age.Identity{identity}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if v, _ := s.Get(KeyTagManager); v != "GTM-9" {
		t.Errorf("gtm_tracking_id = %q, want GTM-9", v)
	}

	if _, err := Open(path, nil, zerolog.Nop()); !errors.Is(err, secrets.ErrNoIdentity) {
		t.Errorf("err = %v, want ErrNoIdentity", err)
	}
}

func TestReload_KeepsValuesOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	writeFile(t, path, `facebook_pixel = "px-1"`)

	s, err := Open(path, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	rev := s.Revision()

	writeFile(t, path, "facebook_pixel = = broken")
	if err := s.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if v, _ := s.Get(KeyPixel); v != "px-1" {
		t.Errorf("facebook_pixel = %q, want px-1", v)
	}
	if s.Revision() != rev {
		t.Error("revision changed on failed reload")
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory(nil)
	if _, ok := s.Get(KeyAnalytics); ok {
		t.Error("empty store should have no values")
	}
	s.Set(KeyAnalytics, "UA-1")
	if v, ok := s.Get(KeyAnalytics); !ok || v != "UA-1" {
		t.Errorf("got (%q, %v)", v, ok)
	}
	if s.Revision() != 1 {
		t.Errorf("revision = %d, want 1", s.Revision())
	}
	if err := s.Reload(); err != nil {
		t.Errorf("Reload on memory store: %v", err)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.toml")
	writeFile(t, path, `ga_tracking_id = "UA-1"`)

	s, err := Open(path, nil, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Watch(ctx); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	writeFile(t, path, `ga_tracking_id = "UA-2"`)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := s.Get(KeyAnalytics); v == "UA-2" {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("options were not reloaded after file change")
}

func TestPages(t *testing.T) {
	pages := Pages()
	if len(pages) != 3 {
		t.Fatalf("len(Pages) = %d, want 3", len(pages))
	}
	root := pages[0]
	if root.Slug != RootSlug || root.Capability != "edit_posts" || root.Redirect {
		t.Errorf("unexpected root page: %+v", root)
	}
	for _, p := range pages[1:] {
		if p.Parent != RootSlug {
			t.Errorf("%s: parent = %q, want %q", p.MenuTitle, p.Parent, RootSlug)
		}
	}
	if len(pages[1].Fields) != 4 {
		t.Errorf("analytics fields = %v", pages[1].Fields)
	}
}
