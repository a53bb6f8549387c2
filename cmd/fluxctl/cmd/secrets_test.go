package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fluxfullcircle/fluxdna/internal/secrets"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSecrets_KeygenEncryptDecrypt(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(secrets.EnvAgeKey, "")
	t.Setenv(secrets.EnvAgeKeyFile, "")

	out, err := run(t, "", "secrets", "keygen")
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	if !strings.Contains(out, filepath.Join(home, ".config", "fluxdna", "age.key")) {
		t.Errorf("keygen output = %q", out)
	}
	if _, err := run(t, "", "secrets", "keygen"); err == nil {
		t.Error("second keygen overwrote the identity")
	}

	enc, err := run(t, "GTM-SECRET\n", "secrets", "encrypt", "-")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	enc = strings.TrimSpace(enc)
	if !secrets.IsEncrypted(enc) {
		t.Fatalf("encrypt output = %q", enc)
	}

	plain, err := run(t, "", "secrets", "decrypt", enc)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if strings.TrimSpace(plain) != "GTM-SECRET" {
		t.Errorf("decrypt = %q", plain)
	}
}

func TestSecrets_EncryptForRecipient(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(secrets.EnvAgeKey, "")
	t.Setenv(secrets.EnvAgeKeyFile, "")

	if _, err := run(t, "", "secrets", "encrypt", "x"); err == nil {
		t.Fatal("encrypt without identity or recipient succeeded")
	}

	id, _ := secrets.GenerateKeyPair()
	out, err := run(t, "", "secrets", "encrypt", "--recipient", id.Recipient().String(), "UA-9")
	if err != nil {
		t.Fatal(err)
	}
	t.Setenv(secrets.EnvAgeKey, id.String())
	plain, err := run(t, "", "secrets", "decrypt", strings.TrimSpace(out))
	if err != nil || strings.TrimSpace(plain) != "UA-9" {
		t.Errorf("decrypt = (%q, %v)", plain, err)
	}
}

func TestArgOrStdin(t *testing.T) {
	tests := []struct {
		arg, stdin, want string
		wantErr          bool
	}{
		{"UA-1", "ignored", "UA-1", false},
		{"-", "GTM-2\nrest", "GTM-2", false},
		{"-", "no-newline", "no-newline", false},
		{"-", "", "", true},
	}
	for _, tt := range tests {
		got, err := argOrStdin(tt.arg, strings.NewReader(tt.stdin))
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("argOrStdin(%q, %q) = (%q, %v)", tt.arg, tt.stdin, got, err)
		}
	}
}
