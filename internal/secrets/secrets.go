// Package secrets handles age-encrypted values in fluxdna config and option
// files.
//
// An encrypted value is written as ENC[<base64 age ciphertext>]. Plain values
// pass through untouched, so tracking ids and tokens can be encrypted one by
// one inside an otherwise readable file.
package secrets

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/spf13/viper"
)

const (
	// DefaultKeyFilename is the identity file looked up in the config dir.
	DefaultKeyFilename = "age.key"

	// EnvAgeKey holds one or more raw AGE-SECRET-KEY-1... identities.
	EnvAgeKey = "FLUXDNA_AGE_KEY"

	// EnvAgeKeyFile holds a path to an identity file.
	EnvAgeKeyFile = "FLUXDNA_AGE_KEY_FILE"

	// ConfigKeyIdentity is the config key naming an identity file.
	ConfigKeyIdentity = "secrets.identity"
)

var (
	// ErrNoIdentity is returned when an encrypted value is met but no
	// identity was configured.
	ErrNoIdentity = errors.New("secrets: encrypted value but no age identity configured")
	// ErrKeyExists is returned by WriteKeyFile rather than overwrite a key.
	ErrKeyExists = errors.New("secrets: key file already exists")
)

// IsEncrypted reports whether value is wrapped in ENC[...].
func IsEncrypted(value string) bool {
	_, ok := ciphertext(value)
	return ok
}

func ciphertext(value string) (string, bool) {
	inner, ok := strings.CutPrefix(value, "ENC[")
	if !ok {
		return "", false
	}
	inner, ok = strings.CutSuffix(inner, "]")
	return inner, ok && inner != ""
}

// Encrypt seals plaintext for every recipient and wraps it as ENC[...].
func Encrypt(plaintext string, recipients ...age.Recipient) (string, error) {
	if len(recipients) == 0 {
		return "", errors.New("secrets: no recipients")
	}
	var sealed bytes.Buffer
	w, err := age.Encrypt(&sealed, recipients...)
	if err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	if _, err := io.WriteString(w, plaintext); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("age encrypt: %w", err)
	}
	return "ENC[" + base64.StdEncoding.EncodeToString(sealed.Bytes()) + "]", nil
}

// Decrypt opens an ENC[...] value with any of identities.
func Decrypt(value string, identities ...age.Identity) (string, error) {
	b64, ok := ciphertext(value)
	if !ok {
		return "", errors.New("secrets: value is not ENC[...] wrapped")
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(raw), identities...)
	if err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	var plain strings.Builder
	if _, err := io.Copy(&plain, r); err != nil {
		return "", fmt.Errorf("age decrypt: %w", err)
	}
	return plain.String(), nil
}

// Reveal returns value unchanged unless it is encrypted, in which case it
// is decrypted with identities.
func Reveal(value string, identities []age.Identity) (string, error) {
	if !IsEncrypted(value) {
		return value, nil
	}
	if len(identities) == 0 {
		return "", ErrNoIdentity
	}
	return Decrypt(value, identities...)
}

// GenerateKeyPair creates a new X25519 identity.
func GenerateKeyPair() (*age.X25519Identity, error) {
	return age.GenerateX25519Identity()
}

// Recipients returns the public keys of the X25519 identities in ids.
// Other identity kinds are skipped.
func Recipients(ids []age.Identity) []age.Recipient {
	var out []age.Recipient
	for _, id := range ids {
		if x, ok := id.(*age.X25519Identity); ok {
			out = append(out, x.Recipient())
		}
	}
	return out
}

// WriteKeyFile stores id at path with owner-only permissions, creating the
// directory. An existing file is never replaced.
func WriteKeyFile(path string, id *age.X25519Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrKeyExists, path)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "# created: %s\n# public key: %s\n%s\n",
		time.Now().Format(time.RFC3339), id.Recipient(), id)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// LoadIdentity parses every identity in the file at keyPath.
func LoadIdentity(keyPath string) ([]age.Identity, error) {
	f, err := os.Open(keyPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	ids, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", keyPath, err)
	}
	return ids, nil
}

// ResolveIdentity finds the identities used to open ENC[...] values. The
// first source set wins: FLUXDNA_AGE_KEY, FLUXDNA_AGE_KEY_FILE, the
// secrets.identity config key, then ~/.config/fluxdna/age.key when it
// exists. It returns (nil, nil) when there is none.
func ResolveIdentity(v *viper.Viper) ([]age.Identity, error) {
	if raw := os.Getenv(EnvAgeKey); raw != "" {
		ids, err := age.ParseIdentities(strings.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvAgeKey, err)
		}
		return ids, nil
	}
	for _, path := range []string{os.Getenv(EnvAgeKeyFile), expandHome(v.GetString(ConfigKeyIdentity))} {
		if path != "" {
			return LoadIdentity(path)
		}
	}

	path := DefaultKeyPath()
	if path == "" {
		return nil, nil
	}
	ids, err := LoadIdentity(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return ids, err
}

// DefaultKeyPath is ~/.config/fluxdna/age.key, or "" without a home dir.
func DefaultKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "fluxdna", DefaultKeyFilename)
}

// DecryptViperConfig replaces every ENC[...] string in v with its plaintext.
func DecryptViperConfig(v *viper.Viper, identities []age.Identity) error {
	for _, key := range v.AllKeys() {
		val, ok := v.Get(key).(string)
		if !ok || !IsEncrypted(val) {
			continue
		}
		plain, err := Reveal(val, identities)
		if err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
		v.Set(key, plain)
	}
	return nil
}

func expandHome(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
