// Package options is the site settings store: a flat string key-value table
// loaded from a TOML, YAML or JSON file and reloaded when the file changes.
// A key that is absent or empty means the feature it configures is off.
package options

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"slices"
	"sync"

	"filippo.io/age"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/fluxfullcircle/fluxdna/internal/secrets"
)

// Store holds the current option values. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	path       string
	values     map[string]string
	revision   uint64
	identities []age.Identity
	logger     zerolog.Logger
}

// Open loads the options file at path. A missing file yields an empty store
// that fills in once the file appears and Reload or Watch picks it up.
// Values written as ENC[...] are decrypted with identities.
func Open(path string, identities []age.Identity, logger zerolog.Logger) (*Store, error) {
	s := &Store{
		path:       path,
		values:     map[string]string{},
		identities: identities,
		logger:     logger.With().Str("component", "options").Logger(),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns a store seeded with values and no backing file.
func NewMemory(values map[string]string) *Store {
	if values == nil {
		values = map[string]string{}
	}
	return &Store{
		values: maps.Clone(values),
		logger: zerolog.Nop(),
	}
}

// Get returns the value for key. Empty values report false.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// Set overrides key in memory until the next reload.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	s.values[key] = value
	s.revision++
	s.mu.Unlock()
}

// Keys returns the known keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

// Revision increases every time the values change.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Path returns the backing file, or "" for memory stores.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the backing file. On error the previous values are kept.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}

	values, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.values = values
	s.revision++
	s.mu.Unlock()

	s.logger.Debug().Str("path", s.path).Int("keys", len(values)).Msg("options loaded")
	return nil
}

func (s *Store) read() (map[string]string, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read options %s: %w", s.path, err)
	}

	values := make(map[string]string, len(v.AllKeys()))
	for _, key := range v.AllKeys() {
		plain, err := secrets.Reveal(v.GetString(key), s.identities)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", key, err)
		}
		values[key] = plain
	}
	return values, nil
}
