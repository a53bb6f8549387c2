// Package i18n loads the plugin text domain and translates label strings.
//
// Catalogs live in a languages directory as <domain>-<locale>.yaml files,
// each a flat map from source string to translation, for example
// flux-dna-de_DE.yaml. The requested locale is matched against the available
// catalogs, so "de_AT" falls back to "de_DE" when that is all there is.
package i18n

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// Domain is the plugin text domain.
const Domain = "flux-dna"

// Translator maps source strings to the loaded locale. Untranslated strings
// are returned unchanged. It is safe for concurrent use.
type Translator struct {
	mu       sync.RWMutex
	domain   string
	locale   language.Tag
	messages map[string]string
}

// NewTranslator returns a translator with no catalog loaded.
func NewTranslator(domain string) *Translator {
	return &Translator{
		domain:   domain,
		locale:   language.Und,
		messages: map[string]string{},
	}
}

// T translates msgid.
func (t *Translator) T(msgid string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.messages[msgid]; ok && s != "" {
		return s
	}
	return msgid
}

// Locale returns the tag of the loaded catalog, or language.Und.
func (t *Translator) Locale() language.Tag {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.locale
}

// Domain returns the text domain.
func (t *Translator) Domain() string {
	return t.domain
}

func (t *Translator) set(locale language.Tag, messages map[string]string) {
	t.mu.Lock()
	t.locale = locale
	t.messages = messages
	t.mu.Unlock()
}

// Loader finds and reads catalogs for one text domain.
type Loader struct {
	Domain string
	Dir    string
	Locale string
	logger zerolog.Logger
}

// NewLoader creates a loader for domain reading from dir. locale uses
// either form, "de_DE" or "de-DE".
func NewLoader(domain, dir, locale string, logger zerolog.Logger) *Loader {
	return &Loader{
		Domain: domain,
		Dir:    dir,
		Locale: locale,
		logger: logger.With().Str("component", "i18n").Logger(),
	}
}

// ParseLocale accepts underscore or hyphen separated locale names.
func ParseLocale(s string) (language.Tag, error) {
	return language.Parse(strings.ReplaceAll(s, "_", "-"))
}

// Available lists the locales that have a catalog for the domain.
func (l *Loader) Available() ([]language.Tag, []string, error) {
	entries, err := os.ReadDir(l.Dir)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	prefix := l.Domain + "-"
	var tags []language.Tag
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		tag, err := ParseLocale(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".yaml"))
		if err != nil {
			l.logger.Warn().Str("file", name).Msg("skipping catalog with unparseable locale")
			continue
		}
		tags = append(tags, tag)
		files = append(files, filepath.Join(l.Dir, name))
	}
	return tags, files, nil
}

// Load reads the best catalog for the configured locale into tr. Having no
// matching catalog is not an error; tr then passes strings through.
func (l *Loader) Load(tr *Translator) error {
	if l.Locale == "" {
		return nil
	}
	want, err := ParseLocale(l.Locale)
	if err != nil {
		return fmt.Errorf("parse locale %q: %w", l.Locale, err)
	}

	tags, files, err := l.Available()
	if err != nil {
		return fmt.Errorf("list catalogs: %w", err)
	}
	if len(tags) == 0 {
		l.logger.Debug().Str("dir", l.Dir).Msg("no catalogs found")
		return nil
	}

	_, index, confidence := language.NewMatcher(tags).Match(want)
	if confidence == language.No {
		l.logger.Debug().Str("locale", want.String()).Msg("no catalog matches locale")
		return nil
	}

	messages, err := readCatalog(files[index])
	if err != nil {
		return err
	}
	tr.set(tags[index], messages)

	l.logger.Info().
		Str("domain", l.Domain).
		Str("locale", tags[index].String()).
		Int("messages", len(messages)).
		Msg("text domain loaded")
	return nil
}

// Action returns the plugins_loaded handler that loads the text domain.
func (l *Loader) Action(tr *Translator) hooks.Action {
	return func(context.Context, ...any) error {
		return l.Load(tr)
	}
}

func readCatalog(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	messages := map[string]string{}
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return messages, nil
}
