// Package tracking renders the analytics, tag manager, pixel and Hotjar
// snippets configured on the Analytics settings page.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/fluxfullcircle/fluxdna/internal/options"
	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// Hook names the snippets are bound to.
const (
	HookHead     = "wp_head"
	HookBodyOpen = "wp_body_open"
)

// ErrNoWriter is returned by the snippet actions when the dispatcher did not
// pass the page writer as first argument.
var ErrNoWriter = errors.New("tracking: first action argument must be an io.Writer")

// Getter reads named settings. Absent keys report false.
type Getter interface {
	Get(key string) (string, bool)
}

// Config holds the tracking ids. An empty id disables its snippet.
type Config struct {
	AnalyticsID  string `json:"ga_tracking_id,omitempty"`
	TagManagerID string `json:"gtm_tracking_id,omitempty"`
	PixelID      string `json:"facebook_pixel,omitempty"`
	HotjarID     string `json:"hotjar_tracking_id,omitempty"`
}

// ConfigFrom reads the four tracking keys from store.
func ConfigFrom(store Getter) Config {
	get := func(key string) string {
		v, _ := store.Get(key)
		return strings.TrimSpace(v)
	}
	return Config{
		AnalyticsID:  get(options.KeyAnalytics),
		TagManagerID: get(options.KeyTagManager),
		PixelID:      get(options.KeyPixel),
		HotjarID:     get(options.KeyHotjar),
	}
}

// Empty reports whether no snippet is enabled.
func (c Config) Empty() bool {
	return c == Config{}
}

// key identifies the rendered output of cfg for hook.
func (c Config) key(hook string) string {
	return strings.Join([]string{hook, c.AnalyticsID, c.TagManagerID, c.PixelID, c.HotjarID}, "\x00")
}

// RenderHead writes the head snippets for every configured id, in the order
// analytics, pixel, Hotjar, tag manager.
func RenderHead(w io.Writer, cfg Config) error {
	for _, part := range []struct {
		tmpl *template.Template
		id   string
	}{
		{analyticsTmpl, cfg.AnalyticsID},
		{pixelTmpl, cfg.PixelID},
		{hotjarTmpl, cfg.HotjarID},
		{tagManagerTmpl, cfg.TagManagerID},
	} {
		if part.id == "" {
			continue
		}
		if err := part.tmpl.Execute(w, part.id); err != nil {
			return fmt.Errorf("render %s: %w", part.tmpl.Name(), err)
		}
	}
	return nil
}

// RenderBodyOpen writes the tag manager noscript fallback, or nothing when
// no tag manager id is set.
func RenderBodyOpen(w io.Writer, cfg Config) error {
	if cfg.TagManagerID == "" {
		return nil
	}
	if err := tagManagerNoscriptTmpl.Execute(w, cfg.TagManagerID); err != nil {
		return fmt.Errorf("render %s: %w", tagManagerNoscriptTmpl.Name(), err)
	}
	return nil
}

// Render dispatches to the renderer for hook. Unknown hooks render nothing.
func Render(w io.Writer, hook string, cfg Config) error {
	switch hook {
	case HookHead:
		return RenderHead(w, cfg)
	case HookBodyOpen:
		return RenderBodyOpen(w, cfg)
	}
	return nil
}

// HeadAction returns the wp_head handler. Settings are read on every call
// so option changes apply without re-registering.
func HeadAction(store Getter, cache *Cache) hooks.Action {
	return snippetAction(HookHead, store, cache)
}

// BodyOpenAction returns the wp_body_open handler.
func BodyOpenAction(store Getter, cache *Cache) hooks.Action {
	return snippetAction(HookBodyOpen, store, cache)
}

func snippetAction(hook string, store Getter, cache *Cache) hooks.Action {
	return func(_ context.Context, args ...any) error {
		if len(args) == 0 {
			return ErrNoWriter
		}
		w, ok := args[0].(io.Writer)
		if !ok {
			return ErrNoWriter
		}
		cfg := ConfigFrom(store)
		if cache == nil {
			return Render(w, hook, cfg)
		}
		out, err := cache.Render(hook, cfg)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}
}
