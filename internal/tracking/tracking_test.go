package tracking

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fluxfullcircle/fluxdna/internal/options"
)

const (
	markAnalytics  = "<!-- Global site tag (gtag.js) - Google Analytics -->"
	markPixel      = "<!-- Facebook Pixel Code -->"
	markHotjar     = "<!-- Hotjar Tracking Code-->"
	markTagManager = "<!-- Google Tag Manager -->"
	markNoscript   = "<!-- Google Tag Manager (noscript) -->"
)

func render(t *testing.T, fn func(w *bytes.Buffer) error) string {
	t.Helper()
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func TestConfigFrom(t *testing.T) {
	store := options.NewMemory(map[string]string{
		"ga_tracking_id":     " UA-123 ",
		"gtm_tracking_id":    "GTM-9",
		"facebook_pixel":     "",
		"hotjar_tracking_id": "42",
	})
	cfg := ConfigFrom(store)
	want := Config{AnalyticsID: "UA-123", TagManagerID: "GTM-9", HotjarID: "42"}
	if cfg != want {
		t.Errorf("ConfigFrom = %+v, want %+v", cfg, want)
	}
	if cfg.Empty() {
		t.Error("Empty() = true for populated config")
	}
	if !ConfigFrom(options.NewMemory(nil)).Empty() {
		t.Error("Empty() = false for empty store")
	}
}

func TestRenderHead_AnalyticsOnly(t *testing.T) {
	out := render(t, func(w *bytes.Buffer) error {
		return RenderHead(w, Config{AnalyticsID: "UA-123"})
	})

	if n := strings.Count(out, markAnalytics); n != 1 {
		t.Errorf("analytics fragments = %d, want 1", n)
	}
	if !strings.Contains(out, "gtag/js?id=UA-123") || !strings.Contains(out, "gtag('config', 'UA-123');") {
		t.Errorf("analytics fragment does not reference UA-123:\n%s", out)
	}
	for _, mark := range []string{markPixel, markHotjar, markTagManager, markNoscript} {
		if strings.Contains(out, mark) {
			t.Errorf("unexpected fragment %q", mark)
		}
	}
}

func TestRenderHead_AllFieldsInOrder(t *testing.T) {
	out := render(t, func(w *bytes.Buffer) error {
		return RenderHead(w, Config{
			AnalyticsID:  "UA-1",
			TagManagerID: "GTM-1",
			PixelID:      "PX-1",
			HotjarID:     "777",
		})
	})

	last := -1
	for _, mark := range []string{markAnalytics, markPixel, markHotjar, markTagManager} {
		i := strings.Index(out, mark)
		if i < 0 {
			t.Fatalf("missing fragment %q", mark)
		}
		if i < last {
			t.Errorf("fragment %q out of order", mark)
		}
		last = i
	}
	if !strings.Contains(out, "fbq('init', 'PX-1');") {
		t.Error("pixel id not substituted")
	}
	if !strings.Contains(out, "hjid:777,hjsv:6") {
		t.Error("hotjar id not substituted")
	}
	if !strings.Contains(out, "'dataLayer','GTM-1');") {
		t.Error("tag manager id not substituted")
	}
	if strings.Contains(out, markNoscript) {
		t.Error("noscript fallback belongs to body open only")
	}
}

func TestRenderHead_Empty(t *testing.T) {
	out := render(t, func(w *bytes.Buffer) error { return RenderHead(w, Config{}) })
	if out != "" {
		t.Errorf("expected empty output, got %q", out)
	}
}

func TestRenderBodyOpen(t *testing.T) {
	out := render(t, func(w *bytes.Buffer) error {
		return RenderBodyOpen(w, Config{TagManagerID: "GTM-9", AnalyticsID: "UA-1"})
	})
	if n := strings.Count(out, "<iframe"); n != 1 {
		t.Errorf("iframe fragments = %d, want 1", n)
	}
	if !strings.Contains(out, "ns.html?id=GTM-9") {
		t.Errorf("noscript fragment does not reference GTM-9:\n%s", out)
	}
	if strings.Contains(out, "UA-1") {
		t.Error("body open must only carry the tag manager fallback")
	}

	empty := render(t, func(w *bytes.Buffer) error {
		return RenderBodyOpen(w, Config{AnalyticsID: "UA-1", PixelID: "PX"})
	})
	if empty != "" {
		t.Errorf("expected empty body-open output, got %q", empty)
	}
}

func TestRender_UnknownHook(t *testing.T) {
	out := render(t, func(w *bytes.Buffer) error {
		return Render(w, "wp_footer", Config{TagManagerID: "GTM-1"})
	})
	if out != "" {
		t.Errorf("expected nothing for unknown hook, got %q", out)
	}
}

func TestHeadAction_ReadsStoreOnEachCall(t *testing.T) {
	store := options.NewMemory(map[string]string{"ga_tracking_id": "UA-1"})
	action := HeadAction(store, nil)

	var buf bytes.Buffer
	if err := action(context.Background(), &buf); err != nil {
		t.Fatalf("action: %v", err)
	}
	if !strings.Contains(buf.String(), "UA-1") {
		t.Fatal("first render missing UA-1")
	}

	store.Set("ga_tracking_id", "UA-2")
	buf.Reset()
	if err := action(context.Background(), &buf); err != nil {
		t.Fatalf("action: %v", err)
	}
	if !strings.Contains(buf.String(), "UA-2") || strings.Contains(buf.String(), "UA-1") {
		t.Errorf("second render did not pick up new id:\n%s", buf.String())
	}
}

func TestSnippetAction_RequiresWriter(t *testing.T) {
	store := options.NewMemory(nil)
	for _, args := range [][]any{nil, {"not a writer"}} {
		if err := BodyOpenAction(store, nil)(context.Background(), args...); !errors.Is(err, ErrNoWriter) {
			t.Errorf("args %v: err = %v, want ErrNoWriter", args, err)
		}
	}
}

func TestCache(t *testing.T) {
	c := NewCache(time.Minute, time.Minute)
	cfg := Config{TagManagerID: "GTM-1"}

	first, err := c.Render(HookBodyOpen, cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, _ := c.Render(HookBodyOpen, cfg)
	if first != second || c.Len() != 1 {
		t.Errorf("expected a single cached fragment, len = %d", c.Len())
	}

	other, _ := c.Render(HookBodyOpen, Config{TagManagerID: "GTM-2"})
	if !strings.Contains(other, "GTM-2") {
		t.Error("changed id served stale fragment")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d, want 2", c.Len())
	}

	c.Flush()
	if c.Len() != 0 {
		t.Errorf("len after flush = %d", c.Len())
	}
}

func TestBodyOpenAction_Cached(t *testing.T) {
	store := options.NewMemory(map[string]string{"gtm_tracking_id": "GTM-9"})
	cache := NewCache(time.Minute, time.Minute)
	action := BodyOpenAction(store, cache)

	var buf bytes.Buffer
	if err := action(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if strings.Count(buf.String(), "ns.html?id=GTM-9") != 1 {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if cache.Len() != 1 {
		t.Errorf("cache len = %d, want 1", cache.Len())
	}
}
