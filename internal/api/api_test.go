package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/dispatch"
	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/internal/options"
	"github.com/fluxfullcircle/fluxdna/internal/plugin"
	"github.com/fluxfullcircle/fluxdna/internal/scripting"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

type fixture struct {
	handler http.Handler
	runtime *host.Runtime
}

func newFixture(t *testing.T, scripts *scripting.Engine) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	d := dispatch.New(zerolog.Nop(), dispatch.WithRegisterer(reg))
	rt, err := host.New(d, options.NewMemory(map[string]string{
		options.KeyAnalytics:  "UA-42",
		options.KeyTagManager: "GTM-7",
	}), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	p := plugin.New(plugin.Config{BaseURL: "https://example.com/flux-dna", Scripts: scripts}, zerolog.Nop())
	if err := p.Load(rt); err != nil {
		t.Fatal(err)
	}
	if err := rt.Boot(context.Background()); err != nil {
		t.Fatal(err)
	}
	s := New(filepath.Join(t.TempDir(), "api.sock"), rt, p, scripts, reg, time.Now(), zerolog.Nop())
	return &fixture{handler: s.Handler(), runtime: rt}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestStatus(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.do(t, "GET", "/api/v1/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	status := decode[protocol.StatusResponse](t, rec)
	if status.Status != "ok" || status.Plugin != plugin.Name || status.Version != plugin.Version {
		t.Errorf("status = %+v", status)
	}
	if status.Active || status.HookCount == 0 || status.ScriptCount != 0 {
		t.Errorf("status = %+v", status)
	}
}

func TestHooks_FilterByEvent(t *testing.T) {
	f := newFixture(t, nil)
	resp := decode[protocol.HooksResponse](t, f.do(t, "GET", "/api/v1/hooks?event=init", ""))
	var ids []string
	for _, h := range resp.Hooks {
		ids = append(ids, h.ID)
	}
	if strings.Join(ids, ",") != "create_my_taxonomies,create_post_type" {
		t.Errorf("init hooks = %v", ids)
	}

	all := decode[protocol.HooksResponse](t, f.do(t, "GET", "/api/v1/hooks", ""))
	for _, h := range all.Hooks {
		if h.ID == host.EmojiDetectionScript || h.ID == host.EmojiStyles {
			t.Errorf("emoji handler still installed: %+v", h)
		}
	}
}

func TestContent(t *testing.T) {
	f := newFixture(t, nil)
	resp := decode[protocol.ContentResponse](t, f.do(t, "GET", "/api/v1/content", ""))
	if len(resp.PostTypes) != 3 {
		t.Fatalf("post types = %+v", resp.PostTypes)
	}
	byName := map[string]protocol.PostTypeInfo{}
	for _, pt := range resp.PostTypes {
		byName[pt.Name] = pt
	}
	stay := byName["post_accomodation"]
	if stay.Slug != "stay" || stay.HasArchive || len(stay.Taxonomies) != 1 || stay.Taxonomies[0] != "category_accomodation" {
		t.Errorf("accommodation = %+v", stay)
	}
	if offers := byName["post_offers"]; offers.Slug != "offers" || !offers.HasArchive {
		t.Errorf("offers = %+v", offers)
	}
}

func TestOptionsPages(t *testing.T) {
	f := newFixture(t, nil)
	resp := decode[protocol.OptionsPagesResponse](t, f.do(t, "GET", "/api/v1/options/pages", ""))
	if len(resp.Pages) != 3 || resp.Pages[0].Slug != options.RootSlug {
		t.Fatalf("pages = %+v", resp.Pages)
	}
	set := map[string]bool{}
	for _, field := range resp.Pages[1].Fields {
		set[field.Key] = field.Set
	}
	if !set[options.KeyAnalytics] || !set[options.KeyTagManager] || set[options.KeyHotjar] {
		t.Errorf("fields = %+v", resp.Pages[1].Fields)
	}
}

func TestRender(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, "GET", "/api/v1/render/head", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d: %s", rec.Code, rec.Body.String())
	}
	head := decode[protocol.RenderResponse](t, rec)
	if !strings.Contains(head.HTML, "gtag/js?id=UA-42") || strings.Contains(head.HTML, "emoji") {
		t.Errorf("head = %s", head.HTML)
	}

	rec = f.do(t, "POST", "/api/v1/render", `{"phase":"body_open"}`)
	body := decode[protocol.RenderResponse](t, rec)
	if !strings.Contains(body.HTML, "ns.html?id=GTM-7") {
		t.Errorf("body_open = %s", body.HTML)
	}
}

func TestRender_BadRequests(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name, method, path, body string
	}{
		{"unknown phase", "GET", "/api/v1/render/footer", ""},
		{"bad post id", "GET", "/api/v1/render/head?post_id=x", ""},
		{"bad body", "POST", "/api/v1/render", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := f.do(t, tt.method, tt.path, tt.body); rec.Code != http.StatusBadRequest {
				t.Errorf("code = %d, want 400", rec.Code)
			}
		})
	}
}

func TestActivateDeactivate(t *testing.T) {
	f := newFixture(t, nil)
	resp := decode[protocol.ActivationResponse](t, f.do(t, "POST", "/api/v1/plugins/flux-dna/activate", ""))
	if !resp.Active || !f.runtime.Active(plugin.Name) {
		t.Errorf("activate = %+v", resp)
	}
	resp = decode[protocol.ActivationResponse](t, f.do(t, "POST", "/api/v1/plugins/flux-dna/deactivate", ""))
	if resp.Active || f.runtime.Active(plugin.Name) {
		t.Errorf("deactivate = %+v", resp)
	}
}

func TestActivate_UnknownPlugin(t *testing.T) {
	f := newFixture(t, nil)
	for _, op := range []string{"activate", "deactivate"} {
		rec := f.do(t, "POST", "/api/v1/plugins/no-such-plugin/"+op, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s code = %d, want 404", op, rec.Code)
		}
	}
	if f.runtime.Active("no-such-plugin") {
		t.Error("unknown plugin marked active")
	}
}

func TestScripts(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "brand.lua"), []byte(`flux.add_action("wp_head", function() flux.echo("<!-- b -->") end)`), 0644)
	engine := scripting.New(dir, nil, time.Second, zerolog.Nop())
	defer engine.Close()
	if err := engine.LoadDir(); err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, engine)

	resp := decode[protocol.ScriptsResponse](t, f.do(t, "GET", "/api/v1/scripts", ""))
	if len(resp.Scripts) != 1 || resp.Scripts[0].Name != "brand" || resp.Scripts[0].Bindings != 1 {
		t.Errorf("scripts = %+v", resp.Scripts)
	}
	f.do(t, "GET", "/api/v1/render/head", "")
	resp = decode[protocol.ScriptsResponse](t, f.do(t, "GET", "/api/v1/scripts", ""))
	if resp.Scripts[0].Calls != 1 {
		t.Errorf("calls = %d", resp.Scripts[0].Calls)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.do(t, "GET", "/api/v1/render/head", "")
	rec := f.do(t, "GET", "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `fluxdna_hook_calls_total{event="wp_head",kind="action"}`) {
		t.Errorf("metrics:\n%s", rec.Body.String())
	}
}
