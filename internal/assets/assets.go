// Package assets queues the plugin's stylesheets and scripts and prints the
// tags for them.
package assets

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// Enqueue events.
const (
	HookAdminEnqueue  = "admin_enqueue_scripts"
	HookPublicEnqueue = "wp_enqueue_scripts"
)

// ErrNoQueue is returned by the enqueue actions when the page context
// carries no queue.
var ErrNoQueue = errors.New("assets: no queue in context")

type queueKey struct{}

// WithQueue returns a context carrying the page's asset queue.
func WithQueue(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, queueKey{}, q)
}

// QueueFrom returns the page's asset queue, if any.
func QueueFrom(ctx context.Context) (*Queue, bool) {
	q, ok := ctx.Value(queueKey{}).(*Queue)
	return q, ok && q != nil
}

// Kind distinguishes stylesheets from scripts.
type Kind int

const (
	Style Kind = iota
	Script
)

func (k Kind) String() string {
	if k == Script {
		return "script"
	}
	return "style"
}

// Asset is one enqueued stylesheet or script.
type Asset struct {
	Kind     Kind     `json:"kind"`
	Handle   string   `json:"handle"`
	Src      string   `json:"src"`
	Deps     []string `json:"deps,omitempty"`
	Version  string   `json:"version,omitempty"`
	Media    string   `json:"media,omitempty"`
	InFooter bool     `json:"in_footer,omitempty"`
}

// URL returns the source with the version appended as ver query parameter.
func (a Asset) URL() string {
	if a.Version == "" {
		return a.Src
	}
	sep := "?"
	if strings.Contains(a.Src, "?") {
		sep = "&"
	}
	return a.Src + sep + "ver=" + url.QueryEscape(a.Version)
}

var (
	styleTmpl = template.Must(template.New("style").Parse(
		`<link rel="stylesheet" id="{{.Handle}}-css" href="{{.URL}}" media="{{.Media}}" />` + "\n"))
	scriptTmpl = template.Must(template.New("script").Parse(
		`<script src="{{.URL}}" id="{{.Handle}}-js"></script>` + "\n"))
)

// Queue collects assets for one page. Handles are unique per kind; enqueueing
// a handle again is ignored. It is safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	assets []Asset
	logger zerolog.Logger
}

// NewQueue creates an empty queue.
func NewQueue(logger zerolog.Logger) *Queue {
	return &Queue{logger: logger.With().Str("component", "assets").Logger()}
}

// Enqueue adds a. It reports false when the handle is already queued.
func (q *Queue) Enqueue(a Asset) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, existing := range q.assets {
		if existing.Kind == a.Kind && existing.Handle == a.Handle {
			return false
		}
	}
	if a.Kind == Style && a.Media == "" {
		a.Media = "all"
	}
	a.Deps = append([]string(nil), a.Deps...)
	q.assets = append(q.assets, a)
	q.logger.Debug().Str("kind", a.Kind.String()).Str("handle", a.Handle).Msg("asset enqueued")
	return true
}

// Assets returns the queued assets in enqueue order.
func (q *Queue) Assets() []Asset {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Asset, len(q.assets))
	copy(out, q.assets)
	return out
}

// Reset empties the queue.
func (q *Queue) Reset() {
	q.mu.Lock()
	q.assets = nil
	q.mu.Unlock()
}

// Print writes the tags for every queued asset of kind that is not a footer
// script. Dependencies present in the queue are printed first; others are
// expected to be provided by the host.
func (q *Queue) Print(w io.Writer, kind Kind) error {
	return q.print(w, kind, false)
}

// PrintFooter writes the footer scripts.
func (q *Queue) PrintFooter(w io.Writer) error {
	return q.print(w, Script, true)
}

func (q *Queue) print(w io.Writer, kind Kind, footer bool) error {
	q.mu.Lock()
	var list []Asset
	for _, a := range q.assets {
		if a.Kind == kind && (kind == Style || a.InFooter == footer) {
			list = append(list, a)
		}
	}
	q.mu.Unlock()

	tmpl := styleTmpl
	if kind == Script {
		tmpl = scriptTmpl
	}
	for _, a := range resolve(list) {
		if err := tmpl.Execute(w, a); err != nil {
			return fmt.Errorf("print %s %s: %w", kind, a.Handle, err)
		}
	}
	return nil
}

// resolve orders list so that queued dependencies come before their
// dependents, otherwise keeping enqueue order. Cycles are broken at the
// first revisit.
func resolve(list []Asset) []Asset {
	byHandle := make(map[string]Asset, len(list))
	for _, a := range list {
		byHandle[a.Handle] = a
	}
	seen := make(map[string]bool, len(list))
	out := make([]Asset, 0, len(list))
	var visit func(a Asset)
	visit = func(a Asset) {
		if seen[a.Handle] {
			return
		}
		seen[a.Handle] = true
		for _, dep := range a.Deps {
			if d, ok := byHandle[dep]; ok {
				visit(d)
			}
		}
		out = append(out, a)
	}
	for _, a := range list {
		visit(a)
	}
	return out
}

// Enqueuer enqueues one area's stylesheet and script, the way the admin and
// public sides of the plugin each do.
type Enqueuer struct {
	Name    string
	Version string
	BaseURL string
	Area    string
}

// NewAdmin returns the admin area enqueuer.
func NewAdmin(name, version, baseURL string) *Enqueuer {
	return &Enqueuer{Name: name, Version: version, BaseURL: baseURL, Area: "admin"}
}

// NewPublic returns the public site enqueuer.
func NewPublic(name, version, baseURL string) *Enqueuer {
	return &Enqueuer{Name: name, Version: version, BaseURL: baseURL, Area: "public"}
}

func (e *Enqueuer) src(dir, ext string) string {
	base := strings.TrimSuffix(e.BaseURL, "/")
	file := fmt.Sprintf("%s/%s/%s-%s.%s", e.Area, dir, e.Name, e.Area, ext)
	if base == "" {
		return file
	}
	return base + "/" + file
}

// Stylesheet returns the area stylesheet.
func (e *Enqueuer) Stylesheet() Asset {
	return Asset{
		Kind:    Style,
		Handle:  e.Name,
		Src:     e.src("css", "css"),
		Version: e.Version,
		Media:   "all",
	}
}

// Javascript returns the area script. It depends on jquery and loads in the
// head.
func (e *Enqueuer) Javascript() Asset {
	return Asset{
		Kind:    Script,
		Handle:  e.Name,
		Src:     e.src("js", "js"),
		Deps:    []string{"jquery"},
		Version: e.Version,
	}
}

// StylesAction returns the handler enqueueing the stylesheet into the page
// queue.
func (e *Enqueuer) StylesAction() hooks.Action {
	return e.enqueue(e.Stylesheet)
}

// ScriptsAction returns the handler enqueueing the script into the page
// queue.
func (e *Enqueuer) ScriptsAction() hooks.Action {
	return e.enqueue(e.Javascript)
}

func (e *Enqueuer) enqueue(asset func() Asset) hooks.Action {
	return func(ctx context.Context, _ ...any) error {
		q, ok := QueueFrom(ctx)
		if !ok {
			return ErrNoQueue
		}
		q.Enqueue(asset())
		return nil
	}
}
