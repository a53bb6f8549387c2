// Package plugin composes the Flux DNA site plugin: it collects every hook
// the plugin needs into a registry and replays it into the host runtime.
package plugin

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/assets"
	"github.com/fluxfullcircle/fluxdna/internal/content"
	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/internal/i18n"
	"github.com/fluxfullcircle/fluxdna/internal/scripting"
	"github.com/fluxfullcircle/fluxdna/internal/tracking"
	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

const (
	// Name identifies the plugin; it is also the asset handle and text domain.
	Name = "flux-dna"
	// Version is the plugin release.
	Version = "1.0.6"
)

// Lifecycle event types passed to the Notifier.
const (
	EventActivated   = "plugin.activated"
	EventDeactivated = "plugin.deactivated"
)

// Notifier publishes plugin lifecycle events.
type Notifier interface {
	Notify(ctx context.Context, eventType, plugin, version string) error
}

// Remover removes installed actions by id and priority.
type Remover interface {
	RemoveAction(event, id string, priority int) bool
}

// Config holds the plugin settings.
type Config struct {
	// Version overrides the release version. Empty means Version.
	Version string
	// BaseURL is the URL the plugin's admin/ and public/ asset trees live under.
	BaseURL string
	// LanguagesDir holds the flux-dna-<locale>.yaml catalogs.
	LanguagesDir string
	// Locale is the site locale, e.g. "de_DE". Empty disables translation.
	Locale string
	// CacheTTL is how long rendered tracking snippets are memoised. Zero
	// disables the cache.
	CacheTTL time.Duration
	// Scripts, when set, contributes the extension script bindings.
	Scripts *scripting.Engine
	// Notifier, when set, receives activation and deactivation events.
	Notifier Notifier
}

// Plugin is the site plugin. Its registry is built by Define and installed
// by Run.
type Plugin struct {
	name       string
	version    string
	registry   *hooks.Registry
	translator *i18n.Translator
	loader     *i18n.Loader
	admin      *assets.Enqueuer
	public     *assets.Enqueuer
	cache      *tracking.Cache
	scripts    *scripting.Engine
	notifier   Notifier
	logger     zerolog.Logger

	// suspended is set while the plugin is deactivated; its installed
	// hooks then pass through without running.
	suspended atomic.Bool
}

// New creates the plugin with an empty registry.
func New(cfg Config, logger zerolog.Logger) *Plugin {
	version := cfg.Version
	if version == "" {
		version = Version
	}
	p := &Plugin{
		name:       Name,
		version:    version,
		registry:   hooks.New(),
		translator: i18n.NewTranslator(i18n.Domain),
		loader:     i18n.NewLoader(i18n.Domain, cfg.LanguagesDir, cfg.Locale, logger),
		admin:      assets.NewAdmin(Name, version, cfg.BaseURL),
		public:     assets.NewPublic(Name, version, cfg.BaseURL),
		scripts:    cfg.Scripts,
		notifier:   cfg.Notifier,
		logger:     logger.With().Str("component", "plugin").Logger(),
	}
	if cfg.CacheTTL > 0 {
		p.cache = tracking.NewCache(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return p
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string { return p.name }

// Version returns the plugin version.
func (p *Plugin) Version() string { return p.version }

// Registry returns the plugin's hook registry.
func (p *Plugin) Registry() *hooks.Registry { return p.registry }

// Translator returns the plugin's text domain translator.
func (p *Plugin) Translator() *i18n.Translator { return p.translator }

// Define records every plugin hook in the registry, drawing the content
// model, post meta and settings from rt.
func (p *Plugin) Define(rt *host.Runtime) {
	p.setLocale()
	p.defineAdminHooks(rt)
	p.definePublicHooks()
	p.defineScriptHooks()
	p.logger.Debug().Int("hooks", p.registry.Len()).Msg("hooks defined")
}

func (p *Plugin) setLocale() {
	p.registry.AddAction(host.HookPluginsLoaded, p.loader.Action(p.translator), hooks.WithID("load_plugin_textdomain"))
}

func (p *Plugin) defineAdminHooks(rt *host.Runtime) {
	p.registry.AddAction(assets.HookAdminEnqueue, p.admin.StylesAction(), hooks.WithID("admin_enqueue_styles"))
	p.registry.AddAction(assets.HookAdminEnqueue, p.admin.ScriptsAction(), hooks.WithID("admin_enqueue_scripts"))

	p.registry.AddAction(content.HookInit, content.RegisterPostTypesAction(rt.Content, p.translator),
		hooks.WithID("create_post_type"), hooks.WithPriority(content.PriorityPostTypes))
	p.registry.AddAction(content.HookInit, content.RegisterTaxonomiesAction(rt.Content),
		hooks.WithID("create_my_taxonomies"), hooks.WithPriority(content.PriorityTaxonomies))
	p.registry.AddAction(content.HookRoomsQuery, content.RoomsQueryAction(rt.Meta), hooks.WithID("rooms_query"))

	p.registry.AddAction(tracking.HookHead, tracking.HeadAction(rt.Options, p.cache), hooks.WithID("tracking_head"))
	p.registry.AddAction(tracking.HookBodyOpen, tracking.BodyOpenAction(rt.Options, p.cache), hooks.WithID("tracking_body_open"))
}

func (p *Plugin) definePublicHooks() {
	p.registry.AddAction(assets.HookPublicEnqueue, p.public.StylesAction(), hooks.WithID("public_enqueue_styles"))
	p.registry.AddAction(assets.HookPublicEnqueue, p.public.ScriptsAction(), hooks.WithID("public_enqueue_scripts"))
}

func (p *Plugin) defineScriptHooks() {
	if p.scripts == nil {
		return
	}
	n := p.scripts.Register(p.registry)
	p.logger.Debug().Int("bindings", n).Msg("script hooks defined")
}

// Run installs the registered hooks into h. Installed hooks do nothing
// while the plugin is deactivated.
func (p *Plugin) Run(h hooks.Host) error {
	return p.registry.Run(gate{host: h, suspended: &p.suspended})
}

// Active reports whether the plugin's hooks run.
func (p *Plugin) Active() bool { return !p.suspended.Load() }

type gate struct {
	host      hooks.Host
	suspended *atomic.Bool
}

func (g gate) InstallAction(e hooks.Entry) error {
	if fn := e.Action; fn != nil {
		e.Action = func(ctx context.Context, args ...any) error {
			if g.suspended.Load() {
				return nil
			}
			return fn(ctx, args...)
		}
	}
	return g.host.InstallAction(e)
}

func (g gate) InstallFilter(e hooks.Entry) error {
	if fn := e.Filter; fn != nil {
		e.Filter = func(ctx context.Context, value any, args ...any) (any, error) {
			if g.suspended.Load() {
				return value, nil
			}
			return fn(ctx, value, args...)
		}
	}
	return g.host.InstallFilter(e)
}

// RemoveEmoji removes the host's emoji detection script and styles. It
// reports how many handlers were removed.
func RemoveEmoji(r Remover) int {
	n := 0
	if r.RemoveAction(host.HookHead, host.EmojiDetectionScript, host.PriorityEmojiDetection) {
		n++
	}
	if r.RemoveAction(host.HookPrintStyles, host.EmojiStyles, hooks.DefaultPriority) {
		n++
	}
	return n
}

// Load wires the plugin into rt the way the site loads it: lifecycle hooks,
// hook definitions, emoji removal, then replay.
func (p *Plugin) Load(rt *host.Runtime) error {
	if err := rt.RegisterActivationHook(p.name, p.activate); err != nil {
		return err
	}
	if err := rt.RegisterDeactivationHook(p.name, p.deactivate); err != nil {
		return err
	}
	p.Define(rt)
	removed := RemoveEmoji(rt)
	if err := p.Run(rt); err != nil {
		return err
	}
	p.logger.Info().
		Str("version", p.version).
		Int("hooks", p.registry.Len()).
		Int("removed", removed).
		Msg("plugin loaded")
	return nil
}

func (p *Plugin) activate(ctx context.Context, _ ...any) error {
	p.logger.Info().Msg("activating")
	if err := p.notify(ctx, EventActivated); err != nil {
		return err
	}
	p.suspended.Store(false)
	return nil
}

func (p *Plugin) deactivate(ctx context.Context, _ ...any) error {
	p.logger.Info().Msg("deactivating")
	if err := p.notify(ctx, EventDeactivated); err != nil {
		return err
	}
	p.suspended.Store(true)
	if p.cache != nil {
		p.cache.Flush()
	}
	return nil
}

func (p *Plugin) notify(ctx context.Context, eventType string) error {
	if p.notifier == nil {
		return nil
	}
	return p.notifier.Notify(ctx, eventType, p.name, p.version)
}
