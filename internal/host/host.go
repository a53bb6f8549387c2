// Package host is the site runtime plugins attach to. It owns the hook
// dispatcher, the content model, the settings store and plugin lifecycle,
// and fires the page phases that drive the installed handlers.
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/assets"
	"github.com/fluxfullcircle/fluxdna/internal/content"
	"github.com/fluxfullcircle/fluxdna/internal/dispatch"
	"github.com/fluxfullcircle/fluxdna/internal/options"
	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// Lifecycle and page events fired by the runtime.
const (
	HookPluginsLoaded = "plugins_loaded"
	HookInit          = "init"
	HookHead          = "wp_head"
	HookBodyOpen      = "wp_body_open"
	HookPrintStyles   = "wp_print_styles"
	HookAdminHead     = "admin_head"
)

// Core handlers installed on every runtime. Plugins may remove them by id
// and priority.
const (
	EmojiDetectionScript   = "print_emoji_detection_script"
	EmojiStyles            = "print_emoji_styles"
	PriorityEmojiDetection = 7

	enqueueScripts   = "wp_enqueue_scripts"
	printStyles      = "wp_print_styles"
	printHeadScripts = "wp_print_head_scripts"
)

const (
	emojiScript = `<script src="/wp-includes/js/wp-emoji-release.min.js" id="wp-emoji-js"></script>` + "\n"
	emojiStyle  = `<style id="wp-emoji-styles-inline-css">img.wp-smiley, img.emoji { display: inline !important; }</style>` + "\n"
)

// ErrUnknownPhase is returned by Render for a phase it does not know.
var ErrUnknownPhase = errors.New("host: unknown phase")

// Phase names accepted by Render.
const (
	PhaseHead      = "head"
	PhaseBodyOpen  = "body_open"
	PhaseAdminHead = "admin_head"
)

// Runtime is the host runtime. The embedded dispatcher makes it a
// hooks.Host.
type Runtime struct {
	*dispatch.Dispatcher

	Content *content.Registry
	Meta    *content.Meta
	Options *options.Store

	logger zerolog.Logger

	mu          sync.RWMutex
	active      map[string]bool
	transitions map[string]*sync.Mutex
}

// New creates a runtime with the core handlers installed.
func New(d *dispatch.Dispatcher, store *options.Store, logger zerolog.Logger) (*Runtime, error) {
	if store == nil {
		store = options.NewMemory(nil)
	}
	rt := &Runtime{
		Dispatcher: d,
		Content:    content.NewRegistry(logger),
		Meta:       content.NewMeta(),
		Options:    store,
		logger:     logger.With().Str("component", "host").Logger(),
		active:     make(map[string]bool),

		transitions: make(map[string]*sync.Mutex),
	}
	if err := rt.installDefaults(); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) installDefaults() error {
	core := []hooks.Entry{
		{Event: HookHead, ID: enqueueScripts, Priority: 1, Action: rt.enqueuePublic},
		{Event: HookHead, ID: EmojiDetectionScript, Priority: PriorityEmojiDetection, Action: writeString(emojiScript)},
		{Event: HookHead, ID: printStyles, Priority: 8, Action: rt.printStyles},
		{Event: HookHead, ID: printHeadScripts, Priority: 9, Action: printQueue(assets.Script)},
		{Event: HookPrintStyles, ID: EmojiStyles, Priority: hooks.DefaultPriority, Action: writeString(emojiStyle)},
	}
	for _, e := range core {
		e.Kind = hooks.KindAction
		e.Arity = hooks.DefaultArity
		if err := rt.InstallAction(e); err != nil {
			return fmt.Errorf("install %s: %w", e.ID, err)
		}
	}
	return nil
}

func (rt *Runtime) enqueuePublic(ctx context.Context, _ ...any) error {
	return rt.DoAction(ctx, assets.HookPublicEnqueue)
}

func (rt *Runtime) printStyles(ctx context.Context, args ...any) error {
	if err := rt.DoAction(ctx, HookPrintStyles, args...); err != nil {
		return err
	}
	return printQueue(assets.Style)(ctx, args...)
}

func writeString(s string) hooks.Action {
	return func(_ context.Context, args ...any) error {
		w, err := writerArg(args)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, s)
		return err
	}
}

func printQueue(kind assets.Kind) hooks.Action {
	return func(ctx context.Context, args ...any) error {
		w, err := writerArg(args)
		if err != nil {
			return err
		}
		q, ok := assets.QueueFrom(ctx)
		if !ok {
			return nil
		}
		return q.Print(w, kind)
	}
}

func writerArg(args []any) (io.Writer, error) {
	if len(args) > 0 {
		if w, ok := args[0].(io.Writer); ok {
			return w, nil
		}
	}
	return nil, fmt.Errorf("host: page handler needs an io.Writer argument")
}

// PluginsLoaded fires plugins_loaded.
func (rt *Runtime) PluginsLoaded(ctx context.Context) error {
	return rt.DoAction(ctx, HookPluginsLoaded)
}

// Init fires init.
func (rt *Runtime) Init(ctx context.Context) error {
	return rt.DoAction(ctx, HookInit)
}

// Boot fires plugins_loaded then init. It runs once per process: a second
// call fails because the content types are already registered.
func (rt *Runtime) Boot(ctx context.Context) error {
	if err := rt.PluginsLoaded(ctx); err != nil {
		return fmt.Errorf("plugins_loaded: %w", err)
	}
	if err := rt.Init(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

// Head renders the public page head into w. Assets enqueued during the
// phase are printed before the remaining head handlers run.
func (rt *Runtime) Head(ctx context.Context, w io.Writer) error {
	ctx = assets.WithQueue(ctx, assets.NewQueue(rt.logger))
	return rt.DoAction(ctx, HookHead, w)
}

// BodyOpen renders the output right after the opening body tag.
func (rt *Runtime) BodyOpen(ctx context.Context, w io.Writer) error {
	return rt.DoAction(ctx, HookBodyOpen, w)
}

// AdminHead renders the admin page head: admin assets are enqueued and
// printed, then admin_head runs.
func (rt *Runtime) AdminHead(ctx context.Context, w io.Writer, hookSuffix string) error {
	q := assets.NewQueue(rt.logger)
	ctx = assets.WithQueue(ctx, q)
	if err := rt.DoAction(ctx, assets.HookAdminEnqueue, hookSuffix); err != nil {
		return err
	}
	if err := q.Print(w, assets.Style); err != nil {
		return err
	}
	if err := q.Print(w, assets.Script); err != nil {
		return err
	}
	return rt.DoAction(ctx, HookAdminHead, w)
}

// Render runs the named page phase into w.
func (rt *Runtime) Render(ctx context.Context, phase string, w io.Writer) error {
	switch phase {
	case PhaseHead, HookHead:
		return rt.Head(ctx, w)
	case PhaseBodyOpen, HookBodyOpen:
		return rt.BodyOpen(ctx, w)
	case PhaseAdminHead:
		return rt.AdminHead(ctx, w, "")
	}
	return fmt.Errorf("%w %q", ErrUnknownPhase, phase)
}

// RenderString renders phase for postID (0 means no post) and returns the
// markup.
func (rt *Runtime) RenderString(ctx context.Context, phase string, postID int64) (string, error) {
	if postID != 0 {
		ctx = content.WithPostID(ctx, postID)
	}
	var b strings.Builder
	if err := rt.Render(ctx, phase, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Phases lists the phase names Render accepts.
func Phases() []string {
	return []string{PhaseHead, PhaseBodyOpen, PhaseAdminHead}
}
