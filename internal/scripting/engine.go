// Package scripting runs sandboxed Lua extension scripts that bind extra
// actions and filters through the global flux table:
//
//	flux.add_action("wp_head", function(out)
//	  flux.echo("<meta name=\"x\" content=\"" .. (flux.option("x") or "") .. "\">")
//	end, 20)
//
//	flux.add_filter("the_title", function(title) return title .. "!" end)
//
// Each script gets its own LState; calls into one script are serialized.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// ScriptInfo describes a loaded script for the API.
type ScriptInfo struct {
	Name     string    `json:"name"`
	FilePath string    `json:"file_path"`
	Bindings int       `json:"bindings"`
	Events   []string  `json:"events"`
	LoadedAt time.Time `json:"loaded_at"`
	Calls    int64     `json:"calls"`
	Errors   int64     `json:"errors"`
}

// script is one loaded Lua file and its isolated VM.
type script struct {
	mu       sync.Mutex
	name     string
	path     string
	L        *lua.LState
	mod      *module
	loadedAt time.Time
	calls    atomic.Int64
	errors   atomic.Int64
}

// Engine loads scripts from a directory and binds their hooks into a
// registry.
type Engine struct {
	mu      sync.RWMutex
	dir     string
	store   Getter
	timeout time.Duration
	verify  bool
	scripts map[string]*script
	logger  zerolog.Logger
}

// New creates an engine for dir. store backs flux.option; timeout limits a
// single handler call (0 means no limit).
func New(dir string, store Getter, timeout time.Duration, logger zerolog.Logger) *Engine {
	return &Engine{
		dir:     dir,
		store:   store,
		timeout: timeout,
		scripts: make(map[string]*script),
		logger:  logger.With().Str("component", "scripting").Logger(),
	}
}

// SetVerifyIntegrity requires every script to match the directory manifest.
func (e *Engine) SetVerifyIntegrity(v bool) {
	e.mu.Lock()
	e.verify = v
	e.mu.Unlock()
}

// LoadDir loads every .lua file in the script directory. A missing
// directory loads nothing. A script that fails to load is logged and
// skipped.
func (e *Engine) LoadDir() error {
	files, err := scriptFiles(e.dir)
	if os.IsNotExist(err) {
		e.logger.Debug().Str("dir", e.dir).Msg("no script directory")
		return nil
	}
	if err != nil {
		return fmt.Errorf("list scripts: %w", err)
	}

	var manifest *Manifest
	if e.verifying() {
		manifest, err = LoadManifest(e.dir)
		if err != nil {
			return err
		}
		if manifest == nil {
			return fmt.Errorf("integrity verification enabled but %s not found in %s", ManifestFilename, e.dir)
		}
	}

	for _, file := range files {
		name := strings.TrimSuffix(file, ".lua")
		path := filepath.Join(e.dir, file)
		if manifest != nil {
			if err := manifest.Verify(file, path); err != nil {
				e.logger.Error().Err(err).Str("script", name).Msg("integrity check failed")
				continue
			}
		}
		if err := e.LoadScript(name, path); err != nil {
			e.logger.Error().Err(err).Str("script", name).Msg("failed to load script")
		}
	}
	return nil
}

func (e *Engine) verifying() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.verify
}

// LoadScript runs the file at path in a fresh sandbox, collecting its
// bindings. Loading a name again replaces the previous script.
func (e *Engine) LoadScript(name, path string) error {
	logger := e.logger.With().Str("script", name).Logger()
	L := NewSandboxedState(logger)
	mod := &module{name: name, store: e.store, logger: logger}
	mod.register(L)

	if err := L.DoFile(path); err != nil {
		L.Close()
		return fmt.Errorf("load %s: %w", path, err)
	}

	s := &script{name: name, path: path, L: L, mod: mod, loadedAt: time.Now()}
	e.mu.Lock()
	old := e.scripts[name]
	e.scripts[name] = s
	e.mu.Unlock()
	if old != nil {
		old.close()
	}

	logger.Info().Int("bindings", len(mod.bindings)).Msg("loaded script")
	return nil
}

// Register adds every binding of every loaded script to reg, scripts in
// name order. Binding ids are "<script>#<n>".
func (e *Engine) Register(reg *hooks.Registry) int {
	e.mu.RLock()
	names := make([]string, 0, len(e.scripts))
	for name := range e.scripts {
		names = append(names, name)
	}
	slices.Sort(names)
	list := make([]*script, len(names))
	for i, name := range names {
		list[i] = e.scripts[name]
	}
	timeout := e.timeout
	e.mu.RUnlock()

	n := 0
	for _, s := range list {
		for i, b := range s.mod.bindings {
			opts := []hooks.Option{
				hooks.WithPriority(b.priority),
				hooks.WithArity(b.arity),
				hooks.WithID(fmt.Sprintf("%s#%d", s.name, i)),
			}
			switch b.kind {
			case hooks.KindAction:
				reg.AddAction(b.event, s.action(b, timeout), opts...)
			case hooks.KindFilter:
				reg.AddFilter(b.event, s.filter(b, timeout), opts...)
			}
			n++
		}
	}
	return n
}

// Scripts returns a snapshot of the loaded scripts, sorted by name.
func (e *Engine) Scripts() []ScriptInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	infos := make([]ScriptInfo, 0, len(e.scripts))
	for _, s := range e.scripts {
		events := make([]string, len(s.mod.bindings))
		for i, b := range s.mod.bindings {
			events[i] = b.event
		}
		infos = append(infos, ScriptInfo{
			Name:     s.name,
			FilePath: s.path,
			Bindings: len(s.mod.bindings),
			Events:   events,
			LoadedAt: s.loadedAt,
			Calls:    s.calls.Load(),
			Errors:   s.errors.Load(),
		})
	}
	slices.SortFunc(infos, func(a, b ScriptInfo) int { return strings.Compare(a.Name, b.Name) })
	return infos
}

// Count returns the number of loaded scripts.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.scripts)
}

// Close releases every script VM. Bound handlers fail afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	old := e.scripts
	e.scripts = make(map[string]*script)
	e.mu.Unlock()
	for _, s := range old {
		s.close()
	}
}

var errClosed = errors.New("script closed")

func (s *script) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L != nil {
		s.L.Close()
		s.L = nil
	}
}

func (s *script) action(b binding, timeout time.Duration) hooks.Action {
	return func(ctx context.Context, args ...any) error {
		_, err := s.call(ctx, b, timeout, 0, args)
		return err
	}
}

func (s *script) filter(b binding, timeout time.Duration) hooks.Filter {
	return func(ctx context.Context, value any, args ...any) (any, error) {
		ret, err := s.call(ctx, b, timeout, 1, append([]any{value}, args...))
		if err != nil {
			return value, err
		}
		return ret, nil
	}
}

// call invokes a bound Lua function. The first io.Writer argument becomes
// the flux.echo target and is passed to Lua as nil.
func (s *script) call(ctx context.Context, b binding, timeout time.Duration, nret int, args []any) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.L == nil {
		return nil, fmt.Errorf("%s: %w", s.name, errClosed)
	}
	s.calls.Add(1)

	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	largs := make([]lua.LValue, len(args))
	for i, arg := range args {
		if w, ok := arg.(io.Writer); ok {
			if s.mod.out == nil {
				s.mod.out = w
			}
			largs[i] = lua.LNil
			continue
		}
		largs[i] = GoToLua(s.L, arg)
	}
	defer func() { s.mod.out = nil }()

	err := s.L.CallByParam(lua.P{Fn: b.fn, NRet: nret, Protect: true}, largs...)
	if err != nil {
		s.errors.Add(1)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("script %s on %s: %w", s.name, b.event, ctxErr)
		}
		return nil, fmt.Errorf("script %s on %s: %w", s.name, b.event, err)
	}
	if nret == 0 {
		return nil, nil
	}
	ret := s.L.Get(-1)
	s.L.Pop(1)
	return LuaToGo(ret), nil
}
