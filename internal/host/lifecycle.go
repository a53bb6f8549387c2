package host

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// ActivationHook returns the event fired when plugin is activated.
func ActivationHook(plugin string) string { return "activate_" + plugin }

// DeactivationHook returns the event fired when plugin is deactivated.
func DeactivationHook(plugin string) string { return "deactivate_" + plugin }

// RegisterActivationHook binds fn to the activation of plugin.
func (rt *Runtime) RegisterActivationHook(plugin string, fn hooks.Action) error {
	return rt.InstallAction(lifecycleEntry(ActivationHook(plugin), fn))
}

// RegisterDeactivationHook binds fn to the deactivation of plugin.
func (rt *Runtime) RegisterDeactivationHook(plugin string, fn hooks.Action) error {
	return rt.InstallAction(lifecycleEntry(DeactivationHook(plugin), fn))
}

func lifecycleEntry(event string, fn hooks.Action) hooks.Entry {
	return hooks.Entry{
		Kind:     hooks.KindAction,
		Event:    event,
		Priority: hooks.DefaultPriority,
		Arity:    hooks.DefaultArity,
		Action:   fn,
	}
}

// ErrUnknownPlugin is returned by Activate and Deactivate for a plugin
// with no activation hook.
var ErrUnknownPlugin = errors.New("host: unknown plugin")

// transition returns the mutex serializing state changes of plugin.
func (rt *Runtime) transition(plugin string) *sync.Mutex {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	m, ok := rt.transitions[plugin]
	if !ok {
		m = &sync.Mutex{}
		rt.transitions[plugin] = m
	}
	return m
}

func (rt *Runtime) known(plugin string) error {
	if !rt.HasAction(ActivationHook(plugin)) {
		return fmt.Errorf("%w %q", ErrUnknownPlugin, plugin)
	}
	return nil
}

// Activate fires the activation hook of plugin and marks it active.
// Activating an active plugin is a no-op. Concurrent calls for the same
// plugin fire the hook once.
func (rt *Runtime) Activate(ctx context.Context, plugin string) error {
	if err := rt.known(plugin); err != nil {
		return err
	}
	m := rt.transition(plugin)
	m.Lock()
	defer m.Unlock()
	if rt.Active(plugin) {
		return nil
	}

	if err := rt.DoAction(ctx, ActivationHook(plugin)); err != nil {
		return fmt.Errorf("activate %s: %w", plugin, err)
	}
	rt.mu.Lock()
	rt.active[plugin] = true
	rt.mu.Unlock()
	rt.logger.Info().Str("plugin", plugin).Msg("plugin activated")
	return nil
}

// Deactivate fires the deactivation hook of plugin and marks it inactive.
// Deactivating an inactive plugin is a no-op.
func (rt *Runtime) Deactivate(ctx context.Context, plugin string) error {
	if err := rt.known(plugin); err != nil {
		return err
	}
	m := rt.transition(plugin)
	m.Lock()
	defer m.Unlock()
	if !rt.Active(plugin) {
		return nil
	}

	if err := rt.DoAction(ctx, DeactivationHook(plugin)); err != nil {
		return fmt.Errorf("deactivate %s: %w", plugin, err)
	}
	rt.mu.Lock()
	delete(rt.active, plugin)
	rt.mu.Unlock()
	rt.logger.Info().Str("plugin", plugin).Msg("plugin deactivated")
	return nil
}

// Active reports whether plugin is active.
func (rt *Runtime) Active(plugin string) bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.active[plugin]
}

// ActivePlugins lists the active plugins, sorted.
func (rt *Runtime) ActivePlugins() []string {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	out := make([]string, 0, len(rt.active))
	for name := range rt.active {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
