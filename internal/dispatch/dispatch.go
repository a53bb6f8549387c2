package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// ErrNilCallback is returned when a binding carries no callable target.
var ErrNilCallback = errors.New("dispatch: binding has no callback")

// HookInfo describes one installed binding for introspection.
type HookInfo struct {
	Kind     hooks.Kind `json:"kind"`
	Event    string     `json:"event"`
	ID       string     `json:"id,omitempty"`
	Priority int        `json:"priority"`
	Arity    int        `json:"arity"`
}

// Dispatcher is the host event-dispatch runtime. Bindings are kept per event
// in priority order, insertion order breaking ties. Installation normally
// happens during bootstrap; dispatch may run from many goroutines afterwards.
type Dispatcher struct {
	mu      sync.RWMutex
	actions map[string][]hooks.Entry
	filters map[string][]hooks.Entry
	logger  zerolog.Logger
	metrics *metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRegisterer registers dispatch counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.metrics.register(reg)
	}
}

// New creates an empty dispatcher.
func New(logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		actions: make(map[string][]hooks.Entry),
		filters: make(map[string][]hooks.Entry),
		logger:  logger.With().Str("component", "dispatch").Logger(),
		metrics: newMetrics(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InstallAction implements hooks.Host.
func (d *Dispatcher) InstallAction(e hooks.Entry) error {
	if e.Action == nil {
		return fmt.Errorf("%w: action %q", ErrNilCallback, e.Event)
	}
	e.Kind = hooks.KindAction
	d.mu.Lock()
	d.actions[e.Event] = insert(d.actions[e.Event], e)
	d.mu.Unlock()

	d.logger.Debug().
		Str("event", e.Event).
		Str("id", e.ID).
		Int("priority", e.Priority).
		Msg("installed action")
	return nil
}

// InstallFilter implements hooks.Host.
func (d *Dispatcher) InstallFilter(e hooks.Entry) error {
	if e.Filter == nil {
		return fmt.Errorf("%w: filter %q", ErrNilCallback, e.Event)
	}
	e.Kind = hooks.KindFilter
	d.mu.Lock()
	d.filters[e.Event] = insert(d.filters[e.Event], e)
	d.mu.Unlock()

	d.logger.Debug().
		Str("event", e.Event).
		Str("id", e.ID).
		Int("priority", e.Priority).
		Msg("installed filter")
	return nil
}

// insert places e after every entry whose priority is <= e.Priority. It
// always returns a fresh slice so snapshots taken by dispatch stay valid.
func insert(list []hooks.Entry, e hooks.Entry) []hooks.Entry {
	i := sort.Search(len(list), func(i int) bool {
		return list[i].Priority > e.Priority
	})
	out := make([]hooks.Entry, 0, len(list)+1)
	out = append(out, list[:i]...)
	out = append(out, e)
	return append(out, list[i:]...)
}

// RemoveAction drops the action bound to event with the given id and
// priority. It reports whether a binding was removed.
func (d *Dispatcher) RemoveAction(event, id string, priority int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return remove(d.actions, event, id, priority)
}

// RemoveFilter drops the filter bound to event with the given id and
// priority. It reports whether a binding was removed.
func (d *Dispatcher) RemoveFilter(event, id string, priority int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return remove(d.filters, event, id, priority)
}

func remove(table map[string][]hooks.Entry, event, id string, priority int) bool {
	if id == "" {
		return false
	}
	list := table[event]
	for i, e := range list {
		if e.ID == id && e.Priority == priority {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(table, event)
			} else {
				table[event] = list
			}
			return true
		}
	}
	return false
}

// HasAction reports whether any action is bound to event.
func (d *Dispatcher) HasAction(event string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.actions[event]) > 0
}

// HasFilter reports whether any filter is bound to event.
func (d *Dispatcher) HasFilter(event string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.filters[event]) > 0
}

// DoAction runs every action bound to event. A failing handler does not stop
// the ones after it; all failures are joined into the returned error.
func (d *Dispatcher) DoAction(ctx context.Context, event string, args ...any) error {
	d.mu.RLock()
	list := d.actions[event]
	d.mu.RUnlock()

	var errs []error
	for _, e := range list {
		d.metrics.calls.WithLabelValues(string(hooks.KindAction), event).Inc()
		if err := e.Action(ctx, truncate(args, e.Arity)...); err != nil {
			d.metrics.errors.WithLabelValues(string(hooks.KindAction), event).Inc()
			d.logger.Error().
				Err(err).
				Str("event", event).
				Str("id", e.ID).
				Msg("action handler error")
			errs = append(errs, fmt.Errorf("action %s: %w", label(e), err))
		}
	}
	return errors.Join(errs...)
}

// ApplyFilters threads value through every filter bound to event and
// returns the final value. The first failing filter aborts the chain.
func (d *Dispatcher) ApplyFilters(ctx context.Context, event string, value any, args ...any) (any, error) {
	d.mu.RLock()
	list := d.filters[event]
	d.mu.RUnlock()

	for _, e := range list {
		d.metrics.calls.WithLabelValues(string(hooks.KindFilter), event).Inc()
		next, err := e.Filter(ctx, value, truncate(args, e.Arity-1)...)
		if err != nil {
			d.metrics.errors.WithLabelValues(string(hooks.KindFilter), event).Inc()
			return value, fmt.Errorf("filter %s: %w", label(e), err)
		}
		value = next
	}
	return value, nil
}

// Snapshot lists every installed binding, actions first, each event in
// dispatch order.
func (d *Dispatcher) Snapshot() []HookInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []HookInfo
	for _, table := range []map[string][]hooks.Entry{d.actions, d.filters} {
		events := make([]string, 0, len(table))
		for event := range table {
			events = append(events, event)
		}
		sort.Strings(events)
		for _, event := range events {
			for _, e := range table[event] {
				out = append(out, HookInfo{
					Kind:     e.Kind,
					Event:    e.Event,
					ID:       e.ID,
					Priority: e.Priority,
					Arity:    e.Arity,
				})
			}
		}
	}
	return out
}

func truncate(args []any, arity int) []any {
	if arity <= 0 {
		return nil
	}
	if arity < len(args) {
		return args[:arity]
	}
	return args
}

func label(e hooks.Entry) string {
	if e.ID != "" {
		return e.Event + "/" + e.ID
	}
	return e.Event
}
