// Package hooks provides a deferred hook registry.
//
// Bootstrap code records action and filter bindings on a Registry and then
// replays them once, in a single pass, into a Host that owns the actual
// dispatch at request time. Nothing is installed until Run is called.
package hooks

import (
	"cmp"
	"context"
	"slices"
)

// Default binding parameters used when no option overrides them.
const (
	DefaultPriority = 10
	DefaultArity    = 1
)

// Kind distinguishes the two extension point categories.
type Kind string

const (
	KindAction Kind = "action"
	KindFilter Kind = "filter"
)

// Action is invoked for its side effect. Only the first Arity arguments
// supplied by the dispatcher are passed.
type Action func(ctx context.Context, args ...any) error

// Filter transforms value and returns its replacement.
type Filter func(ctx context.Context, value any, args ...any) (any, error)

// Entry is one requested binding. Exactly one of Action or Filter is set,
// matching Kind.
type Entry struct {
	Kind     Kind
	Event    string
	ID       string
	Priority int
	Arity    int
	Action   Action
	Filter   Filter
}

// Host is the event-dispatch facility a Registry replays into.
type Host interface {
	InstallAction(e Entry) error
	InstallFilter(e Entry) error
}

// Option adjusts a single registration.
type Option func(*Entry)

// WithPriority sets the ordering key. Lower values run first.
func WithPriority(p int) Option {
	return func(e *Entry) { e.Priority = p }
}

// WithArity sets how many positional arguments the target consumes.
func WithArity(n int) Option {
	return func(e *Entry) { e.Arity = n }
}

// WithID names the binding so the host can remove it later.
func WithID(id string) Option {
	return func(e *Entry) { e.ID = id }
}

// Registry accumulates bindings during bootstrap. It is not safe for
// concurrent use; populate and Run it before serving requests.
type Registry struct {
	actions []Entry
	filters []Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// AddAction appends an action binding. Event names are not validated.
func (r *Registry) AddAction(event string, fn Action, opts ...Option) {
	e := newEntry(KindAction, event, opts)
	e.Action = fn
	r.actions = append(r.actions, e)
}

// AddFilter appends a filter binding. Event names are not validated.
func (r *Registry) AddFilter(event string, fn Filter, opts ...Option) {
	e := newEntry(KindFilter, event, opts)
	e.Filter = fn
	r.filters = append(r.filters, e)
}

func newEntry(kind Kind, event string, opts []Option) Entry {
	e := Entry{
		Kind:     kind,
		Event:    event,
		Priority: DefaultPriority,
		Arity:    DefaultArity,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// Actions returns the recorded action bindings in registration order.
func (r *Registry) Actions() []Entry {
	return slices.Clone(r.actions)
}

// Filters returns the recorded filter bindings in registration order.
func (r *Registry) Filters() []Entry {
	return slices.Clone(r.filters)
}

// Len reports the total number of recorded bindings.
func (r *Registry) Len() int {
	return len(r.actions) + len(r.filters)
}

// Run installs every action and then every filter into host. Within each
// sequence entries go out by ascending priority, registration order breaking
// ties. The first host error is returned as is and stops the replay.
//
// Run is not idempotent: a second call installs every binding again.
func (r *Registry) Run(host Host) error {
	for _, e := range byPriority(r.actions) {
		if err := host.InstallAction(e); err != nil {
			return err
		}
	}
	for _, e := range byPriority(r.filters) {
		if err := host.InstallFilter(e); err != nil {
			return err
		}
	}
	return nil
}

func byPriority(entries []Entry) []Entry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b Entry) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return sorted
}
