package scripting

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// Getter reads named settings.
type Getter interface {
	Get(key string) (string, bool)
}

// binding is one add_action or add_filter call made by a script.
type binding struct {
	kind     hooks.Kind
	event    string
	priority int
	arity    int
	fn       *lua.LFunction
}

// module is the state behind the flux table of one script.
type module struct {
	name     string
	store    Getter
	logger   zerolog.Logger
	bindings []binding

	// out is the page writer of the hook call in progress, if any.
	out io.Writer
}

// register installs the global flux table.
func (m *module) register(L *lua.LState) {
	mod := L.NewTable()
	L.SetField(mod, "name", lua.LString(m.name))
	L.SetField(mod, "add_action", L.NewFunction(m.addBinding(hooks.KindAction)))
	L.SetField(mod, "add_filter", L.NewFunction(m.addBinding(hooks.KindFilter)))
	L.SetField(mod, "option", L.NewFunction(m.option))
	L.SetField(mod, "echo", L.NewFunction(m.echo))
	L.SetField(mod, "log", L.NewFunction(m.log))
	L.SetGlobal("flux", mod)
}

// addBinding implements flux.add_action(event, fn [, priority [, arity]])
// and flux.add_filter with the same signature.
func (m *module) addBinding(kind hooks.Kind) lua.LGFunction {
	return func(L *lua.LState) int {
		b := binding{
			kind:     kind,
			event:    L.CheckString(1),
			fn:       L.CheckFunction(2),
			priority: L.OptInt(3, hooks.DefaultPriority),
			arity:    L.OptInt(4, hooks.DefaultArity),
		}
		if b.event == "" {
			L.ArgError(1, "event must not be empty")
			return 0
		}
		m.bindings = append(m.bindings, b)
		m.logger.Debug().
			Str("kind", string(kind)).
			Str("event", b.event).
			Int("priority", b.priority).
			Msg("script binding added")
		return 0
	}
}

// option implements flux.option(key). Unset keys return nil.
func (m *module) option(L *lua.LState) int {
	key := L.CheckString(1)
	if m.store == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := m.store.Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(lua.LString(v))
	return 1
}

// echo implements flux.echo(...), writing to the page of the running hook.
func (m *module) echo(L *lua.LState) int {
	if m.out == nil {
		L.RaiseError("flux.echo: hook has no page output")
		return 0
	}
	for i := 1; i <= L.GetTop(); i++ {
		if _, err := io.WriteString(m.out, L.CheckString(i)); err != nil {
			L.RaiseError("flux.echo: %s", err)
			return 0
		}
	}
	return 0
}

// log implements flux.log(level, message).
func (m *module) log(L *lua.LState) int {
	level, err := zerolog.ParseLevel(strings.ToLower(L.CheckString(1)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	m.logger.WithLevel(level).Msg(L.CheckString(2))
	return 0
}
