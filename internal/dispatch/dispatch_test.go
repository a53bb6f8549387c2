package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

func recorder(calls *[]string, name string) hooks.Action {
	return func(_ context.Context, _ ...any) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestInstallAction_NilCallback(t *testing.T) {
	d := New(zerolog.Nop())
	err := d.InstallAction(hooks.Entry{Event: "init"})
	if !errors.Is(err, ErrNilCallback) {
		t.Fatalf("err = %v, want ErrNilCallback", err)
	}
	err = d.InstallFilter(hooks.Entry{Event: "the_content"})
	if !errors.Is(err, ErrNilCallback) {
		t.Fatalf("err = %v, want ErrNilCallback", err)
	}
}

func TestDoAction_PriorityThenInsertionOrder(t *testing.T) {
	d := New(zerolog.Nop())
	var calls []string

	d.InstallAction(hooks.Entry{Event: "init", Priority: 10, Arity: 1, Action: recorder(&calls, "a")})
	d.InstallAction(hooks.Entry{Event: "init", Priority: 0, Arity: 1, Action: recorder(&calls, "b")})
	d.InstallAction(hooks.Entry{Event: "init", Priority: 10, Arity: 1, Action: recorder(&calls, "c")})
	d.InstallAction(hooks.Entry{Event: "init", Priority: 5, Arity: 1, Action: recorder(&calls, "d")})

	if err := d.DoAction(context.Background(), "init"); err != nil {
		t.Fatalf("DoAction: %v", err)
	}
	if got := strings.Join(calls, ","); got != "b,d,a,c" {
		t.Errorf("call order = %s, want b,d,a,c", got)
	}
}

func TestDoAction_UnknownEvent(t *testing.T) {
	d := New(zerolog.Nop())
	if err := d.DoAction(context.Background(), "nothing_here"); err != nil {
		t.Fatalf("DoAction: %v", err)
	}
}

func TestDoAction_ArityTruncatesArgs(t *testing.T) {
	d := New(zerolog.Nop())

	var seen [][]any
	capture := func(_ context.Context, args ...any) error {
		seen = append(seen, args)
		return nil
	}
	d.InstallAction(hooks.Entry{Event: "save", Arity: 0, Action: capture})
	d.InstallAction(hooks.Entry{Event: "save", Arity: 1, Action: capture})
	d.InstallAction(hooks.Entry{Event: "save", Arity: 5, Action: capture})

	d.DoAction(context.Background(), "save", "x", "y", "z")

	want := []int{0, 1, 3}
	for i, n := range want {
		if len(seen[i]) != n {
			t.Errorf("handler %d got %d args, want %d", i, len(seen[i]), n)
		}
	}
}

func TestDoAction_ContinuesAfterError(t *testing.T) {
	d := New(zerolog.Nop())
	var calls []string
	boom := errors.New("boom")

	d.InstallAction(hooks.Entry{Event: "e", ID: "fails", Action: func(context.Context, ...any) error {
		calls = append(calls, "fails")
		return boom
	}})
	d.InstallAction(hooks.Entry{Event: "e", Action: recorder(&calls, "after")})

	err := d.DoAction(context.Background(), "e")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !strings.Contains(err.Error(), "e/fails") {
		t.Errorf("err = %q, want handler label", err)
	}
	if got := strings.Join(calls, ","); got != "fails,after" {
		t.Errorf("calls = %s", got)
	}
}

func TestApplyFilters_Chain(t *testing.T) {
	d := New(zerolog.Nop())
	suffix := func(s string) hooks.Filter {
		return func(_ context.Context, v any, _ ...any) (any, error) {
			return v.(string) + s, nil
		}
	}
	d.InstallFilter(hooks.Entry{Event: "title", Priority: 20, Arity: 1, Filter: suffix("-late")})
	d.InstallFilter(hooks.Entry{Event: "title", Priority: 1, Arity: 1, Filter: suffix("-early")})

	got, err := d.ApplyFilters(context.Background(), "title", "stay")
	if err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}
	if got != "stay-early-late" {
		t.Errorf("got %v, want stay-early-late", got)
	}
}

func TestApplyFilters_NoFiltersReturnsValue(t *testing.T) {
	d := New(zerolog.Nop())
	got, err := d.ApplyFilters(context.Background(), "none", 42)
	if err != nil || got != 42 {
		t.Errorf("got (%v, %v), want (42, nil)", got, err)
	}
}

func TestApplyFilters_ArityCountsValue(t *testing.T) {
	d := New(zerolog.Nop())
	var extra []int
	record := func(_ context.Context, v any, args ...any) (any, error) {
		extra = append(extra, len(args))
		return v, nil
	}
	d.InstallFilter(hooks.Entry{Event: "f", Arity: 1, Filter: record})
	d.InstallFilter(hooks.Entry{Event: "f", Arity: 2, Filter: record})

	d.ApplyFilters(context.Background(), "f", "v", "a", "b")

	if fmt.Sprint(extra) != "[0 1]" {
		t.Errorf("extra args = %v, want [0 1]", extra)
	}
}

func TestApplyFilters_StopsOnError(t *testing.T) {
	d := New(zerolog.Nop())
	boom := errors.New("boom")
	called := false

	d.InstallFilter(hooks.Entry{Event: "f", Arity: 1, Filter: func(context.Context, any, ...any) (any, error) {
		return nil, boom
	}})
	d.InstallFilter(hooks.Entry{Event: "f", Arity: 1, Filter: func(_ context.Context, v any, _ ...any) (any, error) {
		called = true
		return v, nil
	}})

	got, err := d.ApplyFilters(context.Background(), "f", "orig")
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got != "orig" {
		t.Errorf("value = %v, want orig", got)
	}
	if called {
		t.Error("filter after failure should not run")
	}
}

func TestRemoveAction(t *testing.T) {
	d := New(zerolog.Nop())
	var calls []string
	d.InstallAction(hooks.Entry{Event: "wp_head", ID: "print_emoji_detection_script", Priority: 7, Action: recorder(&calls, "emoji")})
	d.InstallAction(hooks.Entry{Event: "wp_head", ID: "other", Priority: 10, Action: recorder(&calls, "other")})

	if d.RemoveAction("wp_head", "print_emoji_detection_script", 10) {
		t.Error("removal with wrong priority should fail")
	}
	if !d.RemoveAction("wp_head", "print_emoji_detection_script", 7) {
		t.Fatal("expected removal")
	}
	if d.RemoveAction("wp_head", "print_emoji_detection_script", 7) {
		t.Error("second removal should report false")
	}

	d.DoAction(context.Background(), "wp_head")
	if got := strings.Join(calls, ","); got != "other" {
		t.Errorf("calls = %s, want other", got)
	}

	if !d.RemoveAction("wp_head", "other", 10) {
		t.Fatal("expected removal")
	}
	if d.HasAction("wp_head") {
		t.Error("HasAction should be false once every handler is removed")
	}
}

func TestRemoveFilter_EmptyIDNeverMatches(t *testing.T) {
	d := New(zerolog.Nop())
	d.InstallFilter(hooks.Entry{Event: "f", Filter: func(_ context.Context, v any, _ ...any) (any, error) { return v, nil }})
	if d.RemoveFilter("f", "", 0) {
		t.Error("anonymous bindings must not be removable")
	}
	if !d.HasFilter("f") {
		t.Error("filter should still be installed")
	}
}

func TestSnapshot(t *testing.T) {
	d := New(zerolog.Nop())
	noop := func(context.Context, ...any) error { return nil }
	d.InstallAction(hooks.Entry{Event: "wp_head", ID: "b", Priority: 10, Arity: 1, Action: noop})
	d.InstallAction(hooks.Entry{Event: "init", ID: "a", Priority: 0, Arity: 1, Action: noop})
	d.InstallFilter(hooks.Entry{Event: "the_title", ID: "c", Priority: 10, Arity: 2,
		Filter: func(_ context.Context, v any, _ ...any) (any, error) { return v, nil }})

	snap := d.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(snapshot) = %d, want 3", len(snap))
	}
	want := []string{"action:init:a", "action:wp_head:b", "filter:the_title:c"}
	for i, info := range snap {
		got := fmt.Sprintf("%s:%s:%s", info.Kind, info.Event, info.ID)
		if got != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, got, want[i])
		}
	}
}

func TestRegistryReplay(t *testing.T) {
	d := New(zerolog.Nop())
	var calls []string

	r := hooks.New()
	r.AddAction("init", recorder(&calls, "types"))
	r.AddAction("init", recorder(&calls, "taxonomies"), hooks.WithPriority(0))
	r.AddAction("init", recorder(&calls, "types-2"))

	if err := r.Run(d); err != nil {
		t.Fatalf("Run: %v", err)
	}
	d.DoAction(context.Background(), "init")

	if got := strings.Join(calls, ","); got != "taxonomies,types,types-2" {
		t.Errorf("calls = %s", got)
	}
}

func TestRegistryReplay_NilTargetSurfacesHostError(t *testing.T) {
	d := New(zerolog.Nop())
	r := hooks.New()
	r.AddAction("init", nil)

	if err := r.Run(d); !errors.Is(err, ErrNilCallback) {
		t.Fatalf("Run err = %v, want ErrNilCallback", err)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := New(zerolog.Nop(), WithRegisterer(reg))
	d.InstallAction(hooks.Entry{Event: "wp_head", Action: func(context.Context, ...any) error { return nil }})
	d.InstallAction(hooks.Entry{Event: "wp_head", Action: func(context.Context, ...any) error { return errors.New("x") }})

	d.DoAction(context.Background(), "wp_head")
	d.DoAction(context.Background(), "wp_head")

	if got := testutil.ToFloat64(d.metrics.calls.WithLabelValues("action", "wp_head")); got != 4 {
		t.Errorf("calls = %v, want 4", got)
	}
	if got := testutil.ToFloat64(d.metrics.errors.WithLabelValues("action", "wp_head")); got != 2 {
		t.Errorf("errors = %v, want 2", got)
	}
}
