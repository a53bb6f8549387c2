package content

import (
	"context"
	"errors"
	"maps"
	"sync"

	"github.com/fluxfullcircle/fluxdna/pkg/hooks"
)

// HookRoomsQuery is fired by the page builder before it queries the posts
// for a "rooms" listing block.
const HookRoomsQuery = "elementor_pro/query/get_rooms"

// MetaRooms is the post meta key holding the ids of the rooms to list.
const MetaRooms = "rooms"

// ErrNoQuery is returned by RoomsQueryAction when its first argument is not
// a *Query.
var ErrNoQuery = errors.New("content: first action argument must be a *Query")

// Query holds the variables of a pending post query.
type Query struct {
	mu   sync.Mutex
	vars map[string]any
}

// NewQuery creates a query with the given initial variables.
func NewQuery(vars map[string]any) *Query {
	q := &Query{vars: map[string]any{}}
	maps.Copy(q.vars, vars)
	return q
}

// Set assigns a query variable.
func (q *Query) Set(key string, value any) {
	q.mu.Lock()
	q.vars[key] = value
	q.mu.Unlock()
}

// Get reads a query variable.
func (q *Query) Get(key string) (any, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.vars[key]
	return v, ok
}

// Vars returns a copy of all query variables.
func (q *Query) Vars() map[string]any {
	q.mu.Lock()
	defer q.mu.Unlock()
	return maps.Clone(q.vars)
}

// MetaReader reads post meta values.
type MetaReader interface {
	Meta(postID int64, key string) (any, bool)
}

// Meta is an in-memory post meta store.
type Meta struct {
	mu     sync.RWMutex
	values map[int64]map[string]any
}

// NewMeta creates an empty meta store.
func NewMeta() *Meta {
	return &Meta{values: map[int64]map[string]any{}}
}

// Meta implements MetaReader.
func (m *Meta) Meta(postID int64, key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[postID][key]
	return v, ok
}

// SetMeta stores a meta value for a post.
func (m *Meta) SetMeta(postID int64, key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[postID] == nil {
		m.values[postID] = map[string]any{}
	}
	m.values[postID][key] = value
}

type postIDKey struct{}

// WithPostID returns a context carrying the id of the post being rendered.
func WithPostID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, postIDKey{}, id)
}

// PostIDFrom returns the current post id, if any.
func PostIDFrom(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(postIDKey{}).(int64)
	return id, ok
}

// RoomsQueryAction returns the rooms query handler. It restricts the query
// to the current post's rooms meta through post__in. Without a current post
// or with empty meta the query is left untouched.
func RoomsQueryAction(meta MetaReader) hooks.Action {
	return func(ctx context.Context, args ...any) error {
		if len(args) == 0 {
			return ErrNoQuery
		}
		q, ok := args[0].(*Query)
		if !ok || q == nil {
			return ErrNoQuery
		}
		id, ok := PostIDFrom(ctx)
		if !ok {
			return nil
		}
		ids, ok := meta.Meta(id, MetaRooms)
		if !ok || !present(ids) {
			return nil
		}
		q.Set("post__in", ids)
		return nil
	}
}

// present reports whether a meta value counts as set.
func present(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != "" && v != "0"
	case []int64:
		return len(v) > 0
	case []int:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case []any:
		return len(v) > 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case bool:
		return v
	}
	return true
}
