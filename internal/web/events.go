package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

const (
	// maxStreams bounds concurrent /wp-admin/events connections.
	maxStreams = 32
	// streamBuffer is how many events a slow stream may lag before drops.
	streamBuffer = 16
	keepAlive    = 30 * time.Second
)

// ErrTooManyStreams is returned by attach when every stream slot is taken.
var ErrTooManyStreams = errors.New("web: too many event streams")

// feed keeps the latest lifecycle events for the admin screen and fans new
// ones out to open event streams.
type feed struct {
	mu      sync.Mutex
	limit   int
	recent  []protocol.Event
	streams map[chan protocol.Event]struct{}
}

func newFeed(limit int) *feed {
	return &feed{
		limit:   limit,
		streams: make(map[chan protocol.Event]struct{}),
	}
}

// add records evt, dropping the oldest event past the limit. Streams that
// are full miss the event.
func (f *feed) add(evt protocol.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recent = append(f.recent, evt)
	if over := len(f.recent) - f.limit; over > 0 {
		f.recent = append(f.recent[:0:0], f.recent[over:]...)
	}
	for ch := range f.streams {
		select {
		case ch <- evt:
		default:
		}
	}
}

// latest returns the recorded events, newest first.
func (f *feed) latest() []protocol.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Event, len(f.recent))
	for i, evt := range f.recent {
		out[len(f.recent)-1-i] = evt
	}
	return out
}

func (f *feed) attach() (chan protocol.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) >= maxStreams {
		return nil, ErrTooManyStreams
	}
	ch := make(chan protocol.Event, streamBuffer)
	f.streams[ch] = struct{}{}
	return ch, nil
}

func (f *feed) detach(ch chan protocol.Event) {
	f.mu.Lock()
	delete(f.streams, ch)
	f.mu.Unlock()
}

// handleEventStream pushes each new lifecycle event as a rendered table row
// over server-sent events.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, err := s.feed.attach()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.feed.detach(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case evt := <-ch:
			var row bytes.Buffer
			if err := s.templates.ExecuteTemplate(&row, "event_row", eventData(evt)); err != nil {
				s.logger.Warn().Err(err).Msg("event row render failed")
				continue
			}
			fmt.Fprintf(w, "event: lifecycle\nid: %s\ndata: %s\n\n", evt.ID, row.Bytes())
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
