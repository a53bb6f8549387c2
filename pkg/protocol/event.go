package protocol

import (
	"time"

	"github.com/google/uuid"
)

// Event records one plugin lifecycle transition, as published on
// SubjectLifecycle.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Source  string    `json:"source"`
	Plugin  string    `json:"plugin"`
	Version string    `json:"version"`
	Time    time.Time `json:"time"`
}

// NewEvent stamps a lifecycle event for plugin at version. IDs are UUIDv7,
// so they sort by creation time.
func NewEvent(eventType, source, plugin, version string) Event {
	return Event{
		ID:      uuid.Must(uuid.NewV7()).String(),
		Type:    eventType,
		Source:  source,
		Plugin:  plugin,
		Version: version,
		Time:    time.Now().UTC(),
	}
}
