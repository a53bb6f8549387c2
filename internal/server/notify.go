package server

import (
	"context"
	"encoding/json"

	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

// publisher is the part of the NATS server the notifier needs.
type publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// eventNotifier publishes plugin lifecycle events to the events stream.
type eventNotifier struct {
	pub    publisher
	source string
}

func (n *eventNotifier) Notify(ctx context.Context, eventType, plugin, version string) error {
	data, err := json.Marshal(protocol.NewEvent(eventType, n.source, plugin, version))
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, protocol.SubjectLifecycle, data)
}
