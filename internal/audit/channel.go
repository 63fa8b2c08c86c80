package audit

import (
	"context"
	"errors"
	"time"
)

// ChannelPublisher decouples request handling from audit persistence: Emit
// pushes onto a buffered channel that a Worker drains into the store. Emit
// never blocks a request; a full buffer drops the event and reports it so
// the caller can log the loss.
type ChannelPublisher struct {
	inbox chan Event
}

// NewChannelPublisher creates a publisher with the given buffer size.
func NewChannelPublisher(buffer int) *ChannelPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelPublisher{inbox: make(chan Event, buffer)}
}

func (p *ChannelPublisher) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		return errors.New("audit inbox full, event dropped")
	}
}

// Inbox is the channel a Worker consumes.
func (p *ChannelPublisher) Inbox() <-chan Event { return p.inbox }
