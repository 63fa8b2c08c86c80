package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisherEmit(t *testing.T) {
	pub := NewChannelPublisher(2)
	ctx := context.Background()

	require.NoError(t, pub.Emit(ctx, Event{Action: ActionLetterCreated, Entity: "recruitment_letter", EntityID: "a"}))
	require.NoError(t, pub.Emit(ctx, Event{Action: ActionLetterCreated, Entity: "recruitment_letter", EntityID: "b"}))

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		err := pub.Emit(ctx, Event{Action: ActionLetterCreated, Entity: "recruitment_letter", EntityID: "c"})
		assert.Error(t, err)
	})

	t.Run("missing timestamp is filled in", func(t *testing.T) {
		event := <-pub.Inbox()
		assert.False(t, event.Timestamp.IsZero())
		assert.Equal(t, "a", event.EntityID)
	})
}

func TestWorkerDrainsInbox(t *testing.T) {
	pub := NewChannelPublisher(8)
	store := NewMemoryStore()
	worker := NewWorker(store, pub.Inbox())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	require.NoError(t, pub.Emit(ctx, Event{Action: ActionDeploymentCreated, Entity: "deployment", EntityID: "d-1"}))
	require.NoError(t, pub.Emit(ctx, Event{Action: ActionDeploymentTerminated, Entity: "deployment", EntityID: "d-1"}))

	require.Eventually(t, func() bool {
		return len(store.All()) == 2
	}, time.Second, 10*time.Millisecond)

	events, err := store.ListByEntity(ctx, "deployment", "d-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionDeploymentCreated, events[0].Action)

	cancel()
	<-done
}
