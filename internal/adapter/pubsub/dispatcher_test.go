package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"github.com/strangerlink/match-signaling-service/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherPublishRoundTrip(t *testing.T) {
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer bus.Close()

	a, b := uuid.New(), uuid.New()
	ev := event.NewLifecycleEvent(event.PairCreated, "", a, b)

	msgs, err := bus.Subscribe(context.Background(), ev.GetRoutingKey())
	require.NoError(t, err)

	d := NewEventDispatcher(bus)
	require.NoError(t, d.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		var got event.LifecycleEvent
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, event.PairCreated, got.Kind)
		assert.Equal(t, []uuid.UUID{a, b}, got.ConnIDs)
		assert.Equal(t, "match-signaling-service", got.Source)
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("published event never arrived")
	}
}

func TestDispatcherRoutingKey(t *testing.T) {
	ev := event.NewLifecycleEvent(event.PairEnded, event.ReasonSkip, uuid.New())
	assert.Equal(t, "match_signal.v1.pair.ended", ev.GetRoutingKey())
}

func TestDispatcherRejectsNil(t *testing.T) {
	d := NewEventDispatcher(&failingPublisher{})
	assert.Error(t, d.Publish(context.Background(), nil))
}

type failingPublisher struct{}

func (f *failingPublisher) Publish(string, ...*message.Message) error {
	return errors.New("broker down")
}

func (f *failingPublisher) Close() error { return nil }

func TestDispatcherBreakerShedsAfterRepeatedFailures(t *testing.T) {
	d := NewEventDispatcher(&failingPublisher{})
	ev := event.NewLifecycleEvent(event.QueueJoined, "", uuid.New())

	// Six consecutive failures trip the breaker.
	for i := 0; i < 6; i++ {
		err := d.Publish(context.Background(), ev)
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}

	err := d.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState, "open breaker sheds without touching the broker")
}
