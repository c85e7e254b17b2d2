package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sony/gobreaker"
	"github.com/strangerlink/match-signaling-service/internal/domain/event"
)

// EventDispatcher defines the high-level contract for outgoing lifecycle
// events. This keeps the matchmaker agnostic of the transport implementation.
type EventDispatcher interface {
	Publish(ctx context.Context, ev *event.LifecycleEvent) error
}

// eventDispatcher is the concrete implementation (private).
//
// A circuit breaker sits between the matching engine and the broker: a dead
// or slow broker must never stall pairing, so after repeated failures
// publishes short-circuit and events are shed until the breaker half-opens.
type eventDispatcher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "lifecycle-publisher",
			MaxRequests: 3,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures > 5
			},
		}),
	}
}

func (d *eventDispatcher) Publish(ctx context.Context, ev *event.LifecycleEvent) error {
	if ev == nil {
		return fmt.Errorf("event dispatcher: cannot publish nil event")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)

	_, err = d.breaker.Execute(func() (any, error) {
		return nil, d.publisher.Publish(ev.GetRoutingKey(), msg)
	})
	if err != nil {
		return fmt.Errorf("event dispatcher: publish to topic %s: %w", ev.GetRoutingKey(), err)
	}
	return nil
}
