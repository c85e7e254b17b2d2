package event

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleKind tags exported session-lifecycle events.
type LifecycleKind string

const (
	PairCreated LifecycleKind = "pair.created"
	PairEnded   LifecycleKind = "pair.ended"
	QueueJoined LifecycleKind = "queue.joined"
	QueueLeft   LifecycleKind = "queue.left"
)

// EndReason explains why a pair was torn down.
type EndReason string

const (
	ReasonSkip       EndReason = "skip"
	ReasonLeave      EndReason = "leave"
	ReasonDisconnect EndReason = "disconnect"
)

// LifecycleEvent is telemetry published to the message bus when queue or
// pair state changes. It carries no conversation content and nothing
// downstream feeds back into matching.
type LifecycleEvent struct {
	ID         string        `json:"id"`
	Source     string        `json:"source"`
	Kind       LifecycleKind `json:"kind"`
	ConnIDs    []uuid.UUID   `json:"conn_ids"`
	Reason     EndReason     `json:"reason,omitempty"`
	OccurredAt int64         `json:"occurred_at"`
}

// NewLifecycleEvent creates a fresh event ready for publishing.
func NewLifecycleEvent(kind LifecycleKind, reason EndReason, connIDs ...uuid.UUID) *LifecycleEvent {
	return &LifecycleEvent{
		ID:         uuid.NewString(),
		Source:     "match-signaling-service",
		Kind:       kind,
		ConnIDs:    connIDs,
		Reason:     reason,
		OccurredAt: time.Now().UnixMilli(),
	}
}

// GetRoutingKey generates the bus routing topic.
// [PATTERN] match_signal.v1.{kind}
func (e *LifecycleEvent) GetRoutingKey() string {
	return "match_signal.v1." + string(e.Kind)
}
