package event

import (
	"time"

	"github.com/google/uuid"
)

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*SessionEvent)(nil)

// SessionEvent is a generic envelope for everything the matchmaker pushes to
// a single connection: state notifications, relayed signaling, relayed text.
type SessionEvent struct {
	id         string
	connID     uuid.UUID
	kind       Kind
	priority   Priority
	occurredAt int64
	payload    any
}

func (e *SessionEvent) GetID() string         { return e.id }
func (e *SessionEvent) GetKind() Kind         { return e.kind }
func (e *SessionEvent) GetConnID() uuid.UUID  { return e.connID }
func (e *SessionEvent) GetPriority() Priority { return e.priority }
func (e *SessionEvent) GetOccurredAt() int64  { return e.occurredAt }
func (e *SessionEvent) GetPayload() any       { return e.payload }

// NewSessionEvent is a universal factory for creating any outbound signal.
func NewSessionEvent(connID uuid.UUID, kind Kind, priority Priority, payload any) *SessionEvent {
	return &SessionEvent{
		id:         uuid.NewString(),
		connID:     connID,
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}
