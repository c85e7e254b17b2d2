package event

import "github.com/google/uuid"

type Kind int16

//go:generate stringer -type=Kind
const (
	Matched Kind = iota + 1
	Waiting
	Skipped
	PartnerSkipped
	PartnerDisconnected
	Signal
	TextMessage
)

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all outbound packets flowing to a
// connection's mailbox.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetConnID() uuid.UUID
	GetPriority() Priority
	GetOccurredAt() int64
	GetPayload() any
}
