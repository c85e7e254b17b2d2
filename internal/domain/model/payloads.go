package model

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SignalKind discriminates the three peer-negotiation event types. The
// payloads themselves are opaque blobs produced by the browsers.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// PayloadField is the wire field the opaque blob travels in.
func (k SignalKind) PayloadField() string {
	switch k {
	case SignalOffer:
		return "offer"
	case SignalAnswer:
		return "answer"
	case SignalICECandidate:
		return "candidate"
	default:
		return ""
	}
}

// ParseSignalKind validates an inbound signaling event name.
func ParseSignalKind(s string) (SignalKind, error) {
	switch SignalKind(s) {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return SignalKind(s), nil
	default:
		return "", fmt.Errorf("unknown signal kind %q", s)
	}
}

// MatchedPayload notifies a user that a pair formed.
type MatchedPayload struct {
	PartnerID   uuid.UUID   `json:"partner_id"`
	PartnerInfo PartnerInfo `json:"partner_info"`
}

// SignalPayload is a relayed offer/answer/ice-candidate. The blob is
// forwarded verbatim; only the addressing changes (target_id is stripped,
// from_id is stamped).
type SignalPayload struct {
	Kind   SignalKind
	Blob   json.RawMessage
	FromID uuid.UUID
}

// TextMessagePayload is a relayed chat line. The timestamp is server-assigned
// ISO-8601; a client-supplied timestamp is never trusted.
type TextMessagePayload struct {
	Text      string    `json:"text"`
	Sender    uuid.UUID `json:"sender"`
	Timestamp string    `json:"timestamp"`
}
