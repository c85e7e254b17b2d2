package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
)

// Inbound event names.
const (
	EventJoinQueue    = "join-queue"
	EventOffer        = "offer"
	EventAnswer       = "answer"
	EventICECandidate = "ice-candidate"
	EventMessage      = "message"
	EventSkip         = "skip"
	EventLeaveQueue   = "leave-queue"
)

// ClientEvent is the superset of every inbound frame. Unknown fields are
// ignored for forward compatibility; which fields are required depends on the
// event name.
type ClientEvent struct {
	Event string `json:"event"`

	// join-queue
	UserID          string `json:"user_id"`
	Username        string `json:"username"`
	Gender          string `json:"gender"`
	PreferredGender string `json:"preferred_gender"`
	Tier            string `json:"tier"`
	Age             int    `json:"age"`

	// offer / answer / ice-candidate
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	TargetID  string          `json:"target_id,omitempty"`

	// message
	Text string `json:"text,omitempty"`
}

// DecodeClientEvent parses one inbound frame. A frame that is not JSON, has
// no event name, or carries an unparsable required field is a protocol error;
// the caller drops it without disconnecting the sender.
func DecodeClientEvent(data []byte) (*ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if ev.Event == "" {
		return nil, fmt.Errorf("frame missing event name")
	}
	return &ev, nil
}

// Profile validates the join-queue fields into a matching profile.
func (ev *ClientEvent) Profile() (model.Profile, error) {
	gender, err := model.ParseGender(ev.Gender)
	if err != nil {
		return model.Profile{}, err
	}
	pref, err := model.ParsePreference(ev.PreferredGender)
	if err != nil {
		return model.Profile{}, err
	}
	tier, err := model.ParseTier(ev.Tier)
	if err != nil {
		return model.Profile{}, err
	}
	if ev.Age < 0 {
		return model.Profile{}, fmt.Errorf("negative age %d", ev.Age)
	}
	return model.Profile{
		UserID:          ev.UserID,
		Username:        ev.Username,
		Gender:          gender,
		Age:             ev.Age,
		PreferredGender: pref,
		Tier:            tier,
	}, nil
}

// Signal extracts the opaque blob and target of a signaling frame.
func (ev *ClientEvent) Signal() (model.SignalKind, json.RawMessage, uuid.UUID, error) {
	kind, err := model.ParseSignalKind(ev.Event)
	if err != nil {
		return "", nil, uuid.Nil, err
	}

	var blob json.RawMessage
	switch kind {
	case model.SignalOffer:
		blob = ev.Offer
	case model.SignalAnswer:
		blob = ev.Answer
	case model.SignalICECandidate:
		blob = ev.Candidate
	}
	if len(blob) == 0 {
		return "", nil, uuid.Nil, fmt.Errorf("%s frame missing payload", kind)
	}

	target, err := uuid.Parse(ev.TargetID)
	if err != nil {
		return "", nil, uuid.Nil, fmt.Errorf("%s frame bad target_id: %w", kind, err)
	}
	return kind, blob, target, nil
}
