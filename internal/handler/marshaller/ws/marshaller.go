package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/event"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
)

// Outbound event names.
const (
	EventMatched             = "matched"
	EventWaiting             = "waiting"
	EventSkipped             = "skipped"
	EventPartnerSkipped      = "partner-skipped"
	EventPartnerDisconnected = "partner-disconnected"
)

type wsMatched struct {
	Event       string            `json:"event"`
	PartnerID   uuid.UUID         `json:"partner_id"`
	PartnerInfo model.PartnerInfo `json:"partner_info"`
}

type wsStatus struct {
	Event string `json:"event"`
}

type wsMessage struct {
	Event     string    `json:"event"`
	Text      string    `json:"text"`
	Sender    uuid.UUID `json:"sender"`
	Timestamp string    `json:"timestamp"`
}

// MarshalEvent prepares an outbound event for WebSocket transmission. The
// frame is a flat JSON object tagged with the event name; signaling blobs are
// embedded verbatim.
func MarshalEvent(ev event.Eventer) ([]byte, error) {
	switch p := ev.GetPayload().(type) {
	case *model.MatchedPayload:
		return json.Marshal(&wsMatched{
			Event:       EventMatched,
			PartnerID:   p.PartnerID,
			PartnerInfo: p.PartnerInfo,
		})

	case *model.SignalPayload:
		// target_id is already stripped; only from_id travels outbound.
		return json.Marshal(map[string]any{
			"event":              string(p.Kind),
			p.Kind.PayloadField(): p.Blob,
			"from_id":            p.FromID,
		})

	case *model.TextMessagePayload:
		return json.Marshal(&wsMessage{
			Event:     EventMessage,
			Text:      p.Text,
			Sender:    p.Sender,
			Timestamp: p.Timestamp,
		})
	}

	switch ev.GetKind() {
	case event.Waiting:
		return json.Marshal(&wsStatus{Event: EventWaiting})
	case event.Skipped:
		return json.Marshal(&wsStatus{Event: EventSkipped})
	case event.PartnerSkipped:
		return json.Marshal(&wsStatus{Event: EventPartnerSkipped})
	case event.PartnerDisconnected:
		return json.Marshal(&wsStatus{Event: EventPartnerDisconnected})
	}

	return nil, fmt.Errorf("unmapped outbound event kind %d", ev.GetKind())
}
