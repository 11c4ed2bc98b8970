package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
)

// Server event types.
const (
	EventTypeNewMessage    = "new_message"
	EventTypeReadReceipt   = "read_receipt"
	EventTypeProductUpdate = "product_update"
)

// Client frame types.
const (
	frameTypeAuth        = "auth"
	frameTypeReadReceipt = "read_receipt"
)

// Event is one decoded server push. The concrete types below are the only
// implementations.
type Event interface {
	eventType() string
}

type NewMessage struct {
	ConversationID string
	Message        entity.Message
}

func (NewMessage) eventType() string { return EventTypeNewMessage }

type ReadReceipt struct {
	ConversationID string
	MessageID      string
	UserID         string
	All            bool
}

func (ReadReceipt) eventType() string { return EventTypeReadReceipt }

type ProductUpdate struct {
	Notification entity.Notification
}

func (ProductUpdate) eventType() string { return EventTypeProductUpdate }

// decodeEvent maps a raw frame to its event. Unknown types return (nil, nil)
// so the read loop can skip them quietly.
func decodeEvent(raw []byte) (Event, error) {
	var envelope struct {
		Type           string                 `json:"type"`
		ConversationID string                 `json:"conversationId"`
		Message        *entity.Message        `json:"message"`
		MessageID      string                 `json:"messageId"`
		All            bool                   `json:"all"`
		UserID         string                 `json:"userId"`
		ID             string                 `json:"id"`
		Action         string                 `json:"action"`
		Product        *entity.ProductSummary `json:"product"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Decode("malformed realtime frame", err)
	}

	switch envelope.Type {
	case EventTypeNewMessage:
		if envelope.Message == nil {
			return nil, errors.Decode("new_message frame carries no message", nil)
		}
		msg := *envelope.Message
		if msg.ConversationID == "" {
			msg.ConversationID = envelope.ConversationID
		}
		return NewMessage{ConversationID: envelope.ConversationID, Message: msg}, nil

	case EventTypeReadReceipt:
		return ReadReceipt{
			ConversationID: envelope.ConversationID,
			MessageID:      envelope.MessageID,
			UserID:         envelope.UserID,
			All:            envelope.All,
		}, nil

	case EventTypeProductUpdate:
		id := envelope.ID
		if id == "" {
			// The server does not id these; fabricate one so the feed can
			// deduplicate and the UI can key rows.
			id = uuid.NewString()
		}
		return ProductUpdate{Notification: entity.Notification{
			ID:        id,
			Action:    envelope.Action,
			Product:   envelope.Product,
			Timestamp: time.Now().UTC(),
		}}, nil
	}
	return nil, nil
}
