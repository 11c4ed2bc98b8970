package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// Message statuses as exchanged with the backend. "sending" and "failed" are
// client-only: they exist between the optimistic append and the server's
// confirmation (or its absence) and are never sent over the wire.
const (
	MessageStatusSending   = "sending"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
	MessageStatusFailed    = "failed"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// TempIDPrefix marks client-generated placeholder ids pending server
// assignment.
const TempIDPrefix = "temp-"

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId,omitempty"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	Type           string    `json:"type"` // "text", "image"
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	ReadBy         []string  `json:"readBy,omitempty"`
}

// UnmarshalJSON tolerates the shapes the backend emits: ids under "id" or
// "_id", naive timestamps, missing type. This is the only decode path for
// messages, REST and realtime alike.
func (m *Message) UnmarshalJSON(raw []byte) error {
	var wire struct {
		ID             string   `json:"id"`
		MongoID        string   `json:"_id"`
		ConversationID string   `json:"conversationId"`
		SenderID       string   `json:"senderId"`
		Content        string   `json:"content"`
		Type           string   `json:"type"`
		Status         string   `json:"status"`
		Timestamp      flexTime `json:"timestamp"`
		ReadBy         []string `json:"readBy"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	m.ID = wire.ID
	if m.ID == "" {
		m.ID = wire.MongoID
	}
	m.ConversationID = wire.ConversationID
	m.SenderID = wire.SenderID
	m.Content = wire.Content
	m.Type = wire.Type
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	m.Status = wire.Status
	m.Timestamp = wire.Timestamp.Time
	m.ReadBy = wire.ReadBy
	return nil
}

// IsPending reports whether the message still carries a client-generated id.
func (m *Message) IsPending() bool {
	return strings.HasPrefix(m.ID, TempIDPrefix)
}

// IsUnreadBy reports whether userID still has to read this message. Messages
// sent by userID never count; messages with no status at all count as unread
// (the backend omits status on some legacy rows).
func (m *Message) IsUnreadBy(userID string) bool {
	if SameID(m.SenderID, userID) {
		return false
	}
	return m.Status != MessageStatusRead
}

// SameID compares user ids after trimming, since ids arrive both as raw
// ObjectId strings and as display forms depending on the endpoint.
func SameID(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b) && a != ""
}
