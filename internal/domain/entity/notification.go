package entity

import (
	"encoding/json"
	"time"
)

// Notification is a product_update event, pushed over the realtime channel or
// fetched from the dashboard feed. Realtime ones are session-scoped and never
// persisted.
type Notification struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"` // "created", "fulfilled", "updated"
	Product   *ProductSummary `json:"product,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read,omitempty"`
}

func (n *Notification) UnmarshalJSON(raw []byte) error {
	var wire struct {
		ID        string          `json:"id"`
		MongoID   string          `json:"_id"`
		Action    string          `json:"action"`
		Product   *ProductSummary `json:"product"`
		Timestamp flexTime        `json:"timestamp"`
		CreatedAt flexTime        `json:"createdAt"`
		Read      bool            `json:"read"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	n.ID = wire.ID
	if n.ID == "" {
		n.ID = wire.MongoID
	}
	n.Action = wire.Action
	n.Product = wire.Product
	n.Timestamp = wire.Timestamp.Time
	if n.Timestamp.IsZero() {
		n.Timestamp = wire.CreatedAt.Time
	}
	n.Read = wire.Read
	return nil
}
