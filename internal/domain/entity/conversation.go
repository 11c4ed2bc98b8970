package entity

import (
	"encoding/json"
	"time"
)

// Participant is the other side of a conversation as the backend summarizes
// it: the current user is implicit.
type Participant struct {
	ID        string `json:"id"`
	FullName  string `json:"fullName,omitempty"`
	Email     string `json:"email,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	IsOnline  bool   `json:"isOnline,omitempty"`
}

// ProductSummary is the product snapshot a conversation is anchored to.
type ProductSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Image string `json:"image,omitempty"`
}

type Conversation struct {
	ID              string          `json:"id"`
	Participants    []string        `json:"participants,omitempty"`
	Other           Participant     `json:"other"`
	Product         *ProductSummary `json:"product,omitempty"`
	LastMessage     *Message        `json:"lastMessage,omitempty"`
	LastMessageTime time.Time       `json:"lastMessageTime,omitempty"`
	// UnreadCount is the server-computed seed. Once the message cache holds
	// this conversation it is recomputed locally and the server value is no
	// longer consulted.
	UnreadCount int `json:"unreadCount"`
}

func (c *Conversation) UnmarshalJSON(raw []byte) error {
	var wire struct {
		ID              string          `json:"id"`
		MongoID         string          `json:"_id"`
		Participants    []string        `json:"participants"`
		Other           Participant     `json:"other"`
		Product         *ProductSummary `json:"product"`
		LastMessage     *Message        `json:"lastMessage"`
		LastMessageTime flexTime        `json:"lastMessageTime"`
		UnreadCount     int             `json:"unreadCount"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	c.ID = wire.ID
	if c.ID == "" {
		c.ID = wire.MongoID
	}
	c.Participants = wire.Participants
	c.Other = wire.Other
	c.Product = wire.Product
	c.LastMessage = wire.LastMessage
	c.LastMessageTime = wire.LastMessageTime.Time
	c.UnreadCount = wire.UnreadCount
	if c.LastMessageTime.IsZero() && c.LastMessage != nil {
		c.LastMessageTime = c.LastMessage.Timestamp
	}
	return nil
}

// LastMessagePreview returns the text shown in the conversation list.
func (c *Conversation) LastMessagePreview() string {
	if c.LastMessage == nil {
		return ""
	}
	if c.LastMessage.Type == MessageTypeImage {
		return "[image]"
	}
	return c.LastMessage.Content
}
