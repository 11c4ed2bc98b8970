package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
	"valikoo/pkg/logger"
)

func (c *Client) ListConversations(ctx context.Context) ([]entity.Conversation, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/messages/conversations", nil)
	if err != nil {
		return nil, err
	}
	return decodeConversations(raw)
}

// GetConversation fetches a single conversation. The backend answers this
// route with the message envelope, so both the summary stub and the messages
// come back together.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*entity.Conversation, []entity.Message, error) {
	raw, err := c.doJSON(ctx, http.MethodGet, "/api/messages/conversations/"+conversationID, nil)
	if err != nil {
		return nil, nil, err
	}

	messages, err := decodeMessages(raw)
	if err != nil {
		// Some deployments answer with a plain summary instead.
		var conv entity.Conversation
		if jsonErr := json.Unmarshal(raw, &conv); jsonErr == nil && conv.ID != "" {
			return &conv, nil, nil
		}
		return nil, nil, err
	}
	return &entity.Conversation{ID: conversationID}, messages, nil
}

// Messages fetches one page of a conversation's history, oldest first.
func (c *Client) Messages(ctx context.Context, conversationID string, page, pageSize int) ([]entity.Message, error) {
	path := "/api/messages/conversations/" + conversationID
	if page > 0 {
		path = fmt.Sprintf("%s?page=%d&page_size=%d", path, page, pageSize)
	}
	raw, err := c.doJSON(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw)
}

type createConversationRequest struct {
	RecipientID string `json:"recipient_id"`
	ProductID   string `json:"product_id,omitempty"`
}

// CreateConversation returns the created conversation, or the existing one if
// the pair already talks about this product.
func (c *Client) CreateConversation(ctx context.Context, recipientID, productID string) (*entity.Conversation, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/api/messages/conversations", createConversationRequest{
		RecipientID: recipientID,
		ProductID:   productID,
	})
	if err != nil {
		return nil, err
	}
	var conv entity.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, errors.Decode("unrecognized conversation shape", err)
	}
	if conv.ID == "" {
		return nil, errors.Decode("conversation carries no id", nil)
	}
	return &conv, nil
}

// MarkRead tells the server every message in the conversation has been seen.
// Best effort: callers log failures instead of surfacing them.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	_, err := c.doJSON(ctx, http.MethodPatch, "/api/messages/"+conversationID+"/read", nil)
	if err != nil {
		logger.Warn("mark read failed for conversation %s: %v", conversationID, err)
	}
	return err
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type"`
}

func (c *Client) SendMessage(ctx context.Context, conversationID, content, messageType string) (*entity.Message, error) {
	raw, err := c.doJSON(ctx, http.MethodPost, "/api/messages/send", sendMessageRequest{
		ConversationID: conversationID,
		Content:        content,
		Type:           messageType,
	})
	if err != nil {
		return nil, err
	}
	return decodeSentMessage(raw)
}
