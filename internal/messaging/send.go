package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
	"valikoo/pkg/logger"
)

type sendInput struct {
	Content string `validate:"required,max=4000"`
	Type    string `validate:"required,oneof=text image"`
}

// Send runs the optimistic pipeline for the active conversation: the message
// appears immediately with status "sending", the POST confirms it in place,
// and on failure it flips to "failed" with the conversation summary rolled
// back. Confirmation is idempotent against the realtime echo of the same
// message.
func (m *Messenger) Send(ctx context.Context, content, messageType string) (string, error) {
	conversationID := m.store.ActiveID()
	if conversationID == "" {
		return "", errors.BadRequest("no conversation selected", nil)
	}
	if messageType == "" {
		messageType = entity.MessageTypeText
	}
	if err := m.validate.Struct(sendInput{Content: content, Type: messageType}); err != nil {
		return "", errors.BadRequest("invalid message", err)
	}
	if allowed, wait := m.limiter.Allow("send_message"); !allowed {
		return "", errors.RateLimited("sending too fast, wait " + wait.Round(time.Second).String())
	}

	pending := entity.Message{
		ID:             newTempID(),
		ConversationID: conversationID,
		SenderID:       m.self.ID,
		Content:        content,
		Type:           messageType,
		Status:         entity.MessageStatusSending,
		Timestamp:      time.Now().UTC(),
	}
	prevLast, prevTime := m.store.AppendPending(conversationID, pending)
	m.notify()

	go m.deliver(ctx, conversationID, pending.ID, content, messageType, prevLast, prevTime)
	return pending.ID, nil
}

// Resend retries a failed message, reusing its entry so the list never shows
// two copies of one attempt.
func (m *Messenger) Resend(ctx context.Context, tempID string) error {
	conversationID := m.store.ActiveID()
	if conversationID == "" {
		return errors.BadRequest("no conversation selected", nil)
	}
	var failed *entity.Message
	for _, msg := range m.store.Messages(conversationID) {
		if msg.ID == tempID && msg.Status == entity.MessageStatusFailed {
			copied := msg
			failed = &copied
			break
		}
	}
	if failed == nil {
		return errors.NotFound("failed message", nil)
	}
	if allowed, wait := m.limiter.Allow("send_message"); !allowed {
		return errors.RateLimited("sending too fast, wait " + wait.Round(time.Second).String())
	}

	if !m.store.MarkPendingSending(conversationID, tempID) {
		return errors.NotFound("failed message", nil)
	}
	m.notify()

	conv, _ := m.store.Conversation(conversationID)
	go m.deliver(ctx, conversationID, tempID, failed.Content, failed.Type, conv.LastMessage, conv.LastMessageTime)
	return nil
}

func (m *Messenger) deliver(ctx context.Context, conversationID, tempID, content, messageType string, prevLast *entity.Message, prevTime time.Time) {
	confirmed, err := m.api.SendMessage(ctx, conversationID, content, messageType)
	if err != nil {
		logger.Warn("send failed for conversation %s: %v", conversationID, err)
		m.store.FailPending(conversationID, tempID, prevLast, prevTime)
		m.notify()
		return
	}
	m.store.ConfirmPending(conversationID, tempID, *confirmed)
	m.notify()
}

// newTempID fabricates a client-side placeholder id. The uuid suffix keeps
// two sends within the same millisecond distinct.
func newTempID() string {
	return fmt.Sprintf("%s%d-%s", entity.TempIDPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}
