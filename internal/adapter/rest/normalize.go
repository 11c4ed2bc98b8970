package rest

import (
	"encoding/json"

	"valikoo/internal/domain/entity"
	"valikoo/pkg/errors"
)

// Envelope probing lives here and field-level tolerance lives on the entity
// decoders; between the two, nothing past this package ever inspects response
// shapes. The backend wraps the same payloads differently per endpoint:
// message lists as {"messages": []} or a bare array, sent messages under
// "message" or "data" or raw, product lists under "products" or "results".

// decodeConversations accepts a bare array or a {"conversations"|"data": []}
// envelope.
func decodeConversations(raw json.RawMessage) ([]entity.Conversation, error) {
	var list []entity.Conversation
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var envelope struct {
		Conversations []entity.Conversation `json:"conversations"`
		Data          []entity.Conversation `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Decode("unrecognized conversation list shape", err)
	}
	if envelope.Conversations != nil {
		return envelope.Conversations, nil
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	return []entity.Conversation{}, nil
}

// decodeMessages accepts {"messages": []} (the paginated envelope) or a bare
// array.
func decodeMessages(raw json.RawMessage) ([]entity.Message, error) {
	var envelope struct {
		Messages []entity.Message `json:"messages"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Messages != nil {
		return envelope.Messages, nil
	}
	var list []entity.Message
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, errors.Decode("unrecognized message list shape", err)
	}
	return list, nil
}

// decodeSentMessage accepts {"message": {}}, {"data": {}} or the raw message
// object.
func decodeSentMessage(raw json.RawMessage) (*entity.Message, error) {
	var envelope struct {
		Message *entity.Message `json:"message"`
		Data    *entity.Message `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Message != nil && envelope.Message.ID != "" {
			return envelope.Message, nil
		}
		if envelope.Data != nil && envelope.Data.ID != "" {
			return envelope.Data, nil
		}
	}
	var msg entity.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Decode("unrecognized sent message shape", err)
	}
	if msg.ID == "" {
		return nil, errors.Decode("sent message carries no id", nil)
	}
	return &msg, nil
}

// decodeProducts accepts {"products"|"results": []} or a bare array.
func decodeProducts(raw json.RawMessage) ([]entity.Product, error) {
	var list []entity.Product
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var envelope struct {
		Products []entity.Product `json:"products"`
		Results  []entity.Product `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, errors.Decode("unrecognized product list shape", err)
	}
	if envelope.Products != nil {
		return envelope.Products, nil
	}
	return envelope.Results, nil
}
