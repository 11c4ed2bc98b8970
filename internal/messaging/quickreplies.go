package messaging

import "fmt"

// QuickReplies returns the canned openers shown in the empty state of a
// product-anchored conversation. A conversation with history, or without a
// product, gets none.
func (m *Messenger) QuickReplies(conversationID string) []string {
	if len(m.store.Messages(conversationID)) > 0 {
		return nil
	}
	conv, ok := m.store.Conversation(conversationID)
	if !ok || conv.Product == nil || conv.Product.Title == "" {
		return nil
	}
	title := conv.Product.Title
	return []string{
		fmt.Sprintf("Hi! Is \"%s\" still available?", title),
		fmt.Sprintf("When could you deliver \"%s\"?", title),
		fmt.Sprintf("Could you share more details about \"%s\"?", title),
	}
}
