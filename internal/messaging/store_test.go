package messaging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"valikoo/internal/domain/entity"
)

func seededStore() *Store {
	s := NewStore("me")
	s.ApplyConversations([]entity.Conversation{
		{ID: "a", Other: entity.Participant{ID: "u2"}, UnreadCount: 1, LastMessageTime: time.Now().Add(-time.Hour)},
		{ID: "b", Other: entity.Participant{ID: "u3"}, UnreadCount: 2, LastMessageTime: time.Now().Add(-2 * time.Hour)},
	})
	return s
}

func msg(id, sender, content, status string) entity.Message {
	return entity.Message{ID: id, SenderID: sender, Content: content, Type: entity.MessageTypeText, Status: status, Timestamp: time.Now().UTC()}
}

func TestStaleFetchGenerationDropped(t *testing.T) {
	s := seededStore()

	stale := s.BeginFetch("a")
	fresh := s.BeginFetch("a")

	assert.True(t, s.ApplyMessages("a", fresh, []entity.Message{msg("m2", "u2", "new", "delivered")}))
	assert.False(t, s.ApplyMessages("a", stale, []entity.Message{msg("m1", "u2", "old", "delivered")}))

	msgs := s.Messages("a")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "m2", msgs[0].ID)
}

func TestNoCrossConversationLeakage(t *testing.T) {
	s := seededStore()

	genA := s.BeginFetch("a")
	genB := s.BeginFetch("b")
	s.ApplyMessages("b", genB, []entity.Message{msg("mb", "u3", "for b", "delivered")})
	// A slow response for a lands after b was opened; it must only touch a.
	s.ApplyMessages("a", genA, []entity.Message{msg("ma", "u2", "for a", "delivered")})

	for _, m := range s.Messages("b") {
		assert.NotEqual(t, "ma", m.ID)
	}
	for _, m := range s.Messages("a") {
		assert.NotEqual(t, "mb", m.ID)
	}
}

func TestConfirmThenEchoYieldsOneMessage(t *testing.T) {
	s := seededStore()
	gen := s.BeginFetch("a")
	s.ApplyMessages("a", gen, nil)

	pending := msg("temp-1-abc", "me", "hello", entity.MessageStatusSending)
	s.AppendPending("a", pending)

	confirmed := msg("srv-9", "me", "hello", entity.MessageStatusDelivered)
	s.ConfirmPending("a", pending.ID, confirmed)

	// Realtime echo of the same message arrives afterwards.
	s.AppendMessage("a", confirmed)

	msgs := s.Messages("a")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "srv-9", msgs[0].ID)
	assert.Equal(t, entity.MessageStatusDelivered, msgs[0].Status)
}

func TestEchoThenConfirmYieldsOneMessage(t *testing.T) {
	s := seededStore()
	gen := s.BeginFetch("a")
	s.ApplyMessages("a", gen, nil)

	pending := msg("temp-2-def", "me", "hello", entity.MessageStatusSending)
	s.AppendPending("a", pending)

	// Echo lands before the POST returns: it adopts the pending entry.
	echoed := msg("srv-10", "me", "hello", entity.MessageStatusDelivered)
	s.AppendMessage("a", echoed)
	s.ConfirmPending("a", pending.ID, echoed)

	msgs := s.Messages("a")
	assert.Len(t, msgs, 1)
	assert.Equal(t, "srv-10", msgs[0].ID)
}

func TestFailPendingRollsBackSummary(t *testing.T) {
	s := seededStore()
	gen := s.BeginFetch("a")
	last := msg("m0", "u2", "before", entity.MessageStatusRead)
	s.ApplyMessages("a", gen, []entity.Message{last})
	s.MarkRead("a", "", true)

	before, _ := s.Conversation("a")

	pending := msg("temp-3-ghi", "me", "doomed", entity.MessageStatusSending)
	prevLast, prevTime := s.AppendPending("a", pending)

	during, _ := s.Conversation("a")
	assert.Equal(t, "doomed", during.LastMessage.Content)

	s.FailPending("a", pending.ID, prevLast, prevTime)

	after, _ := s.Conversation("a")
	assert.Equal(t, before.LastMessage.Content, after.LastMessage.Content)
	assert.True(t, before.LastMessageTime.Equal(after.LastMessageTime))

	msgs := s.Messages("a")
	assert.Len(t, msgs, 2)
	assert.Equal(t, entity.MessageStatusFailed, msgs[1].Status)
}

func TestPendingSurvivesRefetch(t *testing.T) {
	s := seededStore()
	gen := s.BeginFetch("a")
	s.ApplyMessages("a", gen, nil)

	pending := msg("temp-4-jkl", "me", "in flight", entity.MessageStatusSending)
	s.AppendPending("a", pending)

	// A refetch that does not know about the in-flight send yet.
	gen = s.BeginFetch("a")
	s.ApplyMessages("a", gen, []entity.Message{msg("m1", "u2", "hi", "delivered")})

	var found bool
	for _, m := range s.Messages("a") {
		if m.ID == pending.ID {
			found = true
		}
	}
	assert.True(t, found, "pending optimistic message must survive a refetch")
}

func TestUnreadRecomputedFromCacheOnly(t *testing.T) {
	s := seededStore()

	// Server seed is visible before the cache is populated.
	assert.Equal(t, 1, s.Unread("a"))

	gen := s.BeginFetch("a")
	s.ApplyMessages("a", gen, []entity.Message{
		msg("m1", "u2", "one", entity.MessageStatusDelivered),
		msg("m2", "u2", "two", entity.MessageStatusDelivered),
		msg("m3", "me", "mine", entity.MessageStatusDelivered),
	})
	assert.Equal(t, 2, s.Unread("a"))

	s.AppendMessage("a", msg("m4", "u2", "three", entity.MessageStatusDelivered))
	assert.Equal(t, 3, s.Unread("a"))

	s.MarkRead("a", "m1", false)
	assert.Equal(t, 2, s.Unread("a"))
}

func TestReadReceiptAllScopedToOneConversation(t *testing.T) {
	s := seededStore()
	genA := s.BeginFetch("a")
	s.ApplyMessages("a", genA, []entity.Message{
		msg("m1", "u2", "x", entity.MessageStatusDelivered),
		msg("m2", "me", "y", entity.MessageStatusDelivered),
	})
	genB := s.BeginFetch("b")
	s.ApplyMessages("b", genB, []entity.Message{
		msg("m3", "u3", "z", entity.MessageStatusDelivered),
	})

	s.MarkRead("a", "", true)

	for _, m := range s.Messages("a") {
		assert.Equal(t, entity.MessageStatusRead, m.Status)
	}
	assert.Equal(t, 0, s.Unread("a"))
	assert.Equal(t, 1, s.Unread("b"))
}

func TestSetActiveZeroesUnreadBeforeFetch(t *testing.T) {
	s := seededStore()
	// No cache yet: the seeded server count is zeroed optimistically.
	s.SetActive("b")
	assert.Equal(t, 0, s.Unread("b"))
}

func TestNotificationFeedCapped(t *testing.T) {
	s := NewStore("me")
	for i := 0; i < notificationCap+25; i++ {
		s.AddNotification(entity.Notification{ID: "n", Action: "created"})
	}
	assert.Len(t, s.Notifications(), notificationCap)
}

func TestConversationsOrderedByActivity(t *testing.T) {
	s := seededStore()
	gen := s.BeginFetch("b")
	s.ApplyMessages("b", gen, nil)

	s.AppendMessage("b", msg("m9", "u3", "newest", entity.MessageStatusDelivered))

	convs := s.Conversations()
	assert.Equal(t, "b", convs[0].ID)
}
