package messaging

import (
	"sort"
	"sync"
	"time"

	"valikoo/internal/domain/entity"
)

// notificationCap bounds the session notification feed. The web client let it
// grow for the whole session; a long-lived terminal client cannot.
const notificationCap = 200

// Store holds the conversation list, the per-conversation message cache and
// the session notification feed. Slots are strictly isolated per conversation
// and every fetch carries a generation number so a slow response for a
// conversation the user has already left cannot overwrite newer data.
//
// Unread counts have exactly one authoritative source: ComputeUnread over the
// cache, re-run after every mutation. The server-computed count only seeds a
// conversation until its cache slot is first populated.
type Store struct {
	mu     sync.RWMutex
	selfID string

	conversations []entity.Conversation
	activeID      string

	messages    map[string][]entity.Message
	fetched     map[string]bool
	generations map[string]uint64

	notifications []entity.Notification
}

func NewStore(selfID string) *Store {
	return &Store{
		selfID:      selfID,
		messages:    make(map[string][]entity.Message),
		fetched:     make(map[string]bool),
		generations: make(map[string]uint64),
	}
}

// ApplyConversations replaces the conversation list. Locally-computed unread
// counts survive the replace for conversations whose cache is populated.
func (s *Store) ApplyConversations(list []entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversations = make([]entity.Conversation, len(list))
	copy(s.conversations, list)
	s.sortConversations()
	s.resyncUnread()
}

// UpsertConversation inserts or updates a single conversation summary.
func (s *Store) UpsertConversation(conv entity.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.conversations {
		if s.conversations[i].ID == conv.ID {
			s.conversations[i] = conv
			s.sortConversations()
			s.resyncUnread()
			return
		}
	}
	s.conversations = append(s.conversations, conv)
	s.sortConversations()
	s.resyncUnread()
}

// BeginFetch bumps and returns the fetch generation for a conversation.
// ApplyMessages calls carrying an older generation are discarded.
func (s *Store) BeginFetch(conversationID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[conversationID]++
	return s.generations[conversationID]
}

// ApplyMessages replaces a conversation's cache slot with a fetched history.
// Stale responses (older generation) are dropped. Optimistic messages still
// pending or failed in the old slot are carried over so a send racing a
// refetch is not silently lost.
func (s *Store) ApplyMessages(conversationID string, generation uint64, msgs []entity.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation < s.generations[conversationID] {
		return false
	}

	next := make([]entity.Message, len(msgs))
	copy(next, msgs)

	seen := make(map[string]bool, len(next))
	for i := range next {
		seen[next[i].ID] = true
	}
	for _, old := range s.messages[conversationID] {
		if (old.Status == entity.MessageStatusSending || old.Status == entity.MessageStatusFailed) && !seen[old.ID] {
			next = append(next, old)
		}
	}

	s.messages[conversationID] = next
	s.fetched[conversationID] = true
	s.resyncUnread()
	return true
}

// AppendMessage adds a realtime-delivered message, deduplicating against both
// server ids already present and a pending optimistic entry it may echo.
func (s *Store) AppendMessage(conversationID string, msg entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.messages[conversationID]
	for i := range slot {
		if slot[i].ID == msg.ID && msg.ID != "" {
			return
		}
	}

	// An echo of our own in-flight send: adopt the server message in place of
	// the pending entry instead of appending a duplicate.
	if entity.SameID(msg.SenderID, s.selfID) {
		for i := range slot {
			if slot[i].IsPending() && slot[i].Status == entity.MessageStatusSending && slot[i].Content == msg.Content {
				slot[i] = msg
				s.messages[conversationID] = slot
				s.touchSummary(conversationID, msg)
				s.resyncUnread()
				return
			}
		}
	}

	s.messages[conversationID] = append(slot, msg)
	s.touchSummary(conversationID, msg)
	s.resyncUnread()
}

// AppendPending inserts an optimistic message and updates the conversation
// summary, returning the previous summary for rollback on failure.
func (s *Store) AppendPending(conversationID string, msg entity.Message) (prevLast *entity.Message, prevTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages[conversationID] = append(s.messages[conversationID], msg)
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			prevLast = s.conversations[i].LastMessage
			prevTime = s.conversations[i].LastMessageTime
		}
	}
	s.touchSummary(conversationID, msg)
	s.resyncUnread()
	return prevLast, prevTime
}

// ConfirmPending swaps a temp entry for the server-confirmed message. If a
// realtime echo already delivered the confirmed id, the temp entry is removed
// instead, so confirmation and echo together still yield one message.
func (s *Store) ConfirmPending(conversationID, tempID string, confirmed entity.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.messages[conversationID]
	echoed := false
	for i := range slot {
		if slot[i].ID == confirmed.ID {
			echoed = true
			break
		}
	}

	for i := range slot {
		if slot[i].ID != tempID {
			continue
		}
		if echoed {
			s.messages[conversationID] = append(slot[:i], slot[i+1:]...)
		} else {
			slot[i] = confirmed
		}
		break
	}
	s.touchSummary(conversationID, confirmed)
	s.resyncUnread()
}

// FailPending flips a temp entry to failed and rolls the conversation summary
// back to what it showed before the optimistic update.
func (s *Store) FailPending(conversationID, tempID string, prevLast *entity.Message, prevTime time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.messages[conversationID]
	for i := range slot {
		if slot[i].ID == tempID {
			slot[i].Status = entity.MessageStatusFailed
			break
		}
	}
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			s.conversations[i].LastMessage = prevLast
			s.conversations[i].LastMessageTime = prevTime
		}
	}
	s.sortConversations()
	s.resyncUnread()
}

// MarkPendingSending re-flags a failed message for a resend attempt.
func (s *Store) MarkPendingSending(conversationID, tempID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.messages[conversationID]
	for i := range slot {
		if slot[i].ID == tempID && slot[i].Status == entity.MessageStatusFailed {
			slot[i].Status = entity.MessageStatusSending
			return true
		}
	}
	return false
}

// MarkRead marks messages of one conversation read: all of them, or one by
// id. Other conversations are untouched.
func (s *Store) MarkRead(conversationID, messageID string, all bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.messages[conversationID]
	for i := range slot {
		if all || slot[i].ID == messageID {
			if slot[i].Status != entity.MessageStatusSending && slot[i].Status != entity.MessageStatusFailed {
				slot[i].Status = entity.MessageStatusRead
			}
		}
	}
	if !s.fetched[conversationID] {
		// No cache to recompute from; zero the seeded count directly.
		for i := range s.conversations {
			if s.conversations[i].ID == conversationID && all {
				s.conversations[i].UnreadCount = 0
			}
		}
	}
	s.resyncUnread()
}

// SetActive switches the active conversation and marks it read locally, the
// optimistic half of the mark-read round trip.
func (s *Store) SetActive(conversationID string) {
	s.mu.Lock()
	s.activeID = conversationID
	s.mu.Unlock()
	if conversationID != "" {
		s.MarkRead(conversationID, "", true)
	}
}

func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// AddNotification appends to the session feed, evicting the oldest entry past
// the cap.
func (s *Store) AddNotification(n entity.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append(s.notifications, n)
	if len(s.notifications) > notificationCap {
		s.notifications = s.notifications[len(s.notifications)-notificationCap:]
	}
}

// Conversations returns a copy of the list, ordered newest first.
func (s *Store) Conversations() []entity.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func (s *Store) Conversation(conversationID string) (entity.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			return s.conversations[i], true
		}
	}
	return entity.Conversation{}, false
}

// Messages returns a copy of one conversation's cache slot.
func (s *Store) Messages(conversationID string) []entity.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot := s.messages[conversationID]
	out := make([]entity.Message, len(slot))
	copy(out, slot)
	return out
}

func (s *Store) Fetched(conversationID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetched[conversationID]
}

func (s *Store) Notifications() []entity.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Unread returns the current count for one conversation.
func (s *Store) Unread(conversationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.conversations {
		if s.conversations[i].ID == conversationID {
			return s.conversations[i].UnreadCount
		}
	}
	return 0
}

// touchSummary updates a conversation's last-message fields if msg is newer.
// Callers hold the lock.
func (s *Store) touchSummary(conversationID string, msg entity.Message) {
	for i := range s.conversations {
		if s.conversations[i].ID != conversationID {
			continue
		}
		if msg.Timestamp.Before(s.conversations[i].LastMessageTime) {
			return
		}
		copied := msg
		s.conversations[i].LastMessage = &copied
		s.conversations[i].LastMessageTime = msg.Timestamp
		break
	}
	s.sortConversations()
}

// sortConversations keeps newest activity on top. Callers hold the lock.
func (s *Store) sortConversations() {
	sort.SliceStable(s.conversations, func(i, j int) bool {
		return s.conversations[i].LastMessageTime.After(s.conversations[j].LastMessageTime)
	})
}

// resyncUnread is the single authoritative unread recomputation. Callers hold
// the lock.
func (s *Store) resyncUnread() {
	counts := ComputeUnread(s.messages, s.selfID)
	for i := range s.conversations {
		if s.fetched[s.conversations[i].ID] {
			s.conversations[i].UnreadCount = counts[s.conversations[i].ID]
		}
	}
}
