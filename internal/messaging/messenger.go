package messaging

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"valikoo/internal/adapter/rest"
	"valikoo/internal/domain/entity"
	"valikoo/internal/infrastructure/ratelimit"
	"valikoo/internal/infrastructure/realtime"
	"valikoo/pkg/errors"
	"valikoo/pkg/logger"
)

const historyPageSize = 200

// Messenger orchestrates the message store, the REST client and the realtime
// channel. All state mutations funnel through it: user commands on the caller
// goroutine, server events on the dispatch loop.
type Messenger struct {
	store    *Store
	api      *rest.Client
	channel  *realtime.Channel
	limiter  *ratelimit.Limiter
	validate *validator.Validate

	self entity.User

	// updates is a coalesced redraw signal for views.
	updates chan struct{}
}

func NewMessenger(api *rest.Client, channel *realtime.Channel, self entity.User) *Messenger {
	return &Messenger{
		store:    NewStore(self.ID),
		api:      api,
		channel:  channel,
		limiter:  ratelimit.NewLimiter(),
		validate: validator.New(),
		self:     self,
		updates:  make(chan struct{}, 1),
	}
}

// Store exposes read-only snapshots for views.
func (m *Messenger) Store() *Store {
	return m.store
}

func (m *Messenger) Self() entity.User {
	return m.self
}

// Updates signals that a snapshot changed. Consecutive changes coalesce.
func (m *Messenger) Updates() <-chan struct{} {
	return m.updates
}

// Run drives the realtime channel and the event dispatch loop until ctx is
// cancelled.
func (m *Messenger) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := m.channel.Run(ctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})
	g.Go(func() error {
		m.dispatch(ctx)
		return nil
	})
	return g.Wait()
}

func (m *Messenger) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-m.channel.Events():
			m.handleEvent(ctx, event)
			m.notify()
		case <-m.channel.Statuses():
			m.notify()
		}
	}
}

func (m *Messenger) handleEvent(ctx context.Context, event realtime.Event) {
	switch e := event.(type) {
	case realtime.NewMessage:
		m.handleNewMessage(ctx, e)
	case realtime.ReadReceipt:
		m.store.MarkRead(e.ConversationID, e.MessageID, e.All)
	case realtime.ProductUpdate:
		m.store.AddNotification(e.Notification)
	}
}

func (m *Messenger) handleNewMessage(ctx context.Context, e realtime.NewMessage) {
	if _, known := m.store.Conversation(e.ConversationID); !known {
		// A brand-new conversation: refresh the list so the summary appears.
		if convs, err := m.api.ListConversations(ctx); err == nil {
			m.store.ApplyConversations(m.filterForRole(convs))
		} else {
			logger.Warn("conversation refresh after new_message failed: %v", err)
		}
	}

	m.store.AppendMessage(e.ConversationID, e.Message)

	// Messages landing in the open conversation are read immediately; echo a
	// receipt so the sender's checkmarks update.
	if m.store.ActiveID() == e.ConversationID && !entity.SameID(e.Message.SenderID, m.self.ID) {
		m.store.MarkRead(e.ConversationID, "", true)
		m.api.MarkRead(ctx, e.ConversationID)
		if err := m.channel.SendReadReceipt(e.ConversationID, "", true); err != nil {
			logger.Debug("read receipt not sent: %v", err)
		}
	}
}

// LoadConversations fetches the conversation list and picks the initial
// selection: targetID when it is in the list, a direct fetch of targetID when
// it is not, otherwise the first conversation, otherwise none. On failure the
// existing state is left alone and the typed error returned.
func (m *Messenger) LoadConversations(ctx context.Context, targetID string) error {
	convs, err := m.api.ListConversations(ctx)
	if err != nil {
		return err
	}
	m.store.ApplyConversations(m.filterForRole(convs))
	defer m.notify()

	if targetID != "" {
		if _, ok := m.store.Conversation(targetID); ok {
			return m.Select(ctx, targetID)
		}
		conv, msgs, err := m.api.GetConversation(ctx, targetID)
		if err == nil {
			m.store.UpsertConversation(*conv)
			if msgs != nil {
				gen := m.store.BeginFetch(targetID)
				m.store.ApplyMessages(targetID, gen, msgs)
			}
			return m.Select(ctx, targetID)
		}
		logger.Warn("target conversation %s not reachable: %v", targetID, err)
	}

	if convs := m.store.Conversations(); len(convs) > 0 {
		return m.Select(ctx, convs[0].ID)
	}
	m.store.SetActive("")
	return nil
}

// Select switches the active conversation: unread zeroes immediately, the
// history is refetched under a fresh generation, and mark-read goes out both
// over REST and the realtime channel. A stale in-flight fetch for a
// previously active conversation can no longer land here, its generation is
// behind.
func (m *Messenger) Select(ctx context.Context, conversationID string) error {
	if conversationID == "" {
		m.store.SetActive("")
		m.notify()
		return nil
	}
	if _, ok := m.store.Conversation(conversationID); !ok {
		return errors.NotFound("conversation", nil)
	}

	generation := m.store.BeginFetch(conversationID)
	m.store.SetActive(conversationID)
	m.notify()

	msgs, err := m.api.Messages(ctx, conversationID, 1, historyPageSize)
	if err != nil {
		return err
	}
	if applied := m.store.ApplyMessages(conversationID, generation, msgs); !applied {
		return nil
	}
	// The refetch resurrects server-side read states; the active conversation
	// is being looked at, so it reads as read.
	m.store.MarkRead(conversationID, "", true)
	m.notify()

	m.api.MarkRead(ctx, conversationID)
	if err := m.channel.SendReadReceipt(conversationID, "", true); err != nil {
		logger.Debug("read receipt not sent: %v", err)
	}
	return nil
}

// StartConversation opens (or resumes) a thread with recipientID about a
// product and selects it.
func (m *Messenger) StartConversation(ctx context.Context, recipientID, productID string) (*entity.Conversation, error) {
	if allowed, wait := m.limiter.Allow("create_conversation"); !allowed {
		return nil, errors.RateLimited("too many new conversations, wait " + wait.Round(time.Second).String())
	}
	conv, err := m.api.CreateConversation(ctx, recipientID, productID)
	if err != nil {
		return nil, err
	}
	m.store.UpsertConversation(*conv)
	if err := m.Select(ctx, conv.ID); err != nil {
		return conv, err
	}
	return conv, nil
}

// filterForRole mirrors the client-side safeguard the web UI applied on top
// of server filtering: travelers only see product-anchored conversations.
func (m *Messenger) filterForRole(convs []entity.Conversation) []entity.Conversation {
	if m.self.Role != entity.RoleTraveler {
		return convs
	}
	filtered := convs[:0]
	for _, conv := range convs {
		if conv.Product != nil {
			filtered = append(filtered, conv)
		}
	}
	return filtered
}

func (m *Messenger) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}
