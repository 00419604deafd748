package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	domainchat "filmtorget/internal/domain/chat"
)

const defaultBuffer = 64

// Hub fans change-feed events out to live subscribers. A subscription is
// either scoped to one conversation or a firehose over the whole message
// store (the unread-badge case). Every open conversation view holds exactly
// one subscription and must release it on teardown.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{subs: make(map[uint64]*Subscription), logger: logger}
}

// Subscription delivers events on C until Close. After Close returns no
// further event is delivered and C is closed.
type Subscription struct {
	hub            *Hub
	id             uint64
	conversationID domainchat.ConversationID
	ch             chan Event
	closeOnce      sync.Once
	lagged         atomic.Bool
}

func (s *Subscription) C() <-chan Event { return s.ch }

// Lagged reports whether delivery was dropped since the last call and clears
// the flag. A lagged subscriber has a gap and must resynchronize from the
// store.
func (s *Subscription) Lagged() bool {
	return s.lagged.Swap(false)
}

// Close releases the subscription synchronously.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s.id)
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

// Subscribe registers for insert events in one conversation.
func (h *Hub) Subscribe(conversationID domainchat.ConversationID) *Subscription {
	return h.subscribe(conversationID)
}

// SubscribeAll registers for insert events anywhere in the store.
func (h *Hub) SubscribeAll() *Subscription {
	return h.subscribe("")
}

func (h *Hub) subscribe(conversationID domainchat.ConversationID) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{
		hub:            h,
		id:             h.nextID,
		conversationID: conversationID,
		ch:             make(chan Event, defaultBuffer),
	}
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers the event to every matching subscriber. Delivery never
// blocks the publisher: a subscriber whose buffer is full misses the event,
// is flagged as lagged and has to resynchronize from the store.
func (h *Hub) Publish(ctx context.Context, event Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.conversationID != "" && sub.conversationID != event.Message.ConversationID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			sub.lagged.Store(true)
			if h.logger != nil {
				h.logger.Warn("feed subscriber lagging, event skipped",
					"conversation_id", event.Message.ConversationID, "event_id", event.ID)
			}
		}
	}
	return nil
}

// SubscriberCount reports how many subscriptions are currently open.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var _ Publisher = (*Hub)(nil)
