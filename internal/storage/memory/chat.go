package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
)

type pairKey struct {
	listing listings.ListingID
	buyer   string
}

// ChatStore keeps conversations and messages in memory. Not suitable for
// production.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[domainchat.ConversationID]*domainchat.Conversation
	byPair        map[pairKey]domainchat.ConversationID
	messages      map[domainchat.ConversationID][]*domainchat.Message
	lastStamp     map[domainchat.ConversationID]time.Time
}

func NewChatStore() *ChatStore {
	return &ChatStore{
		conversations: make(map[domainchat.ConversationID]*domainchat.Conversation),
		byPair:        make(map[pairKey]domainchat.ConversationID),
		messages:      make(map[domainchat.ConversationID][]*domainchat.Message),
		lastStamp:     make(map[domainchat.ConversationID]time.Time),
	}
}

func (s *ChatStore) GetOrCreateConversation(ctx context.Context, conv *domainchat.Conversation) (*domainchat.Conversation, bool, error) {
	if conv == nil {
		return nil, false, domainchat.ErrConversationNotFound
	}
	key := pairKey{listing: conv.ListingID, buyer: conv.BuyerID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byPair[key]; ok {
		return cloneConversation(s.conversations[id]), false, nil
	}
	stored := *conv
	if stored.ID == "" {
		stored.ID = domainchat.ConversationID(uuid.NewString())
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.conversations[stored.ID] = &stored
	s.byPair[key] = stored.ID
	return cloneConversation(&stored), true, nil
}

func (s *ChatStore) ConversationByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if conv, ok := s.conversations[id]; ok {
		return cloneConversation(conv), nil
	}
	return nil, domainchat.ErrConversationNotFound
}

func (s *ChatStore) ConversationsByUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domainchat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.HasParticipant(userID) {
			out = append(out, *cloneConversation(conv))
		}
	}
	return out, nil
}

func (s *ChatStore) AppendMessage(ctx context.Context, msg *domainchat.Message) (*domainchat.Message, error) {
	if msg == nil {
		return nil, domainchat.ErrMessageNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	stored := *msg
	stored.ID = domainchat.MessageID(uuid.NewString())
	stored.Read = false

	// Keep creation timestamps non-decreasing per conversation so the
	// (created_at, id) sort key is a total insertion order.
	now := time.Now().UTC()
	if last := s.lastStamp[msg.ConversationID]; now.Before(last) {
		now = last
	}
	stored.CreatedAt = now
	s.lastStamp[msg.ConversationID] = now

	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &stored)
	return cloneMessage(&stored), nil
}

func (s *ChatStore) MessagesByConversation(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.conversations[id]; !ok {
		return nil, domainchat.ErrConversationNotFound
	}
	seq := s.messages[id]
	out := make([]domainchat.Message, 0, len(seq))
	for _, msg := range seq {
		out = append(out, *cloneMessage(msg))
	}
	return out, nil
}

func (s *ChatStore) LastMessage(ctx context.Context, id domainchat.ConversationID) (*domainchat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seq := s.messages[id]
	if len(seq) == 0 {
		return nil, domainchat.ErrMessageNotFound
	}
	return cloneMessage(seq[len(seq)-1]), nil
}

func (s *ChatStore) MarkMessageRead(ctx context.Context, id domainchat.ConversationID, messageID domainchat.MessageID, readerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range s.messages[id] {
		if msg.ID == messageID {
			if msg.SenderID != readerID {
				msg.Read = true
			}
			return nil
		}
	}
	return domainchat.ErrMessageNotFound
}

func (s *ChatStore) MarkConversationRead(ctx context.Context, id domainchat.ConversationID, readerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return 0, domainchat.ErrConversationNotFound
	}
	flipped := 0
	for _, msg := range s.messages[id] {
		if !msg.Read && msg.SenderID != readerID {
			msg.Read = true
			flipped++
		}
	}
	return flipped, nil
}

func (s *ChatStore) CountUnread(ctx context.Context, id domainchat.ConversationID, viewerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countUnreadLocked(id, viewerID), nil
}

func (s *ChatStore) CountUnreadForUser(ctx context.Context, viewerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for id, conv := range s.conversations {
		if conv.HasParticipant(viewerID) {
			total += s.countUnreadLocked(id, viewerID)
		}
	}
	return total, nil
}

func (s *ChatStore) countUnreadLocked(id domainchat.ConversationID, viewerID string) int {
	count := 0
	for _, msg := range s.messages[id] {
		if !msg.Read && msg.SenderID != viewerID {
			count++
		}
	}
	return count
}

func cloneConversation(c *domainchat.Conversation) *domainchat.Conversation {
	if c == nil {
		return nil
	}
	copied := *c
	return &copied
}

func cloneMessage(m *domainchat.Message) *domainchat.Message {
	if m == nil {
		return nil
	}
	copied := *m
	return &copied
}
