package scylladb

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gocql/gocql"

	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
)

// Store implements chat.Store on Scylla. Messages cluster ascending on a
// timeuuid, which is exactly the (created_at, id) sort key the feed renders
// in, and the conversations_by_listing LWT insert carries the one
// conversation per (listing, buyer) invariant.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
}

func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	return &Store{session: session, logger: logger}
}

var errNoSession = errors.New("scylla session not initialized")

func (s *Store) GetOrCreateConversation(ctx context.Context, conv *domainchat.Conversation) (*domainchat.Conversation, bool, error) {
	if s.session == nil {
		return nil, false, errNoSession
	}
	id := gocql.TimeUUID()
	applied, err := s.session.
		Query(`INSERT INTO conversations_by_listing (listing_id, buyer_id, conversation_id) VALUES (?, ?, ?) IF NOT EXISTS`,
			string(conv.ListingID), conv.BuyerID, id).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		ScanCAS(nil, nil, nil)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		// lost the race or the thread already existed; read the winner
		var existing gocql.UUID
		if err := s.session.
			Query(`SELECT conversation_id FROM conversations_by_listing WHERE listing_id = ? AND buyer_id = ?`,
				string(conv.ListingID), conv.BuyerID).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Scan(&existing); err != nil {
			return nil, false, err
		}
		found, err := s.ConversationByID(ctx, domainchat.ConversationID(existing.String()))
		if err != nil {
			return nil, false, err
		}
		return found, false, nil
	}

	createdAt := conv.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	createdAt = createdAt.UTC()
	if err := s.session.
		Query(`INSERT INTO conversations (id, listing_id, buyer_id, seller_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			id, string(conv.ListingID), conv.BuyerID, conv.SellerID, createdAt).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, false, err
	}
	for _, participant := range []string{conv.BuyerID, conv.SellerID} {
		if err := s.session.
			Query(`INSERT INTO conversations_by_user (user_id, conversation_id) VALUES (?, ?)`, participant, id).
			WithContext(ctx).
			Consistency(gocql.Quorum).
			Exec(); err != nil {
			return nil, false, err
		}
	}
	created := *conv
	created.ID = domainchat.ConversationID(id.String())
	created.CreatedAt = createdAt
	return &created, true, nil
}

func (s *Store) ConversationByID(ctx context.Context, id domainchat.ConversationID) (*domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	uid, err := gocql.ParseUUID(strings.TrimSpace(string(id)))
	if err != nil {
		return nil, domainchat.ErrConversationNotFound
	}
	var (
		listingID string
		buyerID   string
		sellerID  string
		createdAt time.Time
	)
	if err := s.session.
		Query(`SELECT listing_id, buyer_id, seller_id, created_at FROM conversations WHERE id = ? LIMIT 1`, uid).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&listingID, &buyerID, &sellerID, &createdAt); err != nil {
		if err == gocql.ErrNotFound {
			return nil, domainchat.ErrConversationNotFound
		}
		return nil, err
	}
	return &domainchat.Conversation{
		ID:        id,
		ListingID: listings.ListingID(listingID),
		BuyerID:   buyerID,
		SellerID:  sellerID,
		CreatedAt: createdAt,
	}, nil
}

func (s *Store) ConversationsByUser(ctx context.Context, userID string) ([]domainchat.Conversation, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	iter := s.session.
		Query(`SELECT conversation_id FROM conversations_by_user WHERE user_id = ?`, userID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var ids []gocql.UUID
	var convID gocql.UUID
	for iter.Scan(&convID) {
		ids = append(ids, convID)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	conversations := make([]domainchat.Conversation, 0, len(ids))
	for _, id := range ids {
		conv, err := s.ConversationByID(ctx, domainchat.ConversationID(id.String()))
		if err != nil {
			if errors.Is(err, domainchat.ErrConversationNotFound) {
				continue
			}
			return nil, err
		}
		conversations = append(conversations, *conv)
	}
	return conversations, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *domainchat.Message) (*domainchat.Message, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	convID, err := gocql.ParseUUID(string(msg.ConversationID))
	if err != nil {
		return nil, domainchat.ErrConversationNotFound
	}
	messageID := gocql.TimeUUID()
	createdAt := messageID.Time().UTC()
	if err := s.session.
		Query(`INSERT INTO messages (conversation_id, message_id, sender_id, text, is_read, created_at) VALUES (?, ?, ?, ?, false, ?)`,
			convID, messageID, msg.SenderID, msg.Text, createdAt).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return nil, err
	}
	stored := *msg
	stored.ID = domainchat.MessageID(messageID.String())
	stored.Read = false
	stored.CreatedAt = createdAt
	return &stored, nil
}

func (s *Store) MessagesByConversation(ctx context.Context, id domainchat.ConversationID) ([]domainchat.Message, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	convID, err := gocql.ParseUUID(string(id))
	if err != nil {
		return nil, domainchat.ErrConversationNotFound
	}
	iter := s.session.
		Query(`SELECT message_id, sender_id, text, is_read, created_at FROM messages WHERE conversation_id = ?`, convID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	return s.collectMessages(iter, id)
}

func (s *Store) LastMessage(ctx context.Context, id domainchat.ConversationID) (*domainchat.Message, error) {
	if s.session == nil {
		return nil, errNoSession
	}
	convID, err := gocql.ParseUUID(string(id))
	if err != nil {
		return nil, domainchat.ErrConversationNotFound
	}
	var (
		messageID gocql.UUID
		senderID  string
		text      string
		isRead    bool
		createdAt time.Time
	)
	if err := s.session.
		Query(`SELECT message_id, sender_id, text, is_read, created_at FROM messages WHERE conversation_id = ? ORDER BY message_id DESC LIMIT 1`, convID).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&messageID, &senderID, &text, &isRead, &createdAt); err != nil {
		if err == gocql.ErrNotFound {
			return nil, domainchat.ErrMessageNotFound
		}
		return nil, err
	}
	return &domainchat.Message{
		ID:             domainchat.MessageID(messageID.String()),
		ConversationID: id,
		SenderID:       senderID,
		Text:           text,
		Read:           isRead,
		CreatedAt:      createdAt,
	}, nil
}

func (s *Store) MarkMessageRead(ctx context.Context, id domainchat.ConversationID, messageID domainchat.MessageID, readerID string) error {
	if s.session == nil {
		return errNoSession
	}
	convID, err := gocql.ParseUUID(string(id))
	if err != nil {
		return domainchat.ErrConversationNotFound
	}
	msgID, err := gocql.ParseUUID(string(messageID))
	if err != nil {
		return domainchat.ErrMessageNotFound
	}
	var senderID string
	if err := s.session.
		Query(`SELECT sender_id FROM messages WHERE conversation_id = ? AND message_id = ?`, convID, msgID).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&senderID); err != nil {
		if err == gocql.ErrNotFound {
			return domainchat.ErrMessageNotFound
		}
		return err
	}
	if senderID == readerID {
		return nil
	}
	return s.session.
		Query(`UPDATE messages SET is_read = true WHERE conversation_id = ? AND message_id = ?`, convID, msgID).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec()
}

func (s *Store) MarkConversationRead(ctx context.Context, id domainchat.ConversationID, readerID string) (int, error) {
	if s.session == nil {
		return 0, errNoSession
	}
	convID, err := gocql.ParseUUID(string(id))
	if err != nil {
		return 0, domainchat.ErrConversationNotFound
	}
	iter := s.session.
		Query(`SELECT message_id, sender_id, is_read FROM messages WHERE conversation_id = ?`, convID).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Iter()
	var (
		messageID gocql.UUID
		senderID  string
		isRead    bool
		pending   []gocql.UUID
	)
	for iter.Scan(&messageID, &senderID, &isRead) {
		if !isRead && senderID != readerID {
			pending = append(pending, messageID)
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}
	// all flips land on the same partition, so one unlogged batch replaces
	// a round trip per row
	batch := s.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
	batch.SetConsistency(gocql.Quorum)
	for _, msgID := range pending {
		batch.Query(`UPDATE messages SET is_read = true WHERE conversation_id = ? AND message_id = ?`, convID, msgID)
	}
	if err := s.session.ExecuteBatch(batch); err != nil {
		return 0, err
	}
	return len(pending), nil
}

func (s *Store) CountUnread(ctx context.Context, id domainchat.ConversationID, viewerID string) (int, error) {
	if s.session == nil {
		return 0, errNoSession
	}
	convID, err := gocql.ParseUUID(string(id))
	if err != nil {
		return 0, domainchat.ErrConversationNotFound
	}
	iter := s.session.
		Query(`SELECT sender_id, is_read FROM messages WHERE conversation_id = ?`, convID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()
	var (
		senderID string
		isRead   bool
		count    int
	)
	for iter.Scan(&senderID, &isRead) {
		if !isRead && senderID != viewerID {
			count++
		}
	}
	if err := iter.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CountUnreadForUser(ctx context.Context, viewerID string) (int, error) {
	conversations, err := s.ConversationsByUser(ctx, viewerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, conv := range conversations {
		count, err := s.CountUnread(ctx, conv.ID, viewerID)
		if err != nil {
			return 0, err
		}
		total += count
	}
	return total, nil
}

func (s *Store) collectMessages(iter *gocql.Iter, id domainchat.ConversationID) ([]domainchat.Message, error) {
	var (
		messageID gocql.UUID
		senderID  string
		text      string
		isRead    bool
		createdAt time.Time
	)
	messages := make([]domainchat.Message, 0)
	for iter.Scan(&messageID, &senderID, &text, &isRead, &createdAt) {
		messages = append(messages, domainchat.Message{
			ID:             domainchat.MessageID(messageID.String()),
			ConversationID: id,
			SenderID:       senderID,
			Text:           text,
			Read:           isRead,
			CreatedAt:      createdAt,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return messages, nil
}
