package chat

import "context"

// Store is the durable conversation/message store. Implementations must keep
// message order stable under the (created_at, id) sort key and must resolve
// concurrent GetOrCreateConversation calls for the same (listing, buyer) pair
// to a single conversation.
type Store interface {
	// GetOrCreateConversation returns the existing thread for the
	// conversation's (listing, buyer) pair or persists the given one. The
	// bool reports whether a new thread was created.
	GetOrCreateConversation(ctx context.Context, conv *Conversation) (*Conversation, bool, error)
	ConversationByID(ctx context.Context, id ConversationID) (*Conversation, error)
	ConversationsByUser(ctx context.Context, userID string) ([]Conversation, error)

	// AppendMessage persists a draft and returns the durable record with the
	// store-assigned id and authoritative timestamp.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)
	// MessagesByConversation returns the full history in ascending creation
	// order, the backfill read.
	MessagesByConversation(ctx context.Context, id ConversationID) ([]Message, error)
	LastMessage(ctx context.Context, id ConversationID) (*Message, error)

	// MarkMessageRead flips one message's read flag unless readerID sent it.
	MarkMessageRead(ctx context.Context, id ConversationID, messageID MessageID, readerID string) error
	// MarkConversationRead flips every unread message not sent by readerID
	// and returns how many rows changed. Safe to call repeatedly.
	MarkConversationRead(ctx context.Context, id ConversationID, readerID string) (int, error)

	CountUnread(ctx context.Context, id ConversationID, viewerID string) (int, error)
	// CountUnreadForUser recomputes the global badge across every
	// conversation the viewer participates in.
	CountUnreadForUser(ctx context.Context, viewerID string) (int, error)
}
