package chatview

import (
	"context"

	"filmtorget/internal/chat"
	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/reviews"
)

// stubService lets a test script individual calls; unset methods return
// zero values.
type stubService struct {
	openConversationFn func(ctx context.Context, viewerID string, listingID listings.ListingID) (*domainchat.Conversation, error)
	messagesFn         func(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) ([]domainchat.Message, error)
	sendFn             func(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, text string) (*domainchat.Message, error)
	markReadFn         func(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (int, error)
	markMessageReadFn  func(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, messageID domainchat.MessageID) error
	unreadBadgeFn      func(ctx context.Context, viewerID string) (int, error)
}

func (s *stubService) OpenConversation(ctx context.Context, viewerID string, listingID listings.ListingID) (*domainchat.Conversation, error) {
	if s.openConversationFn != nil {
		return s.openConversationFn(ctx, viewerID, listingID)
	}
	return &domainchat.Conversation{}, nil
}

func (s *stubService) Directory(ctx context.Context, viewerID string) ([]chat.DirectoryEntry, error) {
	return nil, nil
}

func (s *stubService) Session(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (*chat.SessionView, error) {
	return &chat.SessionView{}, nil
}

func (s *stubService) Messages(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	if s.messagesFn != nil {
		return s.messagesFn(ctx, viewerID, conversationID)
	}
	return nil, nil
}

func (s *stubService) Send(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, text string) (*domainchat.Message, error) {
	if s.sendFn != nil {
		return s.sendFn(ctx, viewerID, conversationID, text)
	}
	return &domainchat.Message{}, nil
}

func (s *stubService) MarkRead(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (int, error) {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, viewerID, conversationID)
	}
	return 0, nil
}

func (s *stubService) MarkMessageRead(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, messageID domainchat.MessageID) error {
	if s.markMessageReadFn != nil {
		return s.markMessageReadFn(ctx, viewerID, conversationID, messageID)
	}
	return nil
}

func (s *stubService) UnreadBadge(ctx context.Context, viewerID string) (int, error) {
	if s.unreadBadgeFn != nil {
		return s.unreadBadgeFn(ctx, viewerID)
	}
	return 0, nil
}

func (s *stubService) MarkSold(ctx context.Context, viewerID string, listingID listings.ListingID) (*listings.Listing, error) {
	return &listings.Listing{}, nil
}

func (s *stubService) SubmitReview(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, rating int, comment string) (*reviews.Review, error) {
	return &reviews.Review{}, nil
}

var _ ChatService = (*stubService)(nil)
