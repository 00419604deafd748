// Package chatview is the client core of the messenger: the pieces a
// frontend binds to. A Client wraps the chat service for request/response
// calls and hands out live components (Feed, Sender, ReadTracker) that stay
// subscribed to the change feed until closed.
package chatview

import (
	"context"

	"filmtorget/internal/chat"
	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/reviews"
	"filmtorget/internal/feed"
)

// ChatService is the server surface the client core talks to.
type ChatService interface {
	OpenConversation(ctx context.Context, viewerID string, listingID listings.ListingID) (*domainchat.Conversation, error)
	Directory(ctx context.Context, viewerID string) ([]chat.DirectoryEntry, error)
	Session(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (*chat.SessionView, error)
	Messages(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) ([]domainchat.Message, error)
	Send(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, text string) (*domainchat.Message, error)
	MarkRead(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (int, error)
	MarkMessageRead(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, messageID domainchat.MessageID) error
	UnreadBadge(ctx context.Context, viewerID string) (int, error)
	MarkSold(ctx context.Context, viewerID string, listingID listings.ListingID) (*listings.Listing, error)
	SubmitReview(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, rating int, comment string) (*reviews.Review, error)
}

// EventSource hands out live subscriptions. *feed.Hub satisfies it.
type EventSource interface {
	Subscribe(conversationID domainchat.ConversationID) *feed.Subscription
	SubscribeAll() *feed.Subscription
}

// Client binds one signed-in user to the chat service and the change feed.
type Client struct {
	Service  ChatService
	Events   EventSource
	ViewerID string
}

func NewClient(service ChatService, events EventSource, viewerID string) *Client {
	return &Client{Service: service, Events: events, ViewerID: viewerID}
}

// ContactSeller opens (or resolves) the viewer's conversation about a listing.
func (c *Client) ContactSeller(ctx context.Context, listingID listings.ListingID) (*domainchat.Conversation, error) {
	return c.Service.OpenConversation(ctx, c.ViewerID, listingID)
}

// Directory fetches the viewer's inbox, most recent activity first.
func (c *Client) Directory(ctx context.Context) ([]chat.DirectoryEntry, error) {
	return c.Service.Directory(ctx, c.ViewerID)
}

// Session loads a single conversation's view model.
func (c *Client) Session(ctx context.Context, conversationID domainchat.ConversationID) (*chat.SessionView, error) {
	return c.Service.Session(ctx, c.ViewerID, conversationID)
}

// MarkSold flips the viewer's listing to sold.
func (c *Client) MarkSold(ctx context.Context, listingID listings.ListingID) (*listings.Listing, error) {
	return c.Service.MarkSold(ctx, c.ViewerID, listingID)
}

// SubmitReview leaves the viewer's review on a concluded purchase.
func (c *Client) SubmitReview(ctx context.Context, conversationID domainchat.ConversationID, rating int, comment string) (*reviews.Review, error) {
	return c.Service.SubmitReview(ctx, c.ViewerID, conversationID, rating, comment)
}

// OpenFeed attaches a live message feed to one conversation.
func (c *Client) OpenFeed(ctx context.Context, conversationID domainchat.ConversationID, onMessage func(domainchat.Message)) (*Feed, error) {
	return OpenFeed(ctx, FeedOptions{
		Service:        c.Service,
		Events:         c.Events,
		ViewerID:       c.ViewerID,
		ConversationID: conversationID,
		OnMessage:      onMessage,
	})
}

// NewSender builds the optimistic send pipeline for one conversation.
func (c *Client) NewSender(conversationID domainchat.ConversationID, onChange func(PendingMessage)) *Sender {
	return NewSender(SenderOptions{
		Service:        c.Service,
		ViewerID:       c.ViewerID,
		ConversationID: conversationID,
		OnChange:       onChange,
	})
}

// StartReadTracker starts the global unread badge.
func (c *Client) StartReadTracker(ctx context.Context, onChange func(int)) (*ReadTracker, error) {
	return StartReadTracker(ctx, TrackerOptions{
		Service:  c.Service,
		Events:   c.Events,
		ViewerID: c.ViewerID,
		OnChange: onChange,
	})
}
