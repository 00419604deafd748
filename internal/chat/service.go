package chat

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/profiles"
	"filmtorget/internal/domain/reviews"
	"filmtorget/internal/feed"
)

// Service is the chat core. Every operation authorizes the viewer, runs
// under a per-call timeout and reports failures as gRPC status errors, which
// the HTTP layer maps onto responses.
type Service struct {
	Store       domainchat.Store
	Listings    listings.Repository
	Profiles    profiles.Repository
	Reviews     reviews.Repository
	Events      feed.Publisher
	CallTimeout time.Duration
	Logger      *slog.Logger
}

// DirectoryEntry is one row of a user's inbox: the conversation merged with
// its latest message, unread count and display metadata.
type DirectoryEntry struct {
	Conversation domainchat.Conversation
	Listing      *listings.Listing
	Peer         *profiles.Profile
	LastMessage  *domainchat.Message
	UnreadCount  int
}

// SessionView is everything a single open conversation needs: the thread,
// the listing snapshot, both participant profiles and the viewer's role.
type SessionView struct {
	Conversation    domainchat.Conversation
	Listing         *listings.Listing
	Buyer           *profiles.Profile
	Seller          *profiles.Profile
	IsSeller        bool
	ReviewSubmitted bool
}

// OpenConversation resolves the thread for (listing, buyer), creating it on
// first contact. Two concurrent attempts by the same buyer resolve to the
// same conversation id.
func (s *Service) OpenConversation(ctx context.Context, viewerID string, listingID listings.ListingID) (*domainchat.Conversation, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	listing, err := s.Listings.ByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "listing not found")
		}
		return nil, status.Errorf(codes.Internal, "load listing: %v", err)
	}
	if listing.OwnedBy(viewerID) {
		return nil, status.Error(codes.InvalidArgument, "cannot contact yourself")
	}
	draft, err := domainchat.NewConversation(domainchat.CreateConversationParams{
		ListingID: listingID,
		BuyerID:   viewerID,
		SellerID:  listing.OwnerID,
	})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	conv, created, err := s.Store.GetOrCreateConversation(ctx, draft)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "open conversation: %v", err)
	}
	if created && s.Logger != nil {
		s.Logger.Info("conversation created", "conversation_id", conv.ID, "listing_id", listingID, "buyer_id", viewerID)
	}
	return conv, nil
}

// Directory lists the viewer's conversations sorted by most recent activity:
// the last message's creation time, or the conversation's own when it has no
// messages yet. A failed query is returned, never collapsed into an empty
// inbox.
func (s *Service) Directory(ctx context.Context, viewerID string) ([]DirectoryEntry, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	conversations, err := s.Store.ConversationsByUser(ctx, viewerID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list conversations: %v", err)
	}
	entries := make([]DirectoryEntry, 0, len(conversations))
	for _, conv := range conversations {
		entry := DirectoryEntry{Conversation: conv}
		last, err := s.Store.LastMessage(ctx, conv.ID)
		if err != nil && !errors.Is(err, domainchat.ErrMessageNotFound) {
			return nil, status.Errorf(codes.Internal, "last message: %v", err)
		}
		entry.LastMessage = last
		count, err := s.Store.CountUnread(ctx, conv.ID, viewerID)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "unread count: %v", err)
		}
		entry.UnreadCount = count
		// display joins are best effort; a missing snapshot must not
		// hide the thread
		if listing, err := s.Listings.ByID(ctx, conv.ListingID); err == nil {
			entry.Listing = listing
		}
		if peer, err := s.Profiles.ByID(ctx, conv.PeerOf(viewerID)); err == nil {
			entry.Peer = peer
		}
		entries = append(entries, entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return lastActivity(entries[i]).After(lastActivity(entries[j]))
	})
	return entries, nil
}

// Session loads one conversation with its listing and participant profiles
// and derives the viewer's role. Only the buyer or the seller may open it.
func (s *Service) Session(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (*SessionView, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	conv, err := s.authorizedConversation(ctx, viewerID, conversationID)
	if err != nil {
		return nil, err
	}
	view := &SessionView{Conversation: *conv}
	listing, err := s.Listings.ByID(ctx, conv.ListingID)
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "listing not found")
		}
		return nil, status.Errorf(codes.Internal, "load listing: %v", err)
	}
	view.Listing = listing
	// the listing's current owner is authoritative for the seller role
	view.IsSeller = listing.OwnedBy(viewerID)

	if buyer, err := s.Profiles.ByID(ctx, conv.BuyerID); err == nil {
		view.Buyer = buyer
	}
	if seller, err := s.Profiles.ByID(ctx, conv.SellerID); err == nil {
		view.Seller = seller
	}
	if !view.IsSeller && listing.Sold {
		submitted, err := s.Reviews.Exists(ctx, viewerID, conv.ListingID)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "review lookup: %v", err)
		}
		view.ReviewSubmitted = submitted
	}
	return view, nil
}

// Messages returns the conversation's full history in creation order, the
// backfill read a feed performs before attaching its live subscription.
func (s *Service) Messages(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) ([]domainchat.Message, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	if _, err := s.authorizedConversation(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}
	messages, err := s.Store.MessagesByConversation(ctx, conversationID)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "list messages: %v", err)
	}
	return messages, nil
}

// Send appends a message and pushes its insert event into the change feed.
func (s *Service) Send(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, text string) (*domainchat.Message, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	trimmed, err := domainchat.Draft(text)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	if _, err := s.authorizedConversation(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}
	draft, err := domainchat.NewMessage(domainchat.CreateMessageParams{
		ConversationID: conversationID,
		SenderID:       viewerID,
		Text:           trimmed,
	})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	msg, err := s.Store.AppendMessage(ctx, draft)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "save message: %v", err)
	}
	if s.Events != nil {
		event := feed.Event{
			ID:         uuid.NewString(),
			Type:       feed.MessageCreated,
			OccurredAt: msg.CreatedAt,
			Message:    *msg,
		}
		// the message is durable either way; a feed hiccup only delays
		// live delivery until the next backfill
		if err := s.Events.Publish(ctx, event); err != nil && s.Logger != nil {
			s.Logger.Warn("change feed publish failed", "error", err, "message_id", msg.ID)
		}
	}
	return msg, nil
}

// MarkRead flips every unread message not sent by the viewer. Idempotent.
func (s *Service) MarkRead(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (int, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	if _, err := s.authorizedConversation(ctx, viewerID, conversationID); err != nil {
		return 0, err
	}
	flipped, err := s.Store.MarkConversationRead(ctx, conversationID, viewerID)
	if err != nil {
		return 0, status.Errorf(codes.Internal, "mark read: %v", err)
	}
	return flipped, nil
}

// MarkMessageRead flips a single live-delivered message. The sender's own
// messages are never flipped.
func (s *Service) MarkMessageRead(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, messageID domainchat.MessageID) error {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	if _, err := s.authorizedConversation(ctx, viewerID, conversationID); err != nil {
		return err
	}
	if err := s.Store.MarkMessageRead(ctx, conversationID, messageID, viewerID); err != nil {
		if errors.Is(err, domainchat.ErrMessageNotFound) {
			return status.Error(codes.NotFound, "message not found")
		}
		return status.Errorf(codes.Internal, "mark message read: %v", err)
	}
	return nil
}

// UnreadBadge recomputes the global unread count from message state.
func (s *Service) UnreadBadge(ctx context.Context, viewerID string) (int, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return 0, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	count, err := s.Store.CountUnreadForUser(ctx, viewerID)
	if err != nil {
		return 0, status.Errorf(codes.Internal, "unread badge: %v", err)
	}
	return count, nil
}

// MarkSold flips the listing's sold flag. Seller only, one way; marking an
// already sold listing is a no-op.
func (s *Service) MarkSold(ctx context.Context, viewerID string, listingID listings.ListingID) (*listings.Listing, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	listing, err := s.Listings.ByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "listing not found")
		}
		return nil, status.Errorf(codes.Internal, "load listing: %v", err)
	}
	if !listing.OwnedBy(viewerID) {
		return nil, status.Error(codes.PermissionDenied, "only the seller can mark a listing sold")
	}
	if listing.Sold {
		return listing, nil
	}
	listing.MarkSold()
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, status.Errorf(codes.Internal, "mark sold: %v", err)
	}
	if s.Logger != nil {
		s.Logger.Info("listing marked sold", "listing_id", listingID, "owner_id", viewerID)
	}
	return listing, nil
}

// SubmitReview writes the buyer's review of a sold listing. At most one per
// (reviewer, listing); a second attempt is rejected, not overwritten.
func (s *Service) SubmitReview(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, rating int, comment string) (*reviews.Review, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()

	conv, err := s.authorizedConversation(ctx, viewerID, conversationID)
	if err != nil {
		return nil, err
	}
	listing, err := s.Listings.ByID(ctx, conv.ListingID)
	if err != nil {
		if errors.Is(err, listings.ErrNotFound) {
			return nil, status.Error(codes.NotFound, "listing not found")
		}
		return nil, status.Errorf(codes.Internal, "load listing: %v", err)
	}
	if listing.OwnedBy(viewerID) {
		return nil, status.Error(codes.PermissionDenied, "the seller cannot review their own listing")
	}
	if !listing.Sold {
		return nil, status.Error(codes.FailedPrecondition, "listing is not sold yet")
	}
	review, err := reviews.Submit(reviews.SubmitParams{
		ID:         reviews.ReviewID(uuid.NewString()),
		ReviewerID: viewerID,
		ReceiverID: listing.OwnerID,
		ListingID:  conv.ListingID,
		Rating:     rating,
		Comment:    comment,
	})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.Reviews.Save(ctx, review); err != nil {
		if errors.Is(err, reviews.ErrAlreadyReviewed) {
			return nil, status.Error(codes.AlreadyExists, "listing already reviewed")
		}
		return nil, status.Errorf(codes.Internal, "save review: %v", err)
	}
	return review, nil
}

// Conversation returns the thread after checking the viewer belongs to it.
// The stream endpoint authorizes through this before attaching to the hub.
func (s *Service) Conversation(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (*domainchat.Conversation, error) {
	viewerID, err := s.requireViewer(viewerID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := s.wrapCall(ctx)
	defer cancel()
	return s.authorizedConversation(ctx, viewerID, conversationID)
}

func (s *Service) authorizedConversation(ctx context.Context, viewerID string, conversationID domainchat.ConversationID) (*domainchat.Conversation, error) {
	conv, err := s.Store.ConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, domainchat.ErrConversationNotFound) {
			return nil, status.Error(codes.NotFound, "conversation not found")
		}
		return nil, status.Errorf(codes.Internal, "load conversation: %v", err)
	}
	if !conv.HasParticipant(viewerID) {
		return nil, status.Error(codes.PermissionDenied, "not a chat participant")
	}
	return conv, nil
}

func (s *Service) requireViewer(viewerID string) (string, error) {
	viewerID = strings.TrimSpace(viewerID)
	if viewerID == "" {
		return "", status.Error(codes.Unauthenticated, "sign in required")
	}
	return viewerID, nil
}

func (s *Service) wrapCall(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := s.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func lastActivity(entry DirectoryEntry) time.Time {
	if entry.LastMessage != nil {
		return entry.LastMessage.CreatedAt
	}
	return entry.Conversation.CreatedAt
}
