package chat

import (
	"errors"
	"strings"
	"time"

	"filmtorget/internal/domain/listings"
)

var (
	ErrConversationNotFound = errors.New("chat: conversation not found")
	ErrListingRequired      = errors.New("chat: listing is required")
	ErrBuyerRequired        = errors.New("chat: buyer is required")
	ErrSellerRequired       = errors.New("chat: seller is required")
	ErrSelfConversation     = errors.New("chat: buyer and seller must differ")
	ErrNotParticipant       = errors.New("chat: viewer is not a participant")
)

type ConversationID string

// Conversation is the thread scoping all messages between one buyer and one
// seller about one listing. There is at most one per (listing, buyer) pair.
type Conversation struct {
	ID        ConversationID
	ListingID listings.ListingID
	BuyerID   string
	SellerID  string
	CreatedAt time.Time
}

type CreateConversationParams struct {
	ID        ConversationID
	ListingID listings.ListingID
	BuyerID   string
	SellerID  string
	CreatedAt time.Time
}

func NewConversation(params CreateConversationParams) (*Conversation, error) {
	buyer := strings.TrimSpace(params.BuyerID)
	seller := strings.TrimSpace(params.SellerID)
	if strings.TrimSpace(string(params.ListingID)) == "" {
		return nil, ErrListingRequired
	}
	if buyer == "" {
		return nil, ErrBuyerRequired
	}
	if seller == "" {
		return nil, ErrSellerRequired
	}
	if buyer == seller {
		return nil, ErrSelfConversation
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Conversation{
		ID:        params.ID,
		ListingID: params.ListingID,
		BuyerID:   buyer,
		SellerID:  seller,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// HasParticipant reports whether userID is the buyer or the seller.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (userID == c.BuyerID || userID == c.SellerID)
}

// PeerOf returns the other side of the thread from the viewer's perspective.
func (c *Conversation) PeerOf(viewerID string) string {
	if viewerID == c.BuyerID {
		return c.SellerID
	}
	return c.BuyerID
}
