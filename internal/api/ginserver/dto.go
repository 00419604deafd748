package ginserver

import (
	"time"

	"filmtorget/internal/chat"
	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/profiles"
	"filmtorget/internal/domain/reviews"
)

type conversationDTO struct {
	ID        string    `json:"id"`
	ListingID string    `json:"listing_id"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	CreatedAt time.Time `json:"created_at"`
}

type messageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

type listingDTO struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
	Price    int64  `json:"price"`
	Sold     bool   `json:"sold"`
}

type profileDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type directoryEntryDTO struct {
	Conversation conversationDTO `json:"conversation"`
	Listing      *listingDTO     `json:"listing,omitempty"`
	Peer         *profileDTO     `json:"peer,omitempty"`
	LastMessage  *messageDTO     `json:"last_message,omitempty"`
	UnreadCount  int             `json:"unread_count"`
}

type sessionDTO struct {
	Conversation    conversationDTO `json:"conversation"`
	Listing         *listingDTO     `json:"listing,omitempty"`
	Buyer           *profileDTO     `json:"buyer,omitempty"`
	Seller          *profileDTO     `json:"seller,omitempty"`
	IsSeller        bool            `json:"is_seller"`
	ReviewSubmitted bool            `json:"review_submitted"`
}

type reviewDTO struct {
	ID         string    `json:"id"`
	ReviewerID string    `json:"reviewer_id"`
	ReceiverID string    `json:"receiver_id"`
	ListingID  string    `json:"listing_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newConversationDTO(conv domainchat.Conversation) conversationDTO {
	return conversationDTO{
		ID:        string(conv.ID),
		ListingID: string(conv.ListingID),
		BuyerID:   conv.BuyerID,
		SellerID:  conv.SellerID,
		CreatedAt: conv.CreatedAt,
	}
}

func newMessageDTO(msg domainchat.Message) messageDTO {
	return messageDTO{
		ID:             string(msg.ID),
		ConversationID: string(msg.ConversationID),
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		IsRead:         msg.Read,
		CreatedAt:      msg.CreatedAt,
	}
}

func newListingDTO(listing *listings.Listing) *listingDTO {
	if listing == nil {
		return nil
	}
	return &listingDTO{
		ID:       string(listing.ID),
		OwnerID:  listing.OwnerID,
		Title:    listing.Title,
		ImageURL: listing.ImageURL,
		Price:    listing.Price,
		Sold:     listing.Sold,
	}
}

func newProfileDTO(profile *profiles.Profile) *profileDTO {
	if profile == nil {
		return nil
	}
	return &profileDTO{
		ID:        profile.ID,
		Username:  profile.DisplayName(),
		AvatarURL: profile.AvatarURL,
	}
}

func newDirectoryEntryDTO(entry chat.DirectoryEntry) directoryEntryDTO {
	dto := directoryEntryDTO{
		Conversation: newConversationDTO(entry.Conversation),
		Listing:      newListingDTO(entry.Listing),
		Peer:         newProfileDTO(entry.Peer),
		UnreadCount:  entry.UnreadCount,
	}
	if entry.LastMessage != nil {
		last := newMessageDTO(*entry.LastMessage)
		dto.LastMessage = &last
	}
	return dto
}

func newSessionDTO(view *chat.SessionView) sessionDTO {
	return sessionDTO{
		Conversation:    newConversationDTO(view.Conversation),
		Listing:         newListingDTO(view.Listing),
		Buyer:           newProfileDTO(view.Buyer),
		Seller:          newProfileDTO(view.Seller),
		IsSeller:        view.IsSeller,
		ReviewSubmitted: view.ReviewSubmitted,
	}
}

func newReviewDTO(review *reviews.Review) reviewDTO {
	return reviewDTO{
		ID:         string(review.ID),
		ReviewerID: review.ReviewerID,
		ReceiverID: review.ReceiverID,
		ListingID:  string(review.ListingID),
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt,
	}
}
