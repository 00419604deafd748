package reviews

import (
	"context"
	"errors"
	"strings"
	"time"

	"filmtorget/internal/domain/listings"
)

var (
	ErrInvalidRating    = errors.New("reviews: rating must be between 1 and 5")
	ErrReviewerRequired = errors.New("reviews: reviewer is required")
	ErrReceiverRequired = errors.New("reviews: receiver is required")
	ErrSelfReview       = errors.New("reviews: cannot review yourself")
	ErrAlreadyReviewed  = errors.New("reviews: listing already reviewed by this user")
	ErrNotFound         = errors.New("reviews: not found")
)

type ReviewID string

// Review is written at most once per (reviewer, listing) after the listing
// was marked sold.
type Review struct {
	ID         ReviewID
	ReviewerID string
	ReceiverID string
	ListingID  listings.ListingID
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

type SubmitParams struct {
	ID         ReviewID
	ReviewerID string
	ReceiverID string
	ListingID  listings.ListingID
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

func Submit(params SubmitParams) (*Review, error) {
	reviewer := strings.TrimSpace(params.ReviewerID)
	receiver := strings.TrimSpace(params.ReceiverID)
	if reviewer == "" {
		return nil, ErrReviewerRequired
	}
	if receiver == "" {
		return nil, ErrReceiverRequired
	}
	if reviewer == receiver {
		return nil, ErrSelfReview
	}
	if params.Rating < 1 || params.Rating > 5 {
		return nil, ErrInvalidRating
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Review{
		ID:         params.ID,
		ReviewerID: reviewer,
		ReceiverID: receiver,
		ListingID:  params.ListingID,
		Rating:     params.Rating,
		Comment:    strings.TrimSpace(params.Comment),
		CreatedAt:  createdAt.UTC(),
	}, nil
}

type Repository interface {
	Save(ctx context.Context, review *Review) error
	// Exists reports whether reviewer already reviewed the listing, the
	// pre-check that keeps the review prompt from reappearing.
	Exists(ctx context.Context, reviewerID string, listingID listings.ListingID) (bool, error)
	ListByReceiver(ctx context.Context, receiverID string) ([]Review, error)
}
