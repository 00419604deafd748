package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/profiles"
	"filmtorget/internal/domain/reviews"
)

// ListingRepository stores listing snapshots in memory.
type ListingRepository struct {
	mu   sync.RWMutex
	byID map[listings.ListingID]*listings.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{byID: make(map[listings.ListingID]*listings.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if listing, ok := r.byID[id]; ok {
		copied := *listing
		return &copied, nil
	}
	return nil, listings.ErrNotFound
}

func (r *ListingRepository) Save(ctx context.Context, listing *listings.Listing) error {
	if listing == nil || strings.TrimSpace(string(listing.ID)) == "" {
		return listings.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *listing
	r.byID[listing.ID] = &copied
	return nil
}

// ProfileRepository stores profiles in memory.
type ProfileRepository struct {
	mu   sync.RWMutex
	byID map[string]*profiles.Profile
}

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{byID: make(map[string]*profiles.Profile)}
}

func (r *ProfileRepository) ByID(ctx context.Context, id string) (*profiles.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if profile, ok := r.byID[id]; ok {
		copied := *profile
		return &copied, nil
	}
	return nil, profiles.ErrNotFound
}

func (r *ProfileRepository) Save(ctx context.Context, profile *profiles.Profile) error {
	if profile == nil || strings.TrimSpace(profile.ID) == "" {
		return profiles.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *profile
	r.byID[profile.ID] = &copied
	return nil
}

type reviewKey struct {
	reviewer string
	listing  listings.ListingID
}

// ReviewRepository stores reviews in memory and enforces the one review per
// (reviewer, listing) rule the same way the unique index does in Mongo.
type ReviewRepository struct {
	mu     sync.RWMutex
	byID   map[reviews.ReviewID]*reviews.Review
	byPair map[reviewKey]reviews.ReviewID
}

func NewReviewRepository() *ReviewRepository {
	return &ReviewRepository{
		byID:   make(map[reviews.ReviewID]*reviews.Review),
		byPair: make(map[reviewKey]reviews.ReviewID),
	}
}

func (r *ReviewRepository) Save(ctx context.Context, review *reviews.Review) error {
	if review == nil {
		return reviews.ErrNotFound
	}
	key := reviewKey{reviewer: review.ReviewerID, listing: review.ListingID}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPair[key]; ok {
		return reviews.ErrAlreadyReviewed
	}
	copied := *review
	if copied.ID == "" {
		copied.ID = reviews.ReviewID(uuid.NewString())
	}
	r.byID[copied.ID] = &copied
	r.byPair[key] = copied.ID
	return nil
}

func (r *ReviewRepository) Exists(ctx context.Context, reviewerID string, listingID listings.ListingID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPair[reviewKey{reviewer: reviewerID, listing: listingID}]
	return ok, nil
}

func (r *ReviewRepository) ListByReceiver(ctx context.Context, receiverID string) ([]reviews.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reviews.Review, 0)
	for _, review := range r.byID {
		if review.ReceiverID == receiverID {
			out = append(out, *review)
		}
	}
	return out, nil
}
