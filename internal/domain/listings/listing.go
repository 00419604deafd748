package listings

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrNotFound      = errors.New("listings: not found")
	ErrOwnerRequired = errors.New("listings: owner is required")
	ErrTitleRequired = errors.New("listings: title is required")
)

type ListingID string

// Listing is the denormalized snapshot the chat core needs: enough to render
// a conversation header and to gate seller-only actions. The full catalog
// lives outside this service.
type Listing struct {
	ID        ListingID
	OwnerID   string
	Title     string
	ImageURL  string
	Price     int64
	Sold      bool
	CreatedAt time.Time
}

type CreateParams struct {
	ID        ListingID
	OwnerID   string
	Title     string
	ImageURL  string
	Price     int64
	CreatedAt time.Time
}

func New(params CreateParams) (*Listing, error) {
	owner := strings.TrimSpace(params.OwnerID)
	title := strings.TrimSpace(params.Title)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	if title == "" {
		return nil, ErrTitleRequired
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Listing{
		ID:        params.ID,
		OwnerID:   owner,
		Title:     title,
		ImageURL:  strings.TrimSpace(params.ImageURL),
		Price:     params.Price,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// MarkSold flips the sold flag one way. Calling it on an already sold
// listing is a no-op, and nothing ever unsets the flag.
func (l *Listing) MarkSold() {
	l.Sold = true
}

// OwnedBy reports whether userID owns the listing. The listing owner, not
// the conversation's seller column, is authoritative for seller-only actions.
func (l *Listing) OwnedBy(userID string) bool {
	return userID != "" && userID == l.OwnerID
}

type Repository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
}
