package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filmtorget/internal/domain/listings"
)

const listingsCollection = "listings"

type listingDocument struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Title     string    `bson:"title"`
	ImageURL  string    `bson:"image_url"`
	Price     int64     `bson:"price"`
	Sold      bool      `bson:"is_sold"`
	CreatedAt time.Time `bson:"created_at"`
}

// ListingRepository persists the listing snapshots the chat core joins into
// conversation views.
type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection)}
}

func (r *ListingRepository) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var doc listingDocument
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, listings.ErrNotFound
		}
		return nil, err
	}
	return &listings.Listing{
		ID:        listings.ListingID(doc.ID),
		OwnerID:   doc.OwnerID,
		Title:     doc.Title,
		ImageURL:  doc.ImageURL,
		Price:     doc.Price,
		Sold:      doc.Sold,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (r *ListingRepository) Save(ctx context.Context, listing *listings.Listing) error {
	if listing == nil {
		return listings.ErrNotFound
	}
	doc := listingDocument{
		ID:        string(listing.ID),
		OwnerID:   listing.OwnerID,
		Title:     listing.Title,
		ImageURL:  listing.ImageURL,
		Price:     listing.Price,
		Sold:      listing.Sold,
		CreatedAt: listing.CreatedAt,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}
