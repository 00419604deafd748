package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/reviews"
)

const reviewsCollection = "reviews"

type reviewDocument struct {
	ID         string    `bson:"_id"`
	ReviewerID string    `bson:"reviewer_id"`
	ReceiverID string    `bson:"receiver_id"`
	ListingID  string    `bson:"listing_id"`
	Rating     int       `bson:"rating"`
	Comment    string    `bson:"comment"`
	CreatedAt  time.Time `bson:"created_at"`
}

// ReviewRepository persists reviews. A unique index on (reviewer_id,
// listing_id) backs the one-review-per-listing rule.
type ReviewRepository struct {
	col *mongo.Collection
}

func NewReviewRepository(db *mongo.Database) *ReviewRepository {
	col := db.Collection(reviewsCollection)
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "reviewer_id", Value: 1}, {Key: "listing_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &ReviewRepository{col: col}
}

func (r *ReviewRepository) Save(ctx context.Context, review *reviews.Review) error {
	if review == nil {
		return reviews.ErrNotFound
	}
	doc := reviewDocument{
		ID:         string(review.ID),
		ReviewerID: review.ReviewerID,
		ReceiverID: review.ReceiverID,
		ListingID:  string(review.ListingID),
		Rating:     review.Rating,
		Comment:    review.Comment,
		CreatedAt:  review.CreatedAt,
	}
	_, err := r.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return reviews.ErrAlreadyReviewed
	}
	return err
}

func (r *ReviewRepository) Exists(ctx context.Context, reviewerID string, listingID listings.ListingID) (bool, error) {
	err := r.col.FindOne(ctx, bson.M{"reviewer_id": reviewerID, "listing_id": string(listingID)}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ReviewRepository) ListByReceiver(ctx context.Context, receiverID string) ([]reviews.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.col.Find(ctx, bson.M{"receiver_id": receiverID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]reviews.Review, 0)
	for cursor.Next(ctx) {
		var doc reviewDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, reviews.Review{
			ID:         reviews.ReviewID(doc.ID),
			ReviewerID: doc.ReviewerID,
			ReceiverID: doc.ReceiverID,
			ListingID:  listings.ListingID(doc.ListingID),
			Rating:     doc.Rating,
			Comment:    doc.Comment,
			CreatedAt:  doc.CreatedAt,
		})
	}
	return out, cursor.Err()
}
