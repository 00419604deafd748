package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filmtorget/internal/domain/profiles"
)

const profilesCollection = "profiles"

type profileDocument struct {
	ID        string    `bson:"_id"`
	Username  string    `bson:"username"`
	AvatarURL string    `bson:"avatar_url"`
	CreatedAt time.Time `bson:"created_at"`
}

type ProfileRepository struct {
	col *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{col: db.Collection(profilesCollection)}
}

func (r *ProfileRepository) ByID(ctx context.Context, id string) (*profiles.Profile, error) {
	var doc profileDocument
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, profiles.ErrNotFound
		}
		return nil, err
	}
	return &profiles.Profile{
		ID:        doc.ID,
		Username:  doc.Username,
		AvatarURL: doc.AvatarURL,
		CreatedAt: doc.CreatedAt,
	}, nil
}

func (r *ProfileRepository) Save(ctx context.Context, profile *profiles.Profile) error {
	if profile == nil {
		return profiles.ErrNotFound
	}
	doc := profileDocument{
		ID:        profile.ID,
		Username:  profile.Username,
		AvatarURL: profile.AvatarURL,
		CreatedAt: profile.CreatedAt,
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, opts)
	return err
}
