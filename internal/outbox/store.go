package outbox

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"filmtorget/internal/feed"
)

const (
	stateNew     = "NEW"
	stateClaimed = "CLAIMED"
	stateSent    = "SENT"
	stateFailed  = "FAILED"
)

// Store persists change-feed events until the worker hands them to Kafka,
// so a message insert and its feed notification cannot drift apart.
type Store struct {
	col *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	col := db.Collection("chat_outbox")
	idx := mongo.IndexModel{Keys: bson.D{{Key: "state", Value: 1}, {Key: "next_attempt_at", Value: 1}}}
	_, _ = col.Indexes().CreateOne(context.Background(), idx)
	return &Store{col: col}
}

// Publish enqueues the event. Implements feed.Publisher so the chat service
// can stay oblivious to which pipeline carries the feed.
func (s *Store) Publish(ctx context.Context, event feed.Event) error {
	payload, err := feed.EncodeEvent(event)
	if err != nil {
		return err
	}
	doc := bson.M{
		"_id":             event.ID,
		"name":            event.Type,
		"payload":         payload,
		"aggregate":       string(event.Message.ConversationID),
		"occurred_at":     event.OccurredAt,
		"state":           stateNew,
		"attempts":        0,
		"next_attempt_at": time.Now().UTC(),
		"created_at":      time.Now().UTC(),
	}
	_, err = s.col.InsertOne(ctx, doc)
	return err
}

type EventDocument struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Payload     []byte    `bson:"payload"`
	Aggregate   string    `bson:"aggregate"`
	OccurredAt  time.Time `bson:"occurred_at"`
	State       string    `bson:"state"`
	Attempts    int       `bson:"attempts"`
	NextAttempt time.Time `bson:"next_attempt_at"`
	ClaimedBy   string    `bson:"claimed_by"`
	ClaimedAt   time.Time `bson:"claimed_at"`
	SentAt      time.Time `bson:"sent_at"`
	LastError   string    `bson:"last_error"`
}

func (s *Store) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	now := time.Now().UTC()
	filter := bson.M{"state": bson.M{"$in": []string{stateNew, stateFailed}}, "next_attempt_at": bson.M{"$lte": now}}
	update := bson.M{"$set": bson.M{"state": stateClaimed, "claimed_by": workerID, "claimed_at": now}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc EventDocument
	err := s.col.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.col.UpdateByID(ctx, id, bson.M{"$set": bson.M{"state": stateSent, "sent_at": time.Now().UTC()}})
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	update := bson.M{
		"$set": bson.M{
			"state":           stateFailed,
			"next_attempt_at": next,
			"last_error":      errMsg,
		},
		"$inc": bson.M{"attempts": 1},
	}
	_, err := s.col.UpdateByID(ctx, id, update)
	return err
}

var _ feed.Publisher = (*Store)(nil)
