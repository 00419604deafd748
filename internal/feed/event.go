package feed

import (
	"context"
	"encoding/json"
	"time"

	domainchat "filmtorget/internal/domain/chat"
)

const MessageCreated = "chat.message.created"

// Event is one change-feed notification: a message row was inserted. The
// feed is at-least-once, so the same message may arrive under different
// delivery ids and consumers must dedup by Message.ID.
type Event struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Message    domainchat.Message `json:"message"`
}

// Publisher pushes insert events into the change feed. The chat service
// publishes through this after every durable append; bindings are either the
// in-process Hub or the outbox-to-Kafka pipeline.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// EncodeEvent renders the wire payload carried through Kafka and SSE.
func EncodeEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeEvent parses a wire payload back into an Event.
func DecodeEvent(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
