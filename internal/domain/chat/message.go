package chat

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMessageNotFound = errors.New("chat: message not found")
	ErrSenderRequired  = errors.New("chat: sender is required")
	ErrEmptyText       = errors.New("chat: text is required")
)

type MessageID string

// Message belongs to exactly one conversation and is never edited after
// creation; only the read flag may flip, and only by the recipient.
type Message struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Text           string
	Read           bool
	CreatedAt      time.Time
}

type CreateMessageParams struct {
	ID             MessageID
	ConversationID ConversationID
	SenderID       string
	Text           string
	CreatedAt      time.Time
}

func NewMessage(params CreateMessageParams) (*Message, error) {
	sender := strings.TrimSpace(params.SenderID)
	if sender == "" {
		return nil, ErrSenderRequired
	}
	text, err := Draft(params.Text)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(params.ConversationID)) == "" {
		return nil, ErrConversationNotFound
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Message{
		ID:             params.ID,
		ConversationID: params.ConversationID,
		SenderID:       sender,
		Text:           text,
		CreatedAt:      createdAt.UTC(),
	}, nil
}

// Draft trims a candidate message body and rejects whitespace-only input.
func Draft(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyText
	}
	return trimmed, nil
}

// Before orders messages by creation time with the id as tiebreak, the sort
// key every rendered sequence uses.
func (m *Message) Before(other *Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
