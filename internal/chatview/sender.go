package chatview

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	domainchat "filmtorget/internal/domain/chat"
)

// SendState tracks one outgoing message through the optimistic pipeline.
type SendState int

const (
	SendPending SendState = iota
	SendCommitted
	SendFailed
)

var ErrSendInFlight = errors.New("chatview: a send is already in flight")

// PendingMessage is the local echo of an outgoing message. While pending it
// carries a client-generated id; once committed, Message is the server's
// durable record and the local id only remains for correlation.
type PendingMessage struct {
	LocalID string
	State   SendState
	Message domainchat.Message
	Err     error
}

// SenderOptions configure NewSender.
type SenderOptions struct {
	Service        ChatService
	ViewerID       string
	ConversationID domainchat.ConversationID

	// OnChange fires on every state transition of the in-flight message:
	// once when it turns pending and once when it commits or fails.
	OnChange func(PendingMessage)
}

// Sender pushes messages into one conversation optimistically. The local
// echo appears before the round trip; the server's copy then replaces it, or
// the echo flips to failed and the text can be retried. One send at a time.
type Sender struct {
	service        ChatService
	viewerID       string
	conversationID domainchat.ConversationID
	onChange       func(PendingMessage)

	mu       sync.Mutex
	inflight *PendingMessage
}

func NewSender(opts SenderOptions) *Sender {
	return &Sender{
		service:        opts.Service,
		viewerID:       opts.ViewerID,
		conversationID: opts.ConversationID,
		onChange:       opts.OnChange,
	}
}

// Send validates the text, publishes the pending echo and performs the
// round trip. On success the returned entry is committed and wraps the
// server message; on failure it is failed and carries the cause.
func (s *Sender) Send(ctx context.Context, text string) (PendingMessage, error) {
	trimmed, err := domainchat.Draft(text)
	if err != nil {
		return PendingMessage{}, err
	}

	s.mu.Lock()
	if s.inflight != nil {
		s.mu.Unlock()
		return PendingMessage{}, ErrSendInFlight
	}
	entry := &PendingMessage{
		LocalID: uuid.NewString(),
		State:   SendPending,
		Message: domainchat.Message{
			ID:             domainchat.MessageID(uuid.NewString()),
			ConversationID: s.conversationID,
			SenderID:       s.viewerID,
			Text:           trimmed,
			Read:           false,
			CreatedAt:      time.Now().UTC(),
		},
	}
	s.inflight = entry
	s.mu.Unlock()
	s.notify(*entry)

	msg, err := s.service.Send(ctx, s.viewerID, s.conversationID, trimmed)

	s.mu.Lock()
	if err != nil {
		entry.State = SendFailed
		entry.Err = err
	} else {
		entry.State = SendCommitted
		entry.Message = *msg
	}
	snapshot := *entry
	s.inflight = nil
	s.mu.Unlock()

	s.notify(snapshot)
	return snapshot, err
}

// InFlight reports the pending echo, if any.
func (s *Sender) InFlight() (PendingMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		return PendingMessage{}, false
	}
	return *s.inflight, true
}

func (s *Sender) notify(entry PendingMessage) {
	if s.onChange != nil {
		s.onChange(entry)
	}
}
