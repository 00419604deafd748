package chatview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainchat "filmtorget/internal/domain/chat"
)

func TestSenderCommitsOptimisticEcho(t *testing.T) {
	w := newWorld(t)
	var transitions []SendState
	sender := NewSender(SenderOptions{
		Service:        w.service,
		ViewerID:       "buyer",
		ConversationID: w.conv.ID,
		OnChange:       func(entry PendingMessage) { transitions = append(transitions, entry.State) },
	})

	entry, err := sender.Send(context.Background(), "  does it meter?  ")
	require.NoError(t, err)
	assert.Equal(t, SendCommitted, entry.State)
	assert.Equal(t, "does it meter?", entry.Message.Text)
	assert.NotEmpty(t, entry.Message.ID)
	assert.Equal(t, []SendState{SendPending, SendCommitted}, transitions)

	// the durable copy is what the feed will echo back
	messages, err := w.service.Messages(context.Background(), "buyer", w.conv.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, entry.Message.ID, messages[0].ID)

	_, inflight := sender.InFlight()
	assert.False(t, inflight)
}

func TestSenderRejectsBlankText(t *testing.T) {
	w := newWorld(t)
	sender := NewSender(SenderOptions{
		Service:        w.service,
		ViewerID:       "buyer",
		ConversationID: w.conv.ID,
	})

	_, err := sender.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, domainchat.ErrEmptyText)
}

func TestSenderRollsBackOnFailure(t *testing.T) {
	w := newWorld(t)
	var transitions []SendState
	sender := NewSender(SenderOptions{
		Service:        w.service,
		ViewerID:       "stranger",
		ConversationID: w.conv.ID,
		OnChange:       func(entry PendingMessage) { transitions = append(transitions, entry.State) },
	})

	entry, err := sender.Send(context.Background(), "let me in")
	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, SendFailed, entry.State)
	assert.Error(t, entry.Err)
	assert.Equal(t, []SendState{SendPending, SendFailed}, transitions)

	// a later attempt is not blocked by the failed one
	_, inflight := sender.InFlight()
	assert.False(t, inflight)
}

func TestSenderGuardsAgainstConcurrentSends(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	stub := &stubService{
		sendFn: func(ctx context.Context, viewerID string, conversationID domainchat.ConversationID, text string) (*domainchat.Message, error) {
			close(started)
			<-release
			return &domainchat.Message{ID: "server-id", ConversationID: conversationID, SenderID: viewerID, Text: text}, nil
		},
	}
	sender := NewSender(SenderOptions{
		Service:        stub,
		ViewerID:       "buyer",
		ConversationID: "conv-1",
	})

	done := make(chan PendingMessage, 1)
	go func() {
		entry, _ := sender.Send(context.Background(), "first")
		done <- entry
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first send never reached the service")
	}

	pending, inflight := sender.InFlight()
	assert.True(t, inflight)
	assert.Equal(t, SendPending, pending.State)

	_, err := sender.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrSendInFlight)

	close(release)
	entry := <-done
	assert.Equal(t, SendCommitted, entry.State)
	assert.Equal(t, domainchat.MessageID("server-id"), entry.Message.ID)
}
