package feed

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainchat "filmtorget/internal/domain/chat"
)

func makeEvent(conversationID, messageID string) Event {
	return Event{
		ID:         "evt-" + messageID,
		Type:       MessageCreated,
		OccurredAt: time.Now().UTC(),
		Message: domainchat.Message{
			ID:             domainchat.MessageID(messageID),
			ConversationID: domainchat.ConversationID(conversationID),
			SenderID:       "seller",
			Text:           "hi",
		},
	}
}

func TestHubScopedSubscription(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("conv-1")
	defer sub.Close()

	require.NoError(t, hub.Publish(context.Background(), makeEvent("conv-1", "m1")))
	require.NoError(t, hub.Publish(context.Background(), makeEvent("conv-2", "m2")))

	event := <-sub.C()
	assert.Equal(t, domainchat.MessageID("m1"), event.Message.ID)

	select {
	case event := <-sub.C():
		t.Fatalf("unexpected event for foreign conversation: %v", event.ID)
	default:
	}
}

func TestHubFirehoseSeesEveryConversation(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.SubscribeAll()
	defer sub.Close()

	require.NoError(t, hub.Publish(context.Background(), makeEvent("conv-1", "m1")))
	require.NoError(t, hub.Publish(context.Background(), makeEvent("conv-2", "m2")))

	first := <-sub.C()
	second := <-sub.C()
	assert.Equal(t, domainchat.MessageID("m1"), first.Message.ID)
	assert.Equal(t, domainchat.MessageID("m2"), second.Message.ID)
}

func TestHubCloseStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("conv-1")
	assert.Equal(t, 1, hub.SubscriberCount())

	sub.Close()
	sub.Close()
	assert.Zero(t, hub.SubscriberCount())

	require.NoError(t, hub.Publish(context.Background(), makeEvent("conv-1", "m1")))
	_, open := <-sub.C()
	assert.False(t, open)
}

func TestHubDropsEventsForLaggingSubscriber(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("conv-1")
	defer sub.Close()

	assert.False(t, sub.Lagged())

	for i := 0; i < defaultBuffer+8; i++ {
		require.NoError(t, hub.Publish(context.Background(), makeEvent("conv-1", fmt.Sprintf("m%d", i))))
	}

	assert.True(t, sub.Lagged(), "dropped delivery flags the subscription")
	assert.False(t, sub.Lagged(), "reading the flag clears it")

	received := 0
	for {
		select {
		case <-sub.C():
			received++
		default:
			assert.Equal(t, defaultBuffer, received)
			return
		}
	}
}
