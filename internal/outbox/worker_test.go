package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClaimer struct {
	queue  []*EventDocument
	sent   []string
	failed []string
	next   []time.Time
}

func (f *fakeClaimer) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	if len(f.queue) == 0 {
		return nil, nil
	}
	doc := f.queue[0]
	f.queue = f.queue[1:]
	return doc, nil
}

func (f *fakeClaimer) MarkSent(ctx context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeClaimer) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	f.failed = append(f.failed, id)
	f.next = append(f.next, next)
	return nil
}

type fakeProducer struct {
	published []publishedRecord
	err       error
}

type publishedRecord struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

func (f *fakeProducer) Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedRecord{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func testDocument(id string) *EventDocument {
	return &EventDocument{
		ID:        id,
		Name:      "chat.message.created",
		Payload:   []byte(`{"id":"` + id + `"}`),
		Aggregate: "conv-1",
		State:     stateClaimed,
	}
}

func TestWorkerPublishesAndMarksSent(t *testing.T) {
	claimer := &fakeClaimer{queue: []*EventDocument{testDocument("evt-1")}}
	producer := &fakeProducer{}
	worker := &Worker{Store: claimer, Producer: producer, Topic: "chat.events.v1", ID: "w1"}

	require.NoError(t, worker.processOnce(context.Background()))

	require.Len(t, producer.published, 1)
	record := producer.published[0]
	assert.Equal(t, "chat.events.v1", record.topic)
	assert.Equal(t, "conv-1", record.key, "keyed by conversation to keep per-thread order")
	assert.Equal(t, "chat.message.created", record.headers["event-type"])
	assert.Equal(t, []string{"evt-1"}, claimer.sent)
	assert.Empty(t, claimer.failed)
}

func TestWorkerSchedulesRetryOnPublishFailure(t *testing.T) {
	doc := testDocument("evt-1")
	doc.Attempts = 1
	claimer := &fakeClaimer{queue: []*EventDocument{doc}}
	producer := &fakeProducer{err: errors.New("broker unreachable")}
	worker := &Worker{
		Store:    claimer,
		Producer: producer,
		Topic:    "chat.events.v1",
		ID:       "w1",
		Backoff:  []time.Duration{time.Second, 5 * time.Second, 30 * time.Second},
	}

	before := time.Now()
	require.NoError(t, worker.processOnce(context.Background()))

	assert.Empty(t, claimer.sent)
	require.Equal(t, []string{"evt-1"}, claimer.failed)
	require.Len(t, claimer.next, 1)
	assert.True(t, claimer.next[0].After(before.Add(4*time.Second)), "second attempt uses the second backoff step")
}

func TestWorkerIdleWhenQueueEmpty(t *testing.T) {
	claimer := &fakeClaimer{}
	producer := &fakeProducer{}
	worker := &Worker{Store: claimer, Producer: producer, Topic: "chat.events.v1", ID: "w1"}

	require.NoError(t, worker.processOnce(context.Background()))
	assert.Empty(t, producer.published)
	assert.Empty(t, claimer.sent)
}

func TestWorkerRunRequiresDependencies(t *testing.T) {
	worker := &Worker{}
	assert.ErrorIs(t, worker.Run(context.Background()), ErrWorkerNotConfigured)
}

func TestWorkerRunStopsOnContextCancel(t *testing.T) {
	claimer := &fakeClaimer{}
	producer := &fakeProducer{}
	worker := &Worker{
		Store:    claimer,
		Producer: producer,
		Topic:    "chat.events.v1",
		ID:       "w1",
		Interval: 10 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := worker.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
