package chatview

import (
	"context"
	"sync"

	"filmtorget/internal/feed"
)

// TrackerOptions configure StartReadTracker.
type TrackerOptions struct {
	Service  ChatService
	Events   EventSource
	ViewerID string

	// OnChange fires whenever the badge value changes.
	OnChange func(int)
}

// ReadTracker keeps the viewer's global unread badge current. It recomputes
// the count from the store rather than incrementing locally, so a missed
// event costs at most one refresh cycle, never a permanently wrong badge.
type ReadTracker struct {
	service  ChatService
	viewerID string
	onChange func(int)

	mu    sync.Mutex
	count int

	sub       *feed.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// StartReadTracker computes the initial badge and then follows the store's
// firehose, refreshing on every message someone else sends.
func StartReadTracker(ctx context.Context, opts TrackerOptions) (*ReadTracker, error) {
	t := &ReadTracker{
		service:  opts.Service,
		viewerID: opts.ViewerID,
		onChange: opts.OnChange,
		done:     make(chan struct{}),
	}
	count, err := opts.Service.UnreadBadge(ctx, opts.ViewerID)
	if err != nil {
		return nil, err
	}
	t.count = count

	t.sub = opts.Events.SubscribeAll()
	go t.pump()
	return t, nil
}

func (t *ReadTracker) pump() {
	defer close(t.done)
	for event := range t.sub.C() {
		if event.Type != feed.MessageCreated {
			continue
		}
		if event.Message.SenderID == t.viewerID {
			continue
		}
		t.Refresh(context.Background())
	}
}

// Refresh recomputes the badge now. Feeds call it after a bulk mark-read so
// the badge drops without waiting for a new event.
func (t *ReadTracker) Refresh(ctx context.Context) {
	count, err := t.service.UnreadBadge(ctx, t.viewerID)
	if err != nil {
		return
	}
	t.mu.Lock()
	changed := count != t.count
	t.count = count
	t.mu.Unlock()
	if changed && t.onChange != nil {
		t.onChange(count)
	}
}

// Count reports the last computed badge value.
func (t *ReadTracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Close detaches from the firehose and waits for the pump to stop.
func (t *ReadTracker) Close() {
	t.closeOnce.Do(func() {
		t.sub.Close()
		<-t.done
	})
}
