package chatview

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/feed"
)

// FeedState tracks the lifecycle of a conversation feed.
type FeedState int

const (
	FeedLoading FeedState = iota
	FeedReady
	FeedFailed
)

var ErrFeedClosed = errors.New("chatview: feed is closed")

// FeedOptions configure OpenFeed.
type FeedOptions struct {
	Service        ChatService
	Events         EventSource
	ViewerID       string
	ConversationID domainchat.ConversationID
	Logger         *slog.Logger

	// OnMessage fires for every message appended live, after it has been
	// recorded in the feed. Never called for messages seen during backfill.
	OnMessage func(domainchat.Message)
}

// Feed is the live view of one conversation's messages. Opening it loads
// history oldest first, marks the thread read and attaches to the change
// feed; inbound messages are deduplicated by id, appended in order and, when
// sent by the peer, flipped to read immediately.
type Feed struct {
	service        ChatService
	viewerID       string
	conversationID domainchat.ConversationID
	onMessage      func(domainchat.Message)
	logger         *slog.Logger

	mu       sync.Mutex
	state    FeedState
	messages []domainchat.Message
	seen     map[domainchat.MessageID]struct{}

	sub       *feed.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

// OpenFeed backfills the conversation and starts live delivery. The
// subscription is taken before the backfill read so no insert can fall
// between them; overlap is absorbed by the id dedup.
func OpenFeed(ctx context.Context, opts FeedOptions) (*Feed, error) {
	f := &Feed{
		service:        opts.Service,
		viewerID:       opts.ViewerID,
		conversationID: opts.ConversationID,
		onMessage:      opts.OnMessage,
		logger:         opts.Logger,
		state:          FeedLoading,
		seen:           make(map[domainchat.MessageID]struct{}),
		done:           make(chan struct{}),
	}
	f.sub = opts.Events.Subscribe(opts.ConversationID)

	history, err := opts.Service.Messages(ctx, opts.ViewerID, opts.ConversationID)
	if err != nil {
		f.sub.Close()
		close(f.done)
		f.state = FeedFailed
		return nil, err
	}
	f.mu.Lock()
	for _, msg := range history {
		f.messages = append(f.messages, msg)
		f.seen[msg.ID] = struct{}{}
	}
	f.state = FeedReady
	f.mu.Unlock()

	// opening a thread counts as reading everything in it; the flip is
	// advisory, so a failure leaves the badge stale for a moment but the
	// feed itself stays usable
	if _, err := opts.Service.MarkRead(ctx, opts.ViewerID, opts.ConversationID); err != nil {
		if f.logger != nil {
			f.logger.Warn("bulk mark-read failed on open", "error", err, "conversation_id", opts.ConversationID)
		}
	}

	go f.pump()
	return f, nil
}

func (f *Feed) pump() {
	defer close(f.done)
	for event := range f.sub.C() {
		f.handle(event)
		if f.sub.Lagged() {
			f.Resync(context.Background())
		}
	}
}

func (f *Feed) handle(event feed.Event) {
	if event.Type != feed.MessageCreated {
		return
	}
	msg := event.Message
	if msg.ConversationID != f.conversationID {
		return
	}
	f.mu.Lock()
	if _, dup := f.seen[msg.ID]; dup {
		f.mu.Unlock()
		return
	}
	f.seen[msg.ID] = struct{}{}
	f.messages = append(f.messages, msg)
	n := len(f.messages)
	if n > 1 && msg.Before(&f.messages[n-2]) {
		sort.SliceStable(f.messages, func(i, j int) bool {
			return f.messages[i].Before(&f.messages[j])
		})
	}
	f.mu.Unlock()

	if msg.SenderID != f.viewerID {
		// the thread is on screen, so the peer's message is read the
		// moment it lands
		if err := f.service.MarkMessageRead(context.Background(), f.viewerID, f.conversationID, msg.ID); err == nil {
			msg.Read = true
			f.markLocalRead(msg.ID)
		} else if f.logger != nil {
			f.logger.Warn("live mark-read failed", "error", err, "message_id", msg.ID)
		}
	}
	if f.onMessage != nil {
		f.onMessage(msg)
	}
}

// Resync refetches the history and merges anything the live subscription
// missed. The pump runs it whenever the hub reports dropped delivery, so a
// lagging feed catches up without waiting for a reopen.
func (f *Feed) Resync(ctx context.Context) {
	history, err := f.service.Messages(ctx, f.viewerID, f.conversationID)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("feed resync failed", "error", err, "conversation_id", f.conversationID)
		}
		return
	}
	var fresh []domainchat.Message
	f.mu.Lock()
	for _, msg := range history {
		if _, dup := f.seen[msg.ID]; dup {
			continue
		}
		f.seen[msg.ID] = struct{}{}
		f.messages = append(f.messages, msg)
		fresh = append(fresh, msg)
	}
	if len(fresh) > 0 {
		sort.SliceStable(f.messages, func(i, j int) bool {
			return f.messages[i].Before(&f.messages[j])
		})
	}
	f.mu.Unlock()
	if len(fresh) == 0 {
		return
	}

	// missed inbound messages count as read now, same as on open
	if _, err := f.service.MarkRead(ctx, f.viewerID, f.conversationID); err == nil {
		f.mu.Lock()
		for i := range f.messages {
			if f.messages[i].SenderID != f.viewerID {
				f.messages[i].Read = true
			}
		}
		f.mu.Unlock()
		for i := range fresh {
			if fresh[i].SenderID != f.viewerID {
				fresh[i].Read = true
			}
		}
	} else if f.logger != nil {
		f.logger.Warn("bulk mark-read failed on resync", "error", err, "conversation_id", f.conversationID)
	}
	if f.onMessage != nil {
		for _, msg := range fresh {
			f.onMessage(msg)
		}
	}
}

func (f *Feed) markLocalRead(id domainchat.MessageID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.messages {
		if f.messages[i].ID == id {
			f.messages[i].Read = true
			return
		}
	}
}

// Messages returns a copy of the thread, oldest first.
func (f *Feed) Messages() []domainchat.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domainchat.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Close detaches from the change feed and waits for in-flight delivery to
// finish. After Close returns, OnMessage will not fire again.
func (f *Feed) Close() {
	f.closeOnce.Do(func() {
		f.sub.Close()
		<-f.done
	})
}
