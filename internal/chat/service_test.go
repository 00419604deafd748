package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/domain/profiles"
	"filmtorget/internal/feed"
	"filmtorget/internal/storage/memory"
)

type fixture struct {
	service  *Service
	listings *memory.ListingRepository
	hub      *feed.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	listingRepo := memory.NewListingRepository()
	profileRepo := memory.NewProfileRepository()
	hub := feed.NewHub(nil)
	service := &Service{
		Store:       memory.NewChatStore(),
		Listings:    listingRepo,
		Profiles:    profileRepo,
		Reviews:     memory.NewReviewRepository(),
		Events:      hub,
		CallTimeout: 2 * time.Second,
	}

	ctx := context.Background()
	require.NoError(t, listingRepo.Save(ctx, &listings.Listing{
		ID:      "listing-1",
		OwnerID: "seller",
		Title:   "Pentax K1000",
		Price:   950,
	}))
	require.NoError(t, profileRepo.Save(ctx, &profiles.Profile{ID: "seller", Username: "astrid"}))
	require.NoError(t, profileRepo.Save(ctx, &profiles.Profile{ID: "buyer", Username: "jonas"}))

	return &fixture{service: service, listings: listingRepo, hub: hub}
}

func (f *fixture) open(t *testing.T, buyerID string) *domainchat.Conversation {
	t.Helper()
	conv, err := f.service.OpenConversation(context.Background(), buyerID, "listing-1")
	require.NoError(t, err)
	return conv
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err))
}

func TestOpenConversationResolvesToOneThread(t *testing.T) {
	f := newFixture(t)

	first := f.open(t, "buyer")
	second := f.open(t, "buyer")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "seller", first.SellerID)
}

func TestOpenConversationRejectsOwner(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.OpenConversation(context.Background(), "seller", "listing-1")
	assertCode(t, err, codes.InvalidArgument)
}

func TestOpenConversationUnknownListing(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.OpenConversation(context.Background(), "buyer", "missing")
	assertCode(t, err, codes.NotFound)
}

func TestOpenConversationRequiresViewer(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.OpenConversation(context.Background(), "  ", "listing-1")
	assertCode(t, err, codes.Unauthenticated)
}

func TestSendRequiresMembership(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, "buyer")

	_, err := f.service.Send(context.Background(), "stranger", conv.ID, "let me in")
	assertCode(t, err, codes.PermissionDenied)
}

func TestSendRejectsBlankText(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, "buyer")

	_, err := f.service.Send(context.Background(), "buyer", conv.ID, "   ")
	assertCode(t, err, codes.InvalidArgument)
}

func TestSendPublishesInsertEvent(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, "buyer")
	sub := f.hub.Subscribe(conv.ID)
	defer sub.Close()

	msg, err := f.service.Send(context.Background(), "buyer", conv.ID, "is it still available?")
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.False(t, msg.Read)

	select {
	case event := <-sub.C():
		assert.Equal(t, feed.MessageCreated, event.Type)
		assert.Equal(t, msg.ID, event.Message.ID)
		assert.Equal(t, "is it still available?", event.Message.Text)
	case <-time.After(time.Second):
		t.Fatal("no change feed event observed")
	}
}

func TestDirectoryOrdersByLatestActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.listings.Save(ctx, &listings.Listing{
		ID:      "listing-2",
		OwnerID: "seller",
		Title:   "Rolleiflex",
		Price:   4200,
	}))

	first := f.open(t, "buyer")
	second, err := f.service.OpenConversation(ctx, "buyer", "listing-2")
	require.NoError(t, err)

	_, err = f.service.Send(ctx, "buyer", second.ID, "hello")
	require.NoError(t, err)
	_, err = f.service.Send(ctx, "seller", first.ID, "still for sale")
	require.NoError(t, err)

	entries, err := f.service.Directory(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, first.ID, entries[0].Conversation.ID, "latest message wins")
	assert.Equal(t, second.ID, entries[1].Conversation.ID)
	assert.Equal(t, 1, entries[0].UnreadCount)
	assert.Zero(t, entries[1].UnreadCount)
	require.NotNil(t, entries[0].LastMessage)
	assert.Equal(t, "still for sale", entries[0].LastMessage.Text)
	require.NotNil(t, entries[0].Listing)
	assert.Equal(t, "Pentax K1000", entries[0].Listing.Title)
	require.NotNil(t, entries[0].Peer)
	assert.Equal(t, "astrid", entries[0].Peer.Username)
}

func TestSessionViewRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, "buyer")

	buyerView, err := f.service.Session(ctx, "buyer", conv.ID)
	require.NoError(t, err)
	assert.False(t, buyerView.IsSeller)
	require.NotNil(t, buyerView.Seller)
	assert.Equal(t, "astrid", buyerView.Seller.Username)

	sellerView, err := f.service.Session(ctx, "seller", conv.ID)
	require.NoError(t, err)
	assert.True(t, sellerView.IsSeller)

	_, err = f.service.Session(ctx, "stranger", conv.ID)
	assertCode(t, err, codes.PermissionDenied)

	_, err = f.service.Session(ctx, "buyer", "missing")
	assertCode(t, err, codes.NotFound)
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, "buyer")

	_, err := f.service.Send(ctx, "seller", conv.ID, "one")
	require.NoError(t, err)
	_, err = f.service.Send(ctx, "seller", conv.ID, "two")
	require.NoError(t, err)

	flipped, err := f.service.MarkRead(ctx, "buyer", conv.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, flipped)

	flipped, err = f.service.MarkRead(ctx, "buyer", conv.ID)
	require.NoError(t, err)
	assert.Zero(t, flipped)

	badge, err := f.service.UnreadBadge(ctx, "buyer")
	require.NoError(t, err)
	assert.Zero(t, badge)
}

func TestMarkSoldIsSellerOnlyAndOneWay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.MarkSold(ctx, "buyer", "listing-1")
	assertCode(t, err, codes.PermissionDenied)

	listing, err := f.service.MarkSold(ctx, "seller", "listing-1")
	require.NoError(t, err)
	assert.True(t, listing.Sold)

	// a repeat is a harmless no-op
	listing, err = f.service.MarkSold(ctx, "seller", "listing-1")
	require.NoError(t, err)
	assert.True(t, listing.Sold)
}

func TestSubmitReviewLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, "buyer")

	_, err := f.service.SubmitReview(ctx, "buyer", conv.ID, 5, "great camera")
	assertCode(t, err, codes.FailedPrecondition)

	_, err = f.service.MarkSold(ctx, "seller", "listing-1")
	require.NoError(t, err)

	_, err = f.service.SubmitReview(ctx, "seller", conv.ID, 5, "me myself")
	assertCode(t, err, codes.PermissionDenied)

	_, err = f.service.SubmitReview(ctx, "buyer", conv.ID, 6, "over the top")
	assertCode(t, err, codes.InvalidArgument)

	review, err := f.service.SubmitReview(ctx, "buyer", conv.ID, 5, "great camera")
	require.NoError(t, err)
	assert.Equal(t, "seller", review.ReceiverID)

	_, err = f.service.SubmitReview(ctx, "buyer", conv.ID, 4, "changed my mind")
	assertCode(t, err, codes.AlreadyExists)

	view, err := f.service.Session(ctx, "buyer", conv.ID)
	require.NoError(t, err)
	assert.True(t, view.ReviewSubmitted)
}

func TestUnreadBadgeSpansConversations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.listings.Save(ctx, &listings.Listing{
		ID:      "listing-2",
		OwnerID: "seller",
		Title:   "Rolleiflex",
		Price:   4200,
	}))

	first := f.open(t, "buyer")
	second, err := f.service.OpenConversation(ctx, "buyer", "listing-2")
	require.NoError(t, err)

	_, err = f.service.Send(ctx, "seller", first.ID, "a")
	require.NoError(t, err)
	_, err = f.service.Send(ctx, "seller", second.ID, "b")
	require.NoError(t, err)
	_, err = f.service.Send(ctx, "buyer", second.ID, "c")
	require.NoError(t, err)

	badge, err := f.service.UnreadBadge(ctx, "buyer")
	require.NoError(t, err)
	assert.Equal(t, 2, badge)

	badge, err = f.service.UnreadBadge(ctx, "seller")
	require.NoError(t, err)
	assert.Equal(t, 1, badge)
}
