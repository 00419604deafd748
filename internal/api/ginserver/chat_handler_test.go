package ginserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authsvc "filmtorget/internal/auth"
	"filmtorget/internal/chat"
	"filmtorget/internal/config"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/feed"
	"filmtorget/internal/obs"
	"filmtorget/internal/security"
	"filmtorget/internal/storage/memory"
)

type testServer struct {
	handler  http.Handler
	listings *memory.ListingRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	listingRepo := memory.NewListingRepository()
	profileRepo := memory.NewProfileRepository()
	hub := feed.NewHub(nil)

	chatService := &chat.Service{
		Store:       memory.NewChatStore(),
		Listings:    listingRepo,
		Profiles:    profileRepo,
		Reviews:     memory.NewReviewRepository(),
		Events:      hub,
		CallTimeout: 2 * time.Second,
	}
	authService := &authsvc.Service{
		Users:      memory.NewUserRepository(),
		Profiles:   profileRepo,
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: time.Hour,
	}

	mw := AuthMiddleware{Service: authService}
	server := NewServer(config.Config{Env: "test", HTTPAddr: ":0"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Auth:           AuthHandler{Service: authService, Profiles: profileRepo},
		Chat:           ChatHandler{Chat: chatService, Hub: hub},
		AuthMiddleware: mw.Handle,
	})
	return &testServer{handler: server.Handler, listings: listingRepo}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), target))
}

// register creates an account through the API and returns (user id, token).
func (ts *testServer) register(t *testing.T, email, username string) (string, string) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    email,
		"username": username,
		"password": "long enough",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	decodeJSON(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.User.ID, resp.Token
}

func (ts *testServer) seedListing(t *testing.T, id, ownerID, title string) {
	t.Helper()
	require.NoError(t, ts.listings.Save(t.Context(), &listings.Listing{
		ID:      listings.ListingID(id),
		OwnerID: ownerID,
		Title:   title,
		Price:   500,
	}))
}

func TestRegisterLoginMe(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.register(t, "jonas@example.com", "jonas")

	rec := ts.do(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Email    string `json:"email"`
		Username string `json:"username"`
	}
	decodeJSON(t, rec, &me)
	assert.Equal(t, "jonas@example.com", me.Email)
	assert.Equal(t, "jonas", me.Username)

	rec = ts.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestConversationLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	sellerID, sellerToken := ts.register(t, "astrid@example.com", "astrid")
	_, buyerToken := ts.register(t, "jonas@example.com", "jonas")
	ts.seedListing(t, "listing-1", sellerID, "Pentax K1000")

	rec := ts.do(t, http.MethodPost, "/api/v1/listings/listing-1/contact", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var conv struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &conv)
	require.NotEmpty(t, conv.ID)

	rec = ts.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", buyerToken, map[string]string{"text": "still available?"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listing struct {
		Items []struct {
			Text   string `json:"text"`
			IsRead bool   `json:"is_read"`
		} `json:"items"`
	}
	decodeJSON(t, rec, &listing)
	require.Len(t, listing.Items, 1)
	assert.Equal(t, "still available?", listing.Items[0].Text)
	assert.False(t, listing.Items[0].IsRead)

	rec = ts.do(t, http.MethodGet, "/api/v1/me/unread", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var badge struct {
		Unread int `json:"unread"`
	}
	decodeJSON(t, rec, &badge)
	assert.Equal(t, 1, badge.Unread)

	rec = ts.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/read", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/me/unread", sellerToken, nil)
	decodeJSON(t, rec, &badge)
	assert.Zero(t, badge.Unread)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var directory struct {
		Items []struct {
			Listing struct {
				Title string `json:"title"`
			} `json:"listing"`
			UnreadCount int `json:"unread_count"`
		} `json:"items"`
	}
	decodeJSON(t, rec, &directory)
	require.Len(t, directory.Items, 1)
	assert.Equal(t, "Pentax K1000", directory.Items[0].Listing.Title)
}

func TestConversationAccessControl(t *testing.T) {
	ts := newTestServer(t)
	sellerID, _ := ts.register(t, "astrid@example.com", "astrid")
	_, buyerToken := ts.register(t, "jonas@example.com", "jonas")
	_, strangerToken := ts.register(t, "sven@example.com", "sven")
	ts.seedListing(t, "listing-1", sellerID, "Pentax K1000")

	rec := ts.do(t, http.MethodPost, "/api/v1/listings/listing-1/contact", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conv struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &conv)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, strangerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations/nope", buyerToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkSoldAndReviewOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	sellerID, sellerToken := ts.register(t, "astrid@example.com", "astrid")
	_, buyerToken := ts.register(t, "jonas@example.com", "jonas")
	ts.seedListing(t, "listing-1", sellerID, "Pentax K1000")

	rec := ts.do(t, http.MethodPost, "/api/v1/listings/listing-1/contact", buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var conv struct {
		ID string `json:"id"`
	}
	decodeJSON(t, rec, &conv)

	rec = ts.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/review", buyerToken, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, rec.Code, "review requires a concluded sale")

	rec = ts.do(t, http.MethodPost, "/api/v1/listings/listing-1/sold", buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/listings/listing-1/sold", sellerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sold struct {
		Sold bool `json:"sold"`
	}
	decodeJSON(t, rec, &sold)
	assert.True(t, sold.Sold)

	rec = ts.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/review", buyerToken, map[string]any{"rating": 5, "comment": "smooth deal"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/review", buyerToken, map[string]any{"rating": 4})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, buyerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view struct {
		ReviewSubmitted bool `json:"review_submitted"`
	}
	decodeJSON(t, rec, &view)
	assert.True(t, view.ReviewSubmitted)
}

func TestContactOwnListingRejected(t *testing.T) {
	ts := newTestServer(t)
	sellerID, sellerToken := ts.register(t, "astrid@example.com", "astrid")
	ts.seedListing(t, "listing-1", sellerID, "Pentax K1000")

	rec := ts.do(t, http.MethodPost, "/api/v1/listings/listing-1/contact", sellerToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", "", nil).Code)
}
