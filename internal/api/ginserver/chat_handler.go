package ginserver

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"filmtorget/internal/chat"
	domainchat "filmtorget/internal/domain/chat"
	"filmtorget/internal/domain/listings"
	"filmtorget/internal/feed"
)

// ChatHTTP exposes the messenger endpoints.
type ChatHTTP interface {
	ContactSeller(c *gin.Context)
	Directory(c *gin.Context)
	Session(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkRead(c *gin.Context)
	Stream(c *gin.Context)
	MarkSold(c *gin.Context)
	SubmitReview(c *gin.Context)
	UnreadBadge(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat core and the live change feed.
type ChatHandler struct {
	Chat   *chat.Service
	Hub    *feed.Hub
	Logger *slog.Logger
}

// ContactSeller opens (or returns) the buyer's conversation about a listing.
func (h ChatHandler) ContactSeller(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listingID := strings.TrimSpace(c.Param("id"))
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	conversation, err := h.Chat.OpenConversation(c.Request.Context(), principal.ID, listings.ListingID(listingID))
	if err != nil {
		h.respondChatError(c, err, "open conversation", "listing_id", listingID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, newConversationDTO(*conversation))
}

// Directory returns the user's inbox sorted by latest activity.
func (h ChatHandler) Directory(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	entries, err := h.Chat.Directory(c.Request.Context(), principal.ID)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", principal.ID)
		return
	}
	items := make([]directoryEntryDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, newDirectoryEntryDTO(entry))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Session returns one conversation's full view model.
func (h ChatHandler) Session(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	view, err := h.Chat.Session(c.Request.Context(), principal.ID, domainchat.ConversationID(conversationID))
	if err != nil {
		h.respondChatError(c, err, "load session", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, newSessionDTO(view))
}

// ListMessages returns the conversation history, oldest first.
func (h ChatHandler) ListMessages(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	messages, err := h.Chat.Messages(c.Request.Context(), principal.ID, domainchat.ConversationID(conversationID))
	if err != nil {
		h.respondChatError(c, err, "list messages", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	items := make([]messageDTO, 0, len(messages))
	for _, msg := range messages {
		items = append(items, newMessageDTO(msg))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// SendMessage posts a message to a conversation.
func (h ChatHandler) SendMessage(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	message, err := h.Chat.Send(c.Request.Context(), principal.ID, domainchat.ConversationID(conversationID), req.Text)
	if err != nil {
		h.respondChatError(c, err, "send message", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, newMessageDTO(*message))
}

// MarkRead flips every unread message from the peer in one conversation.
func (h ChatHandler) MarkRead(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	flipped, err := h.Chat.MarkRead(c.Request.Context(), principal.ID, domainchat.ConversationID(conversationID))
	if err != nil {
		h.respondChatError(c, err, "mark read", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": flipped})
}

// Stream pushes the conversation's insert events over SSE until the client
// disconnects.
func (h ChatHandler) Stream(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	if h.Hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live feed unavailable"})
		return
	}
	// membership is checked before the subscription is taken so an outsider
	// never holds a hub slot
	if _, err := h.Chat.Conversation(c.Request.Context(), principal.ID, domainchat.ConversationID(conversationID)); err != nil {
		h.respondChatError(c, err, "open stream", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	sub := h.Hub.Subscribe(domainchat.ConversationID(conversationID))
	defer sub.Close()

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, open := <-sub.C():
			if !open {
				return false
			}
			c.SSEvent("message", newMessageDTO(event.Message))
			return true
		case <-ctx.Done():
			return false
		}
	})
}

// MarkSold flips the caller's listing to sold.
func (h ChatHandler) MarkSold(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	listingID := strings.TrimSpace(c.Param("id"))
	if listingID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing id is required"})
		return
	}
	listing, err := h.Chat.MarkSold(c.Request.Context(), principal.ID, listings.ListingID(listingID))
	if err != nil {
		h.respondChatError(c, err, "mark sold", "listing_id", listingID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, newListingDTO(listing))
}

// SubmitReview records the buyer's review after a concluded purchase.
func (h ChatHandler) SubmitReview(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	var req struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	review, err := h.Chat.SubmitReview(c.Request.Context(), principal.ID, domainchat.ConversationID(conversationID), req.Rating, req.Comment)
	if err != nil {
		h.respondChatError(c, err, "submit review", "conversation_id", conversationID, "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusCreated, newReviewDTO(review))
}

// UnreadBadge reports the user's total unread message count.
func (h ChatHandler) UnreadBadge(c *gin.Context) {
	principal, ok := requireAuth(c)
	if !ok {
		return
	}
	count, err := h.Chat.UnreadBadge(c.Request.Context(), principal.ID)
	if err != nil {
		h.respondChatError(c, err, "unread badge", "user_id", principal.ID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.NotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		case codes.InvalidArgument:
			c.JSON(http.StatusBadRequest, gin.H{"error": st.Message()})
			return
		case codes.Unauthenticated:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
			return
		case codes.PermissionDenied:
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		case codes.AlreadyExists, codes.FailedPrecondition:
			c.JSON(http.StatusConflict, gin.H{"error": st.Message()})
			return
		case codes.Unavailable, codes.DeadlineExceeded:
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat unavailable"})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

var _ ChatHTTP = (*ChatHandler)(nil)
