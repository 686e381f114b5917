package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"wanderlink/internal/model"
	"wanderlink/internal/store"
)

type sendMessageRequest struct {
	Content     string            `json:"content"`
	MessageType model.MessageType `json:"message_type"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

type messageListResponse struct {
	Messages []model.MessagePayload `json:"messages"`
	Total    int64                  `json:"total"`
	HasMore  bool                   `json:"has_more"`
}

// conversationForParticipant loads the conversation and checks membership.
// Non-participants get the same not-found answer as a missing id.
func (h *Handler) conversationForParticipant(id string, user *model.User) (*model.Conversation, error) {
	conv, err := h.Store.FindConversation(id)
	if err != nil {
		return nil, err
	}
	if !conv.IsParticipant(user.ID) {
		return nil, store.ErrNotFound
	}
	return conv, nil
}

// senderPayload attaches sender display fields to a message.
func (h *Handler) senderPayload(msg model.Message, senders map[string]*model.User) model.MessagePayload {
	payload := model.MessagePayload{Message: msg, SenderName: "Unknown"}
	sender, ok := senders[msg.SenderID]
	if !ok {
		if found, err := h.Store.FindUser(msg.SenderID); err == nil {
			sender = found
			senders[msg.SenderID] = found
		}
	}
	if sender != nil {
		payload.SenderName = sender.FullName
		payload.SenderAvatar = sender.AvatarURL
	}
	return payload
}

// ListMessages handles GET /api/chats/{id}/messages. Fetching a page also
// marks the caller's incoming messages as read, mirroring a chat window
// being opened.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	id := mux.Vars(r)["id"]
	conv, err := h.conversationForParticipant(id, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found or access denied")
			return
		}
		log.Printf("[GET /api/chats/%s/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	limit, offset := pagination(r, 50, 100)

	msgs, total, err := h.Store.ListMessages(conv.ID, limit, offset)
	if err != nil {
		log.Printf("[GET /api/chats/%s/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch messages")
		return
	}

	// Opening the conversation reads everything addressed to the caller.
	if unread, err := h.Store.UnreadMessageIDs(conv.ID, user.ID); err == nil && len(unread) > 0 {
		if _, err := h.Store.MarkMessagesRead(conv.ID, user.ID, unread, time.Now()); err != nil {
			log.Printf("[GET /api/chats/%s/messages] ❌ Failed to mark messages read: %v", id, err)
		}
	}

	senders := make(map[string]*model.User)
	resp := messageListResponse{
		Messages: make([]model.MessagePayload, 0, len(msgs)),
		Total:    total,
		HasMore:  int64(offset+len(msgs)) < total,
	}
	for _, msg := range msgs {
		resp.Messages = append(resp.Messages, h.senderPayload(msg, senders))
	}

	log.Printf("[GET /api/chats/%s/messages] ✅ Returned %d messages", id, len(resp.Messages))
	writeJSON(w, http.StatusOK, resp)
}

// SendMessage handles POST /api/chats/{id}/messages. The REST path shares
// the WebSocket path's semantics: one transaction for message plus summary,
// then fanout to every live attendee of the conversation.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	id := mux.Vars(r)["id"]
	conv, err := h.conversationForParticipant(id, user)
	if err != nil || !conv.IsActive {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found or access denied")
			return
		}
		log.Printf("[POST /api/chats/%s/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len([]rune(content)) > model.MaxContentLen {
		writeError(w, http.StatusBadRequest, "content too long")
		return
	}
	messageType := req.MessageType
	if messageType == "" {
		messageType = model.MessageTypeText
	}
	if !messageType.Valid() {
		writeError(w, http.StatusBadRequest, "unknown message_type")
		return
	}

	msg, err := h.Store.CreateMessage(conv.ID, user.ID, content, messageType)
	if err != nil {
		log.Printf("[POST /api/chats/%s/messages] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to send message")
		return
	}

	payload := model.MessagePayload{
		Message:      *msg,
		SenderName:   user.FullName,
		SenderAvatar: user.AvatarURL,
	}

	h.Chat.Registry().BroadcastToConversation(conv.ID, model.NewMessageEvent{
		Type:      model.EventNewMessage,
		Message:   payload,
		Timestamp: time.Now(),
	}, "")

	log.Printf("[POST /api/chats/%s/messages] ✅ Created message %s", id, msg.ID)
	writeJSON(w, http.StatusCreated, payload)
}

// EditMessage handles PUT /api/chats/{id}/messages/{messageID}. Only the
// sender may edit, and only within the edit window.
func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	vars := mux.Vars(r)
	id, messageID := vars["id"], vars["messageID"]

	if _, err := h.conversationForParticipant(id, user); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found or access denied")
			return
		}
		log.Printf("[PUT /api/chats/%s/messages/%s] ❌ Database error: %v", id, messageID, err)
		writeError(w, http.StatusInternalServerError, "Failed to edit message")
		return
	}

	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len([]rune(content)) > model.MaxContentLen {
		writeError(w, http.StatusBadRequest, "content too long")
		return
	}

	msg, err := h.Store.EditMessage(id, messageID, user.ID, content, time.Now())
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Message not found or access denied")
		return
	}
	if errors.Is(err, store.ErrEditWindowExpired) {
		writeError(w, http.StatusBadRequest, "Messages can only be edited within 15 minutes of sending")
		return
	}
	if err != nil {
		log.Printf("[PUT /api/chats/%s/messages/%s] ❌ Database error: %v", id, messageID, err)
		writeError(w, http.StatusInternalServerError, "Failed to edit message")
		return
	}

	log.Printf("[PUT /api/chats/%s/messages/%s] ✅ Edited", id, messageID)
	writeJSON(w, http.StatusOK, model.MessagePayload{
		Message:      *msg,
		SenderName:   user.FullName,
		SenderAvatar: user.AvatarURL,
	})
}
