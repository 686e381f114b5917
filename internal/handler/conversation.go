package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"wanderlink/internal/model"
	"wanderlink/internal/store"
)

// conversationResponse is a conversation enriched with the peer's display
// fields so list views render without extra profile lookups.
type conversationResponse struct {
	store.ConversationSummary
	OtherParticipantID     string `json:"other_participant_id"`
	OtherParticipantName   string `json:"other_participant_name"`
	OtherParticipantAvatar string `json:"other_participant_avatar,omitempty"`
}

type chatListResponse struct {
	Conversations []conversationResponse `json:"conversations"`
	Total         int64                  `json:"total"`
	HasMore       bool                   `json:"has_more"`
}

type createConversationRequest struct {
	LocalID        string `json:"local_id"`
	InitialMessage string `json:"initial_message"`
}

// toConversationResponse resolves the other participant's display fields.
func (h *Handler) toConversationResponse(summary store.ConversationSummary, userID string) conversationResponse {
	resp := conversationResponse{ConversationSummary: summary}

	otherID := summary.OtherParticipant(userID)
	resp.OtherParticipantID = otherID
	resp.OtherParticipantName = "Unknown"
	if other, err := h.Store.FindUser(otherID); err == nil {
		resp.OtherParticipantName = other.FullName
		resp.OtherParticipantAvatar = other.AvatarURL
	}
	return resp
}

// ListConversations handles GET /api/chats
func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	limit, offset := pagination(r, 20, 100)

	summaries, total, err := h.Store.ListConversations(user.ID, limit, offset)
	if err != nil {
		log.Printf("[GET /api/chats] ❌ Database error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch conversations")
		return
	}

	resp := chatListResponse{
		Conversations: make([]conversationResponse, 0, len(summaries)),
		Total:         total,
		HasMore:       int64(offset+len(summaries)) < total,
	}
	for _, summary := range summaries {
		resp.Conversations = append(resp.Conversations, h.toConversationResponse(summary, user.ID))
	}

	log.Printf("[GET /api/chats] ✅ Returned %d conversations for user %s", len(resp.Conversations), user.ID)
	writeJSON(w, http.StatusOK, resp)
}

// CreateConversation handles POST /api/chats. Creation is idempotent: an
// existing active conversation with the same local guide is returned
// instead of a duplicate.
func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	initial := strings.TrimSpace(req.InitialMessage)
	if req.LocalID == "" || initial == "" {
		writeError(w, http.StatusBadRequest, "local_id and initial_message are required")
		return
	}
	if len([]rune(initial)) > model.MaxContentLen {
		writeError(w, http.StatusBadRequest, "initial_message too long")
		return
	}

	local, err := h.Store.FindActiveLocal(req.LocalID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Local guide not found or inactive")
		return
	}
	if err != nil {
		log.Printf("[POST /api/chats] ❌ Database error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	conv, created, err := h.Store.CreateConversation(user.ID, local.ID, initial)
	if err != nil {
		log.Printf("[POST /api/chats] ❌ Database error: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	if created {
		log.Printf("[POST /api/chats] ✅ Created conversation %s (%s ↔ %s)", conv.ID, user.ID, local.ID)
	} else {
		log.Printf("[POST /api/chats] ✅ Reused conversation %s (%s ↔ %s)", conv.ID, user.ID, local.ID)
	}

	resp := conversationResponse{
		ConversationSummary:  store.ConversationSummary{Conversation: *conv},
		OtherParticipantID:   local.ID,
		OtherParticipantName: local.FullName,
	}
	resp.OtherParticipantAvatar = local.AvatarURL
	writeJSON(w, http.StatusCreated, resp)
}

// ArchiveConversation handles DELETE /api/chats/{id}. The archive is soft
// and per-side: the other participant's view is untouched.
func (h *Handler) ArchiveConversation(w http.ResponseWriter, r *http.Request) {
	user, err := h.currentUser(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.Store.ArchiveConversation(id, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found or access denied")
			return
		}
		log.Printf("[DELETE /api/chats/%s] ❌ Database error: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to archive conversation")
		return
	}

	log.Printf("[DELETE /api/chats/%s] ✅ Archived for user %s", id, user.ID)
	w.WriteHeader(http.StatusNoContent)
}
