package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"wanderlink/internal/auth"
	"wanderlink/internal/chat"
	"wanderlink/internal/config"
	"wanderlink/internal/model"
	"wanderlink/internal/store"
)

// Handler holds application dependencies
type Handler struct {
	Store    *store.Store
	Config   config.Config
	Verifier *auth.Verifier
	Chat     *chat.Service
}

// New creates a new Handler with the given dependencies
func New(st *store.Store, cfg config.Config, verifier *auth.Verifier, chatSvc *chat.Service) *Handler {
	return &Handler{
		Store:    st,
		Config:   cfg,
		Verifier: verifier,
		Chat:     chatSvc,
	}
}

// SetupRouter configures and returns the HTTP router
func (h *Handler) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// REST API
	r.HandleFunc("/api/chats", h.ListConversations).Methods("GET")
	r.HandleFunc("/api/chats", h.CreateConversation).Methods("POST")
	r.HandleFunc("/api/chats/{id}", h.ArchiveConversation).Methods("DELETE")
	r.HandleFunc("/api/chats/{id}/messages", h.ListMessages).Methods("GET")
	r.HandleFunc("/api/chats/{id}/messages", h.SendMessage).Methods("POST")
	r.HandleFunc("/api/chats/{id}/messages/{messageID}", h.EditMessage).Methods("PUT")

	// WebSocket
	r.HandleFunc("/ws/chats/{id}", h.HandleChatWebSocket).Methods("GET")

	return r
}

// writeJSON writes v as the JSON response body
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body in the {"error": ...} shape
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// currentUser resolves the Authorization bearer token to a user
func (h *Handler) currentUser(r *http.Request) (*model.User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, auth.ErrInvalidToken
	}

	userID, err := h.Verifier.Resolve(strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}

	return h.Store.FindUser(userID)
}

// pagination reads limit/offset query parameters with bounds
func pagination(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= maxLimit {
			limit = n
		}
	}

	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
