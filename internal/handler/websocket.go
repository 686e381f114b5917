package handler

import (
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// createUpgrader creates a WebSocket upgrader with the given allowed origins
func createUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients (tests, mobile apps) send no Origin.
				return true
			}
			return allowedMap[origin]
		},
	}
}

// HandleChatWebSocket handles GET /ws/chats/{id}. The credential travels as
// a query parameter because browsers cannot set headers on WebSocket
// upgrades; authentication and membership checks happen after the upgrade
// so failures surface as close codes the client can read.
func (h *Handler) HandleChatWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["id"]

	upgrader := createUpgrader(h.Config.AllowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WebSocket] Upgrade error for conversation %s: %v", conversationID, err)
		return
	}

	h.Chat.ServeConn(conn, conversationID, r.URL.Query().Get("token"))
}
