// Package chat is the real-time messaging core: it tracks live WebSocket
// sessions per user and conversation, runs the per-connection event loop,
// and fans events out to every attendee.
package chat

import (
	"sort"
	"sync"
	"time"

	"wanderlink/internal/model"
)

// Session is one live transport connection as the registry sees it. Send
// reports delivery failure so the registry can prune dead sessions instead
// of swallowing write errors.
type Session interface {
	Send(event interface{}) error
	Close()
}

// Registry is the single source of truth for who is currently reachable
// and where. It owns three mappings: user to live sessions, conversation
// to attending users, and user to per-conversation typing flags. The maps
// are never exposed; every mutation happens under one lock.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]map[Session]struct{} // user id -> live sessions
	attendees map[string]map[string]struct{}  // conversation id -> user ids
	typing    map[string]map[string]bool      // user id -> conversation id -> flag

	now func() time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions:  make(map[string]map[Session]struct{}),
		attendees: make(map[string]map[string]struct{}),
		typing:    make(map[string]map[string]bool),
		now:       time.Now,
	}
}

// Register adds a session for userID attending conversationID. Calling it
// twice for the same session is a no-op.
func (r *Registry) Register(s Session, userID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sessions[userID] == nil {
		r.sessions[userID] = make(map[Session]struct{})
	}
	r.sessions[userID][s] = struct{}{}

	if r.attendees[conversationID] == nil {
		r.attendees[conversationID] = make(map[string]struct{})
	}
	r.attendees[conversationID][userID] = struct{}{}
}

// Unregister removes a session. When the user's last session goes away the
// user leaves the conversation's attendee set and their typing flag for it
// is cleared; if a flag existed, the remaining attendees get a
// typing-stopped event. Unregistering an unknown session is a no-op.
func (r *Registry) Unregister(s Session, userID, conversationID string) {
	r.mu.Lock()

	if set, ok := r.sessions[userID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.sessions, userID)
		}
	}

	notifyStopped := false
	if _, gone := r.sessions[userID]; !gone {
		if set, ok := r.attendees[conversationID]; ok {
			delete(set, userID)
			if len(set) == 0 {
				delete(r.attendees, conversationID)
			}
		}
		if flags, ok := r.typing[userID]; ok {
			if _, had := flags[conversationID]; had {
				delete(flags, conversationID)
				notifyStopped = true
			}
			if len(flags) == 0 {
				delete(r.typing, userID)
			}
		}
	}

	r.mu.Unlock()

	if notifyStopped {
		r.BroadcastToConversation(conversationID, model.TypingStatusEvent{
			Type:           model.EventTypingStatus,
			UserID:         userID,
			ConversationID: conversationID,
			IsTyping:       false,
			Timestamp:      r.now(),
		}, userID)
	}
}

// SendToUser delivers event to every live session of userID, best effort.
// Sessions whose transport rejects the write are closed and pruned; one
// dead session never blocks delivery to the rest.
func (r *Registry) SendToUser(userID string, event interface{}) {
	r.mu.RLock()
	snapshot := make([]Session, 0, len(r.sessions[userID]))
	for s := range r.sessions[userID] {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	var dead []Session
	for _, s := range snapshot {
		if err := s.Send(event); err != nil {
			s.Close()
			dead = append(dead, s)
		}
	}

	if len(dead) == 0 {
		return
	}
	r.mu.Lock()
	if set, ok := r.sessions[userID]; ok {
		for _, s := range dead {
			delete(set, s)
		}
		if len(set) == 0 {
			delete(r.sessions, userID)
		}
	}
	r.mu.Unlock()
}

// BroadcastToConversation delivers event to every attending user of the
// conversation except excludeUserID (empty string excludes no one).
func (r *Registry) BroadcastToConversation(conversationID string, event interface{}, excludeUserID string) {
	for _, userID := range r.Attendees(conversationID) {
		if excludeUserID != "" && userID == excludeUserID {
			continue
		}
		r.SendToUser(userID, event)
	}
}

// SetTyping updates the user's typing flag for the conversation and tells
// the other attendees.
func (r *Registry) SetTyping(userID, conversationID string, isTyping bool) {
	r.mu.Lock()
	if r.typing[userID] == nil {
		r.typing[userID] = make(map[string]bool)
	}
	r.typing[userID][conversationID] = isTyping
	r.mu.Unlock()

	r.BroadcastToConversation(conversationID, model.TypingStatusEvent{
		Type:           model.EventTypingStatus,
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       isTyping,
		Timestamp:      r.now(),
	}, userID)
}

// Attendees returns the users currently attending the conversation.
func (r *Registry) Attendees(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.attendees[conversationID]))
	for userID := range r.attendees[conversationID] {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}
