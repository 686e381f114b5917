package chat

import (
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"wanderlink/internal/model"
	"wanderlink/internal/store"
)

// Gateway is the persistence surface the messaging core consumes.
// *store.Store implements it.
type Gateway interface {
	CreateMessage(conversationID, senderID, content string, messageType model.MessageType) (*model.Message, error)
	MarkMessagesRead(conversationID, readerID string, messageIDs []string, at time.Time) (int64, error)
	MarkMessagesDelivered(conversationID, recipientID string, at time.Time) (int64, error)
	FindConversation(id string) (*model.Conversation, error)
	FindUser(id string) (*model.User, error)
}

// Verifier resolves a connection credential to a user id. *auth.Verifier
// implements it.
type Verifier interface {
	Resolve(credential string) (string, error)
}

// Service runs the per-connection session loop against the registry and
// the persistence gateway.
type Service struct {
	gateway  Gateway
	verifier Verifier
	registry *Registry

	now func() time.Time
}

// NewService wires the messaging core together.
func NewService(gateway Gateway, verifier Verifier, registry *Registry) *Service {
	return &Service{
		gateway:  gateway,
		verifier: verifier,
		registry: registry,
		now:      time.Now,
	}
}

// Registry exposes the connection registry for presence queries.
func (s *Service) Registry() *Registry {
	return s.registry
}

const closeWriteWait = 5 * time.Second

var errSessionClosed = errors.New("chat: session closed")

// wsSession adapts a gorilla connection to the registry's Session
// interface. gorilla/websocket permits only one concurrent writer, so all
// writes serialize on the session's mutex.
type wsSession struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newWSSession(conn *websocket.Conn) *wsSession {
	return &wsSession{conn: conn}
}

func (s *wsSession) Send(event interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	return s.conn.WriteJSON(event)
}

func (s *wsSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.conn.Close()
	}
}

// closeWith sends a close frame with the given code and drops the
// connection. Used for connection-establishment failures only.
func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(closeWriteWait)
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	conn.Close()
}

// ServeConn drives one upgraded connection from authentication to cleanup
// and returns when the session is closed. Every exit path, including a
// panic in a handler, unregisters the session exactly once.
func (s *Service) ServeConn(conn *websocket.Conn, conversationID, credential string) {
	if credential == "" {
		log.Printf("[WebSocket] Rejected connection to conversation %s: missing token", conversationID)
		closeWith(conn, websocket.ClosePolicyViolation, "Missing token")
		return
	}

	userID, err := s.verifier.Resolve(credential)
	if err != nil {
		log.Printf("[WebSocket] Rejected connection to conversation %s: invalid token", conversationID)
		closeWith(conn, websocket.ClosePolicyViolation, "Invalid token")
		return
	}

	user, err := s.gateway.FindUser(userID)
	if err != nil {
		log.Printf("[WebSocket] Rejected connection: unknown user %s: %v", userID, err)
		closeWith(conn, websocket.ClosePolicyViolation, "Invalid token")
		return
	}

	conv, err := s.gateway.FindConversation(conversationID)
	if err != nil || !conv.IsActive || !conv.IsParticipant(user.ID) {
		log.Printf("[WebSocket] Rejected connection: conversation %s not available for user %s", conversationID, user.ID)
		closeWith(conn, websocket.CloseUnsupportedData, "Conversation not found")
		return
	}

	session := newWSSession(conn)
	s.registry.Register(session, user.ID, conv.ID)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[WebSocket] Recovered panic in session for user %s: %v", user.ID, rec)
		}
		s.registry.Unregister(session, user.ID, conv.ID)
		session.Close()
		log.Printf("[WebSocket] User %s disconnected from conversation %s", user.ID, conv.ID)
	}()

	log.Printf("[WebSocket] User %s connected to conversation %s", user.ID, conv.ID)

	// The user is reachable now, so pending incoming messages count as
	// delivered.
	if _, err := s.gateway.MarkMessagesDelivered(conv.ID, user.ID, s.now()); err != nil {
		log.Printf("[WebSocket] Failed to mark messages delivered for user %s: %v", user.ID, err)
	}

	if err := session.Send(model.ConnectionEstablishedEvent{
		Type:           model.EventConnectionEstablished,
		ConversationID: conv.ID,
		UserID:         user.ID,
		Timestamp:      s.now(),
	}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event model.ClientEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("[WebSocket] Invalid JSON from user %s", user.ID)
			session.Send(model.ErrorEvent{Type: model.EventError, Message: "Invalid JSON format"})
			continue
		}

		s.dispatch(session, user, conv, event)
	}
}

var _ Gateway = (*store.Store)(nil)
