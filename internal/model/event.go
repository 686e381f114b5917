package model

import "time"

// Inbound WebSocket event types.
const (
	EventSendMessage = "send_message"
	EventTypingStart = "typing_start"
	EventTypingStop  = "typing_stop"
	EventMarkAsRead  = "mark_as_read"
	EventPing        = "ping"
)

// Outbound WebSocket event types.
const (
	EventConnectionEstablished = "connection_established"
	EventNewMessage            = "new_message"
	EventTypingStatus          = "typing_status"
	EventMessagesRead          = "messages_read"
	EventPong                  = "pong"
	EventError                 = "error"
)

// ClientEvent is the envelope for every frame a client sends. Fields other
// than Type are set depending on the event type.
type ClientEvent struct {
	Type        string      `json:"type"`
	Content     string      `json:"content,omitempty"`
	MessageType MessageType `json:"message_type,omitempty"`
	MessageIDs  []string    `json:"message_ids,omitempty"`
}

// ConnectionEstablishedEvent is sent to a session right after it registers.
type ConnectionEstablishedEvent struct {
	Type           string    `json:"type"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// MessagePayload is a Message enriched with sender display fields for
// fanout; clients render it without a follow-up profile lookup.
type MessagePayload struct {
	Message
	SenderName   string `json:"sender_name"`
	SenderAvatar string `json:"sender_avatar,omitempty"`
}

// NewMessageEvent carries a freshly persisted message to every attendee.
type NewMessageEvent struct {
	Type      string         `json:"type"`
	Message   MessagePayload `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

// TypingStatusEvent reports a participant starting or stopping typing.
type TypingStatusEvent struct {
	Type           string    `json:"type"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}

// MessagesReadEvent reports a read receipt to the other attendees.
type MessagesReadEvent struct {
	Type           string    `json:"type"`
	MessageIDs     []string  `json:"message_ids"`
	ReaderID       string    `json:"reader_id"`
	ConversationID string    `json:"conversation_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// PongEvent answers a client ping on the same session.
type PongEvent struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorEvent reports a recoverable per-session error without closing the
// connection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
