package chat

import (
	"fmt"
	"log"
	"strings"

	"wanderlink/internal/model"
)

// dispatch routes one decoded inbound event to its handler. Handler
// failures are per-session: they never close the connection or leak into
// other sessions.
func (s *Service) dispatch(session Session, user *model.User, conv *model.Conversation, event model.ClientEvent) {
	switch event.Type {
	case model.EventSendMessage:
		s.handleSendMessage(session, user, conv, event)
	case model.EventTypingStart:
		s.registry.SetTyping(user.ID, conv.ID, true)
	case model.EventTypingStop:
		s.registry.SetTyping(user.ID, conv.ID, false)
	case model.EventMarkAsRead:
		s.handleMarkAsRead(user, conv, event)
	case model.EventPing:
		session.Send(model.PongEvent{Type: model.EventPong, Timestamp: s.now()})
	default:
		log.Printf("[WebSocket] Unknown message type %q from user %s", event.Type, user.ID)
		session.Send(model.ErrorEvent{
			Type:    model.EventError,
			Message: fmt.Sprintf("Unknown message type: %s", event.Type),
		})
	}
}

// handleSendMessage persists a message plus the conversation summary in
// one transaction, then echoes it to every attendee, the sender included.
func (s *Service) handleSendMessage(session Session, user *model.User, conv *model.Conversation, event model.ClientEvent) {
	content := strings.TrimSpace(event.Content)
	if content == "" {
		return
	}
	if len([]rune(content)) > model.MaxContentLen {
		session.Send(model.ErrorEvent{Type: model.EventError, Message: "Message content too long"})
		return
	}

	messageType := event.MessageType
	if messageType == "" {
		messageType = model.MessageTypeText
	}
	if !messageType.Valid() {
		session.Send(model.ErrorEvent{
			Type:    model.EventError,
			Message: fmt.Sprintf("Unknown message type: %s", messageType),
		})
		return
	}

	msg, err := s.gateway.CreateMessage(conv.ID, user.ID, content, messageType)
	if err != nil {
		log.Printf("[WebSocket] Failed to persist message from user %s in conversation %s: %v", user.ID, conv.ID, err)
		session.Send(model.ErrorEvent{Type: model.EventError, Message: "Failed to send message"})
		return
	}

	s.registry.BroadcastToConversation(conv.ID, model.NewMessageEvent{
		Type: model.EventNewMessage,
		Message: model.MessagePayload{
			Message:      *msg,
			SenderName:   user.FullName,
			SenderAvatar: user.AvatarURL,
		},
		Timestamp: s.now(),
	}, "")
}

// handleMarkAsRead advances read receipts and notifies the other
// attendees. A call that transitions nothing broadcasts nothing, so
// repeating it is a true no-op.
func (s *Service) handleMarkAsRead(user *model.User, conv *model.Conversation, event model.ClientEvent) {
	if len(event.MessageIDs) == 0 {
		return
	}

	now := s.now()
	count, err := s.gateway.MarkMessagesRead(conv.ID, user.ID, event.MessageIDs, now)
	if err != nil {
		log.Printf("[WebSocket] Failed to mark messages read for user %s in conversation %s: %v", user.ID, conv.ID, err)
		return
	}
	if count == 0 {
		return
	}

	s.registry.BroadcastToConversation(conv.ID, model.MessagesReadEvent{
		Type:           model.EventMessagesRead,
		MessageIDs:     event.MessageIDs,
		ReaderID:       user.ID,
		ConversationID: conv.ID,
		Timestamp:      now,
	}, user.ID)
}
