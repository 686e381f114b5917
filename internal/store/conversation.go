package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wanderlink/internal/model"
)

// ConversationSummary is a conversation plus the caller's unread count,
// used by the list view.
type ConversationSummary struct {
	model.Conversation
	UnreadCount int64 `json:"unread_count"`
}

// FindConversation returns the conversation with the given id.
func (s *Store) FindConversation(id string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find conversation %s: %w", id, err)
	}
	return &conv, nil
}

// FindActiveConversationForParticipants returns the active conversation
// between a traveler and a local guide, if one exists.
func (s *Store) FindActiveConversationForParticipants(travelerID, localID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := s.db.
		Where("traveler_id = ? AND local_id = ? AND is_active = ?", travelerID, localID, true).
		First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find conversation for pair %s/%s: %w", travelerID, localID, err)
	}
	return &conv, nil
}

// CreateConversation opens a conversation between a traveler and a local
// guide and seeds it with the initial message. Creation is idempotent on
// the pair: an existing active conversation is returned instead of a
// duplicate, and the returned bool reports whether a new row was created.
func (s *Store) CreateConversation(travelerID, localID, initialMessage string) (*model.Conversation, bool, error) {
	if existing, err := s.FindActiveConversationForParticipants(travelerID, localID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:                  uuid.NewString(),
		TravelerID:          travelerID,
		LocalID:             localID,
		LastMessageAt:       now,
		LastMessageContent:  model.TruncateSummary(initialMessage),
		LastMessageSenderID: travelerID,
		IsActive:            true,
	}
	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       travelerID,
		Content:        initialMessage,
		MessageType:    model.MessageTypeText,
		Status:         model.StatusSent,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(conv).Error; err != nil {
			return err
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("store: create conversation: %w", err)
	}

	return conv, true, nil
}

// ListConversations returns the caller's active, non-archived conversations
// ordered by recency, with per-conversation unread counts and the total
// count for pagination.
func (s *Store) ListConversations(userID string, limit, offset int) ([]ConversationSummary, int64, error) {
	base := s.db.Model(&model.Conversation{}).
		Where("is_active = ?", true).
		Where(
			s.db.Where("traveler_id = ? AND traveler_archived = ?", userID, false).
				Or("local_id = ? AND local_archived = ?", userID, false),
		)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: count conversations for %s: %w", userID, err)
	}

	var convs []model.Conversation
	err := base.Session(&gorm.Session{}).
		Order("last_message_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&convs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: list conversations for %s: %w", userID, err)
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		var unread int64
		err := s.db.Model(&model.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND status <> ?", conv.ID, userID, model.StatusRead).
			Count(&unread).Error
		if err != nil {
			return nil, 0, fmt.Errorf("store: count unread for conversation %s: %w", conv.ID, err)
		}
		summaries = append(summaries, ConversationSummary{Conversation: conv, UnreadCount: unread})
	}

	return summaries, total, nil
}

// updateConversationSummary rewrites the denormalized last-message fields.
// It takes the caller's transaction so the summary commits or rolls back
// together with the message write that caused it.
func updateConversationSummary(tx *gorm.DB, conversationID, content, senderID string, at time.Time) error {
	return tx.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_at":        at,
			"last_message_content":   model.TruncateSummary(content),
			"last_message_sender_id": senderID,
		}).Error
}

// ArchiveConversation soft-archives the conversation on userID's side only.
// The other participant's view is unaffected.
func (s *Store) ArchiveConversation(conversationID, userID string) error {
	conv, err := s.FindConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsParticipant(userID) {
		return ErrNotFound
	}
	if conv.ArchivedFor(userID) {
		return nil
	}

	column := "traveler_archived"
	if userID == conv.LocalID {
		column = "local_archived"
	}

	err = s.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update(column, true).Error
	if err != nil {
		return fmt.Errorf("store: archive conversation %s: %w", conversationID, err)
	}
	return nil
}
