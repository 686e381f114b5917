package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wanderlink/internal/model"
)

// CreateMessage persists a new message and rewrites the owning
// conversation's denormalized summary in the same transaction. Either both
// land or neither does.
func (s *Store) CreateMessage(conversationID, senderID, content string, messageType model.MessageType) (*model.Message, error) {
	if messageType == "" {
		messageType = model.MessageTypeText
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		MessageType:    messageType,
		Status:         model.StatusSent,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return updateConversationSummary(tx, conversationID, content, senderID, msg.CreatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("store: create message in conversation %s: %w", conversationID, err)
	}

	return msg, nil
}

// MarkMessagesRead transitions the given messages to read and returns how
// many rows actually changed. Only messages in the conversation that were
// not sent by the reader and are not already read are touched, so the
// status never regresses and a repeated call is a no-op.
func (s *Store) MarkMessagesRead(conversationID, readerID string, messageIDs []string, at time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}

	res := s.db.Model(&model.Message{}).
		Where("id IN ?", messageIDs).
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", readerID).
		Where("status <> ?", model.StatusRead).
		Updates(map[string]interface{}{
			"status":  model.StatusRead,
			"read_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("store: mark messages read in conversation %s: %w", conversationID, res.Error)
	}
	return res.RowsAffected, nil
}

// MarkMessagesDelivered transitions the recipient's pending incoming
// messages from sent to delivered. Messages already delivered or read are
// left alone.
func (s *Store) MarkMessagesDelivered(conversationID, recipientID string, at time.Time) (int64, error) {
	res := s.db.Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Where("sender_id <> ?", recipientID).
		Where("status = ?", model.StatusSent).
		Updates(map[string]interface{}{
			"status":       model.StatusDelivered,
			"delivered_at": at,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("store: mark messages delivered in conversation %s: %w", conversationID, res.Error)
	}
	return res.RowsAffected, nil
}

// UnreadMessageIDs returns the ids of messages in the conversation the
// reader has not seen yet.
func (s *Store) UnreadMessageIDs(conversationID, readerID string) ([]string, error) {
	var ids []string
	err := s.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND status <> ?", conversationID, readerID, model.StatusRead).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("store: unread ids in conversation %s: %w", conversationID, err)
	}
	return ids, nil
}

// ListMessages returns one page of a conversation's history, oldest first
// within the page, plus the total message count. Pagination walks backwards
// from the newest message.
func (s *Store) ListMessages(conversationID string, limit, offset int) ([]model.Message, int64, error) {
	var total int64
	err := s.db.Model(&model.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: count messages in conversation %s: %w", conversationID, err)
	}

	var msgs []model.Message
	err = s.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: list messages in conversation %s: %w", conversationID, err)
	}

	// Newest-first page, flipped so clients render oldest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, total, nil
}

// EditMessage replaces a message's content. Only the sender may edit, and
// only within EditWindow of the original send.
func (s *Store) EditMessage(conversationID, messageID, senderID, content string, at time.Time) (*model.Message, error) {
	var msg model.Message
	err := s.db.
		Where("id = ? AND conversation_id = ? AND sender_id = ?", messageID, conversationID, senderID).
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find message %s: %w", messageID, err)
	}

	if at.Sub(msg.CreatedAt) > EditWindow {
		return nil, ErrEditWindowExpired
	}

	err = s.db.Model(&model.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": at,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("store: edit message %s: %w", messageID, err)
	}

	msg.Content = content
	msg.IsEdited = true
	msg.EditedAt = &at
	return &msg, nil
}
