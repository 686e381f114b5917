package model

import "time"

// MessageType distinguishes user text from system and booking events.
type MessageType string

const (
	MessageTypeText                MessageType = "text"
	MessageTypeSystem              MessageType = "system"
	MessageTypeBookingRequest      MessageType = "booking_request"
	MessageTypeBookingConfirmation MessageType = "booking_confirmation"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeSystem, MessageTypeBookingRequest, MessageTypeBookingConfirmation:
		return true
	}
	return false
}

// MessageStatus advances sent → delivered → read and never regresses.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// MaxContentLen bounds message content length in runes.
const MaxContentLen = 2000

// Message belongs to exactly one conversation; the sender must be one of
// the conversation's two participants.
type Message struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string `gorm:"size:36;not null;index" json:"conversation_id"`
	SenderID       string `gorm:"size:36;not null;index" json:"sender_id"`

	Content     string      `gorm:"type:text;not null" json:"content"`
	MessageType MessageType `gorm:"size:32;not null;default:text" json:"message_type"`

	Status   MessageStatus `gorm:"size:16;not null;default:sent;index" json:"status"`
	IsEdited bool          `gorm:"default:false" json:"is_edited"`
	EditedAt *time.Time    `json:"edited_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ReadAt      *time.Time `json:"read_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}
