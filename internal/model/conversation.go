package model

import "time"

// LastMessageMaxLen bounds the denormalized summary content on Conversation.
const LastMessageMaxLen = 100

// Conversation is the durable thread between exactly one traveler and one
// local guide. The last-message fields are denormalized so that list views
// never have to touch the messages table.
type Conversation struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	TravelerID string `gorm:"size:36;not null;index:idx_conversation_pair" json:"traveler_id"`
	LocalID    string `gorm:"size:36;not null;index:idx_conversation_pair" json:"local_id"`

	LastMessageAt       time.Time `json:"last_message_at"`
	LastMessageContent  string    `gorm:"size:100" json:"last_message_content,omitempty"`
	LastMessageSenderID string    `gorm:"size:36" json:"last_message_sender_id,omitempty"`

	IsActive         bool `gorm:"default:true" json:"is_active"`
	TravelerArchived bool `gorm:"default:false" json:"traveler_archived"`
	LocalArchived    bool `gorm:"default:false" json:"local_archived"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsParticipant reports whether userID is one of the two participants.
func (c *Conversation) IsParticipant(userID string) bool {
	return userID == c.TravelerID || userID == c.LocalID
}

// OtherParticipant returns the participant facing userID, or "" if userID
// is not part of the conversation.
func (c *Conversation) OtherParticipant(userID string) string {
	switch userID {
	case c.TravelerID:
		return c.LocalID
	case c.LocalID:
		return c.TravelerID
	}
	return ""
}

// ArchivedFor reports whether the conversation is archived on userID's side.
func (c *Conversation) ArchivedFor(userID string) bool {
	switch userID {
	case c.TravelerID:
		return c.TravelerArchived
	case c.LocalID:
		return c.LocalArchived
	}
	return false
}

// TruncateSummary shortens message content to the denormalized summary
// length without splitting a multi-byte character.
func TruncateSummary(content string) string {
	runes := []rune(content)
	if len(runes) <= LastMessageMaxLen {
		return content
	}
	return string(runes[:LastMessageMaxLen])
}
