package model

import "time"

// User roles. A traveler opens conversations, a local guide answers them.
const (
	RoleTraveler = "traveler"
	RoleLocal    = "local"
)

// User is the profile row the messaging core reads for participant checks
// and sender display fields. Account management lives outside this service.
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FullName  string    `gorm:"size:255;not null" json:"full_name"`
	Role      string    `gorm:"size:16;not null;index" json:"role"`
	AvatarURL string    `gorm:"size:512" json:"avatar_url,omitempty"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
