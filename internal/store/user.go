package store

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"wanderlink/internal/model"
)

// FindUser returns the user with the given id.
func (s *Store) FindUser(id string) (*model.User, error) {
	var user model.User
	err := s.db.Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find user %s: %w", id, err)
	}
	return &user, nil
}

// FindActiveLocal returns the user with the given id if it is an active
// local guide. Used to validate the target of a new conversation.
func (s *Store) FindActiveLocal(id string) (*model.User, error) {
	var user model.User
	err := s.db.Where("id = ? AND role = ? AND is_active = ?", id, model.RoleLocal, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: find active local %s: %w", id, err)
	}
	return &user, nil
}

// CreateUser inserts a user row. Profile management belongs to the account
// service; this exists for seeding and tests.
func (s *Store) CreateUser(user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if err := s.db.Create(user).Error; err != nil {
		return fmt.Errorf("store: create user: %w", err)
	}
	return nil
}
