package store

import (
	"context"
	"errors"
	"fmt"

	"affimporter/internal/models"

	"gorm.io/gorm"
)

type UserStore interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
}

var _ UserStore = (*GormStore)(nil)

func (s *GormStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return &user, nil
}

// EnsureUser creates the user with the given email unless it already exists.
func (s *GormStore) EnsureUser(ctx context.Context, email, name string, role models.UserRole) (*models.User, error) {
	user := models.User{Email: email}
	err := s.db.WithContext(ctx).
		Where(models.User{Email: email}).
		Attrs(models.User{Name: name, Role: role}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user %s: %w", email, err)
	}
	return &user, nil
}
