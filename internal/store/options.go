package store

import (
	"context"
	"errors"
	"fmt"

	"affimporter/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OptionStore interface {
	GetOption(ctx context.Context, name string) (string, error)
	UpdateOption(ctx context.Context, name, value string) error
}

var _ OptionStore = (*GormStore)(nil)

// GetOption returns ErrNotFound when the option was never saved.
func (s *GormStore) GetOption(ctx context.Context, name string) (string, error) {
	var opt models.Option
	err := s.db.WithContext(ctx).First(&opt, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read option %s: %w", name, err)
	}
	return opt.Value, nil
}

func (s *GormStore) UpdateOption(ctx context.Context, name, value string) error {
	opt := models.Option{Name: name, Value: value, Autoload: true}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&opt).Error
	if err != nil {
		return fmt.Errorf("failed to update option %s: %w", name, err)
	}
	return nil
}
