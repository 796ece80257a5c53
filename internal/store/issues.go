package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"affimporter/internal/models"

	"gorm.io/gorm"
)

type IssueFilter struct {
	Resolved *bool
	BatchID  string
	Limit    int
	Offset   int
}

type IssueStore interface {
	CreateIssue(ctx context.Context, issue *models.ImportIssue) error
	ListIssues(ctx context.Context, f IssueFilter) ([]models.ImportIssue, int64, error)
	ResolveIssue(ctx context.Context, id string, at time.Time) (*models.ImportIssue, error)
}

var _ IssueStore = (*GormStore)(nil)

func (s *GormStore) CreateIssue(ctx context.Context, issue *models.ImportIssue) error {
	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		return fmt.Errorf("failed to create import issue: %w", err)
	}
	return nil
}

func (s *GormStore) ListIssues(ctx context.Context, f IssueFilter) ([]models.ImportIssue, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.ImportIssue{})

	if f.Resolved != nil {
		query = query.Where("is_resolved = ?", *f.Resolved)
	}
	if f.BatchID != "" {
		query = query.Where("batch_id = ?", f.BatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count import issues: %w", err)
	}

	var issues []models.ImportIssue
	err := query.Order("created_at DESC").Order("candidate_index").
		Offset(f.Offset).Limit(f.Limit).Find(&issues).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch import issues: %w", err)
	}
	return issues, total, nil
}

func (s *GormStore) ResolveIssue(ctx context.Context, id string, at time.Time) (*models.ImportIssue, error) {
	var issue models.ImportIssue
	err := s.db.WithContext(ctx).First(&issue, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch import issue: %w", err)
	}

	issue.IsResolved = true
	issue.ResolvedAt = &at
	if err := s.db.WithContext(ctx).Save(&issue).Error; err != nil {
		return nil, fmt.Errorf("failed to resolve import issue: %w", err)
	}
	return &issue, nil
}
