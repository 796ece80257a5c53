package store

import (
	"context"
	"errors"
	"fmt"

	"affimporter/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// PostQuery selects posts of one type and status that carry MetaKey.
type PostQuery struct {
	Type    models.PostType
	Status  models.PostStatus
	MetaKey string
	Limit   int
	Offset  int
}

// PostStore is the content store contract the product services rely on.
type PostStore interface {
	InsertPost(ctx context.Context, post *models.Post) (uint, error)
	FindPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error)
	GetPostMeta(ctx context.Context, postID uint, key string) (string, error)
	PostMetaFor(ctx context.Context, postIDs []uint, keys ...string) (map[uint]map[string]string, error)
	UpdatePostMeta(ctx context.Context, postID uint, key, value string) error
	SetPostTerms(ctx context.Context, postID uint, termIDs []int, taxonomy string) error
	SetObjectTerms(ctx context.Context, postID uint, slugs []string, taxonomy string) error
	SetPostThumbnail(ctx context.Context, postID, attachmentID uint) error
	AttachmentURL(ctx context.Context, attachmentID uint) (string, error)
	// Transaction runs fn against a store bound to one database
	// transaction. Returning an error from fn rolls every write back.
	Transaction(ctx context.Context, fn func(tx PostStore) error) error
}

type GormStore struct {
	db *gorm.DB
}

var _ PostStore = (*GormStore)(nil)

func New(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx PostStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) InsertPost(ctx context.Context, post *models.Post) (uint, error) {
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	if post.ID == 0 {
		return 0, fmt.Errorf("failed to insert post: store returned no id")
	}
	return post.ID, nil
}

func (s *GormStore) FindPosts(ctx context.Context, q PostQuery) ([]models.Post, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("type = ? AND status = ?", q.Type, q.Status)

	if q.MetaKey != "" {
		query = query.Where("EXISTS (SELECT 1 FROM post_meta pm WHERE pm.post_id = posts.id AND pm.meta_key = ?)", q.MetaKey)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	var posts []models.Post
	err := query.Order("id DESC").Offset(q.Offset).Limit(q.Limit).Find(&posts).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch posts: %w", err)
	}

	return posts, total, nil
}

// GetPostMeta returns ErrNotFound when the post has no value for key.
func (s *GormStore) GetPostMeta(ctx context.Context, postID uint, key string) (string, error) {
	var meta models.PostMeta
	err := s.db.WithContext(ctx).
		Where("post_id = ? AND meta_key = ?", postID, key).
		First(&meta).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read post meta %s: %w", key, err)
	}
	return meta.MetaValue, nil
}

func (s *GormStore) PostMetaFor(ctx context.Context, postIDs []uint, keys ...string) (map[uint]map[string]string, error) {
	out := make(map[uint]map[string]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}

	query := s.db.WithContext(ctx).Where("post_id IN ?", postIDs)
	if len(keys) > 0 {
		query = query.Where("meta_key IN ?", keys)
	}

	var rows []models.PostMeta
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to read post meta: %w", err)
	}

	for _, row := range rows {
		if out[row.PostID] == nil {
			out[row.PostID] = make(map[string]string)
		}
		out[row.PostID][row.MetaKey] = row.MetaValue
	}
	return out, nil
}

// UpdatePostMeta inserts or replaces the value stored under key.
func (s *GormStore) UpdatePostMeta(ctx context.Context, postID uint, key, value string) error {
	meta := models.PostMeta{PostID: postID, MetaKey: key, MetaValue: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "meta_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"meta_value"}),
	}).Create(&meta).Error
	if err != nil {
		return fmt.Errorf("failed to update post meta %s: %w", key, err)
	}
	return nil
}

// SetPostTerms replaces the post's terms in taxonomy with termIDs.
// Non-positive ids are dropped.
func (s *GormStore) SetPostTerms(ctx context.Context, postID uint, termIDs []int, taxonomy string) error {
	rels := make([]models.TermRelationship, 0, len(termIDs))
	seen := make(map[int]bool, len(termIDs))
	for _, id := range termIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		rels = append(rels, models.TermRelationship{PostID: postID, TermID: uint(id), Taxonomy: taxonomy})
	}

	return s.replaceTerms(ctx, postID, taxonomy, rels)
}

// SetObjectTerms replaces the post's terms in taxonomy with the terms named
// by slugs, creating missing terms.
func (s *GormStore) SetObjectTerms(ctx context.Context, postID uint, slugs []string, taxonomy string) error {
	rels := make([]models.TermRelationship, 0, len(slugs))
	for _, slug := range slugs {
		term := models.Term{Taxonomy: taxonomy, Slug: slug}
		err := s.db.WithContext(ctx).
			Where(models.Term{Taxonomy: taxonomy, Slug: slug}).
			Attrs(models.Term{Name: slug}).
			FirstOrCreate(&term).Error
		if err != nil {
			return fmt.Errorf("failed to resolve term %s/%s: %w", taxonomy, slug, err)
		}
		rels = append(rels, models.TermRelationship{PostID: postID, TermID: term.ID, Taxonomy: taxonomy})
	}

	return s.replaceTerms(ctx, postID, taxonomy, rels)
}

func (s *GormStore) replaceTerms(ctx context.Context, postID uint, taxonomy string, rels []models.TermRelationship) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("post_id = ? AND taxonomy = ?", postID, taxonomy).
			Delete(&models.TermRelationship{}).Error
		if err != nil {
			return fmt.Errorf("failed to clear %s terms: %w", taxonomy, err)
		}
		if len(rels) == 0 {
			return nil
		}
		if err := tx.Create(&rels).Error; err != nil {
			return fmt.Errorf("failed to set %s terms: %w", taxonomy, err)
		}
		return nil
	})
}

// PostTermIDs lists the term ids linked to the post in taxonomy.
func (s *GormStore) PostTermIDs(ctx context.Context, postID uint, taxonomy string) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.TermRelationship{}).
		Where("post_id = ? AND taxonomy = ?", postID, taxonomy).
		Order("term_id").
		Pluck("term_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to read %s terms: %w", taxonomy, err)
	}
	return ids, nil
}

func (s *GormStore) SetPostThumbnail(ctx context.Context, postID, attachmentID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Update("thumbnail_id", attachmentID)
	if res.Error != nil {
		return fmt.Errorf("failed to set thumbnail: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachmentURL resolves an attachment id to its public URL. Ids that do not
// name an attachment give ErrNotFound.
func (s *GormStore) AttachmentURL(ctx context.Context, attachmentID uint) (string, error) {
	var post models.Post
	err := s.db.WithContext(ctx).
		Where("id = ? AND type = ?", attachmentID, models.PostTypeAttachment).
		First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read attachment: %w", err)
	}
	return post.GUID, nil
}

// GetPost loads a post by id.
func (s *GormStore) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read post: %w", err)
	}
	return &post, nil
}
