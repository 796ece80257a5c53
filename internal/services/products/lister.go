package products

import (
	"context"
	"fmt"
	"time"

	"affimporter/internal/models"
	"affimporter/internal/store"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 50

	// Upper bounds keep the row offset well inside int range.
	MaxPage    = 1_000_000
	MaxPerPage = 500
)

type ListResult struct {
	Items []Record `json:"products"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
}

// Lister pages through published products that carry an ASIN, newest first.
type Lister struct {
	store          store.PostStore
	mapper         *Mapper
	defaultPerPage int
}

// NewLister builds a Lister. A non-positive defaultPerPage means 50.
// Requests are capped at MaxPage and MaxPerPage.
func NewLister(s store.PostStore, mapper *Mapper, defaultPerPage int) *Lister {
	if defaultPerPage <= 0 {
		defaultPerPage = DefaultPerPage
	}
	return &Lister{store: s, mapper: mapper, defaultPerPage: defaultPerPage}
}

func (l *Lister) List(ctx context.Context, page, perPage int, now time.Time) (*ListResult, error) {
	if page <= 0 {
		page = DefaultPage
	}
	if perPage <= 0 {
		perPage = l.defaultPerPage
	}
	page = min(page, MaxPage)
	perPage = min(perPage, MaxPerPage)

	posts, total, err := l.store.FindPosts(ctx, store.PostQuery{
		Type:    models.PostTypeProduct,
		Status:  models.PostStatusPublish,
		MetaKey: models.MetaASIN,
		Limit:   perPage,
		Offset:  (page - 1) * perPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	meta, err := l.store.PostMetaFor(ctx, ids, models.MetaASIN, models.MetaSyncLastDate)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	items := make([]Record, 0, len(posts))
	for _, p := range posts {
		rec, err := l.mapper.Map(ctx, p, meta[p.ID], now)
		if err != nil {
			return nil, fmt.Errorf("failed to map product %d: %w", p.ID, err)
		}
		items = append(items, rec)
	}

	return &ListResult{
		Items: items,
		Total: total,
		Page:  page,
	}, nil
}
