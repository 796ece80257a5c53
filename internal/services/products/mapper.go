package products

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"affimporter/internal/models"
	"affimporter/internal/sanitize"
	"affimporter/internal/store"
	"affimporter/internal/timeago"
)

// ImportDateLayout is how product_import_date is rendered.
const ImportDateLayout = "January 2, 2006"

// Record is the wire form of an imported product.
type Record struct {
	ProductID         uint   `json:"product_id"`
	ProductURL        string `json:"product_url"`
	ProductTitle      string `json:"product_title"`
	ProductImportDate string `json:"product_import_date"`
	ProductASIN       string `json:"product_asin"`
	Key               uint   `json:"key"`
	ImagePrimary      string `json:"image_primary"`
	SyncLastDate      string `json:"sync_last_date"`
}

type Mapper struct {
	store   store.PostStore
	siteURL string
}

func NewMapper(s store.PostStore, siteURL string) *Mapper {
	return &Mapper{store: s, siteURL: strings.TrimRight(siteURL, "/")}
}

// Map renders post with its meta values. now drives the relative sync time.
func (m *Mapper) Map(ctx context.Context, post models.Post, meta map[string]string, now time.Time) (Record, error) {
	image, err := m.imagePrimary(ctx, post)
	if err != nil {
		return Record{}, err
	}

	synced := post.PostDate.Unix()
	if last := sanitize.Int(meta[models.MetaSyncLastDate]); last != 0 {
		synced = int64(last)
	}

	return Record{
		ProductID:         post.ID,
		ProductURL:        escURL(m.Permalink(post)),
		ProductTitle:      html.EscapeString(post.Title),
		ProductImportDate: html.EscapeString(post.PostDate.Format(ImportDateLayout)),
		ProductASIN:       html.EscapeString(meta[models.MetaASIN]),
		Key:               post.ID,
		ImagePrimary:      escURL(image),
		SyncLastDate:      timeago.Format(synced, now.Unix()),
	}, nil
}

// Permalink is the public address of a product post.
func (m *Mapper) Permalink(post models.Post) string {
	if post.Slug == "" {
		return fmt.Sprintf("%s/?p=%d", m.siteURL, post.ID)
	}
	return fmt.Sprintf("%s/product/%s/", m.siteURL, url.PathEscape(post.Slug))
}

// imagePrimary resolves the thumbnail, falling back to the post id itself as
// attachment id. Nothing found is not an error.
func (m *Mapper) imagePrimary(ctx context.Context, post models.Post) (string, error) {
	attachmentID := post.ID
	if post.ThumbnailID != nil && *post.ThumbnailID != 0 {
		attachmentID = *post.ThumbnailID
	}

	u, err := m.store.AttachmentURL(ctx, attachmentID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return u, nil
}

func escURL(u string) string {
	return html.EscapeString(sanitize.URL(u))
}
