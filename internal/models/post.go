package models

import (
	"time"
)

// Post is the generic content row of the store. Products and media
// attachments are both posts and share one id space.
type Post struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	AuthorID    uint       `json:"author_id" gorm:"index"`
	ParentID    uint       `json:"parent_id" gorm:"index"`
	Title       string     `json:"title" gorm:"not null"`
	Slug        string     `json:"slug" gorm:"index"`
	Content     string     `json:"content" gorm:"type:text"`
	Status      PostStatus `json:"status" gorm:"index;default:draft"`
	Type        PostType   `json:"type" gorm:"index;not null"`
	GUID        string     `json:"guid"`
	MimeType    string     `json:"mime_type"`
	ThumbnailID *uint      `json:"thumbnail_id"`
	PostDate    time.Time  `json:"post_date"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type PostType string

const (
	PostTypeProduct    PostType = "product"
	PostTypeAttachment PostType = "attachment"
)

type PostStatus string

const (
	PostStatusPublish PostStatus = "publish"
	PostStatusDraft   PostStatus = "draft"
	PostStatusInherit PostStatus = "inherit"
)

// PostMeta is a key/value pair attached to a post. A post holds at most one
// value per key.
type PostMeta struct {
	ID        uint   `gorm:"primaryKey"`
	PostID    uint   `gorm:"not null;uniqueIndex:idx_post_meta_key"`
	MetaKey   string `gorm:"not null;size:191;uniqueIndex:idx_post_meta_key;index"`
	MetaValue string `gorm:"type:text"`
}

func (PostMeta) TableName() string {
	return "post_meta"
}

// Meta keys written by the importer.
const (
	MetaASIN           = "affprodimp_amz_asin"
	MetaSyncLastDate   = "affprodimp_sync_last_date"
	MetaProductImgURL  = "affprodimp_product_img_url"
	MetaPrice          = "_price"
	MetaRegularPrice   = "_regular_price"
	MetaSalePrice      = "_sale_price"
	MetaProductURL     = "_product_url"
	MetaAttachedFile   = "_attached_file"
	MetaAttachmentSize = "_attachment_size"
)
