package models

type Term struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Taxonomy string `json:"taxonomy" gorm:"not null;size:64;uniqueIndex:idx_term_taxonomy_slug"`
	Name     string `json:"name" gorm:"not null"`
	Slug     string `json:"slug" gorm:"not null;size:191;uniqueIndex:idx_term_taxonomy_slug"`
}

// TermRelationship links a post to a term. TermID is stored as given and is
// not checked against the terms table.
type TermRelationship struct {
	PostID   uint   `gorm:"primaryKey"`
	TermID   uint   `gorm:"primaryKey"`
	Taxonomy string `gorm:"primaryKey;size:64"`
}

const (
	TaxonomyProductCat  = "product_cat"
	TaxonomyProductType = "product_type"

	ProductTypeExternal = "external"
)
