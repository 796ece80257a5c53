package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportIssue records a candidate that did not import cleanly.
type ImportIssue struct {
	ID             string        `json:"id" gorm:"type:varchar(36);primaryKey"`
	BatchID        string        `json:"batch_id" gorm:"index;not null"`
	CandidateIndex int           `json:"candidate_index"`
	ProductID      *uint         `json:"product_id"`
	ASIN           string        `json:"asin"`
	Code           string        `json:"code" gorm:"not null"`
	Severity       IssueSeverity `json:"severity" gorm:"not null"`
	Explanation    string        `json:"explanation" gorm:"not null"`
	IsResolved     bool          `json:"is_resolved" gorm:"default:false"`
	ResolvedAt     *time.Time    `json:"resolved_at"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type IssueSeverity string

const (
	IssueSeverityLow    IssueSeverity = "LOW"
	IssueSeverityMedium IssueSeverity = "MEDIUM"
	IssueSeverityHigh   IssueSeverity = "HIGH"
)

func (i *ImportIssue) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}
