package processors

import (
	"context"
	"fmt"
	"strings"

	"affimporter/internal/events"
	"affimporter/internal/logger"
	"affimporter/internal/models"
	"affimporter/internal/services/products"
	"affimporter/internal/store"
)

var explanations = map[string]string{
	products.ReasonMissingASIN:      "The product has no ASIN and was not imported.",
	products.ReasonMissingTitle:     "The product has no title and was not imported.",
	products.ReasonMissingSlug:      "The product has no slug and was not imported.",
	products.ReasonStoreWriteFailed: "The product could not be written to the store.",
	products.NoteThumbnailFailed:    "The product was imported but its image could not be attached.",
}

// EventProcessor turns import outcome events into import issues.
type EventProcessor struct {
	issues store.IssueStore
	logger *logger.Logger
}

func NewEventProcessor(issues store.IssueStore, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		issues: issues,
		logger: logger,
	}
}

func (ep *EventProcessor) Process(ctx context.Context, event events.ImportEvent) error {
	if event.Type != "" && event.Type != events.TypeImportOutcome {
		ep.logger.Debug("Ignoring event %s of type %s", event.ID, event.Type)
		return nil
	}

	issue := issueFor(event)
	if issue == nil {
		return nil
	}

	if err := ep.issues.CreateIssue(ctx, issue); err != nil {
		return fmt.Errorf("failed to record issue for batch %s candidate %d: %w",
			event.BatchID, event.CandidateIndex, err)
	}

	ep.logger.With("batch_id", event.BatchID, "code", issue.Code).
		Info("Recorded %s import issue for candidate %d", issue.Severity, event.CandidateIndex)
	return nil
}

// issueFor returns nil for outcomes that need no attention.
func issueFor(event events.ImportEvent) *models.ImportIssue {
	issue := &models.ImportIssue{
		BatchID:        event.BatchID,
		CandidateIndex: event.CandidateIndex,
		ASIN:           event.ASIN,
		Code:           event.Reason,
	}
	if event.ProductID != 0 {
		id := event.ProductID
		issue.ProductID = &id
	}

	switch products.OutcomeStatus(event.Status) {
	case products.OutcomeFailed:
		issue.Severity = models.IssueSeverityHigh
	case products.OutcomeSkipped:
		issue.Severity = models.IssueSeverityMedium
	case products.OutcomeImported:
		if !hasNote(event.Notes, products.NoteThumbnailFailed) {
			return nil
		}
		issue.Severity = models.IssueSeverityLow
		issue.Code = products.NoteThumbnailFailed
	default:
		return nil
	}

	if issue.Code == "" {
		issue.Code = event.Status
	}
	issue.Explanation = explain(issue.Code, event.Error)
	return issue
}

func explain(code, detail string) string {
	text, ok := explanations[code]
	if !ok {
		text = "The product was not imported (" + code + ")."
	}
	if detail = strings.TrimSpace(detail); detail != "" {
		text += " " + detail
	}
	return text
}

func hasNote(notes []string, want string) bool {
	for _, n := range notes {
		if n == want {
			return true
		}
	}
	return false
}
