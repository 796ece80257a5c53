package products

import (
	"context"
	"fmt"
	"time"

	"affimporter/internal/events"
	"affimporter/internal/logger"
	"affimporter/internal/metrics"
	"affimporter/internal/models"
	"affimporter/internal/sanitize"
	"affimporter/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Remote image modes. Only RemoteImageNo downloads images; any other value
// keeps the source URL as a reference.
const (
	RemoteImageYes = "Yes"
	RemoteImageNo  = "No"
)

type OutcomeStatus string

const (
	OutcomeImported OutcomeStatus = "imported"
	OutcomeSkipped  OutcomeStatus = "skipped"
	OutcomeFailed   OutcomeStatus = "failed"
)

const (
	ReasonMissingASIN      = "missing_asin"
	ReasonMissingTitle     = "missing_title"
	ReasonMissingSlug      = "missing_slug"
	ReasonStoreWriteFailed = "store_write_failed"

	NoteThumbnailFailed = "thumbnail_failed"
)

// Outcome is what happened to one candidate.
type Outcome struct {
	Index     int
	Status    OutcomeStatus
	Reason    string
	ProductID uint
	ASIN      string
	Notes     []string
	Err       error
}

type BatchResult struct {
	BatchID  string
	Outcomes []Outcome
}

// ProductIDs lists the ids of imported candidates in candidate order.
func (r *BatchResult) ProductIDs() []uint {
	ids := []uint{}
	for _, o := range r.Outcomes {
		if o.Status == OutcomeImported {
			ids = append(ids, o.ProductID)
		}
	}
	return ids
}

// ProductASINs lists the ASINs of imported candidates in candidate order.
func (r *BatchResult) ProductASINs() []string {
	asins := []string{}
	for _, o := range r.Outcomes {
		if o.Status == OutcomeImported {
			asins = append(asins, o.ASIN)
		}
	}
	return asins
}

func (r *BatchResult) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

type ImportOptions struct {
	Categories  []int
	AuthorID    uint
	Now         time.Time
	RemoteImage string
	BatchID     string
}

// Sideloader downloads an image and stores it as an attachment of parentID.
type Sideloader interface {
	Sideload(ctx context.Context, imageURL string, parentID uint, title string) (uint, error)
}

type Importer struct {
	store      store.PostStore
	sideloader Sideloader
	publisher  events.Publisher
	logger     *logger.Logger
}

func NewImporter(s store.PostStore, sideloader Sideloader, publisher events.Publisher, log *logger.Logger) *Importer {
	return &Importer{
		store:      s,
		sideloader: sideloader,
		publisher:  publisher,
		logger:     log,
	}
}

// product is a sanitized candidate.
type product struct {
	asin         string
	title        string
	slug         string
	content      string
	imagePrimary string
	regularPrice decimal.Decimal
	salePrice    decimal.Decimal
	productURL   string
}

func clean(c Candidate) product {
	return product{
		asin:         sanitize.TextField(c.ASIN.Value),
		title:        sanitize.TextField(c.PostTitle.Value),
		slug:         sanitize.Title(c.PostName.Value),
		content:      sanitize.PostHTML(c.PostContent.Value),
		imagePrimary: sanitize.URL(c.ImagePrimary.Value),
		regularPrice: price(c.RegularPrice),
		salePrice:    price(c.SalePrice),
		productURL:   sanitize.URL(c.ProductURL.Value),
	}
}

func price(f FlexString) decimal.Decimal {
	d := sanitize.Decimal(f.Value)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// EffectivePrice is the sale price when positive, else the regular price.
func EffectivePrice(regular, sale decimal.Decimal) decimal.Decimal {
	if sale.IsPositive() {
		return sale
	}
	return regular
}

// ImportBatch imports candidates one after another. ctx is only checked
// between candidates. Items already written stay written when a later one
// fails or ctx is cancelled; the returned error is only set for
// cancellation.
func (i *Importer) ImportBatch(ctx context.Context, candidates []Candidate, opts ImportOptions) (*BatchResult, error) {
	start := time.Now()
	defer func() {
		metrics.ImportBatchDuration.Observe(time.Since(start).Seconds())
	}()

	if opts.BatchID == "" {
		opts.BatchID = uuid.New().String()
	}
	result := &BatchResult{
		BatchID:  opts.BatchID,
		Outcomes: make([]Outcome, 0, len(candidates)),
	}

	for idx, cand := range candidates {
		if err := ctx.Err(); err != nil {
			i.logger.Warn("Import batch %s stopped after %d of %d candidates: %v",
				opts.BatchID, idx, len(candidates), err)
			return result, fmt.Errorf("import interrupted: %w", err)
		}

		// A started candidate runs to completion even if ctx is cancelled.
		itemCtx := context.WithoutCancel(ctx)
		outcome := i.importOne(itemCtx, idx, cand, opts)
		result.Outcomes = append(result.Outcomes, outcome)
		i.record(itemCtx, opts, outcome)
	}

	i.logger.Info("Import batch %s: %d imported, %d skipped, %d failed",
		opts.BatchID, result.Count(OutcomeImported), result.Count(OutcomeSkipped), result.Count(OutcomeFailed))

	return result, nil
}

func (i *Importer) importOne(ctx context.Context, idx int, cand Candidate, opts ImportOptions) Outcome {
	p := clean(cand)
	outcome := Outcome{Index: idx, ASIN: p.asin}

	switch {
	case p.asin == "":
		outcome.Status, outcome.Reason = OutcomeSkipped, ReasonMissingASIN
		return outcome
	case p.title == "":
		outcome.Status, outcome.Reason = OutcomeSkipped, ReasonMissingTitle
		return outcome
	case p.slug == "":
		outcome.Status, outcome.Reason = OutcomeSkipped, ReasonMissingSlug
		return outcome
	}

	postID, err := i.write(ctx, p, opts)
	if err != nil {
		return failed(outcome, err)
	}
	outcome.ProductID = postID

	if opts.RemoteImage == RemoteImageNo && p.imagePrimary != "" && !i.attachThumbnail(ctx, postID, p) {
		outcome.Notes = append(outcome.Notes, NoteThumbnailFailed)
	}

	outcome.Status = OutcomeImported
	return outcome
}

// write stores the product with its terms and meta in one transaction, so a
// failure leaves nothing behind.
func (i *Importer) write(ctx context.Context, p product, opts ImportOptions) (uint, error) {
	var postID uint
	err := i.store.Transaction(ctx, func(tx store.PostStore) error {
		post := &models.Post{
			AuthorID: opts.AuthorID,
			Title:    p.title,
			Slug:     p.slug,
			Content:  p.content,
			Status:   models.PostStatusPublish,
			Type:     models.PostTypeProduct,
			PostDate: opts.Now,
		}
		id, err := tx.InsertPost(ctx, post)
		if err != nil {
			return err
		}

		if len(opts.Categories) > 0 {
			if err := tx.SetPostTerms(ctx, id, opts.Categories, models.TaxonomyProductCat); err != nil {
				return err
			}
		}
		if err := tx.SetObjectTerms(ctx, id, []string{models.ProductTypeExternal}, models.TaxonomyProductType); err != nil {
			return err
		}

		meta := [][2]string{
			{models.MetaASIN, p.asin},
			{models.MetaPrice, EffectivePrice(p.regularPrice, p.salePrice).String()},
			{models.MetaRegularPrice, p.regularPrice.String()},
		}
		if p.salePrice.IsPositive() {
			meta = append(meta, [2]string{models.MetaSalePrice, p.salePrice.String()})
		}
		if p.productURL != "" {
			meta = append(meta, [2]string{models.MetaProductURL, p.productURL})
		}
		if opts.RemoteImage != RemoteImageNo && p.imagePrimary != "" {
			meta = append(meta, [2]string{models.MetaProductImgURL, p.imagePrimary})
		}
		for _, kv := range meta {
			if err := tx.UpdatePostMeta(ctx, id, kv[0], kv[1]); err != nil {
				return err
			}
		}

		postID = id
		return nil
	})
	return postID, err
}

// attachThumbnail reports whether the image was stored and set as thumbnail.
func (i *Importer) attachThumbnail(ctx context.Context, postID uint, p product) bool {
	if i.sideloader == nil {
		return false
	}

	attachmentID, err := i.sideloader.Sideload(ctx, p.imagePrimary, postID, p.title)
	if err != nil {
		i.logger.Debug("Skipping thumbnail for product %d: %v", postID, err)
		return false
	}
	if err := i.store.SetPostThumbnail(ctx, postID, attachmentID); err != nil {
		i.logger.Debug("Failed to set thumbnail %d on product %d: %v", attachmentID, postID, err)
		return false
	}
	return true
}

func failed(o Outcome, err error) Outcome {
	o.Status = OutcomeFailed
	o.Reason = ReasonStoreWriteFailed
	o.Err = err
	return o
}

func (i *Importer) record(ctx context.Context, opts ImportOptions, o Outcome) {
	metrics.ImportOutcomesTotal.WithLabelValues(string(o.Status), o.Reason).Inc()

	if o.Status == OutcomeFailed {
		i.logger.Error("Failed to import candidate %d of batch %s: %v", o.Index, opts.BatchID, o.Err)
	}

	if i.publisher == nil {
		return
	}

	event := events.ImportEvent{
		BatchID:        opts.BatchID,
		CandidateIndex: o.Index,
		Status:         string(o.Status),
		Reason:         o.Reason,
		ProductID:      o.ProductID,
		ASIN:           o.ASIN,
		Notes:          o.Notes,
		Timestamp:      opts.Now,
	}
	if o.Err != nil {
		event.Error = o.Err.Error()
	}

	if err := i.publisher.Publish(ctx, event); err != nil {
		i.logger.Warn("Failed to publish import event for batch %s: %v", opts.BatchID, err)
	}
}
