package store

import (
	"context"
	"testing"
	"time"

	"affimporter/internal/database"
	"affimporter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	return New(database.NewTest(t).DB)
}

func insertProduct(t *testing.T, s *GormStore, title string, status models.PostStatus, asin string) uint {
	t.Helper()
	ctx := context.Background()

	id, err := s.InsertPost(ctx, &models.Post{
		Title:    title,
		Slug:     title,
		Status:   status,
		Type:     models.PostTypeProduct,
		PostDate: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	if asin != "" {
		require.NoError(t, s.UpdatePostMeta(ctx, id, models.MetaASIN, asin))
	}
	return id
}

func TestFindPosts_FiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := insertProduct(t, s, "a", models.PostStatusPublish, "ASIN-A")
	insertProduct(t, s, "no-asin", models.PostStatusPublish, "")
	insertProduct(t, s, "draft", models.PostStatusDraft, "ASIN-D")
	c := insertProduct(t, s, "c", models.PostStatusPublish, "ASIN-C")

	posts, total, err := s.FindPosts(ctx, PostQuery{
		Type:    models.PostTypeProduct,
		Status:  models.PostStatusPublish,
		MetaKey: models.MetaASIN,
		Limit:   10,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, posts, 2)
	assert.Equal(t, c, posts[0].ID)
	assert.Equal(t, a, posts[1].ID)
}

func TestFindPosts_PaginatesButCountsEverything(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 5; i++ {
		insertProduct(t, s, "p", models.PostStatusPublish, "ASIN")
	}

	posts, total, err := s.FindPosts(context.Background(), PostQuery{
		Type:    models.PostTypeProduct,
		Status:  models.PostStatusPublish,
		MetaKey: models.MetaASIN,
		Limit:   2,
		Offset:  4,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, posts, 1)
}

func TestUpdatePostMeta_Upserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertProduct(t, s, "p", models.PostStatusPublish, "FIRST")

	require.NoError(t, s.UpdatePostMeta(ctx, id, models.MetaASIN, "SECOND"))

	value, err := s.GetPostMeta(ctx, id, models.MetaASIN)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", value)

	_, err = s.GetPostMeta(ctx, id, models.MetaSalePrice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostMetaFor_GroupsByPost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := insertProduct(t, s, "a", models.PostStatusPublish, "ASIN-A")
	b := insertProduct(t, s, "b", models.PostStatusPublish, "ASIN-B")
	require.NoError(t, s.UpdatePostMeta(ctx, b, models.MetaPrice, "9.5"))

	meta, err := s.PostMetaFor(ctx, []uint{a, b}, models.MetaASIN)
	require.NoError(t, err)
	assert.Equal(t, "ASIN-A", meta[a][models.MetaASIN])
	assert.Equal(t, "ASIN-B", meta[b][models.MetaASIN])
	assert.NotContains(t, meta[b], models.MetaPrice)

	empty, err := s.PostMetaFor(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSetPostTerms_ReplacesAndDropsInvalidIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := insertProduct(t, s, "p", models.PostStatusPublish, "ASIN")

	require.NoError(t, s.SetPostTerms(ctx, id, []int{4, 2, 4, 0, -3}, models.TaxonomyProductCat))
	ids, err := s.PostTermIDs(ctx, id, models.TaxonomyProductCat)
	require.NoError(t, err)
	assert.Equal(t, []uint{2, 4}, ids)

	require.NoError(t, s.SetPostTerms(ctx, id, []int{7}, models.TaxonomyProductCat))
	ids, err = s.PostTermIDs(ctx, id, models.TaxonomyProductCat)
	require.NoError(t, err)
	assert.Equal(t, []uint{7}, ids)
}

func TestSetObjectTerms_ReusesTermBySlug(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := insertProduct(t, s, "a", models.PostStatusPublish, "A")
	b := insertProduct(t, s, "b", models.PostStatusPublish, "B")

	require.NoError(t, s.SetObjectTerms(ctx, a, []string{models.ProductTypeExternal}, models.TaxonomyProductType))
	require.NoError(t, s.SetObjectTerms(ctx, b, []string{models.ProductTypeExternal}, models.TaxonomyProductType))

	ida, err := s.PostTermIDs(ctx, a, models.TaxonomyProductType)
	require.NoError(t, err)
	idb, err := s.PostTermIDs(ctx, b, models.TaxonomyProductType)
	require.NoError(t, err)
	require.Len(t, ida, 1)
	assert.Equal(t, ida, idb)
}

func TestAttachmentURL_OnlyResolvesAttachments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	product := insertProduct(t, s, "p", models.PostStatusPublish, "A")

	att, err := s.InsertPost(ctx, &models.Post{
		Title:    "img",
		Type:     models.PostTypeAttachment,
		Status:   models.PostStatusInherit,
		ParentID: product,
		GUID:     "http://localhost/uploads/img.png",
	})
	require.NoError(t, err)

	url, err := s.AttachmentURL(ctx, att)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/uploads/img.png", url)

	_, err = s.AttachmentURL(ctx, product)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SetPostThumbnail(ctx, product, att))
	post, err := s.GetPost(ctx, product)
	require.NoError(t, err)
	require.NotNil(t, post.ThumbnailID)
	assert.Equal(t, att, *post.ThumbnailID)

	assert.ErrorIs(t, s.SetPostThumbnail(ctx, 9999, att), ErrNotFound)
}
