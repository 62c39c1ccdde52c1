package repository

import (
	"context"
	"testing"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostCreate_SlugDerivation(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{Title: "Hello, World of Go!", Content: "Some content long enough for a post."}
	require.NoError(t, repo.Create(ctx, post))
	assert.Equal(t, "hello-world-of-go", post.Slug)
	assert.Equal(t, models.PlaceholderImageURL, post.ImageURL)

	// Same title gets a suffixed slug rather than a collision.
	dup := &models.Post{Title: "Hello, World of Go!", Content: "Different content entirely here."}
	require.NoError(t, repo.Create(ctx, dup))
	assert.Equal(t, "hello-world-of-go-2", dup.Slug)

	tripl := &models.Post{Title: "Hello, World of Go!", Content: "A third post with the same title."}
	require.NoError(t, repo.Create(ctx, tripl))
	assert.Equal(t, "hello-world-of-go-3", tripl.Slug)
}

func TestPostUpdate_SlugAndOwnerImmutable(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	owner := models.User{Username: "alice", Email: "alice@example.com", Password: "hash"}
	require.NoError(t, db.Create(&owner).Error)

	post := &models.Post{Title: "Original post title", Content: "Original content with plenty of text.", UserID: &owner.ID}
	require.NoError(t, repo.Create(ctx, post))
	originalSlug := post.Slug

	post.Title = "A completely different title"
	post.Content = "Updated content with plenty of new text."
	require.NoError(t, repo.Update(ctx, post))

	reloaded, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, originalSlug, reloaded.Slug, "slug must never change after first save")
	assert.Equal(t, "A completely different title", reloaded.Title)
	require.NotNil(t, reloaded.UserID)
	assert.Equal(t, owner.ID, *reloaded.UserID)
}

func TestListPublished_ExcludesDrafts(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Published post one", Content: "Visible to everyone browsing home.", IsPublished: true}))
	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Unpublished draft post", Content: "Must never appear in the index."}))

	posts, total, err := repo.ListPublished(ctx, 5, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "Published post one", posts[0].Title)
	assert.True(t, posts[0].IsPublished)
}

func TestListPublished_Pagination(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Create(ctx, &models.Post{
			Title:       "Paginated published post",
			Content:     "Filler content long enough to satisfy validation.",
			IsPublished: true,
		}))
	}

	first, total, err := repo.ListPublished(ctx, 5, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 7, total)
	assert.Len(t, first, 5)

	second, _, err := repo.ListPublished(ctx, 5, 5)
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestListByUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := models.User{Username: "alice", Email: "alice@example.com", Password: "hash"}
	bob := models.User{Username: "bob", Email: "bob@example.com", Password: "hash"}
	require.NoError(t, db.Create(&alice).Error)
	require.NoError(t, db.Create(&bob).Error)

	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Alice's first post", Content: "Written by alice, and only alice.", UserID: &alice.ID}))
	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Bob's only post here", Content: "Written by bob, and only bob.", UserID: &bob.ID}))

	posts, total, err := repo.ListByUser(ctx, alice.ID, 5, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, posts, 1)
	assert.Equal(t, "Alice's first post", posts[0].Title)
}

func TestRelated(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	golang := models.Category{Name: "Go"}
	other := models.Category{Name: "Other"}
	require.NoError(t, db.Create(&golang).Error)
	require.NoError(t, db.Create(&other).Error)

	subject := &models.Post{Title: "The subject post here", Content: "The post whose neighbours we want.", CategoryID: &golang.ID, IsPublished: true}
	require.NoError(t, repo.Create(ctx, subject))

	for i := 0; i < 4; i++ {
		require.NoError(t, repo.Create(ctx, &models.Post{
			Title:       "Related published post",
			Content:     "Shares the category with the subject.",
			CategoryID:  &golang.ID,
			IsPublished: true,
		}))
	}
	// Draft in the same category must not surface.
	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Draft in same category", Content: "Hidden from related listings.", CategoryID: &golang.ID}))
	// Published post in another category must not surface.
	require.NoError(t, repo.Create(ctx, &models.Post{Title: "Unrelated category post", Content: "Different category altogether here.", CategoryID: &other.ID, IsPublished: true}))

	related, err := repo.Related(ctx, subject, 3)
	require.NoError(t, err)
	require.Len(t, related, 3)
	for _, p := range related {
		assert.NotEqual(t, subject.ID, p.ID)
		assert.True(t, p.IsPublished)
		require.NotNil(t, p.CategoryID)
		assert.Equal(t, golang.ID, *p.CategoryID)
	}
}

func TestRelated_NoCategory(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)

	subject := &models.Post{Title: "Post with no category", Content: "Nothing can relate to this one."}
	require.NoError(t, repo.Create(context.Background(), subject))

	related, err := repo.Related(context.Background(), subject, 3)
	require.NoError(t, err)
	assert.Empty(t, related)
}

func TestGetBySlug_NotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)

	_, err := repo.GetBySlug(context.Background(), "no-such-slug")
	require.Error(t, err)
	appErr, ok := err.(*models.AppError)
	require.True(t, ok)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestPostDelete(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	post := &models.Post{Title: "Post awaiting deletion", Content: "Soon this post will be gone."}
	require.NoError(t, repo.Create(ctx, post))
	require.NoError(t, repo.Delete(ctx, post.ID))

	_, err := repo.GetByID(ctx, post.ID)
	assert.Error(t, err)
}

// withTestCache points the cache package at a throwaway miniredis for the
// duration of the test.
func withTestCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cache.SetClient(rdb)
	t.Cleanup(func() { cache.SetClient(nil) })
	return mr
}

func TestGetBySlug_CacheCycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	mr := withTestCache(t)

	post := &models.Post{Title: "Caching the Detail Page", Content: "Detail reads should come out of Redis."}
	require.NoError(t, repo.Create(ctx, post))

	got, err := repo.GetBySlug(ctx, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Caching the Detail Page", got.Title)
	assert.True(t, mr.Exists(cache.PostKey(post.Slug)))

	// A column change the repository never sees proves the second read is
	// served from the cache.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).
		UpdateColumn("title", "Changed Behind The Cache").Error)

	got, err = repo.GetBySlug(ctx, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Caching the Detail Page", got.Title)

	// Update purges the entry, so the next read hits the database.
	got.Title = "Fresh After Invalidation"
	require.NoError(t, repo.Update(ctx, got))
	assert.False(t, mr.Exists(cache.PostKey(post.Slug)))

	got, err = repo.GetBySlug(ctx, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Fresh After Invalidation", got.Title)
}

func TestPostDelete_PurgesCachedEntry(t *testing.T) {
	db := newTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	mr := withTestCache(t)

	post := &models.Post{Title: "A Post That Gets Removed", Content: "Deleting must also drop the cached copy."}
	require.NoError(t, repo.Create(ctx, post))

	_, err := repo.GetBySlug(ctx, post.Slug)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.PostKey(post.Slug)))

	require.NoError(t, repo.Delete(ctx, post.ID))
	assert.False(t, mr.Exists(cache.PostKey(post.Slug)))

	_, err = repo.GetBySlug(ctx, post.Slug)
	assert.Error(t, err)
	assert.False(t, mr.Exists(cache.PostKey(post.Slug)), "a miss must not repopulate the key")
}
