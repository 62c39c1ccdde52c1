// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"fmt"

	"inkwell/internal/cache"
	"inkwell/internal/models"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	ListPublished(ctx context.Context, limit, offset int) ([]models.Post, int64, error)
	ListAll(ctx context.Context, limit, offset int) ([]models.Post, int64, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Post, int64, error)
	Related(ctx context.Context, post *models.Post, limit int) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create persists a new post, deriving its slug from the title. The slug is
// assigned exactly once here and never updated afterwards.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ImageURL == "" {
		post.ImageURL = models.PlaceholderImageURL
	}

	uniqueSlug, err := r.uniqueSlug(ctx, post.Title)
	if err != nil {
		return err
	}
	post.Slug = uniqueSlug

	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// uniqueSlug derives a URL-safe slug from the title, suffixing a counter when
// the plain form is already taken.
func (r *postRepository) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "post"
	}

	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := r.db.WithContext(ctx).
			Model(&models.Post{}).
			Where("slug = ?", candidate).
			Count(&count).Error; err != nil {
			return "", models.NewInternalError(err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).
		Preload("Category").
		Preload("User").
		First(&post, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &post, nil
}

// GetBySlug resolves a post for detail pages. Detail reads are the hottest
// path, so they go through the cache; Update and Delete purge the entry.
func (r *postRepository) GetBySlug(ctx context.Context, slugValue string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(slugValue), &post, cache.PostTTL, func() error {
		err := r.db.WithContext(ctx).
			Preload("Category").
			Preload("User").
			Where("slug = ?", slugValue).
			First(&post).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("Post", slugValue)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListPublished(ctx context.Context, limit, offset int) ([]models.Post, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("is_published = ?", true), limit, offset)
}

func (r *postRepository) ListAll(ctx context.Context, limit, offset int) ([]models.Post, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx), limit, offset)
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Post, int64, error) {
	return r.list(ctx, r.db.WithContext(ctx).Where("user_id = ?", userID), limit, offset)
}

func (r *postRepository) list(ctx context.Context, query *gorm.DB, limit, offset int) ([]models.Post, int64, error) {
	var total int64
	if err := query.Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []models.Post
	err := query.
		Preload("Category").
		Preload("User").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

// Related returns published posts sharing the given post's category,
// excluding the post itself.
func (r *postRepository) Related(ctx context.Context, post *models.Post, limit int) ([]models.Post, error) {
	if post.CategoryID == nil {
		return nil, nil
	}

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND is_published = ? AND id <> ?", *post.CategoryID, true, post.ID).
		Order("created_at DESC").
		Limit(limit).
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}

// Update persists changes to a post's mutable columns. Slug, owner, and
// creation timestamp are immutable once assigned.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", post.ID).
		Select("title", "content", "image_url", "category_id", "is_published").
		Updates(map[string]interface{}{
			"title":        post.Title,
			"content":      post.Content,
			"image_url":    post.ImageURL,
			"category_id":  post.CategoryID,
			"is_published": post.IsPublished,
		}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.Slug)
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}

	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidatePost(ctx, post.Slug)
	return nil
}
