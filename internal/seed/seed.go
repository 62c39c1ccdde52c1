// Package seed populates the database with demo data for development and
// testing. It is never invoked in production.
package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"inkwell/internal/authz"
	"inkwell/internal/models"
	"inkwell/internal/repository"
)

// Options configure how much demo data the seeder creates.
type Options struct {
	NumUsers    int
	NumPosts    int
	ShouldClean bool
}

// categoryNames is the fixed set of demo categories.
var categoryNames = []string{
	"Technology", "Travel", "Food", "Science", "Books",
	"Music", "Gaming", "Fitness", "Finance",
}

// Run populates the database: categories, demo authors plus one editor, and
// a spread of published and draft posts. Roles must already be provisioned.
func Run(ctx context.Context, db *gorm.DB, opts Options) error {
	log.Printf("Seeding database with %d users and %d posts...", opts.NumUsers, opts.NumPosts)
	gofakeit.Seed(time.Now().UnixNano())

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway")
		}
	}

	categories, err := createOrGetCategories(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to create categories: %w", err)
	}
	log.Printf("%d categories available", len(categories))

	users, err := createUsers(ctx, db, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("%d demo users created", len(users))

	posts, err := createPosts(ctx, db, users, categories, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("%d posts created", len(posts))

	log.Println("Database seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE posts, categories, user_groups, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createOrGetCategories(ctx context.Context, db *gorm.DB) ([]models.Category, error) {
	categories := make([]models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		var category models.Category
		err := db.WithContext(ctx).
			Where(models.Category{Name: name}).
			FirstOrCreate(&category).Error
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// createUsers makes NumUsers demo authors plus a single editor account
// (editor/Password123!) for exercising moderation locally.
func createUsers(ctx context.Context, db *gorm.DB, count int) ([]*models.User, error) {
	userRepo := repository.NewUserRepository(db)

	hashed, err := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	users := make([]*models.User, 0, count+1)

	editor := &models.User{
		Username: "editor",
		Email:    "editor@example.com",
		Password: string(hashed),
	}
	if err := userRepo.Create(ctx, editor); err == nil {
		for _, role := range []string{authz.RoleReaders, authz.RoleEditors} {
			if err := userRepo.AddToGroup(ctx, editor, role); err != nil {
				return nil, err
			}
		}
		users = append(users, editor)
	}

	for i := 0; i < count; i++ {
		user := &models.User{
			Username: fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(100, 999)),
			Email:    gofakeit.Email(),
			Password: string(hashed),
		}
		if err := userRepo.Create(ctx, user); err != nil {
			// Duplicate fakes happen; skip and keep going.
			continue
		}
		for _, role := range []string{authz.RoleReaders, authz.RoleAuthors} {
			if err := userRepo.AddToGroup(ctx, user, role); err != nil {
				return nil, err
			}
		}
		users = append(users, user)
	}

	return users, nil
}

func createPosts(ctx context.Context, db *gorm.DB, users []*models.User, categories []models.Category, count int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, nil
	}
	postRepo := repository.NewPostRepository(db)

	//nolint:gosec // weak randomness is fine for demo data
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[r.Intn(len(users))]
		post := &models.Post{
			Title:       gofakeit.Sentence(5),
			Content:     gofakeit.Paragraph(2, 4, 8, "\n\n"),
			ImageURL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/450", gofakeit.UUID()),
			UserID:      &author.ID,
			IsPublished: r.Intn(4) != 0, // roughly a quarter stay drafts
		}
		if r.Intn(10) != 0 {
			post.CategoryID = &categories[r.Intn(len(categories))].ID
		}
		if err := postRepo.Create(ctx, post); err != nil {
			return nil, err
		}

		// Spread creation dates for a believable front page.
		createdAt := time.Now().Add(-time.Duration(r.Intn(90*24)) * time.Hour)
		if err := db.WithContext(ctx).Model(post).UpdateColumn("created_at", createdAt).Error; err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}

	return posts, nil
}
