package server

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"

	"inkwell/internal/authz"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// relatedPostsLimit caps how many related posts a detail view carries.
const relatedPostsLimit = 3

// Index handles GET /. Only published posts appear, newest first.
func (s *Server) Index(c *fiber.Ctx) error {
	page := parsePage(c)
	posts, total, err := s.postRepo.ListPublished(c.Context(), postsPerPage, (page-1)*postsPerPage)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(withFlash(c, fiber.Map{
		"posts":      posts,
		"pagination": pagination(page, total),
	}))
}

// About handles GET /about.
func (s *Server) About(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"title":       "About Inkwell",
		"description": "Inkwell is a small publishing platform where authors write, editors moderate, and readers read.",
	})
}

// Details handles GET /details/:slug. Drafts are only visible to their owner
// and to moderators; everyone else gets the same 404 as a missing slug.
func (s *Server) Details(c *fiber.Ctx) error {
	caps, err := s.requireCapability(c, authz.CapViewPost)
	if err != nil {
		return nil
	}

	post, err := s.postRepo.GetBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return models.RespondWithError(c, statusForError(err), err)
	}

	if !post.IsPublished && !ownsPost(c, post) && !canModerate(caps) {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Post", c.Params("slug")))
	}

	related, err := s.postRepo.Related(c.Context(), post, relatedPostsLimit)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(withFlash(c, fiber.Map{
		"post":    post,
		"related": related,
	}))
}

// Dashboard handles GET /dashboard. Moderators see every post; authors see
// only their own.
func (s *Server) Dashboard(c *fiber.Ctx) error {
	caps, err := s.requireCapability(c, authz.CapAddPost)
	if err != nil {
		return nil
	}

	page := parsePage(c)
	offset := (page - 1) * postsPerPage

	var (
		posts []models.Post
		total int64
	)
	if canModerate(caps) {
		posts, total, err = s.postRepo.ListAll(c.Context(), postsPerPage, offset)
	} else {
		posts, total, err = s.postRepo.ListByUser(c.Context(), middleware.CurrentUserID(c), postsPerPage, offset)
	}
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	return c.JSON(withFlash(c, fiber.Map{
		"posts":      posts,
		"pagination": pagination(page, total),
	}))
}

// Categories handles GET /categories, the selection list for post forms.
func (s *Server) Categories(c *fiber.Ctx) error {
	categories, err := s.categoryRepo.List(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// NewPostForm handles GET /new_post.
func (s *Server) NewPostForm(c *fiber.Ctx) error {
	if _, err := s.requireCapability(c, authz.CapAddPost); err != nil {
		return nil
	}

	categories, err := s.categoryRepo.List(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(withFlash(c, fiber.Map{
		"fields":     []string{"title", "content", "category_id", "image", "image_url"},
		"categories": categories,
	}))
}

// postForm carries the shared fields of the create and edit forms.
type postForm struct {
	Title      string `json:"title" form:"title"`
	Content    string `json:"content" form:"content"`
	CategoryID uint   `json:"category_id" form:"category_id"`
	ImageURL   string `json:"image_url" form:"image_url"`
}

// validatePostForm checks title and content, resolves the optional category,
// and stores an uploaded image if one was attached. On validation failure it
// writes a 400 and returns errResponseWritten.
func (s *Server) validatePostForm(c *fiber.Ctx, form *postForm) (categoryID *uint, imageURL string, err error) {
	fields := map[string]string{}
	if vErr := validation.ValidatePostTitle(form.Title); vErr != nil {
		fields["title"] = vErr.Error()
	}
	if vErr := validation.ValidatePostContent(form.Content); vErr != nil {
		fields["content"] = vErr.Error()
	}

	if form.CategoryID != 0 {
		category, cErr := s.categoryRepo.GetByID(c.Context(), form.CategoryID)
		if cErr != nil {
			fields["category_id"] = "Unknown category"
		} else {
			categoryID = &category.ID
		}
	}

	imageURL = form.ImageURL
	if file, fErr := c.FormFile("image"); fErr == nil && file != nil {
		stored, sErr := s.storeImage(file, c)
		if sErr != nil {
			_ = models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(sErr))
			return nil, "", errResponseWritten
		}
		imageURL = stored
	}

	if len(fields) > 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest, models.NewFieldErrors(fields))
		return nil, "", errResponseWritten
	}
	return categoryID, imageURL, nil
}

// storeImage saves an uploaded file under the media directory with a
// collision-free name and returns its public URL path.
func (s *Server) storeImage(file *multipart.FileHeader, c *fiber.Ctx) (string, error) {
	if err := os.MkdirAll(s.config.MediaDir, 0o755); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s%s", uuid.New().String(), filepath.Ext(file.Filename))
	if err := c.SaveFile(file, filepath.Join(s.config.MediaDir, name)); err != nil {
		return "", err
	}
	return "/media/" + name, nil
}

// NewPost handles POST /new_post. The post is owned by the requester and
// starts as a draft; publication is a separate editorial act.
func (s *Server) NewPost(c *fiber.Ctx) error {
	if _, err := s.requireCapability(c, authz.CapAddPost); err != nil {
		return nil
	}

	var form postForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	categoryID, imageURL, err := s.validatePostForm(c, &form)
	if err != nil {
		return nil
	}

	userID := middleware.CurrentUserID(c)
	post := &models.Post{
		Title:      form.Title,
		Content:    form.Content,
		ImageURL:   imageURL,
		CategoryID: categoryID,
		UserID:     &userID,
	}
	if err := s.postRepo.Create(c.Context(), post); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "post created",
		"post_id", post.ID, "slug", post.Slug)

	return redirectWithFlash(c, middleware.FlashSuccess,
		"Post created successfully", "/dashboard")
}

// loadOwnedPost fetches the post and enforces the ownership rule: only the
// owner or a moderator may act on it. A violation is recovered with a notice
// and a redirect back to the dashboard, not a hard failure.
func (s *Server) loadOwnedPost(c *fiber.Ctx, caps authz.Set) (*models.Post, error) {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil, errResponseWritten
	}

	post, err := s.postRepo.GetByID(c.Context(), id)
	if err != nil {
		_ = models.RespondWithError(c, statusForError(err), err)
		return nil, errResponseWritten
	}

	if !ownsPost(c, post) && !canModerate(caps) {
		_ = redirectWithFlash(c, middleware.FlashError,
			"Authors can't modify other authors' posts.", "/dashboard")
		return nil, errResponseWritten
	}
	return post, nil
}

// EditPostForm handles GET /edit_post/:id, returning the current state of the
// post for form redisplay.
func (s *Server) EditPostForm(c *fiber.Ctx) error {
	caps, err := s.requireCapability(c, authz.CapChangePost)
	if err != nil {
		return nil
	}

	post, err := s.loadOwnedPost(c, caps)
	if err != nil {
		return nil
	}

	categories, err := s.categoryRepo.List(c.Context())
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	return c.JSON(withFlash(c, fiber.Map{
		"post":       post,
		"categories": categories,
	}))
}

// EditPost handles POST /edit_post/:id. The slug and the owner never change,
// whatever the form carries.
func (s *Server) EditPost(c *fiber.Ctx) error {
	caps, err := s.requireCapability(c, authz.CapChangePost)
	if err != nil {
		return nil
	}

	post, err := s.loadOwnedPost(c, caps)
	if err != nil {
		return nil
	}

	var form postForm
	if err := c.BodyParser(&form); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	categoryID, imageURL, err := s.validatePostForm(c, &form)
	if err != nil {
		return nil
	}

	post.Title = form.Title
	post.Content = form.Content
	post.CategoryID = categoryID
	if imageURL != "" {
		post.ImageURL = imageURL
	}
	if err := s.postRepo.Update(c.Context(), post); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "post updated",
		"post_id", post.ID, "slug", post.Slug)

	return redirectWithFlash(c, middleware.FlashSuccess,
		"Post updated successfully", "/dashboard")
}

// DeletePost handles POST /delete_post/:id.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	caps, err := s.requireCapability(c, authz.CapDeletePost)
	if err != nil {
		return nil
	}

	post, err := s.loadOwnedPost(c, caps)
	if err != nil {
		return nil
	}

	if err := s.postRepo.Delete(c.Context(), post.ID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "post deleted",
		"post_id", post.ID, "slug", post.Slug)

	return redirectWithFlash(c, middleware.FlashSuccess,
		"Post deleted successfully", "/dashboard")
}

// PublishPost handles POST /publish_post/:id, toggling publication. Only
// moderators hold publish_post, so no ownership check applies.
func (s *Server) PublishPost(c *fiber.Ctx) error {
	if _, err := s.requireCapability(c, authz.CapPublishPost); err != nil {
		return nil
	}

	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	post, err := s.postRepo.GetByID(c.Context(), id)
	if err != nil {
		return models.RespondWithError(c, statusForError(err), err)
	}

	post.IsPublished = !post.IsPublished
	if err := s.postRepo.Update(c.Context(), post); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	notice := "Post hidden successfully"
	state := "hidden"
	if post.IsPublished {
		notice = "Post published successfully"
		state = "published"
	}
	observability.PostPublishToggles.WithLabelValues(state).Inc()

	middleware.Logger.InfoContext(c.UserContext(), "post publication toggled",
		"post_id", post.ID, "published", post.IsPublished)

	return redirectWithFlash(c, middleware.FlashSuccess, notice, "/dashboard")
}
