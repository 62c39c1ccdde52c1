package server

import (
	"errors"

	"inkwell/internal/authz"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// postsPerPage is the page size for the front page and the dashboard.
const postsPerPage = 5

// statusForError maps repository failures onto HTTP statuses: a missing row
// is the caller's 404, anything else is a server fault.
func statusForError(err error) int {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == "NOT_FOUND" {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

// parsePage extracts the 1-based ?page= query parameter.
func parsePage(c *fiber.Ctx) int {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	return page
}

// pagination renders list paging metadata.
func pagination(page int, total int64) fiber.Map {
	totalPages := int((total + postsPerPage - 1) / postsPerPage)
	return fiber.Map{
		"page":        page,
		"per_page":    postsPerPage,
		"total":       total,
		"total_pages": totalPages,
	}
}

// parseID extracts a route parameter as a positive uint. On failure it writes
// a 400 JSON response and returns errResponseWritten; callers should check:
// if err != nil { return nil }.
func (s *Server) parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid ID"))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// capabilities resolves the requester's capability set. Anonymous requesters
// get an empty set.
func (s *Server) capabilities(c *fiber.Ctx) (authz.Set, error) {
	userID := middleware.CurrentUserID(c)
	if userID == 0 {
		return authz.NewSet(), nil
	}
	return s.userRepo.Capabilities(c.Context(), userID)
}

// requireCapability resolves the requester's capability set and enforces that
// it contains the given capability. A missing capability is fatal: it writes
// a 403 JSON response and returns errResponseWritten.
func (s *Server) requireCapability(c *fiber.Ctx, capability authz.Capability) (authz.Set, error) {
	caps, err := s.capabilities(c)
	if err != nil {
		_ = models.RespondWithError(c, fiber.StatusInternalServerError, err)
		return nil, errResponseWritten
	}
	if !caps.Has(capability) {
		_ = models.RespondWithError(c, fiber.StatusForbidden,
			models.NewForbiddenError("You do not have permission to perform this action."))
		return nil, errResponseWritten
	}
	return caps, nil
}

// canModerate reports whether the capability set allows acting on other
// authors' posts and seeing every post on the dashboard.
func canModerate(caps authz.Set) bool {
	return caps.Has(authz.CapPublishPost)
}

// ownsPost reports whether the requester owns the post. Posts whose author
// was deleted belong to nobody.
func ownsPost(c *fiber.Ctx, post *models.Post) bool {
	userID := middleware.CurrentUserID(c)
	return userID != 0 && post.UserID != nil && *post.UserID == userID
}

// redirectWithFlash stores a one-shot notice and redirects.
func redirectWithFlash(c *fiber.Ctx, kind, message, location string) error {
	middleware.SetFlash(c, kind, message)
	return c.Redirect(location, fiber.StatusFound)
}

// withFlash attaches any pending one-shot notice to a response payload.
func withFlash(c *fiber.Ctx, payload fiber.Map) fiber.Map {
	if flash := middleware.TakeFlash(c); flash != nil {
		payload["flash"] = flash
	}
	return payload
}
