package server

import (
	"fmt"

	"inkwell/internal/mail"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/token"
	"inkwell/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

// invalidLinkNotice is the generic notice for every reset failure mode, so
// responses never reveal whether an account or token exists.
const invalidLinkNotice = "Password reset link is invalid or has expired."

// ForgetPasswordForm handles GET /forget_password.
func (s *Server) ForgetPasswordForm(c *fiber.Ctx) error {
	return c.JSON(withFlash(c, fiber.Map{
		"fields": []string{"email"},
	}))
}

// ForgetPassword handles POST /forget_password. A known email gets a
// single-use reset link; an unknown one gets a 404 and no mail.
func (s *Server) ForgetPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email" form:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	user, err := s.userRepo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Account", req.Email))
	}

	tok, err := s.resetTokens.Issue(c.Context(), user.ID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	observability.ResetTokensIssued.Inc()

	resetLink := fmt.Sprintf("%s/reset_password/%s/%s",
		s.config.BaseURL, token.EncodeUID(user.ID), tok)

	msg := mail.Message{
		To:      user.Email,
		Subject: "Reset Password Request",
		Body: fmt.Sprintf(
			"Hello %s,\n\nTo reset your password, visit the following link:\n\n%s\n\n"+
				"If you did not make this request, simply ignore this email.\n",
			user.Username, resetLink),
	}
	if err := s.mailer.Send(c.Context(), msg); err != nil {
		middleware.Logger.ErrorContext(c.UserContext(), "reset mail delivery failed",
			"user_id", user.ID, "error", err)
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	middleware.Logger.InfoContext(c.UserContext(), "password reset link issued",
		"user_id", user.ID)

	return c.JSON(fiber.Map{
		"message": "An email has been sent with instructions to reset your password.",
	})
}

// ResetPasswordForm handles GET /reset_password/:uid/:token.
func (s *Server) ResetPasswordForm(c *fiber.Ctx) error {
	return c.JSON(withFlash(c, fiber.Map{
		"fields": []string{"password", "confirm_password"},
	}))
}

// ResetPassword handles POST /reset_password/:uid/:token. Every branch ends
// in a redirect to the login page; only the notice differs. The token is
// consumed on success, so a reset link works exactly once.
func (s *Server) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Password        string `json:"password" form:"password"`
		ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if err := validation.ValidatePasswordPair(req.Password, req.ConfirmPassword); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	userID, err := token.DecodeUID(c.Params("uid"))
	if err != nil {
		// Malformed uid is indistinguishable from an unknown account.
		return redirectWithFlash(c, middleware.FlashError, invalidLinkNotice, "/login")
	}

	user, err := s.userRepo.GetByID(c.Context(), userID)
	if err != nil {
		// Unknown accounts get the same notice as a bad token.
		return redirectWithFlash(c, middleware.FlashError, invalidLinkNotice, "/login")
	}

	ok, err := s.resetTokens.Consume(c.Context(), user.ID, c.Params("token"))
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if !ok {
		return redirectWithFlash(c, middleware.FlashError, invalidLinkNotice, "/login")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if err := s.userRepo.UpdatePassword(c.Context(), user.ID, string(hashedPassword)); err != nil {
		return redirectWithFlash(c, middleware.FlashError, invalidLinkNotice, "/login")
	}

	middleware.Logger.InfoContext(c.UserContext(), "password reset completed",
		"user_id", userID)

	return redirectWithFlash(c, middleware.FlashSuccess,
		"Your password has been reset. Please log in.", "/login")
}
