package server

import (
	"fmt"
	"strconv"
	"time"

	"inkwell/internal/authz"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// sessionTTL bounds how long a login stays valid.
const sessionTTL = 7 * 24 * time.Hour

// RegisterForm handles GET /register.
func (s *Server) RegisterForm(c *fiber.Ctx) error {
	return c.JSON(withFlash(c, fiber.Map{
		"fields": []string{"username", "email", "password", "confirm_password"},
	}))
}

// Register handles POST /register. A fresh account lands in the Readers
// group and nothing else; authoring rights are granted separately.
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username        string `json:"username" form:"username"`
		Email           string `json:"email" form:"email"`
		Password        string `json:"password" form:"password"`
		ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	fields := map[string]string{}
	if err := validation.ValidateUsername(req.Username); err != nil {
		fields["username"] = err.Error()
	}
	if err := validation.ValidateEmail(req.Email); err != nil {
		fields["email"] = err.Error()
	}
	if err := validation.ValidatePasswordPair(req.Password, req.ConfirmPassword); err != nil {
		fields["password"] = err.Error()
	}

	if fields["username"] == "" {
		existing, err := s.userRepo.GetByUsername(c.Context(), req.Username)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if existing != nil {
			fields["username"] = "This username is already taken"
		}
	}
	if fields["email"] == "" {
		existing, err := s.userRepo.GetByEmail(c.Context(), req.Email)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusInternalServerError, err)
		}
		if existing != nil {
			fields["email"] = "An account with this email already exists"
		}
	}

	if len(fields) > 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldErrors(fields))
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(c.Context(), user); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if err := s.userRepo.AddToGroup(c.Context(), user, authz.RoleReaders); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}

	middleware.Logger.InfoContext(c.UserContext(), "user registered",
		"user_id", user.ID, "username", user.Username)

	return redirectWithFlash(c, middleware.FlashSuccess,
		"Registration successful! Please log in.", "/login")
}

// LoginForm handles GET /login.
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return c.JSON(withFlash(c, fiber.Map{
		"fields": []string{"username", "password"},
	}))
}

// Login handles POST /login. Unknown usernames and wrong passwords produce
// the same response.
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userRepo.GetByUsername(c.Context(), req.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if user == nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid username or password."))
	}

	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); cmpErr != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Invalid username or password."))
	}

	tokenString, err := s.generateToken(user.ID, user.Username)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    tokenString,
		Path:     "/",
		Expires:  time.Now().Add(sessionTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	middleware.Logger.InfoContext(c.UserContext(), "user logged in",
		"user_id", user.ID, "username", user.Username)

	return c.Redirect("/dashboard", fiber.StatusFound)
}

// Logout handles GET /logout.
func (s *Server) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect("/", fiber.StatusFound)
}

// generateToken signs a session token for the user.
func (s *Server) generateToken(userID uint, username string) (string, error) {
	if s.config.JWTSecret == "" {
		return "", fmt.Errorf("JWT secret not configured")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(userID), 10),
		"username": username,
		"iss":      "inkwell",
		"exp":      now.Add(sessionTTL).Unix(),
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"jti":      fmt.Sprintf("%d-%s", now.Unix(), uuid.New().String()[:8]),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}
