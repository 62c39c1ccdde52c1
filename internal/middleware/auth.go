// Package middleware provides authentication, access-gate, logging, and
// rate-limiting middleware for the application.
package middleware

import (
	"strconv"
	"strings"

	"inkwell/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "inkwell_session"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// Authenticate resolves the requester's authentication state. It accepts the
// session cookie or a Bearer Authorization header and, when the token is
// valid, stores the user ID in c.Locals("userID"). It never rejects the
// request itself; the access gate and handlers decide what an anonymous
// requester may do.
func Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := c.Cookies(SessionCookie)
		if tokenString == "" {
			authHeader := c.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}
		if tokenString == "" {
			return c.Next()
		}

		userID, ok := parseSessionToken(tokenString)
		if ok {
			c.Locals("userID", userID)
		}
		return c.Next()
	}
}

// parseSessionToken validates the token signature and extracts the user ID
// from the "sub" claim.
func parseSessionToken(tokenString string) (uint, bool) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return 0, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, false
	}

	subClaim, ok := claims["sub"]
	if !ok {
		return 0, false
	}
	subStr, ok := subClaim.(string)
	if !ok {
		return 0, false
	}

	userIDVal, err := strconv.ParseUint(subStr, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(userIDVal), true
}

// CurrentUserID returns the authenticated user ID, or 0 for anonymous requests.
func CurrentUserID(c *fiber.Ctx) uint {
	if uid, ok := c.Locals("userID").(uint); ok {
		return uid
	}
	return 0
}
