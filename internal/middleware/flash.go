package middleware

import (
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Flash kinds carried across redirects.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

const flashCookie = "inkwell_flash"

// Flash is a one-shot status notice carried across a redirect.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SetFlash stores a one-shot notice in a short-lived cookie.
func SetFlash(c *fiber.Ctx, kind, message string) {
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(kind + "|" + message),
		Path:     "/",
		Expires:  time.Now().Add(5 * time.Minute),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// TakeFlash returns the pending notice, if any, and clears it.
func TakeFlash(c *fiber.Ctx) *Flash {
	raw := c.Cookies(flashCookie)
	if raw == "" {
		return nil
	}

	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return nil
	}
	kind, message, found := strings.Cut(decoded, "|")
	if !found {
		return nil
	}
	return &Flash{Kind: kind, Message: message}
}
