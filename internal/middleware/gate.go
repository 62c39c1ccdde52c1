package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// anonAllowedPaths is the explicit allow-list of exact paths an anonymous
// requester may visit.
var anonAllowedPaths = map[string]struct{}{
	"/":                {},
	"/about":           {},
	"/login":           {},
	"/register":        {},
	"/forget_password": {},
}

// anonAllowedPrefixes are path prefixes that pass through unconditionally for
// anonymous requesters. Reset links carry a real uid/token pair in the path,
// so /reset_password is matched by prefix rather than by enumerating token
// values. Health and metrics endpoints stay reachable for probes and scrapes.
var anonAllowedPrefixes = []string{
	"/media/",
	"/admin",
	"/reset_password",
	"/health",
	"/metrics",
}

// AccessGate enforces the request-path access rules before any handler runs.
// Authenticated users are bounced from the login and registration pages to
// the dashboard. Anonymous users may only reach the allow-listed paths and
// prefixes; everything else redirects to the login page with a notice.
func AccessGate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		path := c.Path()

		if CurrentUserID(c) != 0 {
			if path == "/login" || path == "/register" {
				return c.Redirect("/dashboard", fiber.StatusFound)
			}
			return c.Next()
		}

		for _, prefix := range anonAllowedPrefixes {
			if strings.HasPrefix(path, prefix) {
				return c.Next()
			}
		}

		if _, ok := anonAllowedPaths[path]; ok {
			return c.Next()
		}

		SetFlash(c, FlashError, "You must be logged in to access this page.")
		return c.Redirect("/login", fiber.StatusFound)
	}
}
