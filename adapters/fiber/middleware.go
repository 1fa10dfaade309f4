package fiber

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/bantay/core"
)

const localsSession = "session"

// loadSession resolves the session cookie and stores the session data in
// the request locals. Missing, unknown and expired tokens leave the request
// anonymous; a storage fault fails the request.
func (a *Adapter) loadSession(auth core.AuthProvider) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Next()
		}

		sessionData, err := auth.GetSession(c.Context(), token)
		if err != nil {
			if mapErrorToStatus(err) == http.StatusUnauthorized {
				return c.Next()
			}
			return a.handleError(c, err)
		}

		c.Locals(localsSession, sessionData)
		return c.Next()
	}
}

// endpoint builds the RequestContext for ep and enforces RequiresSession.
// Anonymous page loads are sent to the login form, anything else gets 401.
func (a *Adapter) endpoint(ep *core.Endpoint) fiber.Handler {
	return func(c fiber.Ctx) error {
		sessionData, _ := c.Locals(localsSession).(*core.SessionData)

		if ep.Metadata.RequiresSession && sessionData == nil {
			if c.Method() == fiber.MethodGet {
				return c.Redirect().To("/login")
			}
			return a.handleError(c, core.ErrUnauthorized)
		}

		err := ep.Handler(&core.RequestContext{
			Request: c,
			Context: c.Context(),
			Session: sessionData,
		})
		if err != nil {
			return a.handleError(c, err)
		}
		return nil
	}
}

// extractToken reads the session cookie, falling back to a Bearer token for
// non-browser clients.
func extractToken(c fiber.Ctx) string {
	if token := c.Cookies(CookieName); token != "" {
		return strings.Clone(token)
	}

	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return strings.Clone(authHeader[7:])
	}
	return ""
}
