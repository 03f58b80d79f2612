package middleware

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/auth"
)

// UserIDKey is the Locals key holding the authenticated user id.
const UserIDKey = "user_id"

// RequireUser validates the bearer access token and stores the caller's id
// and username in Locals. Tokens issued before the last logout are rejected.
func RequireUser(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "Token is missing")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])
		if token == "" {
			return fiber.NewError(http.StatusUnauthorized, "Token is missing")
		}

		user, err := svc.Authenticate(c.UserContext(), token)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "Token is invalid")
		}

		c.Locals(UserIDKey, user.ID)
		c.Locals("username", user.Username)
		return c.Next()
	}
}
