package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/auth"
)

// RegisterAuthRoutes wires the public session endpoints. Logout needs a
// valid access token.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, requireUser fiber.Handler) {
	group := r.Group("/auth")
	group.Post("/register", h.Register)
	if rateLimiter != nil {
		group.Post("/login", rateLimiter, h.Login)
	} else {
		group.Post("/login", h.Login)
	}
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", requireUser, h.Logout)
}
