package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/identity"
)

// RegisterIdentityRoutes wires token verification.
func RegisterIdentityRoutes(r fiber.Router, h *identity.Handler) {
	r.Get("/auth/verify", h.Verify)
}
