package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/tournament"
)

// RegisterTournamentRoutes wires the catalog and registration endpoints. The
// catalog is public; registering and listing entries need requireUser.
func RegisterTournamentRoutes(r fiber.Router, h *tournament.Handler, requireUser, idempotency fiber.Handler) {
	group := r.Group("/tournaments")
	group.Get("/", h.List)
	group.Get("/my-tournaments", requireUser, h.Mine)
	group.Post("/:id<int>/register", requireUser, idempotency, h.Register)
}
