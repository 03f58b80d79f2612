package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

// RegisterWalletRoutes wires the balance read.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallet", h.Show)
}
