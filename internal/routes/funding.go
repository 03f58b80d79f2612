package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/funding"
)

// RegisterFundingRoutes wires add-money and withdraw.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/wallet/add", h.AddMoney)
	r.Post("/wallet/withdraw", h.Withdraw)
}
