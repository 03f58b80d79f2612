package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/identity"
	"github.com/unity-gaming/unity_wallet/internal/middleware"
	"github.com/unity-gaming/unity_wallet/internal/money"
	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

// RegisterMeRoute exposes the caller's profile together with their wallet.
func RegisterMeRoute(r fiber.Router, ids *identity.Service, wallets *wallet.Service) {
	r.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals(middleware.UserIDKey).(string)
		user, err := ids.Get(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "User not found")
		}
		w, err := wallets.Open(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "Error fetching wallet: "+err.Error())
		}
		bal, err := wallets.Balance(c.UserContext(), w)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, "Error fetching wallet: "+err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user":         identity.ProfileOf(user),
			"member_since": user.CreatedAt,
			"last_active":  user.LastActive,
			"wallet": fiber.Map{
				"id":         w.ID,
				"currency":   w.Currency,
				"status":     w.Status,
				"created_at": w.CreatedAt,
				"balance":    money.Number(bal.Amount),
				"as_of":      bal.AsOf,
			},
		})
	})
}
