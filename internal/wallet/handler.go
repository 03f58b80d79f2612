package wallet

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/money"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Show returns the authenticated user's balance, provisioning the wallet on first read.
func (h *Handler) Show(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	w, err := h.service.Open(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "Error fetching wallet: "+err.Error())
	}
	balance, err := h.service.Balance(c.UserContext(), w)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "Error fetching wallet: "+err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance":   money.Number(balance.Amount),
		"user_id":   userID,
		"wallet_id": w.ID,
		"currency":  w.Currency,
		"as_of":     balance.AsOf,
	})
}
