package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/ledger"
	"github.com/unity-gaming/unity_wallet/internal/money"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes HTTP endpoints for wallet funding flows.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// AddMoney processes wallet top-ups.
func (h *Handler) AddMoney(c *fiber.Ctx) error {
	var req AddMoneyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid amount format")
	}
	if !req.Amount.Valid {
		return fiber.NewError(http.StatusBadRequest, ErrInvalidAmount.Error())
	}
	method, err := ParseMethod(req.PaymentMethod)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	res, err := h.service.AddMoney(c.UserContext(), AddMoneyInput{
		OwnerID:    userID,
		Amount:     req.Amount.Decimal,
		Method:     method,
		ClientTxID: c.Get(idempotencyKeyHeader),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return mapError(err, "Error processing payment: ")
	}

	return c.Status(http.StatusOK).JSON(AddMoneyResponse{
		Message:       "Money added successfully",
		Balance:       money.Number(res.Balance),
		TransactionID: res.TransactionID,
		AmountAdded:   money.Number(res.Amount),
	})
}

// Withdraw processes wallet withdrawals.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid amount format")
	}
	if !req.Amount.Valid {
		return fiber.NewError(http.StatusBadRequest, ErrInvalidAmount.Error())
	}

	userID, _ := c.Locals("user_id").(string)
	res, err := h.service.Withdraw(c.UserContext(), WithdrawInput{
		OwnerID:    userID,
		Amount:     req.Amount.Decimal,
		ClientTxID: c.Get(idempotencyKeyHeader),
	})
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return mapError(err, "Error processing withdrawal: ")
	}

	return c.Status(http.StatusOK).JSON(WithdrawResponse{
		Message:         "Money withdrawn successfully",
		Balance:         money.Number(res.Balance),
		TransactionID:   res.TransactionID,
		AmountWithdrawn: money.Number(res.Amount),
	})
}

func mapError(err error, prefix string) error {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, ErrInvalidAmount.Error())
	case errors.Is(err, ErrInsufficientBalance):
		return fiber.NewError(http.StatusBadRequest, ErrInsufficientBalance.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, prefix+err.Error())
	}
}
