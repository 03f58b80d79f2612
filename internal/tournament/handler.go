package tournament

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/money"
)

const (
	dateLayout       = "2006-01-02"
	placeholderThumb = "/placeholder.svg"
)

// Handler exposes tournament endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a tournament handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List returns the catalog.
func (h *Handler) List(c *fiber.Ctx) error {
	tournaments, err := h.service.List(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(tournaments))
	for _, t := range tournaments {
		out = append(out, fiber.Map{
			"id":           t.ID,
			"name":         t.Name,
			"game":         t.Game,
			"prizePool":    t.PrizePool,
			"entryFee":     money.Number(t.EntryFee),
			"participants": fmt.Sprintf("%d/%d", t.CurrentParticipants, t.MaxParticipants),
			"startDate":    date(t.StartDate),
			"endDate":      date(t.EndDate),
			"status":       t.Status,
			"organizer":    t.Organizer,
			"format":       t.Format,
			"thumbnail":    thumbnail(t.Thumbnail),
		})
	}
	return c.JSON(fiber.Map{"tournaments": out})
}

// Register enters the caller into a tournament and charges the entry fee.
func (h *Handler) Register(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(http.StatusNotFound, ErrNotFound.Error())
	}
	userID, _ := c.Locals("user_id").(string)

	res, err := h.service.Register(c.UserContext(), userID, int64(id))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrClosed), errors.Is(err, ErrFull),
			errors.Is(err, ErrAlreadyRegistered), errors.Is(err, ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}

	t := res.Tournament
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message":        "Successfully registered for tournament",
		"balance":        money.Number(res.Balance),
		"entry_fee_paid": money.Number(res.EntryFeePaid),
		"transaction_id": res.TransactionID,
		"registration": fiber.Map{
			"id":            res.Registration.ID,
			"tournament_id": t.ID,
			"status":        res.Registration.Status,
		},
		"tournament": fiber.Map{
			"id":         t.ID,
			"name":       t.Name,
			"game":       t.Game,
			"prize_pool": t.PrizePool,
			"thumbnail":  thumbnail(t.Thumbnail),
			"start_date": date(t.StartDate),
			"end_date":   date(t.EndDate),
		},
	})
}

// Mine lists the caller's registrations.
func (h *Handler) Mine(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	entries, err := h.service.Mine(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		t, reg := e.Tournament, e.Registration
		var earnings, nextMatch, placement any
		if reg.Earnings.Valid && !reg.Earnings.Decimal.IsZero() {
			earnings = money.Format(reg.Earnings.Decimal)
		}
		if reg.Status == RegistrationRegistered && !t.StartDate.IsZero() {
			nextMatch = date(t.StartDate).(string) + " 14:00"
		}
		if reg.Placement != "" {
			placement = reg.Placement
		}
		out = append(out, fiber.Map{
			"id":              t.ID,
			"registration_id": reg.ID,
			"name":            t.Name,
			"game":            t.Game,
			"status":          reg.Status,
			"placement":       placement,
			"earnings":        earnings,
			"nextMatch":       nextMatch,
			"thumbnail":       thumbnail(t.Thumbnail),
			"prize_pool":      t.PrizePool,
			"start_date":      date(t.StartDate),
			"end_date":        date(t.EndDate),
		})
	}
	return c.JSON(fiber.Map{"tournaments": out})
}

func date(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(dateLayout)
}

func thumbnail(s string) string {
	if s == "" {
		return placeholderThumb
	}
	return s
}
