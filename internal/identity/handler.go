package identity

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Profile is the public view of a user.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
}

// ProfileOf renders user for API responses.
func ProfileOf(user User) Profile {
	return Profile{ID: user.ID, Username: user.Username, Email: user.Email, Avatar: user.Avatar}
}

// Verify returns the profile behind the bearer token.
func (h *Handler) Verify(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	user, err := h.service.Get(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusUnauthorized, "Token is invalid")
		}
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"user": ProfileOf(user)})
}
