package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/unity-gaming/unity_wallet/internal/identity"
	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

// Handler exposes register/login/refresh/logout.
type Handler struct {
	ids     *identity.Service
	svc     *Service
	wallets *wallet.Service
}

func NewHandler(ids *identity.Service, svc *Service, wallets *wallet.Service) *Handler {
	return &Handler{ids: ids, svc: svc, wallets: wallets}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	TokenPair
	User     identity.Profile `json:"user"`
	WalletID string           `json:"wallet_id,omitempty"`
}

// Register creates an account and returns a token pair.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request data")
	}
	user, err := h.ids.Register(c.UserContext(), identity.Registration{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrUsernameTaken), errors.Is(err, identity.ErrEmailTaken),
			errors.Is(err, identity.ErrInvalidRegistration), errors.Is(err, identity.ErrWeakPassword):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return err
	}
	return h.session(c, http.StatusCreated, user)
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request data")
	}
	user, err := h.ids.Authenticate(c.UserContext(), identity.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		return err
	}
	return h.session(c, http.StatusOK, user)
}

func (h *Handler) session(c *fiber.Ctx, status int, user identity.User) error {
	pair, err := h.svc.Login(user)
	if err != nil {
		return err
	}
	var wid string
	if h.wallets != nil {
		if w, err := h.wallets.GetByOwner(c.UserContext(), user.ID); err == nil {
			wid = w.ID
		}
	}
	return c.Status(status).JSON(sessionResponse{TokenPair: pair, User: identity.ProfileOf(user), WalletID: wid})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "Invalid request data")
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, "Token is invalid")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": token, "expires_in": exp})
}

// Logout invalidates every token of the authenticated user.
func (h *Handler) Logout(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return fiber.NewError(http.StatusUnauthorized, "Token is missing")
	}
	if err := h.svc.Logout(c.UserContext(), userID); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
