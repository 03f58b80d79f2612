package walletclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Session holds the credentials of a logged-in user. It satisfies
// walletsync.TokenSource.
type Session struct {
	client *Client

	mu       sync.RWMutex
	token    string
	refresh  string
	expires  time.Time
	userID   string
	username string
	walletID string
}

type sessionPayload struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	WalletID     string `json:"wallet_id"`
	User         struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
}

// Login exchanges a username and password for a session.
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	body, err := c.do(ctx, fiber.MethodPost, "/api/auth/login", "", "", fiber.Map{
		"username": username,
		"password": password,
	})
	if err != nil {
		return nil, err
	}
	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if payload.Token == "" {
		return nil, fmt.Errorf("login response carried no token")
	}
	s := &Session{client: c, userID: payload.User.ID, username: payload.User.Username, walletID: payload.WalletID}
	s.apply(payload.Token, payload.RefreshToken, payload.ExpiresIn)
	return s, nil
}

// Token returns the access token while it is unexpired.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || (!s.expires.IsZero() && time.Now().After(s.expires)) {
		return "", false
	}
	return s.token, true
}

// UserID is the id of the logged-in user. Notifications are addressed to it.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// Username is the login name of the session user.
func (s *Session) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

// WalletID is the wallet opened at login.
func (s *Session) WalletID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.walletID
}

// Refresh trades the refresh token for a new access token.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refresh := s.refresh
	s.mu.RUnlock()
	if refresh == "" {
		return fmt.Errorf("session has no refresh token")
	}

	body, err := s.client.do(ctx, fiber.MethodPost, "/api/auth/refresh", "", "", fiber.Map{"refresh_token": refresh})
	if err != nil {
		return err
	}
	var payload sessionPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	s.apply(payload.Token, refresh, payload.ExpiresIn)
	return nil
}

// Logout revokes every token of the session user and forgets the credentials.
func (s *Session) Logout(ctx context.Context) error {
	token, ok := s.Token()
	if ok {
		if _, err := s.client.do(ctx, fiber.MethodPost, "/api/auth/logout", token, "", nil); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.token, s.refresh, s.expires = "", "", time.Time{}
	s.mu.Unlock()
	return nil
}

func (s *Session) apply(token, refresh string, expiresIn int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.refresh = refresh
	s.expires = time.Time{}
	if expiresIn > 0 {
		s.expires = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
}
