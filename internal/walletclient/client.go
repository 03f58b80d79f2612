// Package walletclient talks to the wallet HTTP API on behalf of a
// walletsync.Sync instance.
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/money"
	"github.com/unity-gaming/unity_wallet/internal/walletsync"
)

const idempotencyHeader = "Idempotency-Key"

// Client implements walletsync.Backend over HTTP.
type Client struct {
	baseURL string
	timeout time.Duration
}

// New builds a client for the API rooted at baseURL. timeout bounds requests
// whose context carries no deadline.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = walletsync.DefaultRequestTimeout
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout}
}

type creditBody struct {
	Amount        json.Number `json:"amount"`
	PaymentMethod string      `json:"payment_method"`
}

type debitBody struct {
	Amount json.Number `json:"amount"`
}

// Balance reads the wallet of the session user.
func (c *Client) Balance(ctx context.Context, token string) (decimal.Decimal, error) {
	body, err := c.do(ctx, fiber.MethodGet, "/api/wallet", token, "", nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decodeBalance(body)
}

// Credit adds money to the wallet.
func (c *Client) Credit(ctx context.Context, token string, req walletsync.CreditRequest) (decimal.Decimal, error) {
	payload := creditBody{Amount: money.Number(req.Amount), PaymentMethod: string(req.Method)}
	body, err := c.do(ctx, fiber.MethodPost, "/api/wallet/add", token, req.IdempotencyKey, payload)
	if err != nil {
		return decimal.Zero, err
	}
	return decodeBalance(body)
}

// Debit withdraws money from the wallet.
func (c *Client) Debit(ctx context.Context, token string, req walletsync.DebitRequest) (decimal.Decimal, error) {
	payload := debitBody{Amount: money.Number(req.Amount)}
	body, err := c.do(ctx, fiber.MethodPost, "/api/wallet/withdraw", token, req.IdempotencyKey, payload)
	if err != nil {
		return decimal.Zero, err
	}
	return decodeBalance(body)
}

// EnterTournament registers for a tournament and pays its entry fee.
func (c *Client) EnterTournament(ctx context.Context, token string, req walletsync.EntryRequest) (decimal.Decimal, error) {
	path := fmt.Sprintf("/api/tournaments/%s/register", req.TournamentID)
	body, err := c.do(ctx, fiber.MethodPost, path, token, req.IdempotencyKey, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return decodeBalance(body)
}

type result struct {
	code int
	body []byte
	err  error
}

// do sends one request and returns the body of a 2xx response. Non-2xx
// responses become *walletsync.BackendError and transport failures wrap
// walletsync.ErrNetwork.
func (c *Client) do(ctx context.Context, method, path, token, idempotencyKey string, payload any) ([]byte, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%w: %w", walletsync.ErrNetwork, context.DeadlineExceeded)
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	agent.Timeout(timeout)
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if idempotencyKey != "" {
		agent.Set(idempotencyHeader, idempotencyKey)
	}
	if payload != nil {
		agent.JSON(payload)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return nil, fmt.Errorf("%w: %w", walletsync.ErrNetwork, err)
	}

	done := make(chan result, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- result{code: code, body: body, err: errors.Join(errs...)}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", walletsync.ErrNetwork, ctx.Err())
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: %w", walletsync.ErrNetwork, res.err)
	}
	if res.code < http.StatusOK || res.code >= http.StatusMultipleChoices {
		return nil, &walletsync.BackendError{StatusCode: res.code, Message: decodeMessage(res.code, res.body)}
	}
	return res.body, nil
}

// decodeBalance extracts the balance of a 2xx body. A missing, null or
// non-numeric balance is a malformed response, never zero.
func decodeBalance(body []byte) (decimal.Decimal, error) {
	var payload struct {
		Balance json.RawMessage `json:"balance"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", walletsync.ErrMalformedResponse, err)
	}
	raw := bytes.TrimSpace(payload.Balance)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: balance missing", walletsync.ErrMalformedResponse)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil || raw[0] == '"' {
		return decimal.Zero, fmt.Errorf("%w: balance %s is not a number", walletsync.ErrMalformedResponse, raw)
	}
	balance, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", walletsync.ErrMalformedResponse, err)
	}
	return balance, nil
}

func decodeMessage(code int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return http.StatusText(code)
}

// Tournament is the catalog entry the client needs to pay an entry fee.
type Tournament struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Game         string          `json:"game"`
	EntryFee     decimal.Decimal `json:"entryFee"`
	Participants string          `json:"participants"`
	Status       string          `json:"status"`
}

// Tournaments fetches the public catalog.
func (c *Client) Tournaments(ctx context.Context) ([]Tournament, error) {
	body, err := c.do(ctx, fiber.MethodGet, "/api/tournaments", "", "", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Tournaments []Tournament `json:"tournaments"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", walletsync.ErrMalformedResponse, err)
	}
	return payload.Tournaments, nil
}
