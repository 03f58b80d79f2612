package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/config"
	"github.com/unity-gaming/unity_wallet/internal/logging"
	"github.com/unity-gaming/unity_wallet/internal/notification"
	"github.com/unity-gaming/unity_wallet/internal/walletclient"
	"github.com/unity-gaming/unity_wallet/internal/walletsync"
)

func testConfig() config.Config {
	return config.Config{
		AppName:         "UnityWallet",
		AppEnv:          "test",
		Port:            "0",
		JWTSecret:       "test-secret",
		RefreshSecret:   "test-refresh",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		IdempotencyTTL:  time.Minute,
		LoginPerMinute:  5,
		BalanceChannel:  "wallet.balance",
		WelcomeCredit:   decimal.RequireFromString("100"),
	}
}

type harness struct {
	t     *testing.T
	srv   *Server
	cache *redis.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	srv, err := New(testConfig(), Stores{Cache: cache}, logging.Discard())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &harness{t: t, srv: srv, cache: cache}
}

func (h *harness) do(method, path, token, key, body string) (int, map[string]any) {
	h.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	resp, err := h.srv.App().Test(req, 5000)
	if err != nil {
		h.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) register(username string) string {
	h.t.Helper()
	status, body := h.do(http.MethodPost, "/api/auth/register", "", "",
		`{"username":"`+username+`","email":"`+username+`@example.com","password":"password123"}`)
	if status != http.StatusCreated {
		h.t.Fatalf("register: status %d body %v", status, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		h.t.Fatalf("register returned no token: %v", body)
	}
	return token
}

func TestWalletFlow(t *testing.T) {
	h := newHarness(t)
	token := h.register("ProShooter99")

	status, body := h.do(http.MethodGet, "/api/wallet", token, "", "")
	if status != http.StatusOK || body["balance"] != 100.0 {
		t.Fatalf("welcome wallet: %d %v", status, body)
	}

	status, body = h.do(http.MethodPost, "/api/wallet/add", token, "add-1", `{"amount": 50, "payment_method": "upi"}`)
	if status != http.StatusOK || body["balance"] != 150.0 {
		t.Fatalf("add money: %d %v", status, body)
	}
	// replay returns the stored response without crediting twice
	status, body = h.do(http.MethodPost, "/api/wallet/add", token, "add-1", `{"amount": 50, "payment_method": "upi"}`)
	if status != http.StatusOK || body["balance"] != 150.0 {
		t.Fatalf("replayed add: %d %v", status, body)
	}

	status, body = h.do(http.MethodPost, "/api/wallet/withdraw", token, "wd-1", `{"amount": 500}`)
	if status != http.StatusBadRequest || body["message"] != "Insufficient balance" {
		t.Fatalf("overdraw: %d %v", status, body)
	}
	status, body = h.do(http.MethodPost, "/api/wallet/withdraw", token, "wd-2", `{"amount": 0}`)
	if status != http.StatusBadRequest {
		t.Fatalf("zero withdraw: %d %v", status, body)
	}

	status, body = h.do(http.MethodPost, "/api/tournaments/2/register", token, "", "")
	if status != http.StatusOK || body["balance"] != 145.0 || body["entry_fee_paid"] != 5.0 {
		t.Fatalf("tournament register: %d %v", status, body)
	}
	status, body = h.do(http.MethodPost, "/api/tournaments/2/register", token, "", "")
	if status != http.StatusBadRequest || body["message"] != "Already registered for this tournament" {
		t.Fatalf("second register: %d %v", status, body)
	}
	status, body = h.do(http.MethodPost, "/api/tournaments/1/register", token, "", "")
	if status != http.StatusBadRequest || body["message"] != "Registration is closed for this tournament" {
		t.Fatalf("closed tournament: %d %v", status, body)
	}

	status, body = h.do(http.MethodGet, "/api/tournaments/my-tournaments", token, "", "")
	mine, _ := body["tournaments"].([]any)
	if status != http.StatusOK || len(mine) != 1 {
		t.Fatalf("my tournaments: %d %v", status, body)
	}
}

func TestAuthFlow(t *testing.T) {
	h := newHarness(t)
	h.register("StrategyMaster")

	status, body := h.do(http.MethodPost, "/api/auth/login", "", "", `{"username":"StrategyMaster","password":"nope12"}`)
	if status != http.StatusUnauthorized || body["message"] != "Invalid credentials" {
		t.Fatalf("bad login: %d %v", status, body)
	}
	status, body = h.do(http.MethodPost, "/api/auth/login", "", "", `{"username":"StrategyMaster","password":"password123"}`)
	if status != http.StatusOK {
		t.Fatalf("login: %d %v", status, body)
	}
	token := body["token"].(string)
	refresh := body["refresh_token"].(string)

	if status, _ := h.do(http.MethodGet, "/api/auth/verify", token, "", ""); status != http.StatusOK {
		t.Fatalf("verify: %d", status)
	}
	if status, _ := h.do(http.MethodGet, "/api/wallet", "", "", ""); status != http.StatusUnauthorized {
		t.Fatalf("wallet without token: %d", status)
	}

	status, body = h.do(http.MethodPost, "/api/auth/refresh", "", "", `{"refresh_token":"`+refresh+`"}`)
	if status != http.StatusOK || body["token"] == "" {
		t.Fatalf("refresh: %d %v", status, body)
	}

	if status, _ := h.do(http.MethodPost, "/api/auth/logout", token, "", ""); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status, _ := h.do(http.MethodGet, "/api/wallet", token, "", ""); status != http.StatusUnauthorized {
		t.Fatalf("token still valid after logout: %d", status)
	}
}

func TestPublicRoutes(t *testing.T) {
	h := newHarness(t)

	status, body := h.do(http.MethodGet, "/api/tournaments", "", "", "")
	list, _ := body["tournaments"].([]any)
	if status != http.StatusOK || len(list) != 10 {
		t.Fatalf("tournaments: %d, %d entries", status, len(list))
	}
	if status, _ := h.do(http.MethodGet, "/healthz", "", "", ""); status != http.StatusOK {
		t.Fatalf("healthz: %d", status)
	}
	status, body = h.do(http.MethodGet, "/api/health", "", "", "")
	if status != http.StatusOK || body["status"] != "healthy" {
		t.Fatalf("health: %d %v", status, body)
	}
	status, body = h.do(http.MethodGet, "/api/v1/ping", "", "", "")
	if status != http.StatusOK || body["request_id"] == "" {
		t.Fatalf("ping: %d %v", status, body)
	}
}

// TestSyncAgainstServer drives a walletsync.Sync through the HTTP client
// against a listening server and follows the Redis balance feed.
func TestSyncAgainstServer(t *testing.T) {
	h := newHarness(t)
	h.register("PixelQueen")

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = h.srv.App().Listener(ln) }()
	t.Cleanup(func() { _ = h.srv.App().Shutdown() })

	client := walletclient.New("http://"+ln.Addr().String(), 2*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	session, err := client.Login(ctx, "PixelQueen", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	events, err := notification.SubscribeRedis(ctx, h.cache, "wallet.balance", session.UserID(), logging.Discard())
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	s := walletsync.New(client, session, walletsync.Options{RequestTimeout: 2 * time.Second, Logger: logging.Discard()})
	defer s.Close()

	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := s.Balance().StringFixed(2); got != "100.00" {
		t.Fatalf("expected 100.00, got %s", got)
	}

	if err := s.RequestAddMoney(decimal.NewFromInt(50)); err != nil {
		t.Fatalf("request add: %v", err)
	}
	if err := s.ConfirmPaymentMethod(ctx, walletsync.MethodCard); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := s.Balance().StringFixed(2); got != "150.00" {
		t.Fatalf("expected 150.00, got %s", got)
	}

	select {
	case msg := <-events:
		if msg.Kind != notification.KindMoneyAdded || !msg.Balance.Equal(decimal.NewFromInt(150)) {
			t.Fatalf("unexpected notification %+v", msg)
		}
	case <-ctx.Done():
		t.Fatalf("no balance notification")
	}

	err = s.RequestWithdraw(ctx, decimal.NewFromInt(500))
	if err == nil || walletsync.UserMessage(err) == "" {
		t.Fatalf("expected local insufficient balance, got %v", err)
	}

	if err := s.EnterTournament(ctx, "3", decimal.NewFromInt(15)); err != nil {
		t.Fatalf("enter tournament: %v", err)
	}
	if got := s.Balance().StringFixed(2); got != "135.00" {
		t.Fatalf("expected 135.00 after entry, got %s", got)
	}
}
