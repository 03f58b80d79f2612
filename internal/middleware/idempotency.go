package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
	maxIdempotencyKey    = 128
	idempotencyOpTimeout = 2 * time.Second
)

// replayedHeader marks a response served from the idempotency store.
const replayedHeader = "Idempotent-Replayed"

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

type idempotencyStore struct {
	cache  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Idempotency replays the stored response of a mutating request whose
// Idempotency-Key was already served for the same user and path. Keys are
// optional; only responses below 400 are stored so a failed attempt can be
// retried with the same key. Without Redis it is a no-op.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := &idempotencyStore{cache: cache, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		if cache == nil || !mutating(c.Method()) {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		if key == "" {
			return c.Next()
		}
		if len(key) > maxIdempotencyKey {
			return fiber.NewError(fiber.StatusBadRequest, "Idempotency-Key too long")
		}

		userID, _ := c.Locals(UserIDKey).(string)
		scoped := idempotencyPrefix + userID + ":" + c.Path() + ":" + key

		ctx, cancel := context.WithTimeout(c.UserContext(), idempotencyOpTimeout)
		defer cancel()

		prior, err := store.cache.Get(ctx, scoped).Result()
		switch {
		case err == nil:
			return store.replay(c, key, prior)
		case !errors.Is(err, redis.Nil):
			logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "Idempotency store unavailable")
		}

		reserved, err := store.cache.SetNX(ctx, scoped, inProgressMarker, ttl).Result()
		if err != nil {
			logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
			return fiber.NewError(fiber.StatusInternalServerError, "Idempotency store unavailable")
		}
		if !reserved {
			return fiber.NewError(fiber.StatusConflict, "Duplicate request is still processing")
		}

		if err := c.Next(); err != nil || c.Response().StatusCode() >= fiber.StatusBadRequest {
			store.release(scoped)
			return err
		}
		return store.persist(c, key, scoped)
	}
}

func mutating(method string) bool {
	switch strings.ToUpper(method) {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return false
	}
	return true
}

func (s *idempotencyStore) replay(c *fiber.Ctx, key, prior string) error {
	if prior == inProgressMarker {
		return fiber.NewError(fiber.StatusConflict, "Duplicate request is still processing")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(prior), &stored); err != nil {
		s.logger.Warn("stored idempotent response unreadable", slog.String("key", key), slog.Any("error", err))
		return fiber.NewError(fiber.StatusConflict, "Duplicate request")
	}
	if stored.ContentType != "" {
		c.Set(fiber.HeaderContentType, stored.ContentType)
	}
	c.Set(replayedHeader, "true")
	return c.Status(stored.Status).SendString(stored.Body)
}

func (s *idempotencyStore) persist(c *fiber.Ctx, key, scoped string) error {
	payload, err := json.Marshal(storedResponse{
		Status:      c.Response().StatusCode(),
		ContentType: string(c.Response().Header.ContentType()),
		Body:        string(c.Response().Body()),
	})
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
		defer cancel()
		err = s.cache.Set(ctx, scoped, payload, s.ttl).Err()
	}
	if err != nil {
		// the operation already happened; the response is still returned but
		// the key is freed so a retry is not locked out for the whole ttl
		s.logger.Error("idempotent response not stored", slog.String("key", key), slog.Any("error", err))
		s.release(scoped)
	}
	return nil
}

func (s *idempotencyStore) release(scoped string) {
	ctx, cancel := context.WithTimeout(context.Background(), idempotencyOpTimeout)
	defer cancel()
	s.cache.Del(ctx, scoped)
}
