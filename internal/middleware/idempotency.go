package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/polo-core/polo_core/internal/apperr"
	"github.com/polo-core/polo_core/internal/identity"
	"github.com/polo-core/polo_core/internal/logging"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	idempotencyPrefix    = "idempotency:v2:"
	pendingMarker        = "__pending__"
	maxIdempotencyKeyLen = 255
	cacheOpTimeout       = 2 * time.Second
)

var errPending = apperr.New(apperr.CodeIdempotencyConflict, "a request with this Idempotency-Key is still in flight")

type replay struct {
	Status  int               `json:"status"`
	Body    string            `json:"body"`
	Headers map[string]string `json:"headers"`
}

func (r replay) writeTo(c *fiber.Ctx) error {
	for name, value := range r.Headers {
		if strings.EqualFold(name, fiber.HeaderContentLength) {
			continue
		}
		c.Set(name, value)
	}
	c.Set(replayedHeader, "true")
	return c.Status(r.Status).SendString(r.Body)
}

func captureReplay(c *fiber.Ctx) replay {
	r := replay{
		Status:  c.Response().StatusCode(),
		Body:    string(c.Response().Body()),
		Headers: map[string]string{},
	}
	c.Response().Header.VisitAll(func(k, v []byte) {
		r.Headers[string(k)] = string(v)
	})
	return r
}

// replayStore keeps one slot per scoped key: absent, pending, or a
// finished response.
type replayStore struct {
	cache *redis.Client
	ttl   time.Duration
}

// lookup returns the stored response, errPending, or (nil, nil) when the
// slot is free.
func (s replayStore) lookup(ctx context.Context, slot string) (*replay, error) {
	raw, err := s.cache.Get(ctx, slot).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == pendingMarker {
		return nil, errPending
	}
	var r replay
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s replayStore) reserve(ctx context.Context, slot string) error {
	ok, err := s.cache.SetNX(ctx, slot, pendingMarker, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errPending
	}
	return nil
}

func (s replayStore) finish(slot string, r replay) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	return s.cache.Set(ctx, slot, payload, s.ttl).Err()
}

func (s replayStore) release(slot string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	s.cache.Del(ctx, slot)
}

// Idempotency replays the stored response of a previous unsafe request
// carrying the same Idempotency-Key. Keys are scoped to the caller and the
// route, so two tenants can never observe each other's responses. A failed
// request frees its key for a retry. A nil cache disables the middleware.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	store := replayStore{cache: cache, ttl: ttl}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		switch strings.ToUpper(c.Method()) {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}

		key := strings.TrimSpace(c.Get(idempotencyKeyHeader))
		switch {
		case key == "":
			return apperr.New(apperr.CodeInputValidation, "Idempotency-Key header is required")
		case len(key) > maxIdempotencyKeyLen:
			return apperr.New(apperr.CodeInputValidation, "Idempotency-Key is too long")
		}
		slot := idempotencyPrefix + scopedKey(c, key)

		ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
		defer cancel()

		prior, err := store.lookup(ctx, slot)
		switch {
		case errors.Is(err, errPending):
			return err
		case err != nil:
			logger.Error("idempotency lookup failed", logging.Key("key", key), slog.Any("error", err))
			return apperr.Wrap(apperr.CodeInternal, "idempotency store failure", err)
		case prior != nil:
			return prior.writeTo(c)
		}

		if err := store.reserve(ctx, slot); err != nil {
			if errors.Is(err, errPending) {
				return err
			}
			logger.Error("idempotency reservation failed", logging.Key("key", key), slog.Any("error", err))
			return apperr.Wrap(apperr.CodeInternal, "idempotency store failure", err)
		}

		if err := c.Next(); err != nil {
			store.release(slot)
			return err
		}

		// The operation already ran; on a store failure the response still
		// goes out and the key is freed.
		if err := store.finish(slot, captureReplay(c)); err != nil {
			logger.Error("failed to persist idempotent response", logging.Key("key", key), slog.Any("error", err))
			store.release(slot)
		}
		return nil
	}
}

func scopedKey(c *fiber.Ctx, key string) string {
	var scope, subject string
	if p, ok := identity.PrincipalFrom(c); ok {
		subject = p.Kind + ":" + p.SubjectID + ":" + p.Email
	}
	if tenantID, ok := identity.TenantScope(c); ok {
		scope = tenantID
	}
	sum := sha256.Sum256([]byte(scope + "\x00" + subject + "\x00" + c.Method() + " " + c.Path() + "\x00" + key))
	return hex.EncodeToString(sum[:])
}
