package middleware

import (
	"io"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/phoneauth/internal/logging"
)

func setupIdempotencyApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr := miniredis.RunT(t)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	handler := func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": n})
	}
	app.Post("/resource", handler)
	app.Post("/other", handler)

	return app, &calls
}

func post(t *testing.T, app *fiber.App, path, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if key != "" {
		req.Header.Set(idempotencyKeyHeader, key)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestIdempotencyWithoutHeaderPassesThrough(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	post(t, app, "/resource", "")
	status, _ := post(t, app, "/resource", "")

	if status != fiber.StatusCreated {
		t.Fatalf("expected %d got %d", fiber.StatusCreated, status)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls.Load())
	}
}

func TestIdempotencyReturnsCachedResponse(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	status, first := post(t, app, "/resource", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected status %d got %d", fiber.StatusCreated, status)
	}

	// Second request should return the cached response without invoking handler again.
	status, second := post(t, app, "/resource", "abc123")
	if status != fiber.StatusCreated {
		t.Fatalf("expected cached status %d got %d", fiber.StatusCreated, status)
	}
	if first != second {
		t.Fatalf("expected cached payload %s got %s", first, second)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single handler invocation, got %d", calls.Load())
	}
}

func TestIdempotencyKeyScopedToPath(t *testing.T) {
	app, calls := setupIdempotencyApp(t)

	post(t, app, "/resource", "shared")
	post(t, app, "/other", "shared")

	if calls.Load() != 2 {
		t.Fatalf("expected both endpoints to run, got %d", calls.Load())
	}
}

func setupScopedIdempotencyApp(t *testing.T) (*fiber.App, *atomic.Int32) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	var calls atomic.Int32
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logging.Discard())})
	app.Use(func(c *fiber.Ctx) error {
		if raw := c.Get("X-Caller"); raw != "" {
			id, _ := strconv.ParseInt(raw, 10, 64)
			SetIdentity(c, id, MethodSession)
		}
		return c.Next()
	})
	app.Use(Idempotency(cache, time.Minute, logging.Discard(), "/login"))
	handler := func(c *fiber.Ctx) error {
		n := calls.Add(1)
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"call": n, "body": string(c.Body())})
	}
	app.Post("/resource", handler)
	app.Post("/login", handler)
	return app, &calls
}

func postAs(t *testing.T, app *fiber.App, path, caller, body, key string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(idempotencyKeyHeader, key)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(raw)
}

func TestIdempotencyKeyScopedToBody(t *testing.T) {
	app, calls := setupScopedIdempotencyApp(t)

	_, first := postAs(t, app, "/resource", "1", `{"password":"right"}`, "k1")
	_, second := postAs(t, app, "/resource", "1", `{"password":"wrong"}`, "k1")

	if first == second {
		t.Fatalf("different bodies must not share a stored response: %s", second)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice, ran %d times", calls.Load())
	}
}

func TestIdempotencyKeyScopedToCaller(t *testing.T) {
	app, calls := setupScopedIdempotencyApp(t)

	postAs(t, app, "/resource", "1", `{}`, "k1")
	postAs(t, app, "/resource", "2", `{}`, "k1")
	postAs(t, app, "/resource", "", `{}`, "k1")

	if calls.Load() != 3 {
		t.Fatalf("expected one run per caller, ran %d times", calls.Load())
	}

	postAs(t, app, "/resource", "1", `{}`, "k1")
	if calls.Load() != 3 {
		t.Fatalf("expected replay for the same caller, ran %d times", calls.Load())
	}
}

func TestIdempotencySkipsExemptPaths(t *testing.T) {
	app, calls := setupScopedIdempotencyApp(t)

	postAs(t, app, "/login", "", `{"password":"right"}`, "k1")
	postAs(t, app, "/login", "", `{"password":"right"}`, "k1")

	if calls.Load() != 2 {
		t.Fatalf("exempt path must never replay, ran %d times", calls.Load())
	}
}
