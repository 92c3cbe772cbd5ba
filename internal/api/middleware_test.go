package api

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

type stubVerifier struct{ subject string }

func (s *stubVerifier) Verify(token string) (string, error) {
	if token != "good" {
		return "", errors.New("bad token")
	}
	return s.subject, nil
}

func authApp(t *testing.T) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(RequireAuth(&stubVerifier{subject: "user-1"}))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(callerID(c))
	})
	return app
}

func TestRequireAuth(t *testing.T) {
	app := authApp(t)

	t.Run("valid token passes and sets the caller", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		body := make([]byte, 16)
		n, _ := resp.Body.Read(body)
		if got := string(body[:n]); got != "user-1" {
			t.Errorf("caller = %q", got)
		}
	})

	t.Run("missing header is unauthorized", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/whoami", nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("bad token is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Bearer forged")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("non-bearer scheme is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/whoami", nil)
		req.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})
}

// With no Redis client the limiter runs on its in-process fallback buckets.
func TestRateLimiterFallback(t *testing.T) {
	limiter := NewRateLimiter(nil, "test", 3, time.Minute)
	app := fiber.New()
	app.Use(limiter.Middleware(func(c *fiber.Ctx) string { return c.IP() }))
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	statuses := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
		if err != nil {
			t.Fatal(err)
		}
		statuses = append(statuses, resp.StatusCode)
	}
	for i := 0; i < 3; i++ {
		if statuses[i] != fiber.StatusOK {
			t.Errorf("request %d status = %d, want 200", i, statuses[i])
		}
	}
	if statuses[3] != fiber.StatusTooManyRequests || statuses[4] != fiber.StatusTooManyRequests {
		t.Errorf("burst overflow statuses = %v, want 429s", statuses[3:])
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(nil, "test", 1, time.Minute)
	if !limiter.allow(nil, "a") {
		t.Fatal("first request for key a denied")
	}
	if limiter.allow(nil, "a") {
		t.Error("second request for key a allowed over the limit")
	}
	if !limiter.allow(nil, "b") {
		t.Error("key b should have its own bucket")
	}
}
