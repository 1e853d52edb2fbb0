package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDEchoesIncomingHeader(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		require.Equal(t, "abc-123", CorrelationIDFromContext(c.UserContext()))
		return c.SendString(GetCorrelationID(c))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, "abc-123", resp.Header.Get("X-Correlation-ID"))
}

func TestCorrelationIDGeneratesWhenMissing(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Len(t, resp.Header.Get("X-Correlation-ID"), 36)
}

func TestRateLimitRejectsAfterMax(t *testing.T) {
	app := fiber.New()
	app.Get("/lookup", RateLimit("lookup", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lookup", nil), -1)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}
	require.Equal(t, []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests}, statuses)
}
