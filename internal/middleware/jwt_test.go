package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    c.Locals(LocalUserID),
			"role":  c.Locals(LocalUserRole),
			"email": c.Locals(LocalUserEmail),
		})
	})
	return app
}

func TestJWTProtectedAcceptsValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"id":    7,
		"email": "admin@school.uz",
		"role":  "admin",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := protectedApp().Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"id": 7, "exp": time.Now().Add(-time.Hour).Unix()}, testSecret)
	wrongKey := signToken(t, jwt.MapClaims{"id": 7, "exp": time.Now().Add(time.Hour).Unix()}, "other")
	noExpiry := signToken(t, jwt.MapClaims{"id": 7}, testSecret)
	noID := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	headers := []string{"", "Token abc", "Bearer " + expired, "Bearer " + wrongKey, "Bearer " + noExpiry, "Bearer " + noID}
	for _, header := range headers {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := protectedApp().Test(req, -1)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, header)
	}
}
