package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/school-records-api/internal/utils"
)

// Locals keys populated by JWTProtected.
const (
	LocalUserID    = "user_id"
	LocalUserRole  = "user_role"
	LocalUserEmail = "user_email"
)

// JWTProtected validates HS256 bearer tokens issued at login and exposes the
// admin identity through fiber locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)

	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "No token provided")
		}

		const bearer = "bearer "
		if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "Invalid authorization header")
		}

		claims := jwt.MapClaims{}
		token, err := parser.ParseWithClaims(strings.TrimSpace(authorization[len(bearer):]), claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "Invalid token")
		}

		id, ok := claimUint(claims["id"])
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "Invalid token claims")
		}

		c.Locals(LocalUserID, id)
		if role, ok := claims["role"].(string); ok {
			c.Locals(LocalUserRole, strings.ToLower(strings.TrimSpace(role)))
		}
		if email, ok := claims["email"].(string); ok {
			c.Locals(LocalUserEmail, email)
		}

		return c.Next()
	}
}

func claimUint(value interface{}) (uint, bool) {
	switch v := value.(type) {
	case float64:
		if v <= 0 || v != float64(uint(v)) {
			return 0, false
		}
		return uint(v), true
	case string:
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil || parsed == 0 {
			return 0, false
		}
		return uint(parsed), true
	default:
		return 0, false
	}
}
