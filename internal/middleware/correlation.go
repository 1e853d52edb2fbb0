package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	correlationHeader = "X-Correlation-ID"
	correlationLocal  = "correlation_id"
)

type correlationIDKey struct{}

// CorrelationID reuses an incoming X-Correlation-ID or X-Request-ID header or
// mints a new one, echoes it back and stores it on the request context.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Get(correlationHeader))
		if id == "" {
			id = strings.TrimSpace(c.Get(fiber.HeaderXRequestID))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(correlationLocal, id)
		c.Set(correlationHeader, id)
		c.SetUserContext(context.WithValue(c.UserContext(), correlationIDKey{}, id))

		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation identifier from a context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(correlationLocal).(string); ok {
		return id
	}
	return CorrelationIDFromContext(c.UserContext())
}
