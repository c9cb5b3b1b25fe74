package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestIDKey is the fiber locals key holding the request id.
const RequestIDKey = "request_id"

// RequestIDMiddleware tags every request with an id so portal call logs can
// be correlated with the API request that triggered them. An incoming
// X-Request-ID is kept, otherwise one is generated.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(RequestIDKey, id)
		c.Set(fiber.HeaderXRequestID, id)
		return c.Next()
	}
}
