package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userIDHeader = "X-User-ID"

// UserContext extracts the user id forwarded by the platform gateway, which owns
// authentication and KYC. Requests without a valid id never reach the core.
func UserContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := c.Get(userIDHeader)
		if userID == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing user identity")
		}
		if _, err := uuid.Parse(userID); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid user identity")
		}

		c.Locals("user_id", userID)
		return c.Next()
	}
}

// UserIDFrom returns the gateway-authenticated user id, or "" outside the API group.
func UserIDFrom(c *fiber.Ctx) string {
	userID, _ := c.Locals("user_id").(string)
	return userID
}
