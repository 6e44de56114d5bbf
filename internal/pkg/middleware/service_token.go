package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ServiceTokenAuth guards internal API routes with a shared service token.
// The token is compared in constant time, same discipline as the webhook
// signature path.
func ServiceTokenAuth(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		presented := extractServiceToken(c)
		if presented == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing service token"})
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid service token"})
		}
		return c.Next()
	}
}

func extractServiceToken(c *fiber.Ctx) string {
	if token := strings.TrimSpace(c.Get("X-Service-Token")); token != "" {
		return token
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
