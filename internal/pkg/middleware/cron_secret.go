package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

// CronSecretMiddleware protects scheduler endpoints with a shared secret sent
// as a bearer token or X-Cron-Secret header. Without a configured secret the
// endpoints are disabled.
func CronSecretMiddleware(secret string) fiber.Handler {
	secret = strings.TrimSpace(secret)
	return func(c *fiber.Ctx) error {
		if secret == "" {
			log.Warn("[Cron] CRON_SECRET is not set, rejecting scheduler request")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "unavailable", "message": "Cron endpoints are disabled"})
		}

		provided := extractCronSecret(c)
		if provided == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing cron secret"})
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid cron secret"})
		}
		return c.Next()
	}
}

func extractCronSecret(c *fiber.Ctx) string {
	if secret := strings.TrimSpace(c.Get("X-Cron-Secret")); secret != "" {
		return secret
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
