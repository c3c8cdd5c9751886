package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const apiKeyHeader = "X-API-Key"

// APIKey authenticates the booking system on settlement endpoints. The
// configured value is a bcrypt hash so the plaintext key never lives in
// config. An empty hash disables the check for local development.
func APIKey(keyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if keyHash == "" {
			return c.Next()
		}

		presented := c.Get(apiKeyHeader)
		if presented == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing API key")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(presented)); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid API key")
		}
		return c.Next()
	}
}
