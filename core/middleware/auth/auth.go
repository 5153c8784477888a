package auth

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// Header carries the API key.
const Header = "X-API-Key"

// Config configures the API key check.
type Config struct {
	// ApiKey is the expected key. Empty lets every request through.
	ApiKey string
}

// New returns a middleware rejecting requests without the configured key in
// the X-API-Key header or the api_key query parameter.
func New(cfg Config) fiber.Handler {
	want := []byte(cfg.ApiKey)
	return func(c *fiber.Ctx) error {
		if len(want) == 0 {
			return c.Next()
		}
		got := c.Get(Header)
		if got == "" {
			got = c.Query("api_key")
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or missing api key"})
		}
		return c.Next()
	}
}
