package middleware

import (
	"strings"

	"chirp/pkg/services"

	"github.com/gofiber/fiber/v2"
)

type TokenParser interface {
	ParseToken(tokenStr string) (services.TokenClaims, error)
}

// BearerToken returns the token from the Authorization header, falling back
// to the "token" query parameter used by websocket clients.
func BearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return auth[7:]
	}
	return c.Query("token")
}

// AuthMiddleware rejects requests without a valid access token and stores
// the caller in Locals "user_id" and "username".
func AuthMiddleware(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := BearerToken(c)
		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"erro": "token not provided"})
		}

		claims, err := tokens.ParseToken(tokenStr)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"erro": "invalid token"})
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("username", claims.Username)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through.
func OptionalAuth(tokens TokenParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenStr := BearerToken(c); tokenStr != "" {
			if claims, err := tokens.ParseToken(tokenStr); err == nil {
				c.Locals("user_id", claims.UserID)
				c.Locals("username", claims.Username)
			}
		}
		return c.Next()
	}
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
