package fiber

import (
	"github.com/gofiber/fiber/v3"
	"github.com/lborres/tanod"
)

// RequireAuth is a middleware that rejects requests without a valid
// assertion and stores the authenticated user id in the context for
// downstream handlers.
func RequireAuth(t *tanod.Tanod) fiber.Handler {
	return func(c fiber.Ctx) error {
		assertion := extractAssertion(c)
		if assertion == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing assertion",
			})
		}

		userID, err := t.VerifyAssertion(assertion)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals("userID", userID)

		return c.Next()
	}
}
