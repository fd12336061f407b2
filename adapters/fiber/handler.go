package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/lborres/tanod"
)

// requestBody is the union of all operation inputs.
type requestBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

func (b *requestBody) payload() tanod.Payload {
	return tanod.Payload{
		Credentials: tanod.Credentials{
			Email:    b.Email,
			Password: b.Password,
		},
		Token:       b.Token,
		NewPassword: b.NewPassword,
	}
}

// signUp handles registration. A valid assertion on the request links
// the new method to the caller's existing identity (guest upgrade)
// instead of creating a fresh one.
func (a *Adapter) signUp(t *tanod.Tanod) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body requestBody
		if err := c.Bind().Body(&body); err != nil {
			return badRequest(c)
		}

		payload := body.payload()
		if assertion := extractAssertion(c); assertion != "" {
			if userID, err := t.VerifyAssertion(assertion); err == nil {
				payload.Credentials.IdentityID = userID
			}
		}

		result, err := t.Handle(c.Context(), c.Params("strategy"), tanod.OpRegister, payload)
		if err != nil {
			return handleError(c, err)
		}

		return c.Status(http.StatusCreated).JSON(result)
	}
}

func (a *Adapter) signIn(t *tanod.Tanod) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body requestBody
		if err := c.Bind().Body(&body); err != nil {
			return badRequest(c)
		}

		result, err := t.Handle(c.Context(), c.Params("strategy"), tanod.OpAuthenticate, body.payload())
		if err != nil {
			return handleError(c, err)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

// operation handles the token-driven flows that share a common shape.
func (a *Adapter) operation(t *tanod.Tanod, op tanod.Operation) fiber.Handler {
	return func(c fiber.Ctx) error {
		var body requestBody
		if err := c.Bind().Body(&body); err != nil {
			return badRequest(c)
		}

		result, err := t.Handle(c.Context(), c.Params("strategy"), op, body.payload())
		if err != nil {
			return handleError(c, err)
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

// session resolves the presented assertion to the unified identity.
func (a *Adapter) session(t *tanod.Tanod) fiber.Handler {
	return func(c fiber.Ctx) error {
		assertion := extractAssertion(c)
		if assertion == "" {
			return c.Status(http.StatusUnauthorized).JSON(map[string]string{
				"error": "missing assertion",
			})
		}

		userID, err := t.VerifyAssertion(assertion)
		if err != nil {
			return handleError(c, err)
		}

		identity, err := t.GetIdentity(c.Context(), userID)
		if err != nil {
			return handleError(c, err)
		}

		return c.Status(http.StatusOK).JSON(identity)
	}
}

// extractAssertion pulls the assertion from the request.
// Checks Authorization header (Bearer token) first, then falls back to cookie.
func extractAssertion(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}

	return c.Cookies("tanod_assertion")
}

func badRequest(c fiber.Ctx) error {
	return c.Status(http.StatusBadRequest).JSON(map[string]string{
		"error": "invalid request body",
	})
}

// handleError maps service errors to appropriate HTTP responses
func handleError(c fiber.Ctx, err error) error {
	return c.Status(mapErrorToStatus(err)).JSON(map[string]string{
		"error": err.Error(),
	})
}

// mapErrorToStatus maps the error taxonomy to HTTP status codes
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, tanod.ErrInvalidCredentials),
		errors.Is(err, tanod.ErrInvalidAssertion),
		errors.Is(err, tanod.ErrTokenInvalid),
		errors.Is(err, tanod.ErrTokenConsumed):
		return http.StatusUnauthorized

	case errors.Is(err, tanod.ErrMethodExists):
		return http.StatusConflict

	case errors.Is(err, tanod.ErrIdentityNotFound),
		errors.Is(err, tanod.ErrMethodNotFound),
		errors.Is(err, tanod.ErrUnknownStrategy),
		errors.Is(err, tanod.ErrNotSupported):
		return http.StatusNotFound

	case errors.Is(err, tanod.ErrEmailRequired),
		errors.Is(err, tanod.ErrInvalidEmail),
		errors.Is(err, tanod.ErrPasswordRequired),
		errors.Is(err, tanod.ErrPasswordTooShort),
		errors.Is(err, tanod.ErrPasswordTooLong),
		errors.Is(err, tanod.ErrTokenRequired):
		return http.StatusBadRequest

	case errors.Is(err, tanod.ErrUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
