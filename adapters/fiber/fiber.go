// Package fiber binds the service to a Fiber v3 application.
package fiber

import (
	"github.com/gofiber/fiber/v3"
	"github.com/lborres/tanod"
)

// Adapter registers the auth routes on a Fiber app.
type Adapter struct {
	app *fiber.App
}

var _ tanod.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app}
}

func (a *Adapter) RegisterRoutes(t *tanod.Tanod) error {
	api := a.app.Group(t.BasePath)

	// Strategy operations
	api.Post("/:strategy/sign-up", a.signUp(t))
	api.Post("/:strategy/sign-in", a.signIn(t))
	api.Post("/:strategy/request-verification", a.operation(t, tanod.OpRequestVerification))
	api.Post("/:strategy/verify", a.operation(t, tanod.OpVerify))
	api.Post("/:strategy/forgot-password", a.operation(t, tanod.OpForgotPassword))
	api.Post("/:strategy/reset-password", a.operation(t, tanod.OpResetPassword))

	// Assertion introspection
	api.Get("/session", a.session(t))

	return nil
}
