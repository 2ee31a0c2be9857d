package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/phoneauth/internal/admin"
	"github.com/congo-pay/phoneauth/internal/auth"
)

// RegisterAuthRoutes wires sign-in, sign-out, PIN and framework token endpoints.
// The session endpoints accept every method so the handlers can answer
// non-POST requests with their own errors.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler) {
	r.Post("/user/login", h.TokenLogin)
	r.Post("/user/refresh", h.TokenRefresh)

	r.All("/signin", h.SignIn)
	r.Post("/signout/:id", h.SignOut)
	r.All("/add_pin/:id", h.AddPIN)
	r.All("/verify_pin/:id", h.VerifyPIN)
}

// RegisterAdminRoutes wires the superuser bootstrap endpoint.
func RegisterAdminRoutes(r fiber.Router, h *admin.Handler) {
	r.Post("/create-superuser", h.CreateSuperuser)
}
