package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/phoneauth/internal/account"
	"github.com/congo-pay/phoneauth/internal/middleware"
	"github.com/congo-pay/phoneauth/internal/wallet"
)

// RegisterAccountRoutes wires account CRUD under /user.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, p middleware.Policies) {
	group := r.Group("/user")
	group.Get("/", p.Guard("account.list"), h.List)
	group.Post("/", p.Guard("account.create"), h.Create)
	group.Get("/:id", p.Guard("account.retrieve"), h.Get)
	group.Put("/:id", p.Guard("account.update"), h.Update)
	group.Patch("/:id", p.Guard("account.partial_update"), h.Update)
	group.Delete("/:id", p.Guard("account.destroy"), h.Delete)
}

// RegisterWalletRoutes wires wallet CRUD under /wallets.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, p middleware.Policies) {
	group := r.Group("/wallets")
	group.Get("/", p.Guard("wallet.list"), h.List)
	group.Post("/", p.Guard("wallet.create"), h.Create)
	group.Get("/:id", p.Guard("wallet.retrieve"), h.Get)
	group.Put("/:id", p.Guard("wallet.update"), h.Update)
	group.Patch("/:id", p.Guard("wallet.partial_update"), h.Update)
	group.Delete("/:id", p.Guard("wallet.destroy"), h.Delete)
}
