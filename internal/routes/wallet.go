package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/wallet"
)

// RegisterWalletRoutes wires wallet read endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/users/:userId/balance", h.Balance)
	r.Get("/users/:userId/transactions", h.Transactions)
}
