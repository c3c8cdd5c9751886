package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/funding"
)

// RegisterFundingRoutes wires deposit and withdrawal endpoints.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Post("/users/:userId/withdrawals", h.Withdraw)
	r.Post("/users/:userId/deposits/confirm", h.ConfirmDeposit)
}
