package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/payout"
)

// RegisterPayoutRoutes wires the manual payout re-trigger endpoint.
func RegisterPayoutRoutes(r fiber.Router, h *payout.Handler) {
	r.Post("/payouts/:transactionId/retrigger", h.Retrigger)
}
