package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/earnings"
)

// RegisterSettlementRoutes wires the booking-system settlement endpoints.
func RegisterSettlementRoutes(r fiber.Router, h *earnings.Handler) {
	r.Post("/earnings", h.RecordEarnings)
	r.Post("/payments/wallet", h.PayFromWallet)
	r.Post("/refunds", h.Refund)
}
