package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/recipient"
)

// RegisterRecipientRoutes wires payout-account management endpoints.
func RegisterRecipientRoutes(r fiber.Router, h *recipient.Handler) {
	r.Post("/users/:userId/recipient", h.Register)
}
