package payout

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/recipient"
)

// Handler exposes the manual payout re-trigger endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs a payout handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Retrigger reopens a failed payout and runs it again.
func (h *Handler) Retrigger(c *fiber.Ctx) error {
	transactionID := c.Params("transactionId")

	err := h.service.Retrigger(c.UserContext(), transactionID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrReferenceAlreadySet):
			return fiber.NewError(http.StatusConflict, "payout already settled externally")
		case errors.Is(err, recipient.ErrNotConfigured):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}

	rec, err := h.service.store.Transaction(c.UserContext(), transactionID)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{
		"transaction_id":     rec.ID,
		"payout_status":      rec.PayoutStatus,
		"external_reference": rec.ExternalReference,
	})
}
