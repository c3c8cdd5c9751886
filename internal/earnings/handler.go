package earnings

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/funding"
	"github.com/lodgepay/lodgepay/internal/ledger"
)

// SettlementRequest is the payload the booking system sends for all three
// settlement entrypoints.
type SettlementRequest struct {
	UserID      string `json:"user_id"`
	AmountMinor int64  `json:"amount_minor"`
	BookingRef  string `json:"booking_ref"`
}

// SettlementResponse acknowledges a settlement call with the record it
// created or found.
type SettlementResponse struct {
	Transaction funding.TransactionResponse `json:"transaction"`
}

// Handler exposes booking-settlement endpoints to the surrounding system.
type Handler struct {
	service *Service
}

// NewHandler constructs an earnings handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RecordEarnings registers host earnings awaiting external payout.
func (h *Handler) RecordEarnings(c *fiber.Ctx) error {
	return h.settle(c, h.service.RecordEarnings)
}

// PayFromWallet debits a guest wallet for a booking.
func (h *Handler) PayFromWallet(c *fiber.Ctx) error {
	return h.settle(c, h.service.PayFromWallet)
}

// Refund credits a guest wallet for a cancelled booking.
func (h *Handler) Refund(c *fiber.Ctx) error {
	return h.settle(c, h.service.Refund)
}

func (h *Handler) settle(c *fiber.Ctx, op func(ctx context.Context, userID string, amount int64, bookingRef string) (ledger.Transaction, error)) error {
	var req SettlementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	rec, err := op(c.UserContext(), req.UserID, req.AmountMinor, req.BookingRef)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(SettlementResponse{Transaction: funding.ToTransactionResponse(rec)})
}
