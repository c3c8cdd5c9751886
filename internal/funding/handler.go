package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/gateway"
	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/recipient"
)

// Handler exposes HTTP endpoints for withdrawals and deposit confirmations.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Withdraw processes a wallet withdrawal to the user's payout account.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	userID := c.Params("userId")
	var req WithdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Withdraw(c.UserContext(), WithdrawInput{UserID: userID, Amount: req.AmountMinor})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, recipient.ErrNotConfigured):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, gateway.ErrIndeterminate):
			// The transfer may still settle; the record stays in processing.
			return c.Status(http.StatusAccepted).JSON(toResponse(result))
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

// ConfirmDeposit verifies a captured external order and credits the wallet.
func (h *Handler) ConfirmDeposit(c *fiber.Ctx) error {
	userID := c.Params("userId")
	var req DepositConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.ConfirmDeposit(c.UserContext(), DepositInput{
		UserID:        userID,
		OrderRef:      req.OrderRef,
		ClaimedAmount: req.AmountMinor,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateRequest):
			return c.Status(http.StatusOK).JSON(toResponse(result))
		case errors.Is(err, ErrAmountMismatch), errors.Is(err, ErrOrderNotCaptured):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, gateway.ErrOrderNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		default:
			return fiber.NewError(http.StatusBadGateway, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(toResponse(result))
}
