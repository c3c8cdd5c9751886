package wallet

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lodgepay/lodgepay/internal/funding"
	"github.com/lodgepay/lodgepay/internal/money"
)

// BalanceResponse is the API shape of a wallet balance.
type BalanceResponse struct {
	UserID         string    `json:"user_id"`
	BalanceMinor   int64     `json:"balance_minor"`
	BalanceDisplay string    `json:"balance_display"`
	AsOf           time.Time `json:"as_of"`
}

// Handler exposes wallet read endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a wallet handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns the user's current balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	userID := c.Params("userId")
	balance, err := h.service.Balance(c.UserContext(), userID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(BalanceResponse{
		UserID:         userID,
		BalanceMinor:   balance.Amount,
		BalanceDisplay: money.ToDisplayUnits(balance.Amount),
		AsOf:           balance.AsOf,
	})
}

// Transactions returns the user's most recent ledger records.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	userID := c.Params("userId")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	recs, err := h.service.Transactions(c.UserContext(), userID, limit)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	out := make([]funding.TransactionResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, funding.ToTransactionResponse(rec))
	}
	return c.JSON(fiber.Map{"user_id": userID, "transactions": out})
}
