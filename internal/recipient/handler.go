package recipient

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterRequest is the payload for storing a user's payout account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// AccountResponse is the API shape of a payout account.
type AccountResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Handler exposes payout-account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a recipient handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register stores or replaces the payout account for a user.
func (h *Handler) Register(c *fiber.Ctx) error {
	userID := c.Params("userId")
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return fiber.NewError(http.StatusBadRequest, "a valid payout email is required")
	}

	account, err := h.service.Register(c.UserContext(), userID, email, req.Verified)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	return c.Status(http.StatusCreated).JSON(AccountResponse{
		UserID:    account.UserID,
		Email:     account.Email,
		Verified:  account.Verified,
		UpdatedAt: account.UpdatedAt,
	})
}
