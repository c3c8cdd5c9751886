package gateway

import (
	"context"

	"github.com/google/uuid"
)

// Static simulates an always-approving payment network. It backs development
// mode and unit tests, mirroring production shapes closely enough that code
// above it cannot tell the difference.
type Static struct{}

// CreatePayout approves the payout with a synthetic batch id.
func (Static) CreatePayout(_ context.Context, _ PayoutRequest) (PayoutResult, error) {
	return PayoutResult{BatchID: uuid.NewString(), Status: PayoutStatusSuccess}, nil
}

// PayoutStatus reports every batch as succeeded.
func (Static) PayoutStatus(_ context.Context, batchID string) (PayoutResult, error) {
	return PayoutResult{BatchID: batchID, Status: PayoutStatusSuccess}, nil
}

// GetOrder reports the order as captured with a zero amount. Tests that care
// about amounts use their own fakes.
func (Static) GetOrder(_ context.Context, orderID string) (Order, error) {
	return Order{ID: orderID, Status: OrderStatusCompleted, Value: "0.00", Currency: "USD"}, nil
}
