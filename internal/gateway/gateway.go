// Package gateway is the thin client for the external payment network. All
// amounts cross this boundary as decimal strings produced by the money
// codec; everything behind it stays in integer minor units.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAuth indicates the network rejected or failed the OAuth
	// client-credentials exchange.
	ErrAuth = errors.New("gateway authentication failed")

	// ErrIndeterminate marks calls whose outcome is unknown, typically a
	// timeout. The caller leaves the record in processing for manual
	// reconciliation instead of assuming failure.
	ErrIndeterminate = errors.New("gateway outcome indeterminate")

	// ErrOrderNotFound indicates the order reference is unknown to the
	// network.
	ErrOrderNotFound = errors.New("order not found")
)

// TransferError is a failure the network reported explicitly for a payout
// submission. It is terminal for the attempt and persisted on the record.
type TransferError struct {
	Code   string
	Reason string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("gateway transfer failed: %s: %s", e.Code, e.Reason)
}

// PayoutRequest submits a single-item payout batch. SenderBatchID is the
// idempotency key; the network collapses resubmissions under the same id
// into one transfer.
type PayoutRequest struct {
	SenderBatchID string
	ReceiverEmail string
	Value         string
	Currency      string
	Note          string
}

// PayoutResult is the network's view of a payout batch.
type PayoutResult struct {
	BatchID string
	Status  string
}

// Order is the captured state of a checkout order, used to verify deposit
// claims.
type Order struct {
	ID       string
	Status   string
	Value    string
	Currency string
}

// OrderStatusCompleted is the network's terminal captured-order status.
const OrderStatusCompleted = "COMPLETED"

// Batch statuses inspected when confirming a payout after the fact.
const (
	PayoutStatusSuccess = "SUCCESS"
	PayoutStatusDenied  = "DENIED"
)

// Client is implemented by the HTTP gateway and by the static in-process
// stand-in used in development mode and tests.
type Client interface {
	CreatePayout(ctx context.Context, req PayoutRequest) (PayoutResult, error)
	PayoutStatus(ctx context.Context, batchID string) (PayoutResult, error)
	GetOrder(ctx context.Context, orderID string) (Order, error)
}
