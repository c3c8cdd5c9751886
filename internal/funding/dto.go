package funding

import (
	"time"

	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/money"
)

// WithdrawRequest captures user-provided data to withdraw wallet funds.
type WithdrawRequest struct {
	AmountMinor int64 `json:"amount_minor"`
}

// DepositConfirmRequest captures a claim that an external order completed.
type DepositConfirmRequest struct {
	OrderRef    string `json:"order_ref"`
	AmountMinor int64  `json:"amount_minor"`
}

// TransactionResponse is the API shape of a transaction record.
type TransactionResponse struct {
	TransactionID     string     `json:"transaction_id"`
	Kind              string     `json:"kind"`
	AmountMinor       int64      `json:"amount_minor"`
	AmountDisplay     string     `json:"amount_display"`
	Status            string     `json:"status"`
	PayoutStatus      string     `json:"payout_status"`
	ExternalReference string     `json:"external_reference,omitempty"`
	FailureReason     string     `json:"failure_reason,omitempty"`
	BookingRef        string     `json:"booking_ref,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
}

// FundingResponse pairs a transaction with the resulting wallet balance.
type FundingResponse struct {
	Transaction  TransactionResponse `json:"transaction"`
	BalanceMinor int64               `json:"balance_minor"`
}

// ToTransactionResponse converts a ledger record to its API shape.
func ToTransactionResponse(rec ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		TransactionID:     rec.ID,
		Kind:              string(rec.Kind),
		AmountMinor:       rec.Amount,
		AmountDisplay:     money.ToDisplayUnits(rec.Amount),
		Status:            string(rec.Status),
		PayoutStatus:      string(rec.PayoutStatus),
		ExternalReference: rec.ExternalReference,
		FailureReason:     rec.FailureReason,
		BookingRef:        rec.BookingRef,
		CreatedAt:         rec.CreatedAt,
		SettledAt:         rec.SettledAt,
	}
}

func toResponse(result Result) FundingResponse {
	return FundingResponse{
		Transaction:  ToTransactionResponse(result.Transaction),
		BalanceMinor: result.Balance,
	}
}
