package ledger

import "time"

// Kind enumerates the transaction record kinds. The kind is set explicitly
// at creation time and never derived from descriptions or amounts.
type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdrawal  Kind = "withdrawal"
	KindPayment     Kind = "payment"
	KindHostEarning Kind = "host_earning"
	KindRefund      Kind = "refund"
)

// Status is the lifecycle state of a transaction record. Transitions are
// forward only; completed and failed are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// PayoutStatus tracks the single embedded external settlement attempt of a
// record. PayoutNone marks records that never settle externally.
type PayoutStatus string

const (
	PayoutNone       PayoutStatus = "none"
	PayoutPending    PayoutStatus = "pending"
	PayoutProcessing PayoutStatus = "processing"
	PayoutCompleted  PayoutStatus = "completed"
	PayoutFailed     PayoutStatus = "failed"
)

// Wallet is the per-user virtual balance. Balances are integer minor units
// and never go negative after a committed mutation. The version column backs
// the optimistic concurrency check in the balance mutator.
type Wallet struct {
	OwnerID       string
	Balance       int64
	SchemaVersion int
	Version       int64
	UpdatedAt     time.Time
}

// Transaction is a ledger record. Amount is a positive magnitude in minor
// units; the kind determines direction. ExternalReference is set at most
// once, when the external network confirms a transfer or order.
type Transaction struct {
	ID                string
	UserID            string
	Kind              Kind
	Amount            int64
	Status            Status
	PayoutStatus      PayoutStatus
	ExternalReference string
	FailureReason     string
	BookingRef        string
	CreatedAt         time.Time
	SettledAt         *time.Time
}

// CreatedEvent is the change-notification payload written to the outbox for
// every new transaction record.
type CreatedEvent struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	Kind          Kind   `json:"kind"`
}

func statusRank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether a record status may advance from one state
// to another. Terminal states never move.
func CanTransition(from, to Status) bool {
	if from == StatusCompleted || from == StatusFailed {
		return false
	}
	return statusRank(to) > statusRank(from)
}
