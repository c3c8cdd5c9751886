package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when a debit would drive a wallet balance
	// below zero. The mutation is rejected whole; nothing is written.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConcurrentModification indicates the commit lost an optimistic
	// version check against a conflicting writer. The caller must retry the
	// whole mutation, not just the store write.
	ErrConcurrentModification = errors.New("concurrent wallet modification")

	// ErrTransactionNotFound indicates no record exists for the identifier.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrInvalidTransition occurs when a status update would move a record
	// backwards. Statuses only ever advance.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrReferenceAlreadySet occurs when a settlement tries to stamp an
	// external reference onto a record that already carries one. The
	// reference is written at most once per record.
	ErrReferenceAlreadySet = errors.New("external reference already set")
)

// Draft carries the fields of a transaction record to be created. The ID is
// assigned by the store when left empty.
type Draft struct {
	ID                string
	UserID            string
	Kind              Kind
	Amount            int64
	PayoutStatus      PayoutStatus
	ExternalReference string
	BookingRef        string
}

// Store is the ledger contract implemented by the Postgres and in-memory
// backends. Apply and Settle are the balance mutator: the wallet update and
// the transaction record commit as one atomic unit, serialized per wallet by
// an optimistic version check. Independent wallets never block each other.
type Store interface {
	// Wallet returns the wallet for the owner, or a zero-balance wallet if
	// none exists yet. Wallets are created implicitly on first mutation.
	Wallet(ctx context.Context, userID string) (Wallet, error)

	// Apply adds the signed delta to the owner's balance and records the
	// transaction with status completed, atomically.
	Apply(ctx context.Context, userID string, delta int64, draft Draft) (Transaction, error)

	// Settle adds the signed delta to the wallet of an existing record's
	// subject and advances that record to completed, stamping the external
	// reference, atomically.
	Settle(ctx context.Context, txID string, delta int64, externalRef string) (Transaction, error)

	// CreatePending records a transaction without touching any balance.
	CreatePending(ctx context.Context, draft Draft) (Transaction, error)

	Transaction(ctx context.Context, id string) (Transaction, error)
	TransactionsByUser(ctx context.Context, userID string, limit int) ([]Transaction, error)
	FindByExternalOrder(ctx context.Context, userID string, kind Kind, orderRef string) (Transaction, error)
	FindByBookingRef(ctx context.Context, userID string, kind Kind, bookingRef string) (Transaction, error)

	MarkProcessing(ctx context.Context, id string) error
	MarkPayoutProcessing(ctx context.Context, id string) error
	CompletePayout(ctx context.Context, id, externalRef string) (Transaction, error)
	FailPayout(ctx context.Context, id, reason string) error
	FailTransaction(ctx context.Context, id, reason string) error

	// ReopenPayout moves a failed payout attempt back to pending so an
	// operator can re-trigger it. It refuses once an external reference
	// exists, since that would risk a duplicate transfer.
	ReopenPayout(ctx context.Context, id string) error
}

// DefaultApplyAttempts bounds internal retries of mutations rejected with
// ErrConcurrentModification.
const DefaultApplyAttempts = 3

// ApplyWithRetry retries the whole Apply call on version conflicts, up to
// the given number of attempts. Every other error is returned as is.
func ApplyWithRetry(ctx context.Context, s Store, userID string, delta int64, draft Draft, attempts int) (Transaction, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		tx  Transaction
		err error
	)
	for i := 0; i < attempts; i++ {
		tx, err = s.Apply(ctx, userID, delta, draft)
		if !errors.Is(err, ErrConcurrentModification) {
			return tx, err
		}
	}
	return tx, err
}

// SettleWithRetry retries the whole Settle call on version conflicts, up to
// the given number of attempts.
func SettleWithRetry(ctx context.Context, s Store, txID string, delta int64, externalRef string, attempts int) (Transaction, error) {
	if attempts < 1 {
		attempts = 1
	}
	var (
		tx  Transaction
		err error
	)
	for i := 0; i < attempts; i++ {
		tx, err = s.Settle(ctx, txID, delta, externalRef)
		if !errors.Is(err, ErrConcurrentModification) {
			return tx, err
		}
	}
	return tx, err
}
