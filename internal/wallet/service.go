// Package wallet is the read surface of the ledger: balances and recent
// transaction history. All mutation goes through the balance mutator in the
// ledger package.
package wallet

import (
	"context"
	"time"

	"github.com/lodgepay/lodgepay/internal/ledger"
)

// Balance encapsulates available funds for a user.
type Balance struct {
	UserID string
	Amount int64
	AsOf   time.Time
}

// Service exposes wallet reads backed by the ledger store.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet read service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// Balance returns the current balance in minor units. Users without a
// wallet row read as zero; the row appears on first mutation.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	w, err := s.store.Wallet(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{UserID: userID, Amount: w.Balance, AsOf: time.Now().UTC()}, nil
}

// Transactions lists the most recent records for a user.
func (s *Service) Transactions(ctx context.Context, userID string, limit int) ([]ledger.Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID, limit)
}
