// Package earnings is the settlement entrypoint for the surrounding booking
// system: host earnings awaiting external payout, wallet-funded booking
// payments, and refunds.
package earnings

import (
	"context"
	"errors"
	"fmt"

	"github.com/lodgepay/lodgepay/internal/ledger"
)

// Service creates the ledger records that booking settlement produces.
type Service struct {
	store    ledger.Store
	attempts int
}

// NewService builds an earnings service.
func NewService(store ledger.Store) *Service {
	return &Service{store: store, attempts: ledger.DefaultApplyAttempts}
}

// RecordEarnings records host earnings for a confirmed stay. The record is
// created pending with an untouched payout attempt; the orchestrator picks
// it up from the creation notification. Callers may deliver the same
// booking more than once; only the first call creates a record.
func (s *Service) RecordEarnings(ctx context.Context, hostID string, amount int64, bookingRef string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, fmt.Errorf("amount must be positive")
	}
	if bookingRef == "" {
		return ledger.Transaction{}, fmt.Errorf("booking reference is required")
	}

	if prior, err := s.store.FindByBookingRef(ctx, hostID, ledger.KindHostEarning, bookingRef); err == nil {
		return prior, nil
	} else if !errors.Is(err, ledger.ErrTransactionNotFound) {
		return ledger.Transaction{}, err
	}

	return s.store.CreatePending(ctx, ledger.Draft{
		UserID:       hostID,
		Kind:         ledger.KindHostEarning,
		Amount:       amount,
		PayoutStatus: ledger.PayoutPending,
		BookingRef:   bookingRef,
	})
}

// PayFromWallet debits a guest wallet for a booking paid with stored value.
func (s *Service) PayFromWallet(ctx context.Context, guestID string, amount int64, bookingRef string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, fmt.Errorf("amount must be positive")
	}
	if bookingRef == "" {
		return ledger.Transaction{}, fmt.Errorf("booking reference is required")
	}

	if prior, err := s.store.FindByBookingRef(ctx, guestID, ledger.KindPayment, bookingRef); err == nil {
		return prior, nil
	} else if !errors.Is(err, ledger.ErrTransactionNotFound) {
		return ledger.Transaction{}, err
	}

	return ledger.ApplyWithRetry(ctx, s.store, guestID, -amount, ledger.Draft{
		Kind:       ledger.KindPayment,
		Amount:     amount,
		BookingRef: bookingRef,
	}, s.attempts)
}

// Refund credits a guest wallet for a cancelled booking.
func (s *Service) Refund(ctx context.Context, guestID string, amount int64, bookingRef string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, fmt.Errorf("amount must be positive")
	}
	if bookingRef == "" {
		return ledger.Transaction{}, fmt.Errorf("booking reference is required")
	}

	if prior, err := s.store.FindByBookingRef(ctx, guestID, ledger.KindRefund, bookingRef); err == nil {
		return prior, nil
	} else if !errors.Is(err, ledger.ErrTransactionNotFound) {
		return ledger.Transaction{}, err
	}

	return ledger.ApplyWithRetry(ctx, s.store, guestID, amount, ledger.Draft{
		Kind:       ledger.KindRefund,
		Amount:     amount,
		BookingRef: bookingRef,
	}, s.attempts)
}
