// Package payout drives external settlement of host earnings. It reacts to
// transaction-creation notifications, issues at most one payout call per
// record, and records the outcome on the record itself.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lodgepay/lodgepay/internal/gateway"
	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/money"
	"github.com/lodgepay/lodgepay/internal/notification"
	"github.com/lodgepay/lodgepay/internal/recipient"
)

const reasonRecipientNotConfigured = "RECIPIENT_NOT_CONFIGURED"

// Service orchestrates external payouts for eligible transaction records.
type Service struct {
	store      ledger.Store
	gateway    gateway.Client
	recipients *recipient.Service
	notifier   notification.Notifier
	logger     *slog.Logger
	currency   string
}

// NewService builds a payout orchestrator.
func NewService(store ledger.Store, gw gateway.Client, recipients *recipient.Service, notifier notification.Notifier, logger *slog.Logger, currency string) *Service {
	if currency == "" {
		currency = "USD"
	}
	return &Service{
		store:      store,
		gateway:    gw,
		recipients: recipients,
		notifier:   notifier,
		logger:     logger,
		currency:   currency,
	}
}

// Process handles one creation notification. Delivery may be at-least-once:
// ineligible, already-settled, and already-claimed records are no-ops, and
// the sender batch id lets the network collapse any call that still slips
// through twice.
func (s *Service) Process(ctx context.Context, transactionID string) error {
	rec, err := s.store.Transaction(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", transactionID, err)
	}

	if rec.Kind != ledger.KindHostEarning {
		return nil
	}
	if rec.ExternalReference != "" || rec.PayoutStatus != ledger.PayoutPending {
		s.logger.Debug("payout trigger ignored",
			"transaction_id", rec.ID, "payout_status", rec.PayoutStatus, "external_reference", rec.ExternalReference)
		return nil
	}

	receiver, err := s.recipients.Resolve(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, recipient.ErrNotConfigured) {
			if failErr := s.store.FailPayout(ctx, rec.ID, reasonRecipientNotConfigured); failErr != nil {
				return fmt.Errorf("fail payout %s: %w", rec.ID, failErr)
			}
			s.notifyFailure(ctx, rec, reasonRecipientNotConfigured)
			return fmt.Errorf("payout %s: %w", rec.ID, err)
		}
		return fmt.Errorf("resolve recipient for %s: %w", rec.UserID, err)
	}

	if err := s.store.MarkPayoutProcessing(ctx, rec.ID); err != nil {
		if errors.Is(err, ledger.ErrInvalidTransition) {
			// Lost the claim to a concurrent trigger.
			return nil
		}
		return fmt.Errorf("claim payout %s: %w", rec.ID, err)
	}

	result, err := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		SenderBatchID: rec.ID,
		ReceiverEmail: receiver,
		Value:         money.ToDisplayUnits(rec.Amount),
		Currency:      s.currency,
		Note:          payoutNote(rec),
	})
	if err != nil {
		return s.recordFailure(ctx, rec, err)
	}

	return s.complete(ctx, rec, result.BatchID)
}

// Retrigger is the manual entrypoint and the only retry path. A failed
// attempt is reopened and run again; a record stranded in processing by an
// indeterminate outcome is reconciled against the network instead. It
// refuses once an external reference exists.
func (s *Service) Retrigger(ctx context.Context, transactionID string) error {
	rec, err := s.store.Transaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if rec.ExternalReference != "" {
		return ledger.ErrReferenceAlreadySet
	}

	switch rec.PayoutStatus {
	case ledger.PayoutFailed:
		if err := s.store.ReopenPayout(ctx, rec.ID); err != nil {
			return err
		}
		return s.Process(ctx, transactionID)
	case ledger.PayoutProcessing:
		return s.reconcile(ctx, rec)
	default:
		return s.Process(ctx, transactionID)
	}
}

// reconcile settles a record whose earlier payout call timed out without an
// outcome. Resubmitting under the same sender batch id is safe: the network
// collapses the duplicate into the original transfer if one went out. The
// batch status query then decides whether the attempt settled or was denied.
func (s *Service) reconcile(ctx context.Context, rec ledger.Transaction) error {
	if rec.Kind != ledger.KindHostEarning {
		return nil
	}

	receiver, err := s.recipients.Resolve(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("resolve recipient for %s: %w", rec.UserID, err)
	}

	result, err := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		SenderBatchID: rec.ID,
		ReceiverEmail: receiver,
		Value:         money.ToDisplayUnits(rec.Amount),
		Currency:      s.currency,
		Note:          payoutNote(rec),
	})
	if err != nil {
		return s.recordFailure(ctx, rec, err)
	}

	status, err := s.gateway.PayoutStatus(ctx, result.BatchID)
	if err != nil {
		// Outcome still unknown; the record stays in processing.
		return fmt.Errorf("confirm payout batch %s: %w", result.BatchID, err)
	}
	if status.Status == gateway.PayoutStatusDenied {
		return s.recordFailure(ctx, rec, &gateway.TransferError{
			Code:   "BATCH_DENIED",
			Reason: "payout batch " + result.BatchID + " was denied",
		})
	}

	return s.complete(ctx, rec, result.BatchID)
}

func (s *Service) complete(ctx context.Context, rec ledger.Transaction, batchID string) error {
	if _, err := s.store.CompletePayout(ctx, rec.ID, batchID); err != nil {
		if errors.Is(err, ledger.ErrReferenceAlreadySet) {
			return nil
		}
		return fmt.Errorf("complete payout %s: %w", rec.ID, err)
	}

	s.logger.Info("payout completed", "transaction_id", rec.ID, "batch_id", batchID, "amount", rec.Amount)
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPayoutCompleted,
			Destination: rec.UserID,
			Body:        fmt.Sprintf("Payout of %s settled (batch %s)", money.ToDisplayUnits(rec.Amount), batchID),
		})
	}
	return nil
}

// recordFailure persists the gateway outcome on the record. Declared
// failures and auth errors are terminal for the attempt; indeterminate
// outcomes stay in processing for manual reconciliation.
func (s *Service) recordFailure(ctx context.Context, rec ledger.Transaction, err error) error {
	if errors.Is(err, gateway.ErrIndeterminate) {
		s.logger.Warn("payout outcome indeterminate, leaving record in processing",
			"transaction_id", rec.ID, "error", err)
		return err
	}

	reason := err.Error()
	var transferErr *gateway.TransferError
	if errors.As(err, &transferErr) {
		reason = transferErr.Code + ": " + transferErr.Reason
	}

	if failErr := s.store.FailPayout(ctx, rec.ID, reason); failErr != nil {
		return fmt.Errorf("persist payout failure for %s: %w", rec.ID, failErr)
	}
	s.notifyFailure(ctx, rec, reason)
	return err
}

func (s *Service) notifyFailure(ctx context.Context, rec ledger.Transaction, reason string) {
	s.logger.Error("payout failed", "transaction_id", rec.ID, "reason", reason)
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindPayoutFailed,
			Destination: rec.UserID,
			Body:        fmt.Sprintf("Payout of %s failed: %s", money.ToDisplayUnits(rec.Amount), reason),
		})
	}
}

func payoutNote(rec ledger.Transaction) string {
	if rec.BookingRef != "" {
		return "Host earnings for booking " + rec.BookingRef
	}
	return "Host earnings payout"
}
