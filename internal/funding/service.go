package funding

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

var (
	// ErrAmountMismatch indicates the claimed deposit amount does not match
	// the captured order on the external network. Nothing is credited.
	ErrAmountMismatch = errors.New("claimed amount does not match captured order")

	// ErrDuplicateRequest indicates the operation already happened; the
	// prior record is returned alongside. Not a true failure.
	ErrDuplicateRequest = errors.New("duplicate request")

	// ErrOrderNotCaptured indicates the order exists but is not in a
	// captured/completed state yet.
	ErrOrderNotCaptured = errors.New("order not captured")
)

// Service runs the synchronous user-triggered settlement flows: withdrawals
// to the external network and deposit confirmations from it.
type Service struct {
	store      ledger.Store
	gateway    gateway.Client
	recipients *recipient.Service
	notifier   notification.Notifier
	logger     *slog.Logger
	currency   string
	attempts   int
}

// NewService builds a funding service.
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
		attempts:   ledger.DefaultApplyAttempts,
	}
}

// WithdrawInput captures a withdrawal request in minor units.
type WithdrawInput struct {
	UserID string
	Amount int64
}

// DepositInput captures a deposit confirmation claim.
type DepositInput struct {
	UserID        string
	OrderRef      string
	ClaimedAmount int64
}

// Result pairs the transaction record with the wallet balance after the
// operation.
type Result struct {
	Transaction ledger.Transaction
	Balance     int64
}

// Withdraw pushes wallet funds to the user's verified payout account. The
// wallet is debited only after the network confirms the transfer, so a user
// is never debited without a matching external transfer.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (Result, error) {
	if input.Amount <= 0 {
		return Result{}, fmt.Errorf("amount must be positive")
	}

	receiver, err := s.recipients.Resolve(ctx, input.UserID)
	if err != nil {
		return Result{}, err
	}

	w, err := s.store.Wallet(ctx, input.UserID)
	if err != nil {
		return Result{}, err
	}
	if w.Balance < input.Amount {
		return Result{}, ledger.ErrInsufficientFunds
	}

	rec, err := s.store.CreatePending(ctx, ledger.Draft{
		UserID:       input.UserID,
		Kind:         ledger.KindWithdrawal,
		Amount:       input.Amount,
		PayoutStatus: ledger.PayoutPending,
	})
	if err != nil {
		return Result{}, err
	}
	if err := s.store.MarkPayoutProcessing(ctx, rec.ID); err != nil {
		return Result{}, err
	}

	payout, err := s.gateway.CreatePayout(ctx, gateway.PayoutRequest{
		SenderBatchID: rec.ID,
		ReceiverEmail: receiver,
		Value:         money.ToDisplayUnits(input.Amount),
		Currency:      s.currency,
		Note:          "Wallet withdrawal",
	})
	if err != nil {
		return s.recordWithdrawalFailure(ctx, rec, err)
	}

	settled, err := ledger.SettleWithRetry(ctx, s.store, rec.ID, -input.Amount, payout.BatchID, s.attempts)
	if err != nil {
		// The transfer already left; the record stays open for manual
		// reconciliation rather than being marked failed.
		s.logger.Error("withdrawal transferred but not settled",
			"transaction_id", rec.ID, "batch_id", payout.BatchID, "error", err)
		return Result{}, fmt.Errorf("settle withdrawal %s: %w", rec.ID, err)
	}

	balance, err := s.balance(ctx, input.UserID)
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindWithdrawalCompleted,
			Destination: input.UserID,
			Body:        fmt.Sprintf("Withdrawal of %s settled (batch %s)", money.ToDisplayUnits(input.Amount), payout.BatchID),
		})
	}
	return Result{Transaction: settled, Balance: balance}, nil
}

// ConfirmDeposit verifies a captured order with the external network and
// credits the wallet with the verified amount. Confirming the same order
// twice returns the prior record and credits nothing.
func (s *Service) ConfirmDeposit(ctx context.Context, input DepositInput) (Result, error) {
	if input.ClaimedAmount <= 0 {
		return Result{}, fmt.Errorf("claimed amount must be positive")
	}
	if input.OrderRef == "" {
		return Result{}, fmt.Errorf("order reference is required")
	}

	if prior, err := s.store.FindByExternalOrder(ctx, input.UserID, ledger.KindDeposit, input.OrderRef); err == nil {
		balance, balErr := s.balance(ctx, input.UserID)
		if balErr != nil {
			return Result{}, balErr
		}
		return Result{Transaction: prior, Balance: balance}, ErrDuplicateRequest
	} else if !errors.Is(err, ledger.ErrTransactionNotFound) {
		return Result{}, err
	}

	order, err := s.gateway.GetOrder(ctx, input.OrderRef)
	if err != nil {
		return Result{}, err
	}
	if order.Status != gateway.OrderStatusCompleted {
		return Result{}, fmt.Errorf("%w: order %s is %s", ErrOrderNotCaptured, input.OrderRef, order.Status)
	}

	verified, err := money.ToMinorUnits(order.Value)
	if err != nil {
		return Result{}, fmt.Errorf("parse order amount %q: %w", order.Value, err)
	}
	if verified != input.ClaimedAmount {
		return Result{}, fmt.Errorf("%w: claimed %d, captured %d", ErrAmountMismatch, input.ClaimedAmount, verified)
	}

	rec, err := ledger.ApplyWithRetry(ctx, s.store, input.UserID, verified, ledger.Draft{
		Kind:              ledger.KindDeposit,
		Amount:            verified,
		ExternalReference: input.OrderRef,
	}, s.attempts)
	if err != nil {
		return Result{}, err
	}

	balance, err := s.balance(ctx, input.UserID)
	if err != nil {
		return Result{}, err
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindDepositReceived,
			Destination: input.UserID,
			Body:        fmt.Sprintf("Deposit of %s credited", money.ToDisplayUnits(verified)),
		})
	}
	return Result{Transaction: rec, Balance: balance}, nil
}

// recordWithdrawalFailure persists a gateway outcome for a withdrawal that
// never transferred. Indeterminate outcomes keep the record in processing.
func (s *Service) recordWithdrawalFailure(ctx context.Context, rec ledger.Transaction, err error) (Result, error) {
	if errors.Is(err, gateway.ErrIndeterminate) {
		s.logger.Warn("withdrawal outcome indeterminate, leaving record in processing",
			"transaction_id", rec.ID, "error", err)
		return Result{Transaction: rec}, err
	}

	reason := err.Error()
	var transferErr *gateway.TransferError
	if errors.As(err, &transferErr) {
		reason = transferErr.Code + ": " + transferErr.Reason
	}
	if failErr := s.store.FailPayout(ctx, rec.ID, reason); failErr != nil {
		return Result{}, fmt.Errorf("persist withdrawal failure for %s: %w", rec.ID, failErr)
	}
	return Result{}, err
}

func (s *Service) balance(ctx context.Context, userID string) (int64, error) {
	w, err := s.store.Wallet(ctx, userID)
	if err != nil {
		return 0, err
	}
	return w.Balance, nil
}
