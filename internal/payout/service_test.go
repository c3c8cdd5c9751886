package payout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/lodgepay/lodgepay/internal/gateway"
	"github.com/lodgepay/lodgepay/internal/ledger"
	"github.com/lodgepay/lodgepay/internal/logging"
	"github.com/lodgepay/lodgepay/internal/recipient"
)

type fakeGateway struct {
	calls       int
	lastReq     gateway.PayoutRequest
	result      gateway.PayoutResult
	err         error
	statusCalls int
	batchStatus string
	statusErr   error
}

func (f *fakeGateway) CreatePayout(_ context.Context, req gateway.PayoutRequest) (gateway.PayoutResult, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return gateway.PayoutResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeGateway) PayoutStatus(_ context.Context, batchID string) (gateway.PayoutResult, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return gateway.PayoutResult{}, f.statusErr
	}
	status := f.batchStatus
	if status == "" {
		status = gateway.PayoutStatusSuccess
	}
	return gateway.PayoutResult{BatchID: batchID, Status: status}, nil
}

func (f *fakeGateway) GetOrder(_ context.Context, orderID string) (gateway.Order, error) {
	return gateway.Order{ID: orderID, Status: gateway.OrderStatusCompleted}, nil
}

func setup(t *testing.T, gw gateway.Client) (*Service, ledger.Store, *recipient.Service) {
	t.Helper()
	store := ledger.NewInMemory()
	recipients := recipient.NewService(recipient.NewMemoryRepository())
	svc := NewService(store, gw, recipients, nil, logging.Discard(), "USD")
	return svc, store, recipients
}

func createEarning(t *testing.T, store ledger.Store, hostID string, amount int64) ledger.Transaction {
	t.Helper()
	rec, err := store.CreatePending(context.Background(), ledger.Draft{
		UserID:       hostID,
		Kind:         ledger.KindHostEarning,
		Amount:       amount,
		PayoutStatus: ledger.PayoutPending,
		BookingRef:   "BK-100",
	})
	if err != nil {
		t.Fatalf("create earning: %v", err)
	}
	return rec
}

func TestProcessCompletesPayout(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{result: gateway.PayoutResult{BatchID: "BATCH-7", Status: "SUCCESS"}}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	if _, err := recipients.Register(ctx, hostID, "host@example.com", true); err != nil {
		t.Fatalf("register recipient: %v", err)
	}
	rec := createEarning(t, store, hostID, 50_000)

	if err := svc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutCompleted || got.ExternalReference != "BATCH-7" {
		t.Fatalf("unexpected outcome: %+v", got)
	}
	if got.SettledAt == nil {
		t.Fatal("expected settled_at to be set")
	}
	if gw.lastReq.Value != "500.00" {
		t.Fatalf("expected decimal value 500.00 at the boundary, got %q", gw.lastReq.Value)
	}
	if gw.lastReq.SenderBatchID != rec.ID {
		t.Fatalf("idempotency key should be the transaction id, got %q", gw.lastReq.SenderBatchID)
	}
}

func TestProcessTwiceIssuesOnePayout(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{result: gateway.PayoutResult{BatchID: "BATCH-1", Status: "SUCCESS"}}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 10_000)

	if err := svc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := svc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("second process should be a no-op: %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("expected exactly one payout call, got %d", gw.calls)
	}
}

func TestProcessFailsFastWithoutRecipient(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc, store, _ := setup(t, gw)

	rec := createEarning(t, store, uuid.NewString(), 50_000)

	err := svc.Process(ctx, rec.ID)
	if !errors.Is(err, recipient.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("gateway called despite missing recipient")
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutFailed || got.FailureReason != "RECIPIENT_NOT_CONFIGURED" {
		t.Fatalf("unexpected failure state: %+v", got)
	}
}

func TestProcessPersistsDeclaredFailure(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: &gateway.TransferError{Code: "RECEIVER_UNREGISTERED", Reason: "receiver has no account"}}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 20_000)

	if err := svc.Process(ctx, rec.ID); err == nil {
		t.Fatal("expected error")
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutFailed {
		t.Fatalf("expected failed payout, got %s", got.PayoutStatus)
	}
	if got.FailureReason != "RECEIVER_UNREGISTERED: receiver has no account" {
		t.Fatalf("unexpected failure reason: %q", got.FailureReason)
	}

	// A redelivered creation event must not retry the failed attempt.
	if err := svc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("redelivery should be a no-op: %v", err)
	}
	if gw.calls != 1 {
		t.Fatalf("failed payout retried automatically: %d calls", gw.calls)
	}
}

func TestIndeterminateOutcomeStaysProcessing(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gateway.ErrIndeterminate}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 30_000)

	if err := svc.Process(ctx, rec.ID); !errors.Is(err, gateway.ErrIndeterminate) {
		t.Fatalf("expected ErrIndeterminate, got %v", err)
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutProcessing {
		t.Fatalf("indeterminate outcome should leave payout processing, got %s", got.PayoutStatus)
	}
	if got.FailureReason != "" {
		t.Fatalf("indeterminate outcome must not record a failure reason")
	}
}

func TestRetriggerReopensFailedPayout(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: &gateway.TransferError{Code: "SENDER_RESTRICTED", Reason: "account locked"}}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 40_000)

	if err := svc.Process(ctx, rec.ID); err == nil {
		t.Fatal("expected declared failure")
	}

	gw.err = nil
	gw.result = gateway.PayoutResult{BatchID: "BATCH-RETRY", Status: "SUCCESS"}
	if err := svc.Retrigger(ctx, rec.ID); err != nil {
		t.Fatalf("retrigger: %v", err)
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutCompleted || got.ExternalReference != "BATCH-RETRY" {
		t.Fatalf("retrigger did not settle: %+v", got)
	}

	// Settled records cannot be retriggered again.
	if err := svc.Retrigger(ctx, rec.ID); !errors.Is(err, ledger.ErrReferenceAlreadySet) {
		t.Fatalf("expected ErrReferenceAlreadySet, got %v", err)
	}
}

func TestRetriggerReconcilesIndeterminateOutcome(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gateway.ErrIndeterminate}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 25_000)

	if err := svc.Process(ctx, rec.ID); !errors.Is(err, gateway.ErrIndeterminate) {
		t.Fatalf("expected ErrIndeterminate, got %v", err)
	}

	// The network comes back; resubmission under the same sender batch id
	// collapses into the original transfer and the batch status confirms it.
	gw.err = nil
	gw.result = gateway.PayoutResult{BatchID: "BATCH-RECON", Status: "PENDING"}
	if err := svc.Retrigger(ctx, rec.ID); err != nil {
		t.Fatalf("retrigger: %v", err)
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutCompleted || got.ExternalReference != "BATCH-RECON" {
		t.Fatalf("reconciliation did not settle: %+v", got)
	}
	if gw.lastReq.SenderBatchID != rec.ID {
		t.Fatalf("reconciliation changed the idempotency key: %q", gw.lastReq.SenderBatchID)
	}
	if gw.statusCalls != 1 {
		t.Fatalf("expected one batch status query, got %d", gw.statusCalls)
	}
}

func TestRetriggerFailsDeniedBatch(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gateway.ErrIndeterminate}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 15_000)

	if err := svc.Process(ctx, rec.ID); !errors.Is(err, gateway.ErrIndeterminate) {
		t.Fatalf("expected ErrIndeterminate, got %v", err)
	}

	gw.err = nil
	gw.result = gateway.PayoutResult{BatchID: "BATCH-D", Status: "PENDING"}
	gw.batchStatus = gateway.PayoutStatusDenied
	if err := svc.Retrigger(ctx, rec.ID); err == nil {
		t.Fatal("expected error for denied batch")
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutFailed {
		t.Fatalf("expected failed payout, got %s", got.PayoutStatus)
	}
	if got.FailureReason != "BATCH_DENIED: payout batch BATCH-D was denied" {
		t.Fatalf("unexpected failure reason: %q", got.FailureReason)
	}
}

func TestRetriggerLeavesProcessingWhenStatusUnknown(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{err: gateway.ErrIndeterminate}
	svc, store, recipients := setup(t, gw)

	hostID := uuid.NewString()
	recipients.Register(ctx, hostID, "host@example.com", true) // nolint:errcheck
	rec := createEarning(t, store, hostID, 35_000)

	if err := svc.Process(ctx, rec.ID); !errors.Is(err, gateway.ErrIndeterminate) {
		t.Fatalf("expected ErrIndeterminate, got %v", err)
	}

	gw.err = nil
	gw.result = gateway.PayoutResult{BatchID: "BATCH-U", Status: "PENDING"}
	gw.statusErr = gateway.ErrIndeterminate
	if err := svc.Retrigger(ctx, rec.ID); err == nil {
		t.Fatal("expected error while the batch state is unknown")
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != ledger.PayoutProcessing || got.ExternalReference != "" {
		t.Fatalf("unknown batch state must leave the record in processing: %+v", got)
	}
}

func TestProcessIgnoresIneligibleKinds(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{}
	svc, store, _ := setup(t, gw)

	userID := uuid.NewString()
	rec, err := store.Apply(ctx, userID, 5_000, ledger.Draft{Kind: ledger.KindDeposit, Amount: 5_000})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := svc.Process(ctx, rec.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if gw.calls != 0 {
		t.Fatalf("deposit record triggered a payout call")
	}
}
