package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestApplyCreatesWalletAndRecord(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	userID := uuid.NewString()

	rec, err := store.Apply(ctx, userID, 5_000, Draft{Kind: KindDeposit, Amount: 5_000})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if rec.Status != StatusCompleted {
		t.Fatalf("expected completed record, got %s", rec.Status)
	}
	if rec.SettledAt == nil {
		t.Fatal("expected settled_at on completed record")
	}

	w, err := store.Wallet(ctx, userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Balance != 5_000 {
		t.Fatalf("expected balance 5000, got %d", w.Balance)
	}
}

func TestApplyRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	userID := uuid.NewString()
	SeedWallet(store, userID, 1_000_000)

	_, err := store.Apply(ctx, userID, -1_000_001, Draft{Kind: KindWithdrawal, Amount: 1_000_001})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	w, _ := store.Wallet(ctx, userID)
	if w.Balance != 1_000_000 {
		t.Fatalf("balance changed on rejected debit: %d", w.Balance)
	}
	if got := len(CreatedEvents(store)); got != 0 {
		t.Fatalf("rejected debit emitted %d events", got)
	}
}

func TestConcurrentAppliesLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	userID := uuid.NewString()
	SeedWallet(store, userID, 100_000)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var applied int64

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(1_000)
			kind := KindDeposit
			if i%2 == 0 {
				delta = -7_000
				kind = KindWithdrawal
			}
			_, err := ApplyWithRetry(ctx, store, userID, delta, Draft{Kind: kind, Amount: abs(delta)}, DefaultApplyAttempts)
			if err == nil {
				mu.Lock()
				applied += delta
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientFunds) {
				t.Errorf("unexpected apply error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	w, err := store.Wallet(ctx, userID)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Balance != 100_000+applied {
		t.Fatalf("lost update: balance %d, want %d", w.Balance, 100_000+applied)
	}
	if w.Balance < 0 {
		t.Fatalf("balance went negative: %d", w.Balance)
	}
}

func TestSettleDebitsAndCompletes(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	userID := uuid.NewString()
	SeedWallet(store, userID, 1_000_000)

	rec, err := store.CreatePending(ctx, Draft{UserID: userID, Kind: KindWithdrawal, Amount: 999_900, PayoutStatus: PayoutPending})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	settled, err := store.Settle(ctx, rec.ID, -999_900, "BATCH-1")
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if settled.Status != StatusCompleted || settled.PayoutStatus != PayoutCompleted {
		t.Fatalf("unexpected statuses: %s / %s", settled.Status, settled.PayoutStatus)
	}
	if settled.ExternalReference != "BATCH-1" {
		t.Fatalf("expected external reference, got %q", settled.ExternalReference)
	}

	w, _ := store.Wallet(ctx, userID)
	if w.Balance != 100 {
		t.Fatalf("expected balance 100, got %d", w.Balance)
	}

	// A completed record cannot settle again under a new reference.
	if _, err := store.Settle(ctx, rec.ID, -999_900, "BATCH-2"); !errors.Is(err, ErrReferenceAlreadySet) {
		t.Fatalf("expected ErrReferenceAlreadySet, got %v", err)
	}
}

func TestCompletePayoutOnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	userID := uuid.NewString()

	rec, err := store.CreatePending(ctx, Draft{UserID: userID, Kind: KindHostEarning, Amount: 50_000, PayoutStatus: PayoutPending})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}

	if _, err := store.CompletePayout(ctx, rec.ID, "BATCH-9"); err != nil {
		t.Fatalf("complete payout: %v", err)
	}
	if _, err := store.CompletePayout(ctx, rec.ID, "BATCH-10"); !errors.Is(err, ErrReferenceAlreadySet) {
		t.Fatalf("expected ErrReferenceAlreadySet, got %v", err)
	}

	final, _ := store.Transaction(ctx, rec.ID)
	if final.ExternalReference != "BATCH-9" {
		t.Fatalf("reference overwritten: %q", final.ExternalReference)
	}
}

func TestFailedPayoutIsTerminal(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	userID := uuid.NewString()

	rec, err := store.CreatePending(ctx, Draft{UserID: userID, Kind: KindHostEarning, Amount: 50_000, PayoutStatus: PayoutPending})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if err := store.FailPayout(ctx, rec.ID, "RECEIVER_UNCONFIRMED"); err != nil {
		t.Fatalf("fail payout: %v", err)
	}

	got, _ := store.Transaction(ctx, rec.ID)
	if got.PayoutStatus != PayoutFailed || got.FailureReason != "RECEIVER_UNCONFIRMED" {
		t.Fatalf("unexpected failure state: %+v", got)
	}
	if err := store.FailPayout(ctx, rec.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
		{StatusProcessing, StatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
