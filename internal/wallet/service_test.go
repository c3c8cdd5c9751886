package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/lodgepay/lodgepay/internal/ledger"
)

func TestBalanceDefaultsToZero(t *testing.T) {
	svc := NewService(ledger.NewInMemory())

	balance, err := svc.Balance(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 0 {
		t.Fatalf("expected zero balance, got %d", balance.Amount)
	}
}

func TestBalanceAndTransactions(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewInMemory()
	svc := NewService(store)

	userID := uuid.NewString()
	if _, err := store.Apply(ctx, userID, 2_500, ledger.Draft{Kind: ledger.KindDeposit, Amount: 2_500}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	balance, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Amount != 2_500 {
		t.Fatalf("expected balance 2500, got %d", balance.Amount)
	}

	recs, err := svc.Transactions(ctx, userID, 10)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != ledger.KindDeposit {
		t.Fatalf("unexpected transactions: %+v", recs)
	}
}
