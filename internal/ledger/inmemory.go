package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu      sync.RWMutex
	wallets map[string]*Wallet
	records map[string]*Transaction
	events  []CreatedEvent
}

// NewInMemory creates a concurrency-safe in-memory ledger store. It honors
// the same atomicity and version semantics as the Postgres backend, which
// makes it the unit-test double for everything built on the mutator.
func NewInMemory() Store {
	return &memoryStore{
		wallets: make(map[string]*Wallet),
		records: make(map[string]*Transaction),
	}
}

func (m *memoryStore) Wallet(_ context.Context, userID string) (Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if w, ok := m.wallets[userID]; ok {
		return *w, nil
	}
	return Wallet{OwnerID: userID, SchemaVersion: 1}, nil
}

func (m *memoryStore) Apply(_ context.Context, userID string, delta int64, draft Draft) (Transaction, error) {
	if draft.Amount <= 0 {
		return Transaction{}, fmt.Errorf("draft amount must be positive")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.mutateLocked(userID, delta); err != nil {
		return Transaction{}, err
	}
	draft.UserID = userID
	rec := m.insertLocked(draft, StatusCompleted, true)
	return rec, nil
}

func (m *memoryStore) Settle(_ context.Context, txID string, delta int64, externalRef string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[txID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if rec.ExternalReference != "" && rec.ExternalReference != externalRef {
		return *rec, ErrReferenceAlreadySet
	}
	if !CanTransition(rec.Status, StatusCompleted) {
		return *rec, ErrInvalidTransition
	}

	if err := m.mutateLocked(rec.UserID, delta); err != nil {
		return Transaction{}, err
	}

	now := time.Now().UTC()
	rec.Status = StatusCompleted
	if rec.PayoutStatus == PayoutPending || rec.PayoutStatus == PayoutProcessing {
		rec.PayoutStatus = PayoutCompleted
	}
	rec.ExternalReference = externalRef
	rec.SettledAt = &now
	return *rec, nil
}

func (m *memoryStore) CreatePending(_ context.Context, draft Draft) (Transaction, error) {
	if draft.Amount <= 0 {
		return Transaction{}, fmt.Errorf("draft amount must be positive")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(draft, StatusPending, false), nil
}

func (m *memoryStore) Transaction(_ context.Context, id string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return *rec, nil
}

func (m *memoryStore) TransactionsByUser(_ context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Transaction
	for _, rec := range m.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) FindByExternalOrder(_ context.Context, userID string, kind Kind, orderRef string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.UserID == userID && rec.Kind == kind && rec.ExternalReference == orderRef {
			return *rec, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func (m *memoryStore) FindByBookingRef(_ context.Context, userID string, kind Kind, bookingRef string) (Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.UserID == userID && rec.Kind == kind && rec.BookingRef == bookingRef {
			return *rec, nil
		}
	}
	return Transaction{}, ErrTransactionNotFound
}

func (m *memoryStore) MarkProcessing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if rec.Status != StatusPending {
		return ErrInvalidTransition
	}
	rec.Status = StatusProcessing
	return nil
}

func (m *memoryStore) MarkPayoutProcessing(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if rec.PayoutStatus != PayoutPending || rec.ExternalReference != "" {
		return ErrInvalidTransition
	}
	rec.Status = StatusProcessing
	rec.PayoutStatus = PayoutProcessing
	return nil
}

func (m *memoryStore) CompletePayout(_ context.Context, id, externalRef string) (Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if rec.ExternalReference != "" ||
		(rec.PayoutStatus != PayoutPending && rec.PayoutStatus != PayoutProcessing) {
		return Transaction{}, ErrReferenceAlreadySet
	}
	now := time.Now().UTC()
	rec.Status = StatusCompleted
	rec.PayoutStatus = PayoutCompleted
	rec.ExternalReference = externalRef
	rec.SettledAt = &now
	return *rec, nil
}

func (m *memoryStore) FailPayout(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if rec.ExternalReference != "" ||
		(rec.PayoutStatus != PayoutPending && rec.PayoutStatus != PayoutProcessing) {
		return ErrInvalidTransition
	}
	rec.Status = StatusFailed
	rec.PayoutStatus = PayoutFailed
	rec.FailureReason = reason
	return nil
}

func (m *memoryStore) ReopenPayout(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if rec.PayoutStatus != PayoutFailed || rec.ExternalReference != "" {
		return ErrInvalidTransition
	}
	rec.Status = StatusPending
	rec.PayoutStatus = PayoutPending
	rec.FailureReason = ""
	return nil
}

func (m *memoryStore) FailTransaction(_ context.Context, id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return ErrTransactionNotFound
	}
	if rec.Status != StatusPending && rec.Status != StatusProcessing {
		return ErrInvalidTransition
	}
	rec.Status = StatusFailed
	rec.FailureReason = reason
	return nil
}

func (m *memoryStore) mutateLocked(userID string, delta int64) error {
	w, ok := m.wallets[userID]
	if !ok {
		w = &Wallet{OwnerID: userID, SchemaVersion: 1}
		m.wallets[userID] = w
	}
	next := w.Balance + delta
	if next < 0 {
		return ErrInsufficientFunds
	}
	w.Balance = next
	w.Version++
	w.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memoryStore) insertLocked(draft Draft, status Status, settled bool) Transaction {
	id := draft.ID
	if id == "" {
		id = uuid.NewString()
	}
	payoutStatus := draft.PayoutStatus
	if payoutStatus == "" {
		payoutStatus = PayoutNone
	}

	now := time.Now().UTC()
	rec := &Transaction{
		ID:                id,
		UserID:            draft.UserID,
		Kind:              draft.Kind,
		Amount:            draft.Amount,
		Status:            status,
		PayoutStatus:      payoutStatus,
		ExternalReference: draft.ExternalReference,
		BookingRef:        draft.BookingRef,
		CreatedAt:         now,
	}
	if settled {
		rec.SettledAt = &now
	}
	m.records[id] = rec
	m.events = append(m.events, CreatedEvent{TransactionID: id, UserID: draft.UserID, Kind: draft.Kind})
	return *rec
}
