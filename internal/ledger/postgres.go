package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodgepay/lodgepay/internal/money"
)

// PostgresStore persists wallets and transaction records in PostgreSQL.
// Every record insert also writes an outbox row in the same database
// transaction, which the relay later publishes as the change notification.
type PostgresStore struct {
	db    *pgxpool.Pool
	topic string
}

// NewPostgresStore constructs a Postgres-backed ledger store. The topic is
// the destination for outbox notifications of new records.
func NewPostgresStore(db *pgxpool.Pool, topic string) *PostgresStore {
	return &PostgresStore{db: db, topic: topic}
}

const selectTransactionColumns = `SELECT id, user_id, kind, amount, status, payout_status,
        external_reference, failure_reason, booking_ref, created_at, settled_at
    FROM transactions`

// Wallet returns the stored wallet, or an empty current-schema wallet when
// the owner has no row yet. Legacy balances are normalized on read.
func (s *PostgresStore) Wallet(ctx context.Context, userID string) (Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse user id: %w", err)
	}

	row := s.db.QueryRow(ctx, `SELECT balance::text, schema_version, version, updated_at
        FROM wallets WHERE owner_id = $1`, uid)

	var (
		raw string
		w   Wallet
	)
	w.OwnerID = userID
	if err := row.Scan(&raw, &w.SchemaVersion, &w.Version, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{OwnerID: userID, SchemaVersion: money.SchemaVersionMinorUnits}, nil
		}
		return Wallet{}, err
	}

	w.Balance, err = money.NormalizeLegacy(w.SchemaVersion, raw)
	if err != nil {
		return Wallet{}, fmt.Errorf("normalize balance for %s: %w", userID, err)
	}
	return w, nil
}

// Apply commits a balance delta and a completed transaction record as one
// unit. A lost version check surfaces as ErrConcurrentModification and the
// caller retries the whole mutation.
func (s *PostgresStore) Apply(ctx context.Context, userID string, delta int64, draft Draft) (Transaction, error) {
	if draft.Amount <= 0 {
		return Transaction{}, fmt.Errorf("draft amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := s.mutateBalance(ctx, tx, userID, delta); err != nil {
		return Transaction{}, err
	}

	draft.UserID = userID
	rec, err := s.insertRecord(ctx, tx, draft, StatusCompleted, true)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

// Settle debits or credits the wallet of an existing record's subject and
// advances the record to completed, stamping the external reference once.
func (s *PostgresStore) Settle(ctx context.Context, txID string, delta int64, externalRef string) (Transaction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := scanTransaction(tx.QueryRow(ctx, selectTransactionColumns+` WHERE id = $1 FOR UPDATE`, txID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	if rec.ExternalReference != "" && rec.ExternalReference != externalRef {
		return rec, ErrReferenceAlreadySet
	}
	if !CanTransition(rec.Status, StatusCompleted) {
		return rec, ErrInvalidTransition
	}

	if err := s.mutateBalance(ctx, tx, rec.UserID, delta); err != nil {
		return Transaction{}, err
	}

	payoutStatus := rec.PayoutStatus
	if payoutStatus == PayoutPending || payoutStatus == PayoutProcessing {
		payoutStatus = PayoutCompleted
	}

	updated, err := scanTransaction(tx.QueryRow(ctx, `UPDATE transactions
        SET status = $2, payout_status = $3, external_reference = $4, settled_at = now()
        WHERE id = $1
        RETURNING id, user_id, kind, amount, status, payout_status,
            external_reference, failure_reason, booking_ref, created_at, settled_at`,
		txID, StatusCompleted, payoutStatus, nullable(externalRef)))
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

// CreatePending records a transaction with status pending and no balance
// change, for flows that settle later.
func (s *PostgresStore) CreatePending(ctx context.Context, draft Draft) (Transaction, error) {
	if draft.Amount <= 0 {
		return Transaction{}, fmt.Errorf("draft amount must be positive")
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	rec, err := s.insertRecord(ctx, tx, draft, StatusPending, false)
	if err != nil {
		return Transaction{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

// Transaction fetches a single record by identifier.
func (s *PostgresStore) Transaction(ctx context.Context, id string) (Transaction, error) {
	rec, err := scanTransaction(s.db.QueryRow(ctx, selectTransactionColumns+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, err
}

// TransactionsByUser lists the most recent records for a user.
func (s *PostgresStore) TransactionsByUser(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, selectTransactionColumns+` WHERE user_id = $1
        ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// FindByExternalOrder locates a record by the external order reference used
// for deposit idempotency.
func (s *PostgresStore) FindByExternalOrder(ctx context.Context, userID string, kind Kind, orderRef string) (Transaction, error) {
	rec, err := scanTransaction(s.db.QueryRow(ctx, selectTransactionColumns+`
        WHERE user_id = $1 AND kind = $2 AND external_reference = $3`, userID, kind, orderRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, err
}

// FindByBookingRef locates a record by booking reference, the dedup key for
// at-least-once settlement calls from the booking system.
func (s *PostgresStore) FindByBookingRef(ctx context.Context, userID string, kind Kind, bookingRef string) (Transaction, error) {
	rec, err := scanTransaction(s.db.QueryRow(ctx, selectTransactionColumns+`
        WHERE user_id = $1 AND kind = $2 AND booking_ref = $3`, userID, kind, bookingRef))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	return rec, err
}

// MarkProcessing advances a pending record to processing.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	return s.guardedUpdate(ctx, id, `UPDATE transactions SET status = 'processing'
        WHERE id = $1 AND status = 'pending'`)
}

// MarkPayoutProcessing advances a record with an untouched payout attempt to
// processing before the external call goes out.
func (s *PostgresStore) MarkPayoutProcessing(ctx context.Context, id string) error {
	return s.guardedUpdate(ctx, id, `UPDATE transactions
        SET status = 'processing', payout_status = 'processing'
        WHERE id = $1 AND payout_status = 'pending' AND external_reference IS NULL`)
}

// CompletePayout records a confirmed external transfer. The update only
// lands while the external reference is still unset, which is what makes
// duplicate orchestrator triggers harmless.
func (s *PostgresStore) CompletePayout(ctx context.Context, id, externalRef string) (Transaction, error) {
	rec, err := scanTransaction(s.db.QueryRow(ctx, `UPDATE transactions
        SET status = 'completed', payout_status = 'completed',
            external_reference = $2, settled_at = now()
        WHERE id = $1 AND external_reference IS NULL
            AND payout_status IN ('pending', 'processing')
        RETURNING id, user_id, kind, amount, status, payout_status,
            external_reference, failure_reason, booking_ref, created_at, settled_at`, id, externalRef))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, getErr := s.Transaction(ctx, id); getErr != nil {
			return Transaction{}, getErr
		}
		return Transaction{}, ErrReferenceAlreadySet
	}
	return rec, err
}

// FailPayout marks the embedded payout attempt failed with a structured
// reason. Failed attempts stay terminal until explicitly re-triggered.
func (s *PostgresStore) FailPayout(ctx context.Context, id, reason string) error {
	ct, err := s.db.Exec(ctx, `UPDATE transactions
        SET status = 'failed', payout_status = 'failed', failure_reason = $2
        WHERE id = $1 AND external_reference IS NULL
            AND payout_status IN ('pending', 'processing')`, id, reason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, getErr := s.Transaction(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

// ReopenPayout resets a failed payout attempt to pending for an explicit
// manual re-trigger. The external-reference guard is what keeps this from
// ever duplicating a transfer that already went out.
func (s *PostgresStore) ReopenPayout(ctx context.Context, id string) error {
	ct, err := s.db.Exec(ctx, `UPDATE transactions
        SET status = 'pending', payout_status = 'pending', failure_reason = NULL
        WHERE id = $1 AND payout_status = 'failed' AND external_reference IS NULL`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, getErr := s.Transaction(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

// FailTransaction marks a record failed with a reason, leaving the wallet
// untouched.
func (s *PostgresStore) FailTransaction(ctx context.Context, id, reason string) error {
	ct, err := s.db.Exec(ctx, `UPDATE transactions SET status = 'failed', failure_reason = $2
        WHERE id = $1 AND status IN ('pending', 'processing')`, id, reason)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, getErr := s.Transaction(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

// mutateBalance applies a signed delta to a wallet row inside tx, creating
// the row on first use and migrating legacy balances to minor units on
// write. The version predicate makes conflicting writers lose cleanly.
func (s *PostgresStore) mutateBalance(ctx context.Context, tx pgx.Tx, userID string, delta int64) error {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO wallets (owner_id, balance, schema_version, version, updated_at)
        VALUES ($1, 0, $2, 0, now()) ON CONFLICT (owner_id) DO NOTHING`,
		uid, money.SchemaVersionMinorUnits); err != nil {
		return err
	}

	var (
		raw     string
		schema  int
		version int64
	)
	if err := tx.QueryRow(ctx, `SELECT balance::text, schema_version, version
        FROM wallets WHERE owner_id = $1`, uid).Scan(&raw, &schema, &version); err != nil {
		return err
	}

	balance, err := money.NormalizeLegacy(schema, raw)
	if err != nil {
		return fmt.Errorf("normalize balance for %s: %w", userID, err)
	}

	next := balance + delta
	if next < 0 {
		return ErrInsufficientFunds
	}

	ct, err := tx.Exec(ctx, `UPDATE wallets
        SET balance = $2::numeric, schema_version = $3, version = version + 1, updated_at = now()
        WHERE owner_id = $1 AND version = $4`,
		uid, strconv.FormatInt(next, 10), money.SchemaVersionMinorUnits, version)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (s *PostgresStore) insertRecord(ctx context.Context, tx pgx.Tx, draft Draft, status Status, settled bool) (Transaction, error) {
	id := draft.ID
	if id == "" {
		id = uuid.NewString()
	}
	payoutStatus := draft.PayoutStatus
	if payoutStatus == "" {
		payoutStatus = PayoutNone
	}

	settleExpr := "NULL"
	if settled {
		settleExpr = "now()"
	}

	rec, err := scanTransaction(tx.QueryRow(ctx, `INSERT INTO transactions
        (id, user_id, kind, amount, status, payout_status, external_reference, booking_ref, created_at, settled_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), `+settleExpr+`)
        RETURNING id, user_id, kind, amount, status, payout_status,
            external_reference, failure_reason, booking_ref, created_at, settled_at`,
		id, draft.UserID, draft.Kind, draft.Amount, status, payoutStatus,
		nullable(draft.ExternalReference), nullable(draft.BookingRef)))
	if err != nil {
		return Transaction{}, err
	}

	payload, err := json.Marshal(CreatedEvent{TransactionID: rec.ID, UserID: rec.UserID, Kind: rec.Kind})
	if err != nil {
		return Transaction{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO outbox (topic, message_key, payload, status, retry_count, created_at, updated_at)
        VALUES ($1, $2, $3, 'pending', 0, now(), now())`, s.topic, rec.ID, string(payload)); err != nil {
		return Transaction{}, err
	}
	return rec, nil
}

func (s *PostgresStore) guardedUpdate(ctx context.Context, id, query string) error {
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, getErr := s.Transaction(ctx, id); getErr != nil {
			return getErr
		}
		return ErrInvalidTransition
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var (
		rec         Transaction
		id, userID  uuid.UUID
		externalRef *string
		failReason  *string
		bookingRef  *string
	)
	if err := row.Scan(&id, &userID, &rec.Kind, &rec.Amount, &rec.Status, &rec.PayoutStatus,
		&externalRef, &failReason, &bookingRef, &rec.CreatedAt, &rec.SettledAt); err != nil {
		return Transaction{}, err
	}
	rec.ID = id.String()
	rec.UserID = userID.String()
	if externalRef != nil {
		rec.ExternalReference = *externalRef
	}
	if failReason != nil {
		rec.FailureReason = *failReason
	}
	if bookingRef != nil {
		rec.BookingRef = *bookingRef
	}
	return rec, nil
}
