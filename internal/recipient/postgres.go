package recipient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores payout accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get fetches the payout account for a user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (Account, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Account{}, fmt.Errorf("parse user id: %w", err)
	}

	row := r.db.QueryRow(ctx, `SELECT user_id, email, verified, updated_at
        FROM payout_recipients WHERE user_id = $1`, uid)

	var (
		account Account
		id      uuid.UUID
	)
	if err := row.Scan(&id, &account.Email, &account.Verified, &account.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotConfigured
		}
		return Account{}, err
	}
	account.UserID = id.String()
	return account, nil
}

// Upsert writes the single authoritative payout account row for a user.
func (r *PostgresRepository) Upsert(ctx context.Context, account Account) error {
	uid, err := uuid.Parse(account.UserID)
	if err != nil {
		return fmt.Errorf("parse user id: %w", err)
	}
	_, err = r.db.Exec(ctx, `INSERT INTO payout_recipients (user_id, email, verified, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE SET email = $2, verified = $3, updated_at = $4`,
		uid, account.Email, account.Verified, account.UpdatedAt.UTC())
	return err
}
