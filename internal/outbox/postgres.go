package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository reads and updates the outbox table the ledger store
// writes into.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// PendingBatch returns the oldest pending messages. Concurrent relays may
// see the same rows; duplicate publishes are safe because delivery is
// at-least-once end to end.
func (r *PostgresRepository) PendingBatch(ctx context.Context, limit int) ([]Message, error) {
	rows, err := r.db.Query(ctx, `SELECT id, topic, message_key, payload, status, retry_count, created_at, updated_at
        FROM outbox WHERE status = 'pending'
        ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Key, &msg.Payload,
			&msg.Status, &msg.RetryCount, &msg.CreatedAt, &msg.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// MarkSent finalizes a published message.
func (r *PostgresRepository) MarkSent(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE outbox SET status = 'sent', updated_at = now() WHERE id = $1`, id)
	return err
}

// IncrementRetry bumps the retry counter after a failed publish.
func (r *PostgresRepository) IncrementRetry(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE outbox SET retry_count = retry_count + 1, updated_at = now() WHERE id = $1`, id)
	return err
}

// MarkFailed parks a message that exhausted its retries.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `UPDATE outbox SET status = 'failed', updated_at = now() WHERE id = $1`, id)
	return err
}
