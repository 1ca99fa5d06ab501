package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type PostgresOutboxRepo struct{ db *sql.DB }

func NewPostgresOutboxRepo(db *sql.DB) *PostgresOutboxRepo { return &PostgresOutboxRepo{db: db} }

func (r *PostgresOutboxRepo) Enqueue(ctx context.Context, tx usecase.Tx, e *entity.OutboxEntry) error {
	if tx == nil {
		return fmt.Errorf("outbox enqueue requires an open transaction")
	}
	return translateErr(tx.QueryRowContext(ctx, `
INSERT INTO outbox (routing_key, payload, properties, exchange, created_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id, created_at`,
		e.RoutingKey, []byte(e.Payload), []byte(e.Properties), e.Exchange,
	).Scan(&e.ID, &e.CreatedAt))
}

// ClaimBatch selects the oldest unpublished rows with SKIP LOCKED. The claim
// transaction commits immediately; rows stay claimable until MarkPublished,
// which is what makes the pipeline at-least-once.
func (r *PostgresOutboxRepo) ClaimBatch(ctx context.Context, limit int) ([]*entity.OutboxEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
SELECT id, routing_key, payload, properties, exchange, created_at
FROM outbox
WHERE published_at IS NULL
ORDER BY id
LIMIT $1
FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*entity.OutboxEntry
	for rows.Next() {
		var e entity.OutboxEntry
		if err := rows.Scan(&e.ID, &e.RoutingKey, &e.Payload, &e.Properties, &e.Exchange, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (r *PostgresOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE outbox SET published_at=NOW() WHERE id=$1 AND published_at IS NULL`, id)
	if err != nil {
		return translateErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

var _ usecase.OutboxRepo = (*PostgresOutboxRepo)(nil)
