package repo

import (
	"context"
	"database/sql"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type PostgresInboxRepo struct{ db *sql.DB }

func NewPostgresInboxRepo(db *sql.DB) *PostgresInboxRepo { return &PostgresInboxRepo{db: db} }

// Record inserts the message keyed on message_id. A duplicate is a clean
// no-op so redelivered messages can be acked without reprocessing.
func (r *PostgresInboxRepo) Record(ctx context.Context, e *entity.InboxEntry) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
INSERT INTO inbox (message_id, routing_key, payload, properties, status, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (message_id) DO NOTHING
RETURNING id, created_at`,
		e.MessageID, e.RoutingKey, []byte(e.Payload), []byte(e.Properties), entity.InboxReceived,
	)
	err := row.Scan(&e.ID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, translateErr(err)
	}
	e.Status = entity.InboxReceived
	return true, nil
}

// ClaimBatch works like the outbox claim: SKIP LOCKED, commit immediately,
// rows stay in received until a terminal mark.
func (r *PostgresInboxRepo) ClaimBatch(ctx context.Context, limit int) ([]*entity.InboxEntry, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
SELECT id, message_id, routing_key, payload, properties, status, created_at
FROM inbox
WHERE status=$1
ORDER BY id
LIMIT $2
FOR UPDATE SKIP LOCKED`, entity.InboxReceived, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*entity.InboxEntry
	for rows.Next() {
		var e entity.InboxEntry
		if err := rows.Scan(&e.ID, &e.MessageID, &e.RoutingKey, &e.Payload, &e.Properties, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, tx.Commit()
}

func (r *PostgresInboxRepo) MarkProcessed(ctx context.Context, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE inbox SET status=$2, processed_at=NOW() WHERE message_id=$1`,
		messageID, entity.InboxProcessed)
	return translateErr(err)
}

func (r *PostgresInboxRepo) MarkFailed(ctx context.Context, messageID, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE inbox SET status=$2, error_message=$3, processed_at=NOW() WHERE message_id=$1`,
		messageID, entity.InboxFailed, errMsg)
	return translateErr(err)
}

var _ usecase.InboxRepo = (*PostgresInboxRepo)(nil)
