package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type PostgresTransactionRepo struct{ db *sql.DB }

func NewPostgresTransactionRepo(db *sql.DB) *PostgresTransactionRepo {
	return &PostgresTransactionRepo{db: db}
}

func (r *PostgresTransactionRepo) Create(ctx context.Context, tx usecase.Tx, t *entity.Transaction) (*entity.Transaction, error) {
	row := tx.QueryRowContext(ctx, `
INSERT INTO transactions (transaction_ref, amount_cents, transaction_datetime, sender, receiver, created_at)
VALUES ($1,$2,$3,$4,$5,NOW())
RETURNING id, created_at`,
		t.TransactionRef, t.AmountCents, t.DateTime, t.Sender, t.Receiver,
	)
	if err := row.Scan(&t.ID, &t.CreatedAt); err != nil {
		return nil, translateErr(err)
	}
	return t, nil
}

func (r *PostgresTransactionRepo) GetByRef(ctx context.Context, ref string) (*entity.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx, `
SELECT id, transaction_ref, amount_cents, transaction_datetime, sender, receiver, created_at
FROM transactions WHERE transaction_ref=$1`, ref))
}

func (r *PostgresTransactionRepo) CandidatesNear(ctx context.Context, amountCents int64, at time.Time, window time.Duration) ([]*entity.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, transaction_ref, amount_cents, transaction_datetime, sender, receiver, created_at
FROM transactions
WHERE amount_cents=$1 AND transaction_datetime BETWEEN $2 AND $3
ORDER BY transaction_datetime, id`,
		amountCents, at.Add(-window), at.Add(window))
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*entity.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(row rowScanner) (*entity.Transaction, error) {
	var t entity.Transaction
	err := row.Scan(&t.ID, &t.TransactionRef, &t.AmountCents, &t.DateTime, &t.Sender, &t.Receiver, &t.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &t, nil
}

var _ usecase.TransactionRepo = (*PostgresTransactionRepo)(nil)
