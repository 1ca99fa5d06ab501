package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type PostgresPaymentRepo struct{ db *sql.DB }

func NewPostgresPaymentRepo(db *sql.DB) *PostgresPaymentRepo { return &PostgresPaymentRepo{db: db} }

const paymentColumns = `id, order_id, amount_cents, status, payment_reference,
payment_deadline, transaction_ref, transaction_amt, transaction_datetime,
screenshot_url, matching_transaction_id, created_at, updated_at`

func (r *PostgresPaymentRepo) Create(ctx context.Context, tx usecase.Tx, p *entity.Payment) (*entity.Payment, error) {
	row := tx.QueryRowContext(ctx, `
INSERT INTO payments (order_id, amount_cents, status, payment_reference, payment_deadline, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		p.OrderID, p.AmountCents, p.Status, p.Reference, p.Deadline,
	)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}
	return p, nil
}

func (r *PostgresPaymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*entity.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id=$1`, orderID))
}

func (r *PostgresPaymentRepo) GetByOrderIDTx(ctx context.Context, tx usecase.Tx, orderID int64) (*entity.Payment, error) {
	return scanPayment(tx.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id=$1 FOR UPDATE`, orderID))
}

func (r *PostgresPaymentRepo) GetByTransactionRef(ctx context.Context, ref string) (*entity.Payment, error) {
	return scanPayment(r.db.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_ref=$1`, ref))
}

func (r *PostgresPaymentRepo) UpdateFields(ctx context.Context, tx usecase.Tx, orderID int64, f usecase.PaymentFields) (*entity.Payment, error) {
	return scanPayment(tx.QueryRowContext(ctx, `
UPDATE payments SET
  status=COALESCE($2, status),
  transaction_ref=COALESCE($3, transaction_ref),
  transaction_amt=COALESCE($4, transaction_amt),
  transaction_datetime=COALESCE($5, transaction_datetime),
  screenshot_url=COALESCE($6, screenshot_url),
  matching_transaction_id=COALESCE($7, matching_transaction_id),
  updated_at=NOW()
WHERE order_id=$1
RETURNING `+paymentColumns,
		orderID, statusArg(f.Status), f.TransactionRef, f.TransactionAmt,
		f.TransactionTime, f.ScreenshotURL, f.MatchedTxID,
	))
}

func statusArg(s *entity.PaymentStatus) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func (r *PostgresPaymentRepo) CandidatesNear(ctx context.Context, amountCents int64, at time.Time, window time.Duration) ([]*entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+paymentColumns+` FROM payments
WHERE status=$1 AND transaction_amt=$2
  AND transaction_datetime BETWEEN $3 AND $4
ORDER BY transaction_datetime, id`,
		entity.PaymentPending, amountCents, at.Add(-window), at.Add(window))
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*entity.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (*entity.Payment, error) {
	var p entity.Payment
	var (
		txRef    sql.NullString
		txAmt    sql.NullInt64
		shotURL  sql.NullString
		txTime   sql.NullTime
		matchTID sql.NullInt64
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.AmountCents, &p.Status, &p.Reference,
		&p.Deadline, &txRef, &txAmt, &txTime,
		&shotURL, &matchTID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	p.TransactionRef = txRef.String
	p.TransactionAmt = txAmt.Int64
	if txTime.Valid {
		t := txTime.Time
		p.TransactionTime = &t
	}
	p.ScreenshotURL = shotURL.String
	if matchTID.Valid {
		id := matchTID.Int64
		p.MatchedTxID = &id
	}
	return &p, nil
}

var _ usecase.PaymentRepo = (*PostgresPaymentRepo)(nil)
