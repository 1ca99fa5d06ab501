package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type PostgresOrderRepo struct{ db *sql.DB }

func NewPostgresOrderRepo(db *sql.DB) *PostgresOrderRepo { return &PostgresOrderRepo{db: db} }

const orderColumns = `id, customer_id, customer_email, merchant_id, status,
delivery_time, payment_deadline_time, building, room_type, room_number,
food_amount_cents, delivery_fee_cents, total_amount_cents,
cancel_reason_code, delivery_completion_time, created_at, updated_at`

func (r *PostgresOrderRepo) Create(ctx context.Context, tx usecase.Tx, o *entity.Order) (*entity.Order, error) {
	row := tx.QueryRowContext(ctx, `
INSERT INTO orders (customer_id, customer_email, merchant_id, status,
  delivery_time, payment_deadline_time, building, room_type, room_number,
  food_amount_cents, delivery_fee_cents, total_amount_cents, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW(),NOW())
RETURNING id, created_at, updated_at`,
		o.CustomerID, o.CustomerEmail, o.MerchantID, o.Status,
		o.DeliveryTime, o.PaymentDeadlineTime, o.Building, o.RoomType, o.RoomNumber,
		o.Amounts.SubtotalCents, o.Amounts.DeliveryFeeCents, o.Amounts.TotalCents,
	)
	if err := row.Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, translateErr(err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		opts, err := json.Marshal(it.Options)
		if err != nil {
			return nil, err
		}
		err = tx.QueryRowContext(ctx, `
INSERT INTO order_items (order_id, menu_item_id, name, unit_price_cents, qty, options)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id`,
			o.ID, it.MenuItemID, it.Name, it.UnitPriceCents, it.Qty, opts,
		).Scan(&it.ID)
		if err != nil {
			return nil, translateErr(err)
		}
	}
	return o, nil
}

func (r *PostgresOrderRepo) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.getByID(ctx, r.db, id, "")
}

// GetByIDTx locks the row so concurrent status updates (two racing sweeps,
// a sweep racing the bus) serialize instead of both passing the idempotency
// check and double-emitting.
func (r *PostgresOrderRepo) GetByIDTx(ctx context.Context, tx usecase.Tx, id int64) (*entity.Order, error) {
	return r.getByID(ctx, tx, id, " FOR UPDATE")
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *PostgresOrderRepo) getByID(ctx context.Context, q querier, id int64, lock string) (*entity.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`+lock, id)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	o.Items, err = r.loadItems(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresOrderRepo) loadItems(ctx context.Context, q querier, orderID int64) ([]entity.OrderItem, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, menu_item_id, name, unit_price_cents, qty, options
FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var items []entity.OrderItem
	for rows.Next() {
		var it entity.OrderItem
		var opts []byte
		if err := rows.Scan(&it.ID, &it.MenuItemID, &it.Name, &it.UnitPriceCents, &it.Qty, &opts); err != nil {
			return nil, err
		}
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &it.Options); err != nil {
				return nil, fmt.Errorf("order item %d options: %w", it.ID, err)
			}
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresOrderRepo) UpdateStatus(ctx context.Context, tx usecase.Tx, id int64, to entity.OrderStatus, extras usecase.StatusExtras) (*entity.Order, error) {
	row := tx.QueryRowContext(ctx, `
UPDATE orders SET status=$2,
  cancel_reason_code=COALESCE(NULLIF($3,''), cancel_reason_code),
  delivery_completion_time=COALESCE($4, delivery_completion_time),
  updated_at=NOW()
WHERE id=$1
RETURNING `+orderColumns,
		id, to, extras.CancelReasonCode, extras.DeliveryCompletedAt,
	)
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	o.Items, err = r.loadItems(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *PostgresOrderRepo) List(ctx context.Context, q usecase.ListOrdersQuery) ([]*entity.Order, error) {
	where, args := listWhere(q)
	args = append(args, q.Limit, q.Offset)
	rows, err := r.db.QueryContext(ctx, `
SELECT `+orderColumns+` FROM orders `+where+`
ORDER BY delivery_time DESC, id DESC
LIMIT $`+fmt.Sprint(len(args)-1)+` OFFSET $`+fmt.Sprint(len(args)), args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*entity.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, o := range out {
		if o.Items, err = r.loadItems(ctx, r.db, o.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *PostgresOrderRepo) Count(ctx context.Context, q usecase.ListOrdersQuery) (int, error) {
	where, args := listWhere(q)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&n)
	return n, translateErr(err)
}

func (r *PostgresOrderRepo) UnpaidOrderIDs(ctx context.Context, deliveryAt time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id FROM orders
WHERE status=$1 AND delivery_time=$2
ORDER BY id`, entity.OrderAwaitingPayment, deliveryAt)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func listWhere(q usecase.ListOrdersQuery) (string, []any) {
	clauses := []string{"customer_id=$1"}
	args := []any{q.CustomerID}
	if len(q.Include) > 0 {
		args = append(args, pq.Array(statusStrings(q.Include)))
		clauses = append(clauses, fmt.Sprintf("status=ANY($%d)", len(args)))
	}
	if len(q.Exclude) > 0 {
		args = append(args, pq.Array(statusStrings(q.Exclude)))
		clauses = append(clauses, fmt.Sprintf("status<>ALL($%d)", len(args)))
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func statusStrings(ss []entity.OrderStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

type rowScanner interface{ Scan(dest ...any) error }

func scanOrder(row rowScanner) (*entity.Order, error) {
	var o entity.Order
	var cancelReason sql.NullString
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerEmail, &o.MerchantID, &o.Status,
		&o.DeliveryTime, &o.PaymentDeadlineTime, &o.Building, &o.RoomType, &o.RoomNumber,
		&o.Amounts.SubtotalCents, &o.Amounts.DeliveryFeeCents, &o.Amounts.TotalCents,
		&cancelReason, &o.DeliveryCompletedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err)
	}
	o.CancelReasonCode = cancelReason.String
	return &o, nil
}

var _ usecase.OrderRepo = (*PostgresOrderRepo)(nil)
