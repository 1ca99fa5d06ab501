package usecase

import (
	"context"
	"database/sql"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// Tx intentionally aliases *sql.Tx so write paths run inside the caller's
// transaction without a hidden adapter layer.
type Tx = *sql.Tx

// TxRunner opens a transaction, runs fn, and commits or rolls back.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// StatusExtras are the whitelisted columns a status update may set atomically
// with the status itself.
type StatusExtras struct {
	CancelReasonCode    string
	DeliveryCompletedAt *time.Time
}

// ListOrdersQuery filters a customer's orders. Include and Exclude are
// mutually exclusive status filters.
type ListOrdersQuery struct {
	CustomerID int64
	Include    []entity.OrderStatus
	Exclude    []entity.OrderStatus
	Limit      int
	Offset     int
}

type OrderRepo interface {
	Create(ctx context.Context, tx Tx, o *entity.Order) (*entity.Order, error)
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetByIDTx(ctx context.Context, tx Tx, id int64) (*entity.Order, error)
	UpdateStatus(ctx context.Context, tx Tx, id int64, to entity.OrderStatus, extras StatusExtras) (*entity.Order, error)
	List(ctx context.Context, q ListOrdersQuery) ([]*entity.Order, error)
	Count(ctx context.Context, q ListOrdersQuery) (int, error)
	UnpaidOrderIDs(ctx context.Context, deliveryAt time.Time) ([]int64, error)
}

// PaymentFields is a partial update; nil means leave the column alone.
type PaymentFields struct {
	Status          *entity.PaymentStatus
	TransactionRef  *string
	TransactionAmt  *int64
	TransactionTime *time.Time
	ScreenshotURL   *string
	MatchedTxID     *int64
}

type PaymentRepo interface {
	Create(ctx context.Context, tx Tx, p *entity.Payment) (*entity.Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*entity.Payment, error)
	GetByOrderIDTx(ctx context.Context, tx Tx, orderID int64) (*entity.Payment, error)
	GetByTransactionRef(ctx context.Context, ref string) (*entity.Payment, error)
	UpdateFields(ctx context.Context, tx Tx, orderID int64, fields PaymentFields) (*entity.Payment, error)
	// CandidatesNear returns pending payments with the given linked
	// transaction amount whose linked transaction timestamp lies within
	// ±window of at.
	CandidatesNear(ctx context.Context, amountCents int64, at time.Time, window time.Duration) ([]*entity.Payment, error)
}

type TransactionRepo interface {
	Create(ctx context.Context, tx Tx, t *entity.Transaction) (*entity.Transaction, error)
	GetByRef(ctx context.Context, ref string) (*entity.Transaction, error)
	CandidatesNear(ctx context.Context, amountCents int64, at time.Time, window time.Duration) ([]*entity.Transaction, error)
}

type OutboxRepo interface {
	// Enqueue appends one event row inside an already-open transaction.
	// A nil tx is a programming error and fails immediately.
	Enqueue(ctx context.Context, tx Tx, e *entity.OutboxEntry) error
	// ClaimBatch selects up to limit unpublished rows in creation order with
	// FOR UPDATE SKIP LOCKED so concurrent publishers never double-claim
	// within the claim window.
	ClaimBatch(ctx context.Context, limit int) ([]*entity.OutboxEntry, error)
	MarkPublished(ctx context.Context, id int64) error
}

type InboxRepo interface {
	// Record durably inserts the message keyed on message id; a conflict is
	// a no-op and reports inserted=false.
	Record(ctx context.Context, e *entity.InboxEntry) (inserted bool, err error)
	ClaimBatch(ctx context.Context, limit int) ([]*entity.InboxEntry, error)
	MarkProcessed(ctx context.Context, messageID string) error
	MarkFailed(ctx context.Context, messageID, errMsg string) error
}

// MenuItemQuote is the menu service's answer for one item.
type MenuItemQuote struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Available  bool   `json:"available"`
}

// MenuClient quotes current menu prices; calls must carry a bounded timeout so
// a stuck menu service cannot starve a dispatcher batch.
type MenuClient interface {
	QuoteItems(ctx context.Context, merchantID int64, itemIDs []int64) (map[int64]MenuItemQuote, error)
}

// PaymentsClient asks the payments service to open a payment for a new order.
type PaymentsClient interface {
	CreatePayment(ctx context.Context, orderID, amountCents int64, deadline time.Time) error
}
