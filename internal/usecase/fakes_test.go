package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// In-memory fakes for the storage and client ports. The fake tx runner hands
// the closure a nil *sql.Tx, which the fakes ignore.

type fakeTxRunner struct{ fail error }

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if f.fail != nil {
		return f.fail
	}
	return fn(nil)
}

type fakeOrderRepo struct {
	orders map[int64]*entity.Order
	nextID int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[int64]*entity.Order{}, nextID: 1}
}

func (f *fakeOrderRepo) Create(ctx context.Context, tx Tx, o *entity.Order) (*entity.Order, error) {
	o.ID = f.nextID
	f.nextID++
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	f.orders[o.ID] = &cp
	return o, nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) GetByIDTx(ctx context.Context, tx Tx, id int64) (*entity.Order, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, tx Tx, id int64, to entity.OrderStatus, extras StatusExtras) (*entity.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.Status = to
	if extras.CancelReasonCode != "" {
		o.CancelReasonCode = extras.CancelReasonCode
	}
	if extras.DeliveryCompletedAt != nil {
		o.DeliveryCompletedAt = extras.DeliveryCompletedAt
	}
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) List(ctx context.Context, q ListOrdersQuery) ([]*entity.Order, error) {
	var out []*entity.Order
	for _, o := range f.orders {
		if o.CustomerID == q.CustomerID && listMatch(o.Status, q) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func listMatch(s entity.OrderStatus, q ListOrdersQuery) bool {
	for _, ex := range q.Exclude {
		if s == ex {
			return false
		}
	}
	if len(q.Include) == 0 {
		return true
	}
	for _, in := range q.Include {
		if s == in {
			return true
		}
	}
	return false
}

func (f *fakeOrderRepo) Count(ctx context.Context, q ListOrdersQuery) (int, error) {
	out, _ := f.List(ctx, q)
	return len(out), nil
}

func (f *fakeOrderRepo) UnpaidOrderIDs(ctx context.Context, deliveryAt time.Time) ([]int64, error) {
	var ids []int64
	for id, o := range f.orders {
		if o.Status == entity.OrderAwaitingPayment && o.DeliveryTime.Equal(deliveryAt) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeOutbox struct {
	entries []*entity.OutboxEntry
	fail    error
}

func (f *fakeOutbox) Enqueue(ctx context.Context, tx Tx, e *entity.OutboxEntry) error {
	if f.fail != nil {
		return f.fail
	}
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeOutbox) ClaimBatch(ctx context.Context, limit int) ([]*entity.OutboxEntry, error) {
	return nil, nil
}

func (f *fakeOutbox) MarkPublished(ctx context.Context, id int64) error { return nil }

func (f *fakeOutbox) routingKeys() []string {
	keys := make([]string, len(f.entries))
	for i, e := range f.entries {
		keys[i] = e.RoutingKey
	}
	return keys
}

type fakePaymentRepo struct {
	payments map[int64]*entity.Payment // by order id
	nextID   int64
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[int64]*entity.Payment{}, nextID: 1}
}

func (f *fakePaymentRepo) Create(ctx context.Context, tx Tx, p *entity.Payment) (*entity.Payment, error) {
	if _, exists := f.payments[p.OrderID]; exists {
		return nil, ErrAlreadyExists
	}
	p.ID = f.nextID
	f.nextID++
	cp := *p
	f.payments[p.OrderID] = &cp
	return p, nil
}

func (f *fakePaymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*entity.Payment, error) {
	p, ok := f.payments[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepo) GetByOrderIDTx(ctx context.Context, tx Tx, orderID int64) (*entity.Payment, error) {
	return f.GetByOrderID(ctx, orderID)
}

func (f *fakePaymentRepo) GetByTransactionRef(ctx context.Context, ref string) (*entity.Payment, error) {
	for _, p := range f.payments {
		if p.TransactionRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakePaymentRepo) UpdateFields(ctx context.Context, tx Tx, orderID int64, fields PaymentFields) (*entity.Payment, error) {
	p, ok := f.payments[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	if fields.Status != nil {
		p.Status = *fields.Status
	}
	if fields.TransactionRef != nil {
		p.TransactionRef = *fields.TransactionRef
	}
	if fields.TransactionAmt != nil {
		p.TransactionAmt = *fields.TransactionAmt
	}
	if fields.TransactionTime != nil {
		p.TransactionTime = fields.TransactionTime
	}
	if fields.ScreenshotURL != nil {
		p.ScreenshotURL = *fields.ScreenshotURL
	}
	if fields.MatchedTxID != nil {
		p.MatchedTxID = fields.MatchedTxID
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentRepo) CandidatesNear(ctx context.Context, amountCents int64, at time.Time, window time.Duration) ([]*entity.Payment, error) {
	var out []*entity.Payment
	for _, p := range f.payments {
		if p.Status != entity.PaymentPending || p.TransactionAmt != amountCents || p.TransactionTime == nil {
			continue
		}
		d := p.TransactionTime.Sub(at)
		if d < 0 {
			d = -d
		}
		if d <= window {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeTransactionRepo struct {
	txs    map[string]*entity.Transaction // by ref
	nextID int64
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{txs: map[string]*entity.Transaction{}, nextID: 1}
}

func (f *fakeTransactionRepo) Create(ctx context.Context, tx Tx, t *entity.Transaction) (*entity.Transaction, error) {
	if _, exists := f.txs[t.TransactionRef]; exists {
		return nil, ErrAlreadyExists
	}
	t.ID = f.nextID
	f.nextID++
	cp := *t
	f.txs[t.TransactionRef] = &cp
	return t, nil
}

func (f *fakeTransactionRepo) GetByRef(ctx context.Context, ref string) (*entity.Transaction, error) {
	t, ok := f.txs[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransactionRepo) CandidatesNear(ctx context.Context, amountCents int64, at time.Time, window time.Duration) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	for _, t := range f.txs {
		if t.AmountCents != amountCents {
			continue
		}
		d := t.DateTime.Sub(at)
		if d < 0 {
			d = -d
		}
		if d <= window {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeMenuClient struct {
	quotes map[int64]MenuItemQuote
	err    error
}

func (f *fakeMenuClient) QuoteItems(ctx context.Context, merchantID int64, itemIDs []int64) (map[int64]MenuItemQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[int64]MenuItemQuote{}
	for _, id := range itemIDs {
		if q, ok := f.quotes[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}

type fakePaymentsClient struct {
	calls []int64
	err   error
}

func (f *fakePaymentsClient) CreatePayment(ctx context.Context, orderID, amountCents int64, deadline time.Time) error {
	f.calls = append(f.calls, orderID)
	return f.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal: %v", err))
	}
	return b
}
