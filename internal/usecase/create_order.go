package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// Orders is the orders service core: order creation, the order status state
// machine, inbox handlers, and the reminder/auto-cancel sweeps.
type Orders struct {
	txr      TxRunner
	orders   OrderRepo
	outbox   OutboxRepo
	menu     MenuClient
	payments PaymentsClient
	exchange string
	loc      *time.Location

	deliveryFeeCents int64
	deadlineBefore   time.Duration

	log *slog.Logger
}

type OrdersConfig struct {
	Exchange         string
	Location         *time.Location
	DeliveryFeeCents int64
	DeadlineBefore   time.Duration
}

func NewOrders(
	txr TxRunner,
	orders OrderRepo,
	outbox OutboxRepo,
	menu MenuClient,
	payments PaymentsClient,
	cfg OrdersConfig,
	log *slog.Logger,
) *Orders {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DeliveryFeeCents == 0 {
		cfg.DeliveryFeeCents = 100
	}
	if cfg.DeadlineBefore == 0 {
		cfg.DeadlineBefore = 40 * time.Minute
	}
	return &Orders{
		txr:              txr,
		orders:           orders,
		outbox:           outbox,
		menu:             menu,
		payments:         payments,
		exchange:         cfg.Exchange,
		loc:              cfg.Location,
		deliveryFeeCents: cfg.DeliveryFeeCents,
		deadlineBefore:   cfg.DeadlineBefore,
		log:              log,
	}
}

type OrderItemInput struct {
	MenuItemID int64             `json:"menu_item_id"`
	Quantity   int               `json:"quantity"`
	Options    map[string]string `json:"customisations"`
}

type CreateOrderInput struct {
	CustomerID    int64
	CustomerEmail string
	MerchantID    int64
	DeliveryTime  time.Time
	Building      string
	RoomType      string
	RoomNumber    string
	Items         []OrderItemInput
}

func (in CreateOrderInput) validate() error {
	if in.DeliveryTime.IsZero() {
		return fmt.Errorf("%w: delivery_time is required", ErrValidation)
	}
	if in.Building == "" || in.RoomType == "" || in.RoomNumber == "" {
		return fmt.Errorf("%w: destination is incomplete", ErrValidation)
	}
	if in.MerchantID <= 0 {
		return fmt.Errorf("%w: merchant_id is required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order_items must contain at least one item", ErrValidation)
	}
	for i, it := range in.Items {
		if it.MenuItemID <= 0 {
			return fmt.Errorf("%w: order_items[%d]: menu_item_id is required", ErrValidation, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: order_items[%d]: quantity must be a positive integer", ErrValidation, i)
		}
	}
	return nil
}

// ComputePricing sums integer cents; it never touches floating point.
func ComputePricing(items []entity.OrderItem, deliveryFeeCents int64) (entity.Amounts, error) {
	if len(items) == 0 {
		return entity.Amounts{}, entity.ErrNoItems
	}
	var subtotal int64
	for i, it := range items {
		if it.UnitPriceCents < 0 {
			return entity.Amounts{}, fmt.Errorf("item[%d]: unit price must be non-negative", i)
		}
		if it.Qty <= 0 {
			return entity.Amounts{}, fmt.Errorf("item[%d]: quantity must be positive", i)
		}
		subtotal += it.UnitPriceCents * int64(it.Qty)
	}
	return entity.Amounts{
		SubtotalCents:    subtotal,
		DeliveryFeeCents: deliveryFeeCents,
		TotalCents:       subtotal + deliveryFeeCents,
	}, nil
}

// CreateOrder quotes current prices, snapshots items, and writes the order row
// together with its order.created outbox event in one transaction. The payment
// row is then requested from the payments service; a failure there is logged
// and left for the payment flow to surface, it does not roll back the order.
func (u *Orders) CreateOrder(ctx context.Context, in CreateOrderInput) (*entity.Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	itemIDs := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		itemIDs = append(itemIDs, it.MenuItemID)
	}
	quotes, err := u.menu.QuoteItems(ctx, in.MerchantID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("quote menu items: %w", err)
	}

	snapshots := make([]entity.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		q, ok := quotes[it.MenuItemID]
		if !ok {
			return nil, fmt.Errorf("%w: menu item %d for merchant %d", ErrNotFound, it.MenuItemID, in.MerchantID)
		}
		if !q.Available {
			return nil, fmt.Errorf("%w: order_items[%d]: %q is currently unavailable", ErrValidation, i, q.Name)
		}
		opts := it.Options
		if opts == nil {
			opts = map[string]string{}
		}
		snapshots = append(snapshots, entity.OrderItem{
			MenuItemID:     it.MenuItemID,
			Name:           q.Name,
			UnitPriceCents: q.PriceCents,
			Qty:            it.Quantity,
			Options:        opts,
		})
	}

	amounts, err := ComputePricing(snapshots, u.deliveryFeeCents)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	order := &entity.Order{
		CustomerID:          in.CustomerID,
		CustomerEmail:       in.CustomerEmail,
		MerchantID:          in.MerchantID,
		Status:              entity.OrderAwaitingPayment,
		DeliveryTime:        in.DeliveryTime,
		PaymentDeadlineTime: in.DeliveryTime.Add(-u.deadlineBefore),
		Building:            in.Building,
		RoomType:            in.RoomType,
		RoomNumber:          in.RoomNumber,
		Amounts:             amounts,
		Items:               snapshots,
	}

	var created *entity.Order
	err = u.txr.WithTx(ctx, func(tx Tx) error {
		created, err = u.orders.Create(ctx, tx, order)
		if err != nil {
			return err
		}
		return u.enqueueOrderEvent(ctx, tx, KeyOrderCreated, created)
	})
	if err != nil {
		return nil, err
	}

	if err := u.payments.CreatePayment(ctx, created.ID, amounts.TotalCents, created.PaymentDeadlineTime); err != nil {
		u.log.Error("create payment failed", "order_id", created.ID, "err", err)
	}

	return created, nil
}

// enqueueOrderEvent appends routingKey with the full order snapshot to the
// outbox inside tx.
func (u *Orders) enqueueOrderEvent(ctx context.Context, tx Tx, routingKey string, order *entity.Order) error {
	payload, err := json.Marshal(OrderEventPayload{Order: order})
	if err != nil {
		return err
	}
	props, err := json.Marshal(BuildProperties(SourceOrder, u.loc))
	if err != nil {
		return err
	}
	return u.outbox.Enqueue(ctx, tx, &entity.OutboxEntry{
		RoutingKey: routingKey,
		Payload:    payload,
		Properties: props,
		Exchange:   u.exchange,
	})
}

// OrderFilter selects a slice of a customer's orders.
type OrderFilter string

const (
	OrderFilterAll     OrderFilter = ""
	OrderFilterActive  OrderFilter = "active"
	OrderFilterHistory OrderFilter = "history"
)

func (f OrderFilter) statuses() (include, exclude []entity.OrderStatus, err error) {
	switch f {
	case OrderFilterAll:
	case OrderFilterActive:
		exclude = []entity.OrderStatus{entity.OrderDelivered, entity.OrderCancelled}
	case OrderFilterHistory:
		include = []entity.OrderStatus{entity.OrderDelivered, entity.OrderCancelled}
	default:
		err = fmt.Errorf("%w: type %q (allowed: active, history)", ErrValidation, string(f))
	}
	return
}

func (u *Orders) ListOrders(ctx context.Context, customerID int64, filter OrderFilter, limit, offset int) ([]*entity.Order, error) {
	include, exclude, err := filter.statuses()
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	return u.orders.List(ctx, ListOrdersQuery{
		CustomerID: customerID,
		Include:    include,
		Exclude:    exclude,
		Limit:      limit,
		Offset:     offset,
	})
}

func (u *Orders) CountOrders(ctx context.Context, customerID int64, filter OrderFilter) (int, error) {
	include, exclude, err := filter.statuses()
	if err != nil {
		return 0, err
	}
	return u.orders.Count(ctx, ListOrdersQuery{
		CustomerID: customerID,
		Include:    include,
		Exclude:    exclude,
	})
}

func (u *Orders) GetOrder(ctx context.Context, id int64) (*entity.Order, error) {
	return u.orders.GetByID(ctx, id)
}
