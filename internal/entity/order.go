package entity

import (
	"errors"
	"time"
)

type OrderStatus string

const (
	OrderAwaitingPayment      OrderStatus = "awaiting_payment"
	OrderAwaitingVerification OrderStatus = "awaiting_verification"
	OrderPaymentVerified      OrderStatus = "payment_verified"
	OrderPreparing            OrderStatus = "preparing"
	OrderReadyForCollection   OrderStatus = "ready_for_collection"
	OrderDelivering           OrderStatus = "delivering"
	OrderDelivered            OrderStatus = "delivered"
	OrderCompleted            OrderStatus = "completed"
	OrderCancelled            OrderStatus = "cancelled"
)

// CancelReasonUnpaid is stamped by the auto-cancel sweep.
const CancelReasonUnpaid = "UNPAID"

var orderStatuses = map[OrderStatus]struct{}{
	OrderAwaitingPayment:      {},
	OrderAwaitingVerification: {},
	OrderPaymentVerified:      {},
	OrderPreparing:            {},
	OrderReadyForCollection:   {},
	OrderDelivering:           {},
	OrderDelivered:            {},
	OrderCompleted:            {},
	OrderCancelled:            {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// Terminal reports whether no further transition is expected from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

var (
	ErrInvalidAmounts = errors.New("subtotal + delivery fee must equal total")
	ErrNoItems        = errors.New("order must contain at least one item")
)

// Amounts are integer cents throughout; no floating currency anywhere.
type Amounts struct {
	SubtotalCents    int64 `json:"food_amount_cents"`
	DeliveryFeeCents int64 `json:"delivery_fee_cents"`
	TotalCents       int64 `json:"total_amount_cents"`
}

func (a Amounts) Validate() error {
	if a.SubtotalCents < 0 || a.DeliveryFeeCents < 0 {
		return ErrInvalidAmounts
	}
	if a.SubtotalCents+a.DeliveryFeeCents != a.TotalCents {
		return ErrInvalidAmounts
	}
	return nil
}

// OrderItem is an immutable snapshot of a menu item taken at order time.
type OrderItem struct {
	ID             int64             `json:"-"`
	MenuItemID     int64             `json:"menuItemId"`
	Name           string            `json:"name"`
	UnitPriceCents int64             `json:"unitPriceCents"`
	Qty            int               `json:"qty"`
	Options        map[string]string `json:"options"`
}

type Order struct {
	ID                  int64       `json:"order_id"`
	CustomerID          int64       `json:"customer_id"`
	CustomerEmail       string      `json:"customer_email"`
	MerchantID          int64       `json:"merchant_id"`
	Status              OrderStatus `json:"order_status"`
	DeliveryTime        time.Time   `json:"delivery_time"`
	PaymentDeadlineTime time.Time   `json:"payment_deadline_time"`
	Building            string      `json:"building"`
	RoomType            string      `json:"room_type"`
	RoomNumber          string      `json:"room_number"`
	Amounts             Amounts     `json:"amounts"`
	CancelReasonCode    string      `json:"cancel_reason_code,omitempty"`
	DeliveryCompletedAt *time.Time  `json:"delivery_completion_time,omitempty"`
	Items               []OrderItem `json:"items"`
	CreatedAt           time.Time   `json:"created_time"`
	UpdatedAt           time.Time   `json:"updated_time"`
}
