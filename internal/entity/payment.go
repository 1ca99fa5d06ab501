package entity

import (
	"fmt"
	"time"
)

type PaymentStatus string

const (
	PaymentPending       PaymentStatus = "pending"
	PaymentVerified      PaymentStatus = "payment_verified"
	PaymentFailed        PaymentStatus = "failed"
	PaymentPendingRefund PaymentStatus = "pending_refund"
	PaymentRefunded      PaymentStatus = "refunded"
)

var paymentStatuses = map[PaymentStatus]struct{}{
	PaymentPending:       {},
	PaymentVerified:      {},
	PaymentFailed:        {},
	PaymentPendingRefund: {},
	PaymentRefunded:      {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentStatuses[s]
	return ok
}

// ReferencePrefix prefixes every payment reference shown to customers and
// carried through bank transfers.
const ReferencePrefix = "CHOW"

// PaymentReference derives the deterministic reference for an order.
func PaymentReference(orderID int64) string {
	return fmt.Sprintf("%s%d", ReferencePrefix, orderID)
}

// Payment is one-to-one with an order; order_id is unique in storage.
type Payment struct {
	ID              int64         `json:"id"`
	OrderID         int64         `json:"order_id"`
	AmountCents     int64         `json:"amount_cents"`
	Status          PaymentStatus `json:"payment_status"`
	Reference       string        `json:"payment_reference"`
	Deadline        time.Time     `json:"payment_deadline"`
	TransactionRef  string        `json:"transaction_ref,omitempty"`
	TransactionAmt  int64         `json:"transaction_amt,omitempty"`
	TransactionTime *time.Time    `json:"transaction_datetime,omitempty"`
	ScreenshotURL   string        `json:"screenshot_url,omitempty"`
	MatchedTxID     *int64        `json:"matching_transaction_id,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
