package usecase

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// Routing keys on the shared topic exchange.
const (
	KeyOrderCreated        = "order.created"
	KeyOrderStatusPrefix   = "order.status"   // order.status.<status>
	KeyPaymentStatusPrefix = "payment.status" // payment.status.<status>
	KeyOrderCancelled      = "order.status.cancelled"
	KeyPaymentVerified     = "payment.status.payment_verified"
	KeyEmailReminder       = "email.command.send_payment_reminder"
	KeyStatusUpdateCmd     = "order.command.status_update"
	KeyPaymentReminderCmd  = "order.command.payment_reminder"
	KeyUploadScreenshotCmd = "payment.command.upload_screenshot"
	KeyAddTransactionCmd   = "payment.command.add_transaction"
	KeyScreenshotProcessed = "payment.processed.screenshot"
)

// Queue bind patterns per service.
var (
	OrdersBindPatterns   = []string{"order.command.#", KeyPaymentVerified}
	PaymentsBindPatterns = []string{"payment.command.#", KeyOrderCancelled}
)

// Source service names carried in the sourceService header.
const (
	SourceOrder    = "order"
	SourcePayment  = "payment"
	SourceRunner   = "runner"
	SourceMerchant = "merchant"
	SourceAdmin    = "admin"
	SourceIngest   = "n8n"
)

// MessageHeaders travel in the AMQP headers table and in the stored
// properties JSON. SentAt is RFC3339 with offset.
type MessageHeaders struct {
	SourceService string `json:"sourceService"`
	SentAt        string `json:"sentAt"`
}

// MessageProperties is the envelope metadata stored alongside every outbox and
// inbox row. MessageID is the dedup key.
type MessageProperties struct {
	MessageID string         `json:"messageId"`
	Headers   MessageHeaders `json:"headers"`
}

// SentAtTime parses the sentAt header; zero time when absent or malformed.
func (h MessageHeaders) SentAtTime() time.Time {
	t, err := time.Parse(time.RFC3339, h.SentAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// BuildProperties stamps a fresh message id and sent-at for an outgoing event.
func BuildProperties(source string, loc *time.Location) MessageProperties {
	if loc == nil {
		loc = time.UTC
	}
	return MessageProperties{
		MessageID: uuid.NewString(),
		Headers: MessageHeaders{
			SourceService: source,
			SentAt:        time.Now().In(loc).Format(time.RFC3339),
		},
	}
}

// OrderEventPayload wraps the full order snapshot fanned out on order.created
// and order.status.<status> events.
type OrderEventPayload struct {
	Order *entity.Order `json:"order"`
}

func (p OrderEventPayload) Validate() error {
	if p.Order == nil || p.Order.ID <= 0 {
		return fmt.Errorf("%w: order with a positive id is required", ErrValidation)
	}
	return nil
}

// StatusUpdatePayload drives order.command.status_update and
// payment.status.<status> events.
type StatusUpdatePayload struct {
	OrderID   int64  `json:"orderId"`
	NewStatus string `json:"newStatus"`
}

func (p StatusUpdatePayload) Validate() error {
	if p.OrderID <= 0 {
		return fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	if !entity.OrderStatus(p.NewStatus).Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, p.NewStatus)
	}
	return nil
}

// ReminderPayload drives order.command.payment_reminder.
type ReminderPayload struct {
	OrderIDs []int64 `json:"orderIds"`
}

func (p ReminderPayload) Validate() error {
	if len(p.OrderIDs) == 0 {
		return fmt.Errorf("%w: orderIds must be non-empty", ErrValidation)
	}
	for _, id := range p.OrderIDs {
		if id <= 0 {
			return fmt.Errorf("%w: orderIds must be positive", ErrValidation)
		}
	}
	return nil
}

// ReminderEmailPayload is fanned out on email.command.send_payment_reminder,
// one message per unpaid order.
type ReminderEmailPayload struct {
	OrderID         int64     `json:"orderId"`
	CustomerEmail   string    `json:"customerEmail"`
	PaymentDeadline time.Time `json:"paymentDeadline"`
	TotalCents      int64     `json:"totalCents"`
}

// TransactionPayload drives payment.command.add_transaction.
type TransactionPayload struct {
	TransactionRef string `json:"transactionRef"`
	AmountCents    int64  `json:"amountCents"`
	DateTime       string `json:"dateTime"` // RFC3339
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
}

func (p TransactionPayload) Validate() error {
	if p.TransactionRef == "" || len(p.TransactionRef) > 100 {
		return fmt.Errorf("%w: transactionRef is required (max 100 chars)", ErrValidation)
	}
	if p.AmountCents < 1 {
		return fmt.Errorf("%w: amountCents must be positive", ErrValidation)
	}
	if _, err := time.Parse(time.RFC3339, p.DateTime); err != nil {
		return fmt.Errorf("%w: dateTime must be RFC3339: %v", ErrValidation, err)
	}
	if p.Sender == "" || p.Receiver == "" {
		return fmt.Errorf("%w: sender and receiver are required", ErrValidation)
	}
	return nil
}

// ScreenshotPayload drives payment.command.upload_screenshot. OCRText is the
// raw text already extracted from the image; the OCR engine itself lives
// outside this system.
type ScreenshotPayload struct {
	OrderID int64  `json:"orderId"`
	ImgURL  string `json:"imgUrl"`
	Bank    string `json:"bank"`
	OCRText string `json:"ocrText"`
}

func (p ScreenshotPayload) Validate() error {
	if p.OrderID <= 0 {
		return fmt.Errorf("%w: orderId is required", ErrValidation)
	}
	if p.ImgURL == "" {
		return fmt.Errorf("%w: imgUrl is required", ErrValidation)
	}
	if p.Bank == "" {
		return fmt.Errorf("%w: bank is required", ErrValidation)
	}
	return nil
}

// DecodePayload unmarshals an inbox payload into a typed message and runs its
// validation. Schema mismatch is a terminal validation error.
func DecodePayload[T interface{ Validate() error }](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// DecodeProperties tolerates missing or partial properties JSON; the headers
// simply come back zero-valued.
func DecodeProperties(raw json.RawMessage) MessageProperties {
	var p MessageProperties
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &p)
	}
	return p
}

// requireSource checks the envelope's sourceService header against the
// services allowed to emit a command. Missing or unlisted sources are
// rejected terminally. Comparison is case-insensitive.
func requireSource(props MessageProperties, allowed ...string) error {
	source := strings.ToLower(strings.TrimSpace(props.Headers.SourceService))
	if source == "" {
		return fmt.Errorf("%w: missing sourceService header", ErrUnauthorizedSource)
	}
	for _, a := range allowed {
		if source == a {
			return nil
		}
	}
	return fmt.Errorf("%w: source %q may not send this message", ErrUnauthorizedSource, source)
}
