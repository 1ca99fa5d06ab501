package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase/ocrtext"
)

// Payments is the payments service core: payment records, screenshot intake,
// bank transaction intake, and reconciliation between the two.
type Payments struct {
	txr      TxRunner
	payments PaymentRepo
	txs      TransactionRepo
	outbox   OutboxRepo
	exchange string
	loc      *time.Location
	log      *slog.Logger
}

func NewPayments(
	txr TxRunner,
	payments PaymentRepo,
	txs TransactionRepo,
	outbox OutboxRepo,
	exchange string,
	loc *time.Location,
	log *slog.Logger,
) *Payments {
	if loc == nil {
		loc = time.UTC
	}
	return &Payments{
		txr:      txr,
		payments: payments,
		txs:      txs,
		outbox:   outbox,
		exchange: exchange,
		loc:      loc,
		log:      log,
	}
}

// CreatePayment opens the pending payment row for a freshly created order.
// One payment per order: a second call for the same order fails with
// ErrAlreadyExists from the unique constraint.
func (u *Payments) CreatePayment(ctx context.Context, orderID, amountCents int64, deadline time.Time) (*entity.Payment, error) {
	if orderID <= 0 {
		return nil, fmt.Errorf("%w: order_id is required", ErrValidation)
	}
	if amountCents < 1 {
		return nil, fmt.Errorf("%w: amount_cents must be positive", ErrValidation)
	}
	p := &entity.Payment{
		OrderID:     orderID,
		AmountCents: amountCents,
		Status:      entity.PaymentPending,
		Reference:   entity.PaymentReference(orderID),
		Deadline:    deadline,
	}
	var created *entity.Payment
	err := u.txr.WithTx(ctx, func(tx Tx) error {
		var err error
		created, err = u.payments.Create(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (u *Payments) GetPayment(ctx context.Context, orderID int64) (*entity.Payment, error) {
	return u.payments.GetByOrderID(ctx, orderID)
}

// UploadScreenshot records a customer's bank transfer screenshot against
// their payment. The OCR text is parsed for reference, amount, and timestamp;
// if a bank transaction already ingested matches, the payment is verified and
// linked in the same transaction. An amount mismatch keeps only the
// screenshot URL so staff can review by hand. Either way the screenshot is
// acknowledged with a payment.processed.screenshot event.
func (u *Payments) UploadScreenshot(ctx context.Context, in ScreenshotPayload) (*entity.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	payment, err := u.payments.GetByOrderID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	extract := ocrtext.Extract(in.Bank, in.OCRText, u.loc)

	fields := PaymentFields{ScreenshotURL: &in.ImgURL}
	matched := (*entity.Transaction)(nil)
	if extract.AmountCents == payment.AmountCents {
		if extract.Ref != "" {
			fields.TransactionRef = &extract.Ref
		}
		fields.TransactionAmt = &extract.AmountCents
		if !extract.At.IsZero() {
			at := extract.At
			fields.TransactionTime = &at
		}
		matched, err = u.findMatchingTransaction(ctx, extract.Ref, extract.AmountCents, extract.At)
		if err != nil {
			return nil, err
		}
	} else {
		u.log.Warn("screenshot amount mismatch",
			"order_id", in.OrderID,
			"expected_cents", payment.AmountCents,
			"ocr_cents", extract.AmountCents)
	}

	var updated *entity.Payment
	err = u.txr.WithTx(ctx, func(tx Tx) error {
		if matched != nil {
			verified := entity.PaymentVerified
			fields.Status = &verified
			fields.MatchedTxID = &matched.ID
		}
		updated, err = u.payments.UpdateFields(ctx, tx, in.OrderID, fields)
		if err != nil {
			return err
		}
		if matched != nil && payment.Status != entity.PaymentVerified {
			if err := u.enqueuePaymentStatusEvent(ctx, tx, updated); err != nil {
				return err
			}
		}
		return u.enqueueScreenshotProcessed(ctx, tx, updated, matched != nil)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AddTransaction ingests one bank statement line. Transactions are immutable;
// re-sending the same reference is reported as ErrAlreadyExists. When a
// pending payment with the same amount sits inside the match window, it is
// verified and linked in the same transaction as the insert.
func (u *Payments) AddTransaction(ctx context.Context, in TransactionPayload) (*entity.Transaction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339, in.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%w: dateTime: %v", ErrValidation, err)
	}
	at = at.In(u.loc)

	candidate, err := u.findMatchingPayment(ctx, in.TransactionRef, in.AmountCents, at)
	if err != nil {
		return nil, err
	}

	var created *entity.Transaction
	err = u.txr.WithTx(ctx, func(tx Tx) error {
		created, err = u.txs.Create(ctx, tx, &entity.Transaction{
			TransactionRef: in.TransactionRef,
			AmountCents:    in.AmountCents,
			DateTime:       at,
			Sender:         in.Sender,
			Receiver:       in.Receiver,
		})
		if err != nil {
			return err
		}
		if candidate == nil {
			return nil
		}
		verified := entity.PaymentVerified
		updated, err := u.payments.UpdateFields(ctx, tx, candidate.OrderID, PaymentFields{
			Status:      &verified,
			MatchedTxID: &created.ID,
		})
		if err != nil {
			return err
		}
		return u.enqueuePaymentStatusEvent(ctx, tx, updated)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (u *Payments) enqueuePaymentStatusEvent(ctx context.Context, tx Tx, p *entity.Payment) error {
	payload, err := json.Marshal(StatusUpdatePayload{
		OrderID:   p.OrderID,
		NewStatus: string(p.Status),
	})
	if err != nil {
		return err
	}
	props, err := json.Marshal(BuildProperties(SourcePayment, u.loc))
	if err != nil {
		return err
	}
	return u.outbox.Enqueue(ctx, tx, &entity.OutboxEntry{
		RoutingKey: KeyPaymentStatusPrefix + "." + string(p.Status),
		Payload:    payload,
		Properties: props,
		Exchange:   u.exchange,
	})
}

// ScreenshotProcessedPayload acknowledges a screenshot upload downstream,
// whether or not it produced a verification.
type ScreenshotProcessedPayload struct {
	OrderID       int64  `json:"orderId"`
	PaymentStatus string `json:"paymentStatus"`
	Matched       bool   `json:"matched"`
	ImgURL        string `json:"imgUrl"`
}

func (u *Payments) enqueueScreenshotProcessed(ctx context.Context, tx Tx, p *entity.Payment, matched bool) error {
	payload, err := json.Marshal(ScreenshotProcessedPayload{
		OrderID:       p.OrderID,
		PaymentStatus: string(p.Status),
		Matched:       matched,
		ImgURL:        p.ScreenshotURL,
	})
	if err != nil {
		return err
	}
	props, err := json.Marshal(BuildProperties(SourcePayment, u.loc))
	if err != nil {
		return err
	}
	return u.outbox.Enqueue(ctx, tx, &entity.OutboxEntry{
		RoutingKey: KeyScreenshotProcessed,
		Payload:    payload,
		Properties: props,
		Exchange:   u.exchange,
	})
}
