package usecase

import (
	"context"
	"fmt"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// UpdatePaymentStatus moves a payment to the requested status, emitting a
// payment.status.<status> event in the same transaction. Re-applying the
// current status succeeds without re-emitting.
func (u *Payments) UpdatePaymentStatus(ctx context.Context, orderID int64, to entity.PaymentStatus) (*entity.Payment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q is not a payment status", ErrInvalidStatus, to)
	}
	var out *entity.Payment
	err := u.txr.WithTx(ctx, func(tx Tx) error {
		cur, err := u.payments.GetByOrderIDTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if cur.Status == to {
			out = cur
			return nil
		}
		out, err = u.payments.UpdateFields(ctx, tx, orderID, PaymentFields{Status: &to})
		if err != nil {
			return err
		}
		return u.enqueuePaymentStatusEvent(ctx, tx, out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// HandleInbox routes one claimed inbox row on the payments side. Commands come
// from the ingestion pipeline or an operator; the cancelled event only ever
// from the orders service.
func (u *Payments) HandleInbox(ctx context.Context, entry *entity.InboxEntry) error {
	props := DecodeProperties(entry.Properties)
	switch entry.RoutingKey {
	case KeyAddTransactionCmd:
		if err := requireSource(props, SourceIngest, SourceAdmin); err != nil {
			return err
		}
		return u.handleAddTransaction(ctx, entry.Payload)
	case KeyUploadScreenshotCmd:
		if err := requireSource(props, SourceIngest, SourceAdmin); err != nil {
			return err
		}
		return u.handleUploadScreenshot(ctx, entry.Payload)
	case KeyOrderCancelled:
		if err := requireSource(props, SourceOrder); err != nil {
			return err
		}
		return u.handleOrderCancelled(ctx, entry.Payload)
	default:
		return fmt.Errorf("%w: no payments handler for routing key %q", ErrValidation, entry.RoutingKey)
	}
}

func (u *Payments) handleAddTransaction(ctx context.Context, raw []byte) error {
	p, err := DecodePayload[TransactionPayload](raw)
	if err != nil {
		return err
	}
	_, err = u.AddTransaction(ctx, p)
	return err
}

func (u *Payments) handleUploadScreenshot(ctx context.Context, raw []byte) error {
	p, err := DecodePayload[ScreenshotPayload](raw)
	if err != nil {
		return err
	}
	_, err = u.UploadScreenshot(ctx, p)
	return err
}

// handleOrderCancelled settles the payment for a cancelled order: money
// already verified must flow back, anything else simply fails.
func (u *Payments) handleOrderCancelled(ctx context.Context, raw []byte) error {
	p, err := DecodePayload[OrderEventPayload](raw)
	if err != nil {
		return err
	}
	payment, err := u.payments.GetByOrderID(ctx, p.Order.ID)
	if err != nil {
		return err
	}
	next := entity.PaymentFailed
	if payment.Status == entity.PaymentVerified {
		next = entity.PaymentPendingRefund
	}
	_, err = u.UpdatePaymentStatus(ctx, p.Order.ID, next)
	return err
}
