package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// HandleInbox routes one claimed inbox row on the orders side. The dispatcher
// normalizes routing keys before lookup, so command keys arrive without their
// topic wildcards resolved.
func (u *Orders) HandleInbox(ctx context.Context, entry *entity.InboxEntry) error {
	props := DecodeProperties(entry.Properties)
	switch {
	case entry.RoutingKey == KeyStatusUpdateCmd:
		return u.handleStatusUpdate(ctx, entry.Payload, props)
	case entry.RoutingKey == KeyPaymentVerified:
		return u.handlePaymentVerified(ctx, entry.Payload, props)
	case entry.RoutingKey == KeyPaymentReminderCmd:
		return u.handlePaymentReminder(ctx, entry.Payload, props)
	default:
		return fmt.Errorf("%w: no orders handler for routing key %q", ErrValidation, entry.RoutingKey)
	}
}

func (u *Orders) handleStatusUpdate(ctx context.Context, raw json.RawMessage, props MessageProperties) error {
	p, err := DecodePayload[StatusUpdatePayload](raw)
	if err != nil {
		return err
	}
	source := strings.ToLower(props.Headers.SourceService)
	if source == "" {
		return fmt.Errorf("%w: missing sourceService header", ErrUnauthorizedSource)
	}
	_, err = u.UpdateOrderStatusFrom(ctx, source, p.OrderID, entity.OrderStatus(p.NewStatus), props.Headers.SentAtTime())
	return err
}

// handlePaymentVerified reacts to the payments service confirming payment.
// Only the payments service may emit this event; the header must say so.
func (u *Orders) handlePaymentVerified(ctx context.Context, raw json.RawMessage, props MessageProperties) error {
	if err := requireSource(props, SourcePayment, SourceAdmin); err != nil {
		return err
	}
	p, err := DecodePayload[StatusUpdatePayload](raw)
	if err != nil {
		return err
	}
	_, err = u.UpdateOrderStatusFrom(ctx, SourcePayment, p.OrderID, entity.OrderPaymentVerified, props.Headers.SentAtTime())
	return err
}

// handlePaymentReminder fans one reminder command out to one email command per
// order, enriched with the customer's email and payment deadline. The command
// originates from this service's own sweep, so order is an allowed source
// alongside payment and admin.
func (u *Orders) handlePaymentReminder(ctx context.Context, raw json.RawMessage, props MessageProperties) error {
	if err := requireSource(props, SourceOrder, SourcePayment, SourceAdmin); err != nil {
		return err
	}
	p, err := DecodePayload[ReminderPayload](raw)
	if err != nil {
		return err
	}
	var failed int
	for _, id := range p.OrderIDs {
		// One transaction per order so a bad row cannot block the rest.
		err := u.txr.WithTx(ctx, func(tx Tx) error {
			order, err := u.orders.GetByIDTx(ctx, tx, id)
			if err != nil {
				return err
			}
			if order.Status != entity.OrderAwaitingPayment {
				return nil
			}
			return u.enqueueReminderEmail(ctx, tx, order)
		})
		if err != nil {
			failed++
			u.log.Warn("reminder enqueue failed", "order_id", id, "err", err)
		}
	}
	if failed == len(p.OrderIDs) && failed > 0 {
		return fmt.Errorf("all %d reminder enqueues failed", failed)
	}
	return nil
}

func (u *Orders) enqueueReminderEmail(ctx context.Context, tx Tx, order *entity.Order) error {
	payload, err := json.Marshal(ReminderEmailPayload{
		OrderID:         order.ID,
		CustomerEmail:   order.CustomerEmail,
		PaymentDeadline: order.PaymentDeadlineTime.In(u.loc),
		TotalCents:      order.Amounts.TotalCents,
	})
	if err != nil {
		return err
	}
	props, err := json.Marshal(BuildProperties(SourceOrder, u.loc))
	if err != nil {
		return err
	}
	return u.outbox.Enqueue(ctx, tx, &entity.OutboxEntry{
		RoutingKey: KeyEmailReminder,
		Payload:    payload,
		Properties: props,
		Exchange:   u.exchange,
	})
}
