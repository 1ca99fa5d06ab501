package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// RunPaymentReminder collects the orders for the slot delivering at slotAt
// that are still awaiting payment and enqueues one reminder command carrying
// all of them. The inbox handler fans the command out to per-order emails, so
// a crash between here and there never loses or doubles a reminder.
func (u *Orders) RunPaymentReminder(ctx context.Context, slotAt time.Time) (int, error) {
	ids, err := u.orders.UnpaidOrderIDs(ctx, slotAt)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	payload, err := json.Marshal(ReminderPayload{OrderIDs: ids})
	if err != nil {
		return 0, err
	}
	props, err := json.Marshal(BuildProperties(SourceOrder, u.loc))
	if err != nil {
		return 0, err
	}
	err = u.txr.WithTx(ctx, func(tx Tx) error {
		return u.outbox.Enqueue(ctx, tx, &entity.OutboxEntry{
			RoutingKey: KeyPaymentReminderCmd,
			Payload:    payload,
			Properties: props,
			Exchange:   u.exchange,
		})
	})
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// RunAutoCancel cancels every order for the slot delivering at slotAt that is
// still awaiting payment, stamping the UNPAID reason code. Each cancellation
// runs in its own transaction so one failure does not hold back the rest.
func (u *Orders) RunAutoCancel(ctx context.Context, slotAt time.Time) (int, error) {
	ids, err := u.orders.UnpaidOrderIDs(ctx, slotAt)
	if err != nil {
		return 0, err
	}
	cancelled := 0
	for _, id := range ids {
		_, err := u.UpdateOrderStatus(ctx, id, entity.OrderCancelled, StatusExtras{
			CancelReasonCode: entity.CancelReasonUnpaid,
		})
		if err != nil {
			u.log.Error("auto-cancel failed", "order_id", id, "err", err)
			continue
		}
		cancelled++
	}
	return cancelled, nil
}
