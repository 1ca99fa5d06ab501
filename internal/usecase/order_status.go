package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// UpdateOrderStatus moves an order to the requested status and enqueues the
// matching order.status.<status> event in the same transaction. Setting the
// status an order already has succeeds without touching the row and without
// re-emitting the event.
func (u *Orders) UpdateOrderStatus(ctx context.Context, id int64, to entity.OrderStatus, extras StatusExtras) (*entity.Order, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q is not an order status", ErrInvalidStatus, to)
	}

	var out *entity.Order
	err := u.txr.WithTx(ctx, func(tx Tx) error {
		cur, err := u.orders.GetByIDTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if cur.Status == to {
			out = cur
			return nil
		}
		out, err = u.orders.UpdateStatus(ctx, tx, id, to, extras)
		if err != nil {
			return err
		}
		return u.enqueueOrderEvent(ctx, tx, KeyOrderStatusPrefix+"."+string(to), out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// allowedBySource limits which statuses each external caller may set.
// Sources absent from the table are denied outright; only admin bypasses it.
var allowedBySource = map[string]map[entity.OrderStatus]bool{
	SourceRunner: {
		entity.OrderDelivering: true,
		entity.OrderDelivered:  true,
	},
	SourceMerchant: {
		entity.OrderPreparing:          true,
		entity.OrderReadyForCollection: true,
	},
	SourcePayment: {
		entity.OrderPaymentVerified: true,
		entity.OrderCancelled:       true,
	},
}

// UpdateOrderStatusFrom applies the per-source restriction table before
// delegating to UpdateOrderStatus. A delivered status stamped by the runner
// records sentAt as the completion time.
func (u *Orders) UpdateOrderStatusFrom(ctx context.Context, source string, id int64, to entity.OrderStatus, sentAt time.Time) (*entity.Order, error) {
	if source != SourceAdmin && !allowedBySource[source][to] {
		return nil, fmt.Errorf("%w: source %q may not set status %q", ErrForbiddenTransition, source, to)
	}
	var extras StatusExtras
	if to == entity.OrderDelivered {
		if sentAt.IsZero() {
			return nil, fmt.Errorf("%w: delivered requires a sent_at timestamp", ErrValidation)
		}
		t := sentAt.In(u.loc)
		extras.DeliveryCompletedAt = &t
	}
	return u.UpdateOrderStatus(ctx, id, to, extras)
}
