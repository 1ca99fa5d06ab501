package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

func sgt(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)
	return loc
}

func newTestOrders(t *testing.T) (*Orders, *fakeOrderRepo, *fakeOutbox, *fakePaymentsClient) {
	t.Helper()
	orders := newFakeOrderRepo()
	outbox := &fakeOutbox{}
	menu := &fakeMenuClient{quotes: map[int64]MenuItemQuote{
		1: {MenuItemID: 1, Name: "Chicken Rice", PriceCents: 450, Available: true},
		2: {MenuItemID: 2, Name: "Iced Milo", PriceCents: 180, Available: true},
		3: {MenuItemID: 3, Name: "Sold Out Laksa", PriceCents: 550, Available: false},
	}}
	pay := &fakePaymentsClient{}
	u := NewOrders(&fakeTxRunner{}, orders, outbox, menu, pay, OrdersConfig{
		Exchange: "chow.events",
		Location: sgt(t),
	}, discardLogger())
	return u, orders, outbox, pay
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID:    7,
		CustomerEmail: "jo@example.edu",
		MerchantID:    3,
		DeliveryTime:  time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC),
		Building:      "SCIS1",
		RoomType:      "Seminar Room",
		RoomNumber:    "3-1",
		Items: []OrderItemInput{
			{MenuItemID: 1, Quantity: 2},
			{MenuItemID: 2, Quantity: 1, Options: map[string]string{"ice": "less"}},
		},
	}
}

func TestComputePricing(t *testing.T) {
	t.Parallel()

	items := []entity.OrderItem{
		{UnitPriceCents: 450, Qty: 2},
		{UnitPriceCents: 180, Qty: 1},
	}
	amounts, err := ComputePricing(items, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1080), amounts.SubtotalCents)
	assert.Equal(t, int64(100), amounts.DeliveryFeeCents)
	assert.Equal(t, int64(1180), amounts.TotalCents)
	assert.NoError(t, amounts.Validate())

	_, err = ComputePricing(nil, 100)
	assert.Error(t, err)

	_, err = ComputePricing([]entity.OrderItem{{UnitPriceCents: -1, Qty: 1}}, 100)
	assert.Error(t, err)
}

func TestCreateOrder(t *testing.T) {
	u, _, outbox, pay := newTestOrders(t)

	order, err := u.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, entity.OrderAwaitingPayment, order.Status)
	assert.Equal(t, int64(1080), order.Amounts.SubtotalCents)
	assert.Equal(t, int64(100), order.Amounts.DeliveryFeeCents)
	assert.Equal(t, int64(1180), order.Amounts.TotalCents)
	assert.Equal(t, order.DeliveryTime.Add(-40*time.Minute), order.PaymentDeadlineTime)

	require.Len(t, order.Items, 2)
	assert.Equal(t, "Chicken Rice", order.Items[0].Name)
	assert.Equal(t, int64(450), order.Items[0].UnitPriceCents)

	assert.Equal(t, []string{KeyOrderCreated}, outbox.routingKeys())
	assert.Equal(t, []int64{order.ID}, pay.calls)
}

func TestCreateOrderValidation(t *testing.T) {
	u, _, _, _ := newTestOrders(t)

	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"zero quantity", func(in *CreateOrderInput) { in.Items[0].Quantity = 0 }},
		{"missing destination", func(in *CreateOrderInput) { in.Building = "" }},
		{"missing delivery time", func(in *CreateOrderInput) { in.DeliveryTime = time.Time{} }},
		{"missing merchant", func(in *CreateOrderInput) { in.MerchantID = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := u.CreateOrder(context.Background(), in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestCreateOrderUnavailableItem(t *testing.T) {
	u, _, outbox, _ := newTestOrders(t)

	in := validInput()
	in.Items = append(in.Items, OrderItemInput{MenuItemID: 3, Quantity: 1})
	_, err := u.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, outbox.entries)
}

func TestCreateOrderUnknownItem(t *testing.T) {
	u, _, _, _ := newTestOrders(t)

	in := validInput()
	in.Items[0].MenuItemID = 99
	_, err := u.CreateOrder(context.Background(), in)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateOrderSurvivesPaymentsOutage(t *testing.T) {
	u, _, _, pay := newTestOrders(t)
	pay.err = assert.AnError

	order, err := u.CreateOrder(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotZero(t, order.ID)
}
