package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/queue"
)

func orderInput(typ model.Department, lines ...OrderLineInput) OrderInput {
	return OrderInput{
		Type:     typ,
		Items:    lines,
		Payment:  OrderPaymentInput{Method: model.OrderPayRoomCharge},
		Delivery: DeliveryInput{Type: model.DeliveryRoomService, Location: "A12"},
	}
}

func (f *fixture) order(t *testing.T, owner *authz.Identity, it model.Item, qty int) model.Order {
	t.Helper()
	o, err := f.orders.Create(context.Background(), owner, orderInput(it.Type, OrderLineInput{ItemID: it.ID, Quantity: qty}))
	require.NoError(t, err)
	return o
}

func TestCreateOrderHappyPath(t *testing.T) {
	f := newFixture(t)
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)

	o := f.order(t, voyager, pasta, 2)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, "20.00", o.Pricing.Subtotal.StringFixed(2))
	assert.Equal(t, "1.60", o.Pricing.Tax.StringFixed(2))
	assert.Equal(t, "3.00", o.Pricing.ServiceCharge.StringFixed(2))
	assert.Equal(t, "0.00", o.Pricing.Discount.StringFixed(2))
	assert.Equal(t, "24.60", o.Pricing.Total.StringFixed(2))
	assert.Equal(t, "ORD", o.OrderNumber[:3])
	require.Len(t, o.Lines, 1)
	assert.Equal(t, "Pasta", o.Lines[0].Name)
	assert.Equal(t, "20.00", o.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, 2, o.TotalItems())
	assert.Equal(t, []string{queue.OrderCreated}, f.events.types())
}

func TestCreateOrderRejectsUnavailableItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soup := f.item(t, "Soup", model.DeptCatering, "5.00", nil)
	_, err := f.catalog.SetAvailability(ctx, manager, soup.ID, "unavailable")
	require.NoError(t, err)

	_, err = f.orders.Create(ctx, voyager, orderInput(model.DeptCatering, OrderLineInput{ItemID: soup.ID, Quantity: 1}))
	assert.Equal(t, apperr.ItemUnavailable, kindOf(t, err))

	_, err = f.catalog.SetAvailability(ctx, manager, soup.ID, "limited")
	require.NoError(t, err)
	_, err = f.orders.Create(ctx, voyager, orderInput(model.DeptCatering, OrderLineInput{ItemID: soup.ID, Quantity: 1}))
	assert.Equal(t, apperr.ItemUnavailable, kindOf(t, err))

	_, err = f.orders.Create(ctx, voyager, orderInput(model.DeptCatering, OrderLineInput{ItemID: 999, Quantity: 1}))
	assert.Equal(t, apperr.ItemNotFound, kindOf(t, err))

	rows, total, err := f.store.Orders().List(ctx, model.OrderFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pen := f.item(t, "Pen", model.DeptStationery, "2.50", nil)

	_, err := f.orders.Create(ctx, voyager, OrderInput{Type: "spa"})
	require.Equal(t, apperr.Validation, kindOf(t, err))

	_, err = f.orders.Create(ctx, voyager, orderInput(model.DeptCatering, OrderLineInput{ItemID: pen.ID, Quantity: 1}))
	require.Equal(t, apperr.Validation, kindOf(t, err))
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "items[0].item_id", ae.Fields[0].Field)

	_, err = f.orders.Create(ctx, voyager, orderInput(model.DeptStationery, OrderLineInput{ItemID: pen.ID, Quantity: 0}))
	assert.Equal(t, apperr.Validation, kindOf(t, err))

	f.orders.opts.RequireBooking = true
	_, err = f.orders.Create(ctx, voyager, orderInput(model.DeptStationery, OrderLineInput{ItemID: pen.ID, Quantity: 1}))
	assert.Equal(t, apperr.Validation, kindOf(t, err))
}

func TestCreateOrderBookingLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pen := f.item(t, "Pen", model.DeptStationery, "2.50", nil)
	b := f.booking(t, voyager, "AUR-01")

	in := orderInput(model.DeptStationery, OrderLineInput{ItemID: pen.ID, Quantity: 1})
	in.BookingID = &b.ID
	o, err := f.orders.Create(ctx, voyager, in)
	require.NoError(t, err)
	require.NotNil(t, o.BookingID)
	assert.Equal(t, b.ID, *o.BookingID)

	_, err = f.orders.Create(ctx, voyager2, in)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))

	_, err = f.bookings.Cancel(ctx, voyager, b.ID, "")
	require.NoError(t, err)
	_, err = f.orders.Create(ctx, voyager, in)
	assert.Equal(t, apperr.Validation, kindOf(t, err))
}

func TestCreateOrderReservesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pen := f.item(t, "Pen", model.DeptStationery, "2.50", intPtr(3))

	_, err := f.orders.Create(ctx, voyager, orderInput(model.DeptStationery,
		OrderLineInput{ItemID: pen.ID, Quantity: 2},
		OrderLineInput{ItemID: pen.ID, Quantity: 2},
	))
	assert.Equal(t, apperr.ItemUnavailable, kindOf(t, err))

	f.order(t, voyager, pen, 3)
	it, err := f.catalog.Get(ctx, pen.ID)
	require.NoError(t, err)
	require.NotNil(t, it.Stock)
	assert.Equal(t, 0, *it.Stock)
	assert.Equal(t, model.Unavailable, it.Availability)

	_, err = f.orders.Create(ctx, voyager2, orderInput(model.DeptStationery, OrderLineInput{ItemID: pen.ID, Quantity: 1}))
	assert.Equal(t, apperr.ItemUnavailable, kindOf(t, err))
}

func TestOrderPriceSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	o := f.order(t, voyager, pasta, 2)

	_, err := f.catalog.Update(ctx, manager, pasta.ID, ItemInput{
		Name:     "Pasta Deluxe",
		Type:     model.DeptCatering,
		Category: "main-course",
		Price:    decimal.RequireFromString("99.99"),
	})
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, headCook, o.ID, "preparing", "")
	require.NoError(t, err)

	got, err := f.orders.Get(ctx, voyager, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pasta", got.Lines[0].Name)
	assert.Equal(t, "10.00", got.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "20.00", got.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "24.60", got.Pricing.Total.StringFixed(2))
	assert.True(t, got.Pricing.Total.Equal(got.Pricing.Subtotal.Add(got.Pricing.Tax).Add(got.Pricing.ServiceCharge).Sub(got.Pricing.Discount)))
}

func TestListAllOrdersIsScopedByDesk(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	pen := f.item(t, "Pen", model.DeptStationery, "2.50", nil)
	f.order(t, voyager, pasta, 1)
	f.order(t, voyager2, pasta, 1)
	f.order(t, voyager, pen, 1)

	for _, typ := range []string{"", "stationery", "catering"} {
		page, err := f.orders.ListAll(ctx, headCook, OrderQuery{Type: typ})
		require.NoError(t, err)
		require.Len(t, page.Data, 2, "type filter %q", typ)
		for _, o := range page.Data {
			assert.Equal(t, model.DeptCatering, o.Type)
		}
	}

	page, err := f.orders.ListAll(ctx, super, OrderQuery{})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, model.DeptStationery, page.Data[0].Type)

	page, err = f.orders.ListAll(ctx, manager, OrderQuery{})
	require.NoError(t, err)
	assert.Len(t, page.Data, 3)
	page, err = f.orders.ListAll(ctx, admin, OrderQuery{Type: "stationery"})
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)

	_, err = f.orders.ListAll(ctx, voyager, OrderQuery{})
	assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
	_, err = f.orders.ListAll(ctx, manager, OrderQuery{Status: "shipped"})
	assert.Equal(t, apperr.InvalidStatus, kindOf(t, err))
	_, err = f.orders.ListAll(ctx, manager, OrderQuery{Type: "spa"})
	assert.Equal(t, apperr.Validation, kindOf(t, err))
}

func TestListMineOnlyReturnsOwnOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	pen := f.item(t, "Pen", model.DeptStationery, "2.50", nil)
	f.order(t, voyager, pasta, 1)
	f.order(t, voyager, pen, 1)
	f.order(t, voyager2, pasta, 1)

	for _, q := range []OrderQuery{{}, {Type: "catering"}, {Status: "pending"}, {Status: "processing"}} {
		page, err := f.orders.ListMine(ctx, voyager, q)
		require.NoError(t, err)
		for _, o := range page.Data {
			assert.Equal(t, voyager.UserID, o.UserID)
		}
	}
	page, err := f.orders.ListMine(ctx, voyager, OrderQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Total)
}

func TestGetOrderMasksForeignOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	o := f.order(t, voyager, pasta, 1)

	for _, id := range []*authz.Identity{voyager2, super} {
		_, err := f.orders.Get(ctx, id, o.ID)
		assert.Equal(t, apperr.NotFound, kindOf(t, err), "role %s", id.Role)
	}
	for _, id := range []*authz.Identity{voyager, headCook, manager, admin} {
		_, err := f.orders.Get(ctx, id, o.ID)
		assert.NoError(t, err, "role %s", id.Role)
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	o := f.order(t, voyager, pasta, 1)

	_, err := f.orders.UpdateStatus(ctx, voyager, o.ID, "preparing", "")
	assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
	_, err = f.orders.UpdateStatus(ctx, headCook, o.ID, "baking", "")
	assert.Equal(t, apperr.InvalidStatus, kindOf(t, err))
	_, err = f.orders.UpdateStatus(ctx, super, o.ID, "preparing", "")
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
	_, err = f.orders.UpdateStatus(ctx, headCook, o.ID, "ready", "")
	assert.Equal(t, apperr.InvalidTransition, kindOf(t, err))

	got, err := f.orders.UpdateStatus(ctx, headCook, o.ID, "processing", "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderPreparing, got.Status)
	_, err = f.orders.UpdateStatus(ctx, headCook, o.ID, "ready", "")
	require.NoError(t, err)
	got, err = f.orders.UpdateStatus(ctx, manager, o.ID, "delivered", "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, got.Status)
	require.NotNil(t, got.Delivery.DeliveredAt)

	for _, next := range []string{"pending", "preparing", "ready", "cancelled"} {
		_, err = f.orders.UpdateStatus(ctx, admin, o.ID, next, "")
		assert.Equal(t, apperr.InvalidTransition, kindOf(t, err), next)
	}
	_, err = f.orders.Cancel(ctx, voyager, o.ID, "")
	assert.Equal(t, apperr.InvalidTransition, kindOf(t, err))

	assert.Equal(t, []string{queue.OrderCreated, queue.OrderStatusChanged, queue.OrderStatusChanged, queue.OrderStatusChanged}, f.events.types())
}

func TestRoomServiceWorkflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.orders.opts.Workflow = model.RoomServiceWorkflow
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	o := f.order(t, voyager, pasta, 1)

	for _, step := range []model.OrderStatus{model.OrderConfirmed, model.OrderInProgress, model.OrderReady, model.OrderCompleted} {
		got, err := f.orders.UpdateStatus(ctx, manager, o.ID, string(step), "")
		require.NoError(t, err)
		assert.Equal(t, step, got.Status)
	}
	_, err := f.orders.UpdateStatus(ctx, manager, o.ID, "processing", "")
	assert.Equal(t, apperr.InvalidStatus, kindOf(t, err))
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	o := f.order(t, voyager, pasta, 2)

	_, err := f.orders.Cancel(ctx, voyager2, o.ID, "")
	assert.Equal(t, apperr.NotFound, kindOf(t, err))

	stored, err := f.store.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	stored.Payment.Status = model.PaymentPaid
	require.NoError(t, f.store.Orders().Update(ctx, &stored))

	got, err := f.orders.Cancel(ctx, voyager, o.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancellationReason)
	assert.Equal(t, model.PaymentRefunded, got.Payment.Status)
	assert.Equal(t, "24.60", got.RefundAmount.StringFixed(2))

	_, err = f.orders.Cancel(ctx, voyager, o.ID, "")
	assert.Equal(t, apperr.InvalidTransition, kindOf(t, err))

	ready := f.order(t, voyager, pasta, 1)
	_, err = f.orders.UpdateStatus(ctx, headCook, ready.ID, "preparing", "")
	require.NoError(t, err)
	_, err = f.orders.UpdateStatus(ctx, headCook, ready.ID, "ready", "")
	require.NoError(t, err)
	got, err = f.orders.Cancel(ctx, voyager, ready.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCancelled, got.Status)

	done := f.order(t, voyager, pasta, 1)
	for _, st := range []string{"preparing", "ready", "completed"} {
		_, err = f.orders.UpdateStatus(ctx, headCook, done.ID, st, "")
		require.NoError(t, err)
	}
	_, err = f.orders.Cancel(ctx, voyager, done.ID, "")
	assert.Equal(t, apperr.InvalidTransition, kindOf(t, err))

	pending := f.order(t, voyager, pasta, 1)
	got, err = f.orders.UpdateStatus(ctx, headCook, pending.ID, "cancelled", "kitchen closed")
	require.NoError(t, err)
	assert.Equal(t, "kitchen closed", got.CancellationReason)
	assert.True(t, got.RefundAmount.IsZero())
}

func TestOrderStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pasta := f.item(t, "Pasta", model.DeptCatering, "10.00", nil)
	f.order(t, voyager, pasta, 2)
	f.order(t, voyager2, pasta, 2)

	_, err := f.orders.Stats(ctx, headCook)
	assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))

	rows, err := f.orders.Stats(ctx, admin)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.DeptCatering, rows[0].Type)
	assert.Equal(t, 2, rows[0].Count)
	assert.Equal(t, "49.20", rows[0].Revenue.StringFixed(2))
}
