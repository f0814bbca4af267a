package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/queue"
	"github.com/iliyamo/cruise-services/internal/repository"
	"github.com/iliyamo/cruise-services/internal/utils"
)

type OrderLineInput struct {
	ItemID              uint64     `json:"item_id" validate:"required"`
	Quantity            int        `json:"quantity" validate:"min=1,max=100"`
	ScheduledAt         *time.Time `json:"scheduled_at"`
	SpecialInstructions string     `json:"special_instructions" validate:"max=500"`
}

type OrderPaymentInput struct {
	Method model.OrderPaymentMethod `json:"method" validate:"required,oneof=room_charge credit_card cash loyalty_points"`
}

type DeliveryInput struct {
	Type         model.DeliveryType `json:"type" validate:"required,oneof=room_service pickup venue_service digital"`
	Location     string             `json:"location" validate:"max=200"`
	Instructions string             `json:"instructions" validate:"max=500"`
	EstimatedAt  *time.Time         `json:"estimated_at"`
}

// OrderInput is the body of an order placement.
type OrderInput struct {
	Type                model.Department  `json:"type" validate:"required,oneof=catering stationery"`
	BookingID           *uint64           `json:"booking_id"`
	Items               []OrderLineInput  `json:"items" validate:"min=1,max=50,dive"`
	Payment             OrderPaymentInput `json:"payment"`
	Delivery            DeliveryInput     `json:"delivery"`
	SpecialInstructions string            `json:"special_instructions" validate:"max=500"`
}

// OrderOptions are the deployment settings of the order desk.
type OrderOptions struct {
	Pricing        PricingPolicy
	Workflow       model.OrderWorkflow
	RequireBooking bool
}

// OrderService implements the order lifecycle.
type OrderService struct {
	Orders   OrderStore
	Items    ItemStore
	Bookings BookingStore
	Events   EventPublisher
	Log      *logger.Logger
	opts     OrderOptions

	refs *utils.RefGenerator
	now  func() time.Time
}

func NewOrderService(orders OrderStore, items ItemStore, bookings BookingStore, opts OrderOptions, pub EventPublisher, log *logger.Logger) *OrderService {
	if log == nil {
		log = logger.Discard()
	}
	if pub == nil {
		pub = queue.Nop{}
	}
	return &OrderService{
		Orders:   orders,
		Items:    items,
		Bookings: bookings,
		Events:   pub,
		Log:      log,
		opts:     opts,
		refs:     utils.NewRefGenerator(utils.OrderRefPrefix),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithRefs replaces the order number generator.
func (s *OrderService) WithRefs(g *utils.RefGenerator) *OrderService {
	s.refs = g
	return s
}

// WithClock replaces the clock used for delivery times and events.
func (s *OrderService) WithClock(now func() time.Time) *OrderService {
	s.now = now
	return s
}

// Workflow returns the configured order state machine.
func (s *OrderService) Workflow() model.OrderWorkflow { return s.opts.Workflow }

// Create places an order.  Prices are copied from the catalog at this
// instant and stock is reserved atomically with the insert.
func (s *OrderService) Create(ctx context.Context, id *authz.Identity, in OrderInput) (model.Order, error) {
	if err := authz.Require(id, authz.CanCreateOrder); err != nil {
		return model.Order{}, err
	}
	fields := fieldSet(fieldErrors(in))
	if s.opts.RequireBooking && in.BookingID == nil {
		fields.add("booking_id", "is required")
	}
	if err := fields.err(); err != nil {
		return model.Order{}, err
	}

	if in.BookingID != nil {
		if err := s.checkBookingLink(ctx, id, *in.BookingID); err != nil {
			return model.Order{}, err
		}
	}

	ids := make([]uint64, 0, len(in.Items))
	for _, l := range in.Items {
		ids = append(ids, l.ItemID)
	}
	items, err := s.Items.GetMany(ctx, ids)
	if err != nil {
		return model.Order{}, apperr.Wrap(err, "load order items")
	}

	wanted := map[uint64]int{}
	lines := make([]model.OrderLine, 0, len(in.Items))
	for i, l := range in.Items {
		it, ok := items[l.ItemID]
		if !ok {
			return model.Order{}, apperr.New(apperr.ItemNotFound, "item %d not found", l.ItemID)
		}
		if !it.Availability.Orderable() {
			return model.Order{}, apperr.New(apperr.ItemUnavailable, "item %q is %s", it.Name, it.Availability)
		}
		if it.Type != in.Type {
			fields.add(fmt.Sprintf("items[%d].item_id", i), "item %q is a %s item, not %s", it.Name, it.Type, in.Type)
			continue
		}
		wanted[it.ID] += l.Quantity
		if it.Stock != nil && *it.Stock < wanted[it.ID] {
			return model.Order{}, apperr.New(apperr.ItemUnavailable, "only %d of %q left in stock", *it.Stock, it.Name)
		}
		line := Line(it, l.Quantity)
		line.ScheduledAt = l.ScheduledAt
		line.SpecialInstructions = strings.TrimSpace(l.SpecialInstructions)
		lines = append(lines, line)
	}
	if err := fields.err(); err != nil {
		return model.Order{}, err
	}

	o := model.Order{
		UserID:    id.UserID,
		BookingID: in.BookingID,
		Type:      in.Type,
		Lines:     lines,
		Pricing:   s.opts.Pricing.Price(lines, decimal.Zero),
		Payment:   model.OrderPayment{Method: in.Payment.Method, Status: model.PaymentPending},
		Delivery: model.Delivery{
			Type:         in.Delivery.Type,
			Location:     strings.TrimSpace(in.Delivery.Location),
			Instructions: strings.TrimSpace(in.Delivery.Instructions),
			EstimatedAt:  in.Delivery.EstimatedAt,
		},
		Status:              s.opts.Workflow.Initial(),
		SpecialInstructions: strings.TrimSpace(in.SpecialInstructions),
		RefundAmount:        decimal.Zero,
	}

	for attempt := 0; attempt < 2; attempt++ {
		num, err := s.refs.Next()
		if err != nil {
			return model.Order{}, apperr.Wrap(err, "generate order number")
		}
		o.OrderNumber = num
		err = s.Orders.Create(ctx, &o)
		var stock *repository.StockError
		switch {
		case err == nil:
			s.Log.Info("order", "created %s (%s) for user %d, total %s", o.OrderNumber, o.Type, o.UserID, o.Pricing.Total.StringFixed(2))
			emit(ctx, s.Events, s.Log, queue.OrderEvent(queue.OrderCreated, id.UserID, o, "", s.now()))
			return o, nil
		case errors.Is(err, repository.ErrDuplicate):
			continue
		case errors.As(err, &stock):
			return model.Order{}, apperr.New(apperr.ItemUnavailable, "item %d is no longer available in the requested quantity", stock.ItemID)
		case errors.Is(err, repository.ErrInsufficientStock):
			return model.Order{}, apperr.New(apperr.ItemUnavailable, "an item is no longer available in the requested quantity")
		case errors.Is(err, repository.ErrNotFound):
			return model.Order{}, apperr.New(apperr.ItemNotFound, "an ordered item no longer exists")
		default:
			return model.Order{}, apperr.Wrap(err, "create order")
		}
	}
	return model.Order{}, apperr.New(apperr.DuplicateReference, "could not allocate a unique order number")
}

func (s *OrderService) checkBookingLink(ctx context.Context, id *authz.Identity, bookingID uint64) error {
	b, err := s.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return notFound(err, "booking", bookingID)
	}
	if b.UserID != id.UserID && !authz.Can(id.Role, authz.CanViewAllBookings) {
		return apperr.New(apperr.NotFound, "booking %d not found", bookingID)
	}
	if b.Status == model.BookingCancelled {
		return apperr.Invalid([]apperr.FieldError{{Field: "booking_id", Message: "booking " + b.Reference + " is cancelled"}})
	}
	return nil
}

// OrderQuery narrows an order listing.  Status accepts workflow aliases.
type OrderQuery struct {
	Status    string
	Type      string
	BookingID *uint64
	Page      model.Page
}

// ListMine returns the caller's own orders.
func (s *OrderService) ListMine(ctx context.Context, id *authz.Identity, q OrderQuery) (Page[model.Order], error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return Page[model.Order]{}, err
	}
	f, err := s.filter(q)
	if err != nil {
		return Page[model.Order]{}, err
	}
	if q.Type != "" {
		f.Types = []model.Department{model.Department(q.Type)}
	}
	uid := id.UserID
	f.UserID = &uid
	return s.list(ctx, f)
}

// ListAll returns the orders of the caller's desk.  Head cooks and
// supervisors are pinned to their department whatever type they ask for;
// admins and managers may filter by type.
func (s *OrderService) ListAll(ctx context.Context, id *authz.Identity, q OrderQuery) (Page[model.Order], error) {
	if err := authz.Require(id, authz.CanViewAllOrders); err != nil {
		return Page[model.Order]{}, err
	}
	f, err := s.filter(q)
	if err != nil {
		return Page[model.Order]{}, err
	}
	scope := authz.ScopeFor(id.Role)
	switch {
	case !scope.All:
		for _, d := range scope.Departments {
			f.Types = append(f.Types, model.Department(d))
		}
	case q.Type != "":
		f.Types = []model.Department{model.Department(q.Type)}
	}
	return s.list(ctx, f)
}

func (s *OrderService) filter(q OrderQuery) (model.OrderFilter, error) {
	f := model.OrderFilter{BookingID: q.BookingID, Page: q.Page.Normalize()}
	if q.Status != "" {
		st, ok := s.opts.Workflow.Parse(q.Status)
		if !ok {
			return f, apperr.New(apperr.InvalidStatus, "unknown order status %q", q.Status)
		}
		f.Status = st
	}
	if q.Type != "" && !model.Department(q.Type).Valid() {
		return f, apperr.Invalid([]apperr.FieldError{{Field: "type", Message: "must be one of: catering, stationery", Value: q.Type}})
	}
	return f, nil
}

func (s *OrderService) list(ctx context.Context, f model.OrderFilter) (Page[model.Order], error) {
	rows, total, err := s.Orders.List(ctx, f)
	if err != nil {
		return Page[model.Order]{}, apperr.Wrap(err, "list orders")
	}
	return newPage(rows, f.Page, total), nil
}

// Get returns an order the caller may see: their own, or one of their
// desk's department.  Anything else is reported as not found.
func (s *OrderService) Get(ctx context.Context, id *authz.Identity, orderID uint64) (model.Order, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.Order{}, err
	}
	return s.load(ctx, id, orderID, true)
}

// UpdateStatus moves an order along the configured workflow.
func (s *OrderService) UpdateStatus(ctx context.Context, id *authz.Identity, orderID uint64, label, reason string) (model.Order, error) {
	if err := authz.Require(id, authz.CanUpdateOrderStatus); err != nil {
		return model.Order{}, err
	}
	next, ok := s.opts.Workflow.Parse(label)
	if !ok {
		return model.Order{}, apperr.New(apperr.InvalidStatus, "unknown order status %q for the %s workflow", label, s.opts.Workflow.Name())
	}
	o, err := s.load(ctx, id, orderID, false)
	if err != nil {
		return model.Order{}, err
	}
	if next == model.OrderCancelled {
		return s.cancel(ctx, id, o, reason)
	}
	if s.opts.Workflow.Terminal(o.Status) || !s.opts.Workflow.CanTransition(o.Status, next) {
		return model.Order{}, apperr.New(apperr.InvalidTransition, "order %s cannot move from %s to %s", o.OrderNumber, o.Status, next)
	}
	prev := o.Status
	o.Status = next
	if next == model.OrderCompleted {
		at := s.now()
		o.Delivery.DeliveredAt = &at
	}
	if err := s.Orders.Update(ctx, &o); err != nil {
		return model.Order{}, notFound(err, "order", orderID)
	}
	emit(ctx, s.Events, s.Log, queue.OrderEvent(queue.OrderStatusChanged, id.UserID, o, prev, s.now()))
	return o, nil
}

// Cancel cancels an order of the caller or of the caller's desk.  A paid
// order is refunded in full.
func (s *OrderService) Cancel(ctx context.Context, id *authz.Identity, orderID uint64, reason string) (model.Order, error) {
	if err := authz.Authorize(id, authz.Authenticated); err != nil {
		return model.Order{}, err
	}
	o, err := s.load(ctx, id, orderID, true)
	if err != nil {
		return model.Order{}, err
	}
	return s.cancel(ctx, id, o, reason)
}

func (s *OrderService) cancel(ctx context.Context, id *authz.Identity, o model.Order, reason string) (model.Order, error) {
	if !s.opts.Workflow.Cancellable(o.Status) {
		return model.Order{}, apperr.New(apperr.InvalidTransition, "order %s is %s and cannot be cancelled", o.OrderNumber, o.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCancelReason
	}
	prev := o.Status
	o.Status = model.OrderCancelled
	o.CancellationReason = reason
	if o.Payment.Status == model.PaymentPaid {
		o.RefundAmount = o.Pricing.Total
		o.Payment.Status = model.PaymentRefunded
	}
	if err := s.Orders.Update(ctx, &o); err != nil {
		return model.Order{}, notFound(err, "order", o.ID)
	}
	s.Log.Info("order", "cancelled %s by user %d", o.OrderNumber, id.UserID)
	emit(ctx, s.Events, s.Log, queue.OrderEvent(queue.OrderCancelled, id.UserID, o, prev, s.now()))
	return o, nil
}

// Stats returns order counts and revenue per department and status.
func (s *OrderService) Stats(ctx context.Context, id *authz.Identity) ([]model.OrderStat, error) {
	if err := authz.Require(id, authz.CanViewStats); err != nil {
		return nil, err
	}
	rows, err := s.Orders.Stats(ctx)
	if err != nil {
		return nil, apperr.Wrap(err, "order stats")
	}
	return rows, nil
}

// load fetches an order and applies visibility.  With ownerOK the caller's
// own orders are visible regardless of department.
func (s *OrderService) load(ctx context.Context, id *authz.Identity, orderID uint64, ownerOK bool) (model.Order, error) {
	o, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return model.Order{}, notFound(err, "order", orderID)
	}
	if ownerOK && o.UserID == id.UserID {
		return o, nil
	}
	if authz.Can(id.Role, authz.CanViewAllOrders) && authz.ScopeFor(id.Role).Includes(string(o.Type)) {
		return o, nil
	}
	return model.Order{}, apperr.New(apperr.NotFound, "order %d not found", orderID)
}
