package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/queue"
	"github.com/iliyamo/cruise-services/internal/repository/memory"
)

type recorder struct {
	mu     sync.Mutex
	events []queue.Event
}

func (r *recorder) Publish(_ context.Context, ev queue.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store    *memory.Store
	clock    *clock
	events   *recorder
	bookings *BookingService
	orders   *OrderService
	catalog  *CatalogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c := &clock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	st := memory.New().WithClock(c.now)
	rec := &recorder{}
	f := &fixture{store: st, clock: c, events: rec}
	f.bookings = NewBookingService(st.Bookings(), false, rec, nil).WithClock(c.now)
	f.orders = NewOrderService(st.Orders(), st.Items(), st.Bookings(), OrderOptions{
		Pricing:  PricingPolicy{TaxRate: decimal.RequireFromString("0.08"), ServiceChargeRate: decimal.RequireFromString("0.15")},
		Workflow: model.DepartmentWorkflow,
	}, rec, nil).WithClock(c.now)
	f.catalog = NewCatalogService(st.Items(), nil)
	return f
}

func ident(id uint64, role authz.Role) *authz.Identity {
	return &authz.Identity{UserID: id, Email: "user@example.com", FirstName: "Ana", LastName: "Ruiz", Role: role}
}

var (
	voyager  = ident(1, authz.Voyager)
	voyager2 = ident(2, authz.Voyager)
	admin    = ident(10, authz.Admin)
	manager  = ident(11, authz.Manager)
	headCook = ident(12, authz.HeadCook)
	super    = ident(13, authz.Supervisor)
)

func kindOf(t *testing.T, err error) apperr.Kind {
	t.Helper()
	require.Error(t, err)
	return apperr.KindOf(err)
}

func intPtr(n int) *int { return &n }

func (f *fixture) item(t *testing.T, name string, typ model.Department, price string, stock *int) model.Item {
	t.Helper()
	cat := "main-course"
	if typ == model.DeptStationery {
		cat = "writing"
	}
	it, err := f.catalog.Create(context.Background(), admin, ItemInput{
		Name:     name,
		Type:     typ,
		Category: cat,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})
	require.NoError(t, err)
	return it
}

func bookingInput(code string) BookingInput {
	dep := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	return BookingInput{
		Cruise: CruiseInput{
			ShipName:      "Aurora",
			CruiseCode:    code,
			Route:         "Baltic",
			DepartureDate: dep,
			ReturnDate:    dep.Add(7 * 24 * time.Hour),
			DeparturePort: "Kiel",
			ArrivalPort:   "Kiel",
		},
		Cabin: CabinInput{Type: model.CabinBalcony, Number: "A12", Deck: "7", Capacity: 2},
		Passengers: []PassengerInput{
			{FirstName: "Ana", LastName: "Ruiz", IsPrimary: true},
			{FirstName: "Kai", LastName: "Lee"},
		},
		Pricing: PricingInput{
			Base:      decimal.RequireFromString("1200"),
			Taxes:     decimal.RequireFromString("96"),
			Fees:      decimal.RequireFromString("40"),
			Discounts: decimal.RequireFromString("100"),
		},
		Payment: PaymentInput{Method: model.PayCreditCard},
	}
}

func (f *fixture) booking(t *testing.T, owner *authz.Identity, code string) model.Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), owner, bookingInput(code))
	require.NoError(t, err)
	return b
}
