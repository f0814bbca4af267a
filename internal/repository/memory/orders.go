package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/repository"
)

// Orders implements the order repository.
type Orders struct{ s *Store }

// Create checks and reserves stock for every line, then inserts the
// order.  Everything happens under the store lock, so a failed check
// leaves no trace.
func (r *Orders) Create(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.orders {
		if existing.OrderNumber == o.OrderNumber {
			return repository.ErrDuplicate
		}
	}

	want := map[uint64]int{}
	for _, l := range o.Lines {
		want[l.ItemID] += l.Quantity
	}
	for id, qty := range want {
		it, ok := r.s.items[id]
		if !ok {
			return repository.ErrNotFound
		}
		if !it.Availability.Orderable() {
			return &repository.StockError{ItemID: id}
		}
		if it.Stock != nil && *it.Stock < qty {
			return &repository.StockError{ItemID: id}
		}
	}
	now := r.s.now()
	for id, qty := range want {
		it := r.s.items[id]
		if it.Stock == nil {
			continue
		}
		left := *it.Stock - qty
		it.Stock = &left
		if left == 0 {
			it.Availability = model.Unavailable
		}
		it.UpdatedAt = now
		r.s.items[id] = it
	}

	o.ID = r.s.nextID("orders")
	o.CreatedAt, o.UpdatedAt = now, now
	r.s.orders[o.ID] = o.Clone()
	return nil
}

func (r *Orders) GetByID(_ context.Context, id uint64) (model.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return model.Order{}, repository.ErrNotFound
	}
	return o.Clone(), nil
}

func matchOrder(o model.Order, f model.OrderFilter) bool {
	if f.UserID != nil && o.UserID != *f.UserID {
		return false
	}
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if o.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.BookingID != nil && (o.BookingID == nil || *o.BookingID != *f.BookingID) {
		return false
	}
	return true
}

func (r *Orders) List(_ context.Context, f model.OrderFilter) ([]model.Order, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := []model.Order{}
	for _, o := range r.s.orders {
		if matchOrder(o, f) {
			rows = append(rows, o.Clone())
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	return paginate(rows, f.Page), len(rows), nil
}

// Update writes everything except the line snapshot, owner, type and number.
func (r *Orders) Update(_ context.Context, o *model.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.orders[o.ID]
	if !ok {
		return repository.ErrNotFound
	}
	next := o.Clone()
	next.Lines = cur.Clone().Lines
	next.UserID = cur.UserID
	next.Type = cur.Type
	next.OrderNumber = cur.OrderNumber
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.s.now()
	r.s.orders[o.ID] = next
	o.UpdatedAt = next.UpdatedAt
	return nil
}

func (r *Orders) Stats(_ context.Context) ([]model.OrderStat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	type key struct {
		t model.Department
		s model.OrderStatus
	}
	counts := map[key]int{}
	revenue := map[key]decimal.Decimal{}
	for _, o := range r.s.orders {
		k := key{o.Type, o.Status}
		counts[k]++
		revenue[k] = revenue[k].Add(o.Pricing.Total)
	}
	out := make([]model.OrderStat, 0, len(counts))
	for k, n := range counts {
		out = append(out, model.OrderStat{Type: k.t, Status: k.s, Count: n, Revenue: revenue[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Status < out[j].Status
	})
	return out, nil
}
