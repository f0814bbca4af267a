package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/repository"
)

// Bookings implements the booking repository.
type Bookings struct{ s *Store }

func (r *Bookings) Create(_ context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.bookings {
		if existing.Reference == b.Reference {
			return repository.ErrDuplicate
		}
	}
	b.ID = r.s.nextID("bookings")
	now := r.s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	r.s.bookings[b.ID] = b.Clone()
	return nil
}

func (r *Bookings) GetByID(_ context.Context, id uint64) (model.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return b.Clone(), nil
}

func matchBooking(b model.Booking, f model.BookingFilter) bool {
	if f.UserID != nil && b.UserID != *f.UserID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if f.ShipName != "" && !strings.Contains(strings.ToLower(b.Cruise.ShipName), strings.ToLower(f.ShipName)) {
		return false
	}
	if f.DepartureFrom != nil && b.Cruise.DepartureDate.Before(*f.DepartureFrom) {
		return false
	}
	return true
}

func (r *Bookings) List(_ context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rows := []model.Booking{}
	for _, b := range r.s.bookings {
		if matchBooking(b, f) {
			rows = append(rows, b.Clone())
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

func (r *Bookings) Update(_ context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.bookings[b.ID]
	if !ok {
		return repository.ErrNotFound
	}
	// owner and reference are fixed at insert
	b.UserID = cur.UserID
	b.Reference = cur.Reference
	b.CreatedAt = cur.CreatedAt
	b.UpdatedAt = r.s.now()
	r.s.bookings[b.ID] = b.Clone()
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (r *Bookings) ExistsActive(_ context.Context, userID uint64, cruiseCode string, departure time.Time, excludeID uint64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, b := range r.s.bookings {
		if b.ID != excludeID && b.UserID == userID && b.Cruise.CruiseCode == cruiseCode &&
			sameDay(b.Cruise.DepartureDate, departure) && b.Status != model.BookingCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (r *Bookings) Stats(_ context.Context) ([]model.StatusStat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := map[model.BookingStatus]int{}
	revenue := map[model.BookingStatus]decimal.Decimal{}
	for _, b := range r.s.bookings {
		counts[b.Status]++
		revenue[b.Status] = revenue[b.Status].Add(b.Pricing.Total)
	}
	out := make([]model.StatusStat, 0, len(counts))
	for st, n := range counts {
		out = append(out, model.StatusStat{Status: string(st), Count: n, Revenue: revenue[st]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}
