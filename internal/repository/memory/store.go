// Package memory is an in-process implementation of the repositories,
// used with STORAGE_BACKEND=memory and by the service and handler tests.
// All tables share one lock, so multi-row operations such as order
// creation with stock reservation are atomic.
package memory

import (
	"sync"
	"time"

	"github.com/iliyamo/cruise-services/internal/model"
)

type refreshRow struct {
	userID    uint64
	expiresAt time.Time
	revoked   bool
}

// Store holds every table.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	users    map[uint64]model.User
	tokens   map[string]refreshRow
	items    map[uint64]model.Item
	bookings map[uint64]model.Booking
	orders   map[uint64]model.Order

	seq map[string]uint64
}

// New returns an empty store.
func New() *Store {
	return &Store{
		now:      func() time.Time { return time.Now().UTC() },
		users:    map[uint64]model.User{},
		tokens:   map[string]refreshRow{},
		items:    map[uint64]model.Item{},
		bookings: map[uint64]model.Booking{},
		orders:   map[uint64]model.Order{},
		seq:      map[string]uint64{},
	}
}

// WithClock replaces the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) nextID(table string) uint64 {
	s.seq[table]++
	return s.seq[table]
}

// Users returns the user repository view.
func (s *Store) Users() *Users { return &Users{s: s} }

// Tokens returns the refresh token repository view.
func (s *Store) Tokens() *Tokens { return &Tokens{s: s} }

// Items returns the catalog repository view.
func (s *Store) Items() *Items { return &Items{s: s} }

// Bookings returns the booking repository view.
func (s *Store) Bookings() *Bookings { return &Bookings{s: s} }

// Orders returns the order repository view.
func (s *Store) Orders() *Orders { return &Orders{s: s} }

func paginate[T any](rows []T, p model.Page) []T {
	p = p.Normalize()
	start := p.Offset()
	if start >= len(rows) {
		return []T{}
	}
	end := start + p.Limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}
