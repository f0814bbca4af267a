// Package service holds the business rules: identity resolution, booking
// and order lifecycles and the item catalog.  Every exported operation
// returns nil or an *apperr.Error.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/logger"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/queue"
	"github.com/iliyamo/cruise-services/internal/repository"
)

// UserStore persists accounts.
type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, first, last, phone string) error
	UpdateRole(ctx context.Context, id uint64, role authz.Role) error
	SetActive(ctx context.Context, id uint64, active bool) error
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
}

// TokenStore persists refresh token hashes.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	// ConsumeRefresh revokes a live token and returns its owner, or
	// repository.ErrNotFound for unknown, expired and revoked tokens.
	ConsumeRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// BookingStore persists bookings.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (model.Booking, error)
	List(ctx context.Context, f model.BookingFilter) ([]model.Booking, int, error)
	Update(ctx context.Context, b *model.Booking) error
	ExistsActive(ctx context.Context, userID uint64, cruiseCode string, departure time.Time, excludeID uint64) (bool, error)
	Stats(ctx context.Context) ([]model.StatusStat, error)
}

// OrderStore persists orders.  Create must reserve stock for every line
// atomically with the insert.
type OrderStore interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id uint64) (model.Order, error)
	List(ctx context.Context, f model.OrderFilter) ([]model.Order, int, error)
	Update(ctx context.Context, o *model.Order) error
	Stats(ctx context.Context) ([]model.OrderStat, error)
}

// ItemStore persists the catalog.
type ItemStore interface {
	Create(ctx context.Context, it *model.Item) error
	GetByID(ctx context.Context, id uint64) (model.Item, error)
	GetMany(ctx context.Context, ids []uint64) (map[uint64]model.Item, error)
	ExistsByNameType(ctx context.Context, name string, typ model.Department, excludeID uint64) (bool, error)
	Update(ctx context.Context, it *model.Item) error
	Delete(ctx context.Context, id uint64) error
	AdjustStock(ctx context.Context, id uint64, op model.StockOp, qty int) (model.Item, error)
	Query(ctx context.Context, f model.ItemFilter) ([]model.Item, int, error)
	Categories(ctx context.Context, typ model.Department) ([]string, error)
	Stats(ctx context.Context) ([]model.ItemStat, error)
}

// EventPublisher receives domain events.  Publishing is best-effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.Event) error
}

// Page is one page of results with its navigation info.
type Page[T any] struct {
	Data       []T            `json:"data"`
	Pagination model.PageInfo `json:"pagination"`
}

func newPage[T any](rows []T, p model.Page, total int) Page[T] {
	if rows == nil {
		rows = []T{}
	}
	return Page[T]{Data: rows, Pagination: model.NewPageInfo(p, total)}
}

// storeErr converts an unexpected repository error into Internal.
func storeErr(err error, op string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	return apperr.Wrap(err, "%s", op)
}

// notFound maps repository.ErrNotFound to a NotFound of the given entity and
// anything else to Internal.
func notFound(err error, entity string, id uint64) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.NotFound, "%s %d not found", entity, id)
	}
	return storeErr(err, "load "+entity)
}

// emit publishes ev and logs failures.  It never fails the caller.
func emit(ctx context.Context, pub EventPublisher, log *logger.Logger, ev queue.Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, ev); err != nil {
		log.Warn("events", "drop %s %s: %v", ev.Type, ev.Reference, err)
	}
}
