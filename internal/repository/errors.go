// Package repository implements MySQL persistence for users, refresh
// tokens, catalog items, bookings and orders.  Repositories return the
// sentinel errors below; the service layer translates them into the
// application's error kinds.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique
// index (email, booking reference, order number, item name+type).
var ErrDuplicate = errors.New("duplicate")

// ErrInsufficientStock is returned by order creation when a stock-tracked
// item cannot cover the requested quantity.  Nothing is written.
var ErrInsufficientStock = errors.New("insufficient stock")

// StockError names the item that ran out.  errors.Is(err,
// ErrInsufficientStock) matches it.
type StockError struct {
	ItemID uint64
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d", e.ItemID)
}

func (e *StockError) Is(target error) bool { return target == ErrInsufficientStock }

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
		return fmt.Errorf("%w: %s", ErrDuplicate, me.Message)
	}
	return err
}
