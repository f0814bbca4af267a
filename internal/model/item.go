package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Availability is the sale state of a catalog item.
type Availability string

const (
	Available   Availability = "available"
	Limited     Availability = "limited"
	Unavailable Availability = "unavailable"
)

// Availabilities lists every availability state.
var Availabilities = []Availability{Available, Limited, Unavailable}

// Valid reports whether a is a known availability.
func (a Availability) Valid() bool {
	return a == Available || a == Limited || a == Unavailable
}

// Orderable reports whether new orders may reference an item in state a.
func (a Availability) Orderable() bool { return a == Available }

// Currencies accepted for catalog prices.
var Currencies = []string{"USD", "EUR", "GBP", "CAD"}

var categories = map[Department][]string{
	DeptCatering:   {"appetizers", "main-course", "desserts", "beverages"},
	DeptStationery: {"writing", "office", "electronics", "miscellaneous"},
}

// CategoriesFor returns the categories allowed for department d.
func CategoriesFor(d Department) []string {
	return append([]string(nil), categories[d]...)
}

// StockOp is an adjustStock operation.
type StockOp string

const (
	StockAdd      StockOp = "add"
	StockSubtract StockOp = "subtract"
	StockSet      StockOp = "set"
)

// Valid reports whether op is known.
func (op StockOp) Valid() bool {
	return op == StockAdd || op == StockSubtract || op == StockSet
}

// ApplyStock applies op to current and clamps the result at zero.
func ApplyStock(current int, op StockOp, qty int) int {
	var n int
	switch op {
	case StockAdd:
		n = current + qty
	case StockSubtract:
		n = current - qty
	default:
		n = qty
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Item represents a row in the `items` table. (Name, Type) is unique.
// A nil Stock means the item is not stock tracked.
type Item struct {
	ID           uint64          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         Department      `json:"type"`
	Category     string          `json:"category"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Availability Availability    `json:"availability"`
	Stock        *int            `json:"stock,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Clone returns a copy of it that does not share the Stock pointer.
func (it Item) Clone() Item {
	out := it
	if it.Stock != nil {
		s := *it.Stock
		out.Stock = &s
	}
	return out
}
