package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// Normalize fills defaults and clamps the limit.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// PageInfo is returned alongside every paginated list.
type PageInfo struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewPageInfo derives the navigation fields from p and the total row count.
func NewPageInfo(p Page, total int) PageInfo {
	p = p.Normalize()
	pages := (total + p.Limit - 1) / p.Limit
	return PageInfo{
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      total,
		TotalPages: pages,
		HasNext:    p.Page < pages,
		HasPrev:    p.Page > 1,
	}
}

// BookingFilter narrows a booking listing. A non-nil UserID is the
// visibility restriction and is always set for callers who cannot see
// every booking.
type BookingFilter struct {
	UserID        *uint64
	Status        BookingStatus
	ShipName      string
	DepartureFrom *time.Time
	Page          Page
}

// OrderFilter narrows an order listing. Types, when non-empty, is the
// department restriction for the caller's role.
type OrderFilter struct {
	UserID    *uint64
	Types     []Department
	Status    OrderStatus
	BookingID *uint64
	Page      Page
}

// ItemSort orders catalog queries.
type ItemSort string

const (
	SortNewest    ItemSort = "newest"
	SortPriceAsc  ItemSort = "price_asc"
	SortPriceDesc ItemSort = "price_desc"
	SortName      ItemSort = "name"
)

// ItemFilter narrows a catalog query.
type ItemFilter struct {
	Search       string
	Type         Department
	Category     string
	MinPrice     *decimal.Decimal
	MaxPrice     *decimal.Decimal
	Availability Availability
	InStock      bool
	Sort         ItemSort
	Page         Page
}

// StatusStat is one row of a status breakdown.
type StatusStat struct {
	Status  string          `json:"status"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// OrderStat groups order counts and revenue by department and status.
type OrderStat struct {
	Type    Department      `json:"type"`
	Status  OrderStatus     `json:"status"`
	Count   int             `json:"count"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ItemStat groups catalog counts by department and availability.
type ItemStat struct {
	Type         Department      `json:"type"`
	Availability Availability    `json:"availability"`
	Count        int             `json:"count"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
}
