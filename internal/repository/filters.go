package repository

import (
	"strings"

	"github.com/iliyamo/cruise-services/internal/model"
)

// likePattern escapes LIKE wildcards in s and wraps it for substring matching.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return "1=1"
	}
	return strings.Join(where, " AND ")
}

// bookingWhere builds the WHERE clause for a booking listing.  The owner
// restriction, when present, is always part of the clause.
func bookingWhere(f model.BookingFilter) (string, []any) {
	where := []string{}
	args := []any{}
	if f.UserID != nil {
		where = append(where, "b.user_id = ?")
		args = append(args, *f.UserID)
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, string(f.Status))
	}
	if f.ShipName != "" {
		where = append(where, "LOWER(b.ship_name) LIKE ?")
		args = append(args, likePattern(f.ShipName))
	}
	if f.DepartureFrom != nil {
		where = append(where, "b.departure_date >= ?")
		args = append(args, f.DepartureFrom.UTC())
	}
	return joinWhere(where), args
}

// orderWhere builds the WHERE clause for an order listing.  Types is the
// department restriction and becomes an IN list.
func orderWhere(f model.OrderFilter) (string, []any) {
	where := []string{}
	args := []any{}
	if f.UserID != nil {
		where = append(where, "o.user_id = ?")
		args = append(args, *f.UserID)
	}
	if len(f.Types) > 0 {
		marks := make([]string, len(f.Types))
		for i, t := range f.Types {
			marks[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "o.type IN ("+strings.Join(marks, ",")+")")
	}
	if f.Status != "" {
		where = append(where, "o.status = ?")
		args = append(args, string(f.Status))
	}
	if f.BookingID != nil {
		where = append(where, "o.booking_id = ?")
		args = append(args, *f.BookingID)
	}
	return joinWhere(where), args
}

// itemWhere builds the WHERE clause for a catalog query.
func itemWhere(f model.ItemFilter) (string, []any) {
	where := []string{}
	args := []any{}
	if f.Search != "" {
		where = append(where, "(LOWER(i.name) LIKE ? OR LOWER(i.description) LIKE ?)")
		p := likePattern(f.Search)
		args = append(args, p, p)
	}
	if f.Type != "" {
		where = append(where, "i.type = ?")
		args = append(args, string(f.Type))
	}
	if f.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		where = append(where, "i.price >= ?")
		args = append(args, f.MinPrice.StringFixed(2))
	}
	if f.MaxPrice != nil {
		where = append(where, "i.price <= ?")
		args = append(args, f.MaxPrice.StringFixed(2))
	}
	if f.Availability != "" {
		where = append(where, "i.availability = ?")
		args = append(args, string(f.Availability))
	}
	if f.InStock {
		where = append(where, "(i.stock IS NULL OR i.stock > 0)")
	}
	return joinWhere(where), args
}

// itemOrderBy maps a sort key onto a deterministic ORDER BY clause.
func itemOrderBy(s model.ItemSort) string {
	switch s {
	case model.SortPriceAsc:
		return "i.price ASC, i.id ASC"
	case model.SortPriceDesc:
		return "i.price DESC, i.id DESC"
	case model.SortName:
		return "i.name ASC, i.id ASC"
	default:
		return "i.created_at DESC, i.id DESC"
	}
}
