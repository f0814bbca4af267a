package repository

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/cruise-services/internal/model"
)

func TestBookingWhere(t *testing.T) {
	cond, args := bookingWhere(model.BookingFilter{})
	assert.Equal(t, "1=1", cond)
	assert.Empty(t, args)

	uid := uint64(7)
	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	cond, args = bookingWhere(model.BookingFilter{
		UserID:        &uid,
		Status:        model.BookingConfirmed,
		ShipName:      "Aur_ora",
		DepartureFrom: &from,
	})
	assert.Equal(t, "b.user_id = ? AND b.status = ? AND LOWER(b.ship_name) LIKE ? AND b.departure_date >= ?", cond)
	assert.Equal(t, []any{uint64(7), "confirmed", `%aur\_ora%`, from}, args)
}

func TestOrderWhereAlwaysCarriesDepartmentRestriction(t *testing.T) {
	cond, args := orderWhere(model.OrderFilter{
		Types:  []model.Department{model.DeptCatering},
		Status: model.OrderPending,
	})
	assert.Equal(t, "o.type IN (?) AND o.status = ?", cond)
	assert.Equal(t, []any{"catering", "pending"}, args)

	cond, args = orderWhere(model.OrderFilter{Types: model.Departments})
	assert.Equal(t, "o.type IN (?,?)", cond)
	assert.Len(t, args, 2)
}

func TestItemWhereAndSort(t *testing.T) {
	min := decimal.RequireFromString("5")
	cond, args := itemWhere(model.ItemFilter{
		Search:   "Tea",
		Type:     model.DeptCatering,
		MinPrice: &min,
		InStock:  true,
	})
	assert.Equal(t, "(LOWER(i.name) LIKE ? OR LOWER(i.description) LIKE ?) AND i.type = ? AND i.price >= ? AND (i.stock IS NULL OR i.stock > 0)", cond)
	assert.Equal(t, []any{"%tea%", "%tea%", "catering", "5.00"}, args)

	assert.Equal(t, "i.created_at DESC, i.id DESC", itemOrderBy(""))
	assert.Equal(t, "i.price ASC, i.id ASC", itemOrderBy(model.SortPriceAsc))
	assert.Equal(t, "i.name ASC, i.id ASC", itemOrderBy(model.SortName))
}
