package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/model"
)

func TestCatalogCreateAndUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	purged := 0
	f.catalog.OnChange = func(context.Context) { purged++ }

	it, err := f.catalog.Create(ctx, manager, ItemInput{
		Name:     " Espresso ",
		Type:     model.DeptCatering,
		Category: "Beverages",
		Price:    decimal.RequireFromString("3.456"),
		Currency: "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, "Espresso", it.Name)
	assert.Equal(t, "beverages", it.Category)
	assert.Equal(t, "3.46", it.Price.StringFixed(2))
	assert.Equal(t, "EUR", it.Currency)
	assert.Equal(t, model.Available, it.Availability)
	assert.Nil(t, it.Stock)
	assert.Equal(t, 1, purged)

	_, err = f.catalog.Create(ctx, manager, ItemInput{Name: "espresso", Type: model.DeptCatering, Category: "beverages"})
	assert.Equal(t, apperr.DuplicateReference, kindOf(t, err))

	// same name in the other department is fine
	_, err = f.catalog.Create(ctx, manager, ItemInput{Name: "Espresso", Type: model.DeptStationery, Category: "office"})
	require.NoError(t, err)
	assert.Equal(t, 2, purged)
}

func TestCatalogValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.Create(context.Background(), admin, ItemInput{
		Name:     "X",
		Type:     model.DeptStationery,
		Category: "desserts",
		Price:    decimal.RequireFromString("-1"),
		Currency: "JPY",
		Stock:    intPtr(-2),
		ImageURL: "not a url",
	})
	require.Equal(t, apperr.Validation, kindOf(t, err))
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	var got []string
	for _, fe := range ae.Fields {
		got = append(got, fe.Field)
	}
	assert.ElementsMatch(t, []string{"name", "currency", "stock", "image_url", "price", "category"}, got)
}

func TestCatalogRoleGating(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.item(t, "Pen", model.DeptStationery, "1.00", nil)
	in := ItemInput{Name: "Pen", Type: model.DeptStationery, Category: "writing"}

	for _, id := range []*authz.Identity{voyager, headCook, super} {
		_, err := f.catalog.Create(ctx, id, in)
		assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
		_, err = f.catalog.Update(ctx, id, it.ID, in)
		assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
		_, err = f.catalog.SetAvailability(ctx, id, it.ID, "limited")
		assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
		_, err = f.catalog.AdjustStock(ctx, id, it.ID, "add", 1)
		assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
		_, err = f.catalog.Stats(ctx, id)
		assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))
	}
	err := f.catalog.Delete(ctx, manager, it.ID)
	assert.Equal(t, apperr.InsufficientRole, kindOf(t, err))

	got, err := f.catalog.Get(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.00", got.Price.StringFixed(2))

	require.NoError(t, f.catalog.Delete(ctx, admin, it.ID))
	_, err = f.catalog.Get(ctx, it.ID)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
	err = f.catalog.Delete(ctx, admin, it.ID)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
}

func TestCatalogRenameUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, "Pen", model.DeptStationery, "1.00", nil)
	pad := f.item(t, "Pad", model.DeptStationery, "2.00", nil)

	_, err := f.catalog.Update(ctx, manager, pad.ID, ItemInput{Name: "PEN", Type: model.DeptStationery, Category: "writing"})
	assert.Equal(t, apperr.DuplicateReference, kindOf(t, err))

	got, err := f.catalog.Update(ctx, manager, pad.ID, ItemInput{Name: "Pad", Type: model.DeptStationery, Category: "office", Price: decimal.RequireFromString("2.50")})
	require.NoError(t, err)
	assert.Equal(t, "office", got.Category)

	_, err = f.catalog.Update(ctx, manager, 999, ItemInput{Name: "Ghost", Type: model.DeptStationery, Category: "office"})
	assert.Equal(t, apperr.NotFound, kindOf(t, err))
}

func TestCatalogAdjustStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := f.item(t, "Pen", model.DeptStationery, "1.00", nil)

	got, err := f.catalog.AdjustStock(ctx, manager, it.ID, "add", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, *got.Stock)

	got, err = f.catalog.AdjustStock(ctx, manager, it.ID, "subtract", 9)
	require.NoError(t, err)
	assert.Equal(t, 0, *got.Stock)
	assert.Equal(t, model.Unavailable, got.Availability)

	got, err = f.catalog.AdjustStock(ctx, manager, it.ID, "SET", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, *got.Stock)

	_, err = f.catalog.AdjustStock(ctx, manager, it.ID, "multiply", -1)
	require.Equal(t, apperr.Validation, kindOf(t, err))
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Len(t, ae.Fields, 2)

	_, err = f.catalog.AdjustStock(ctx, manager, 999, "add", 1)
	assert.Equal(t, apperr.NotFound, kindOf(t, err))

	_, err = f.catalog.SetAvailability(ctx, manager, it.ID, "sold-out")
	assert.Equal(t, apperr.Validation, kindOf(t, err))
	got, err = f.catalog.SetAvailability(ctx, manager, it.ID, "available")
	require.NoError(t, err)
	assert.Equal(t, model.Available, got.Availability)
}

func TestCatalogQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(t, "Pasta", model.DeptCatering, "12.00", nil)
	f.item(t, "Pen", model.DeptStationery, "1.50", nil)
	f.item(t, "Pencil", model.DeptStationery, "0.80", nil)

	page, err := f.catalog.Query(ctx, model.ItemFilter{Type: model.DeptStationery, Sort: model.SortPriceAsc})
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "Pencil", page.Data[0].Name)
	assert.Equal(t, []string{"writing"}, page.Categories)
	assert.Equal(t, 2, page.Pagination.Total)

	page, err = f.catalog.Query(ctx, model.ItemFilter{Search: " pen "})
	require.NoError(t, err)
	assert.Len(t, page.Data, 2)
	assert.ElementsMatch(t, []string{"main-course", "writing"}, page.Categories)

	_, err = f.catalog.Query(ctx, model.ItemFilter{Type: "spa", Sort: "cheapest"})
	require.Equal(t, apperr.Validation, kindOf(t, err))

	lo, hi := decimal.RequireFromString("5"), decimal.RequireFromString("1")
	_, err = f.catalog.Query(ctx, model.ItemFilter{MinPrice: &lo, MaxPrice: &hi})
	assert.Equal(t, apperr.Validation, kindOf(t, err))

	cats, err := f.catalog.Categories(ctx, "catering")
	require.NoError(t, err)
	assert.Equal(t, []string{"main-course"}, cats)
	_, err = f.catalog.Categories(ctx, "spa")
	assert.Equal(t, apperr.Validation, kindOf(t, err))

	stats, err := f.catalog.Stats(ctx, manager)
	require.NoError(t, err)
	total := 0
	for _, s := range stats {
		total += s.Count
	}
	assert.Equal(t, 3, total)
}
