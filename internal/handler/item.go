package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/service"
)

// ItemHandler serves the catalog under /v1/items.
type ItemHandler struct {
	Catalog *service.CatalogService
}

func NewItemHandler(catalog *service.CatalogService) *ItemHandler {
	return &ItemHandler{Catalog: catalog}
}

type availabilityReq struct {
	Availability string `json:"availability"`
}

type stockReq struct {
	Operation string `json:"operation"`
	Quantity  *int   `json:"quantity"`
}

// Query is the public catalog search:
// ?search=&type=&category=&min_price=&max_price=&availability=&in_stock=&sort=&page=&limit=
func (h *ItemHandler) Query(c echo.Context) error {
	var fields []apperr.FieldError
	f := model.ItemFilter{
		Search:       c.QueryParam("search"),
		Type:         model.Department(strings.ToLower(strings.TrimSpace(c.QueryParam("type")))),
		Category:     strings.ToLower(strings.TrimSpace(c.QueryParam("category"))),
		Availability: model.Availability(strings.ToLower(strings.TrimSpace(c.QueryParam("availability")))),
		Sort:         model.ItemSort(strings.ToLower(strings.TrimSpace(c.QueryParam("sort")))),
		Page:         pageOf(c, &fields),
		MinPrice:     queryDecimal(c, "min_price", &fields),
		MaxPrice:     queryDecimal(c, "max_price", &fields),
	}
	switch strings.ToLower(strings.TrimSpace(c.QueryParam("in_stock"))) {
	case "", "false", "0":
	case "true", "1":
		f.InStock = true
	default:
		fields = append(fields, apperr.FieldError{Field: "in_stock", Message: "must be true or false", Value: c.QueryParam("in_stock")})
	}
	if err := invalid(fields); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Catalog.Query(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *ItemHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	it, err := h.Catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

// Categories lists categories in use, optionally for ?type=.
func (h *ItemHandler) Categories(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	cats, err := h.Catalog.Categories(ctx, c.QueryParam("type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": cats})
}

func (h *ItemHandler) Create(c echo.Context) error {
	var req service.ItemInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	it, err := h.Catalog.Create(ctx, caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, it)
}

func (h *ItemHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.ItemInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	it, err := h.Catalog.Update(ctx, caller(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *ItemHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Catalog.Delete(ctx, caller(c), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ItemHandler) Availability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req availabilityReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	it, err := h.Catalog.SetAvailability(ctx, caller(c), id, req.Availability)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *ItemHandler) Stock(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req stockReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Quantity == nil {
		return apperr.Invalid([]apperr.FieldError{{Field: "quantity", Message: "is required"}})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	it, err := h.Catalog.AdjustStock(ctx, caller(c), id, req.Operation, *req.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, it)
}

func (h *ItemHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Catalog.Stats(ctx, caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": stats})
}

func queryDecimal(c echo.Context, name string, fields *[]apperr.FieldError) *decimal.Decimal {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		*fields = append(*fields, apperr.FieldError{Field: name, Message: "must be a number", Value: raw})
		return nil
	}
	return &d
}
