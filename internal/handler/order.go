package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/service"
)

// OrderHandler serves /v1/orders.
type OrderHandler struct {
	Orders *service.OrderService
}

func NewOrderHandler(orders *service.OrderService) *OrderHandler {
	return &OrderHandler{Orders: orders}
}

func (h *OrderHandler) Create(c echo.Context) error {
	var req service.OrderInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Create(ctx, caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, o)
}

func orderQuery(c echo.Context) (service.OrderQuery, error) {
	var fields []apperr.FieldError
	q := service.OrderQuery{
		Status:    strings.TrimSpace(c.QueryParam("status")),
		Type:      strings.ToLower(strings.TrimSpace(c.QueryParam("type"))),
		BookingID: queryID(c, "booking_id", &fields),
		Page:      pageOf(c, &fields),
	}
	return q, invalid(fields)
}

// Mine lists the caller's own orders.
func (h *OrderHandler) Mine(c echo.Context) error {
	q, err := orderQuery(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Orders.ListMine(ctx, caller(c), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// List is the staff queue, narrowed to the caller's department.
func (h *OrderHandler) List(c echo.Context) error {
	q, err := orderQuery(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Orders.ListAll(ctx, caller(c), q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *OrderHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Get(ctx, caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Status(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req statusChangeReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, caller(c), id, req.Status, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req reasonReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	o, err := h.Orders.Cancel(ctx, caller(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *OrderHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Orders.Stats(ctx, caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": stats})
}
