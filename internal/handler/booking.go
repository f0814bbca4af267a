package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/model"
	"github.com/iliyamo/cruise-services/internal/service"
)

// BookingHandler serves /v1/bookings.
type BookingHandler struct {
	Bookings         *service.BookingService
	BoardingPassSize int
}

func NewBookingHandler(bookings *service.BookingService, passSize int) *BookingHandler {
	return &BookingHandler{Bookings: bookings, BoardingPassSize: passSize}
}

type reasonReq struct {
	Reason string `json:"reason"`
}

type statusChangeReq struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

func (h *BookingHandler) Create(c echo.Context) error {
	var req service.BookingInput
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Create(ctx, caller(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, b)
}

// List supports ?status=&ship_name=&departure_from=&page=&limit=.
func (h *BookingHandler) List(c echo.Context) error {
	var fields []apperr.FieldError
	f := model.BookingFilter{
		Status:   model.BookingStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status")))),
		ShipName: strings.TrimSpace(c.QueryParam("ship_name")),
		Page:     pageOf(c, &fields),
	}
	if raw := strings.TrimSpace(c.QueryParam("departure_from")); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "departure_from", Message: "must be a date (YYYY-MM-DD) or RFC 3339 time", Value: raw})
		} else {
			f.DepartureFrom = &t
		}
	}
	if err := invalid(fields); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	page, err := h.Bookings.List(ctx, caller(c), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Get(ctx, caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req service.BookingPatch
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.Update(ctx, caller(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) Cancel(c echo.Context) error {
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

	b, err := h.Bookings.Cancel(ctx, caller(c), id, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// Status moves a booking along its lifecycle (staff).
func (h *BookingHandler) Status(c echo.Context) error {
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

	b, err := h.Bookings.Transition(ctx, caller(c), id, req.Status, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) CheckIn(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.Bookings.CheckIn(ctx, caller(c), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, b)
}

// BoardingPass streams the QR code PNG of a checked-in booking.
func (h *BookingHandler) BoardingPass(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	png, b, err := h.Bookings.BoardingPass(ctx, caller(c), id, h.BoardingPassSize)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+b.Reference+`.png"`)
	return c.Blob(http.StatusOK, "image/png", png)
}

func (h *BookingHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	stats, err := h.Bookings.Stats(ctx, caller(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"data": stats})
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
