package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Health reports liveness and, when a pinger is configured, whether storage
// answers.  Load balancers only look at the status code.
type Health struct {
	Backend string
	Ping    func(ctx context.Context) error
}

func (h Health) Check(c echo.Context) error {
	if h.Ping != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "storage": h.Backend})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ok", "storage": h.Backend})
}
