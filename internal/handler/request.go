package handler

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/authz"
	"github.com/iliyamo/cruise-services/internal/middleware"
	"github.com/iliyamo/cruise-services/internal/model"
)

// requestTimeout bounds the storage work of one request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

func caller(c echo.Context) *authz.Identity {
	return middleware.IdentityFrom(c)
}

// bind decodes the JSON body into v.  Malformed bodies are a validation
// failure on "body".
func bind(c echo.Context, v any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, v); err != nil {
		msg := "malformed JSON body"
		if he, ok := err.(*echo.HTTPError); ok {
			if m, ok := he.Message.(string); ok {
				msg = m
			}
		}
		return apperr.Invalid([]apperr.FieldError{{Field: "body", Message: msg}})
	}
	return nil
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Invalid([]apperr.FieldError{{Field: name, Message: "must be a positive integer", Value: raw}})
	}
	return id, nil
}

// queryInt reads an optional integer query parameter.
func queryInt(c echo.Context, name string, fields *[]apperr.FieldError) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*fields = append(*fields, apperr.FieldError{Field: name, Message: "must be an integer", Value: raw})
	}
	return n
}

func queryID(c echo.Context, name string, fields *[]apperr.FieldError) *uint64 {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		*fields = append(*fields, apperr.FieldError{Field: name, Message: "must be a positive integer", Value: raw})
		return nil
	}
	return &n
}

// pageOf reads ?page=&limit=.  Out of range values are clamped by the
// services; non-numeric ones are rejected.
func pageOf(c echo.Context, fields *[]apperr.FieldError) model.Page {
	return model.Page{Page: queryInt(c, "page", fields), Limit: queryInt(c, "limit", fields)}
}

func invalid(fields []apperr.FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return apperr.Invalid(fields)
}
