package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cruise-services/internal/apperr"
	"github.com/iliyamo/cruise-services/internal/logger"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error   string              `json:"error"`
	Message string              `json:"message"`
	Fields  []apperr.FieldError `json:"fields,omitempty"`
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.Unauthenticated, apperr.InvalidCredential, apperr.CredentialExpired,
		apperr.AccountNotFound, apperr.AccountDisabled:
		return http.StatusUnauthorized
	case apperr.InsufficientRole, apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound, apperr.ItemNotFound:
		return http.StatusNotFound
	case apperr.Validation, apperr.InvalidStatus, apperr.InvalidTransition, apperr.DuplicateReference,
		apperr.IncompleteProfile, apperr.ItemUnavailable, apperr.AlreadyCancelled:
		return http.StatusBadRequest
	case apperr.RateLimited:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// ErrorHandler renders service errors as JSON.  Internal failures are
// logged with their cause and answered with a generic message.
func ErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	if log == nil {
		log = logger.Discard()
	}
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := render(err)
		if status == http.StatusInternalServerError {
			log.Error("http", "%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("http", "write error response: %v", err)
		}
	}
}

func render(err error) (int, errorBody) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status := StatusFor(ae.Kind)
		if status == http.StatusInternalServerError {
			return status, errorBody{Error: string(apperr.Internal), Message: "internal server error"}
		}
		return status, errorBody{Error: string(ae.Kind), Message: ae.Message, Fields: ae.Fields}
	}

	// routing errors (404 unknown route, 405, body too large) come from echo
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		code := "http_error"
		switch he.Code {
		case http.StatusNotFound:
			code = string(apperr.NotFound)
		case http.StatusBadRequest:
			code = string(apperr.Validation)
		case http.StatusUnauthorized:
			code = string(apperr.Unauthenticated)
		case http.StatusTooManyRequests:
			code = string(apperr.RateLimited)
		case http.StatusInternalServerError:
			code = string(apperr.Internal)
			msg = "internal server error"
		}
		return he.Code, errorBody{Error: code, Message: msg}
	}

	return http.StatusInternalServerError, errorBody{Error: string(apperr.Internal), Message: "internal server error"}
}
