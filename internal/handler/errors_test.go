package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cruise-services/internal/apperr"
)

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.Unauthenticated:    http.StatusUnauthorized,
		apperr.CredentialExpired:  http.StatusUnauthorized,
		apperr.AccountDisabled:    http.StatusUnauthorized,
		apperr.InsufficientRole:   http.StatusForbidden,
		apperr.Forbidden:          http.StatusForbidden,
		apperr.NotFound:           http.StatusNotFound,
		apperr.ItemNotFound:       http.StatusNotFound,
		apperr.Validation:         http.StatusBadRequest,
		apperr.DuplicateReference: http.StatusBadRequest,
		apperr.ItemUnavailable:    http.StatusBadRequest,
		apperr.AlreadyCancelled:   http.StatusBadRequest,
		apperr.RateLimited:        http.StatusTooManyRequests,
		apperr.Internal:           http.StatusInternalServerError,
	}
	for kind, want := range tests {
		assert.Equal(t, want, StatusFor(kind), kind)
	}
}

func serveError(t *testing.T, err error) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/x", nil), rec)
	ErrorHandler(nil)(err, c)
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestErrorHandlerHidesInternalCause(t *testing.T) {
	rec, body := serveError(t, apperr.Wrap(errors.New("dial tcp 10.0.0.5:3306: refused"), "load booking"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body.Error)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")

	rec, body = serveError(t, errors.New("plain"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body.Message)
}

func TestErrorHandlerRendersFields(t *testing.T) {
	rec, body := serveError(t, apperr.Invalid([]apperr.FieldError{{Field: "email", Message: "is required"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", body.Error)
	require.Len(t, body.Fields, 1)
	assert.Equal(t, "email", body.Fields[0].Field)

	rec, body = serveError(t, echo.ErrMethodNotAllowed)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "http_error", body.Error)
}
