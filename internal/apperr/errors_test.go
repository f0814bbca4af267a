package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := New(NotFound, "booking %d not found", 7)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))

	wrapped := fmt.Errorf("get booking: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, NotFound, KindOf(wrapped))
}

func TestKindOfPlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(sql.ErrConnDone, "load user")
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Contains(t, err.Error(), "load user")
}

func TestInvalidListsEveryField(t *testing.T) {
	err := Invalid([]FieldError{
		{Field: "cabin.type", Message: "must be one of interior oceanview balcony suite"},
		{Field: "payment.method", Message: "must be one of credit_card debit_card bank_transfer cash"},
	})
	assert.Len(t, err.Fields, 2)
	assert.Contains(t, err.Error(), "cabin.type")
	assert.Contains(t, err.Error(), "payment.method")
}
