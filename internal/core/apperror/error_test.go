package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode_WrappedError(t *testing.T) {
	base := NewInvalidPayment("amount must be positive")
	wrapped := fmt.Errorf("apply payment: %w", base)

	assert.True(t, HasCode(wrapped, CodeInvalidPayment))
	assert.False(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeInvalidPayment))
}

func TestNewInvalidLineItem_Details(t *testing.T) {
	err := NewInvalidLineItem(2, "quantity must be at least 1")

	assert.Equal(t, CodeInvalidLineItem, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	assert.Equal(t, 2, err.Details["lineNo"])
	assert.Contains(t, err.Error(), "line 2")
}

func TestNewStockUnderflow_IsWarning(t *testing.T) {
	err := NewStockUnderflow("p-1", 5, 1)

	assert.Equal(t, CodeStockUnderflow, err.Code)
	assert.Equal(t, int64(5), err.Details["requested"])
	assert.Equal(t, int64(1), err.Details["available"])
}

func TestGetHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewNumberingConflict("Invoice", "INV 01001")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}

func TestWithCause_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewInternal(nil).WithCause(cause)

	require.ErrorIs(t, err, cause)
	assert.True(t, IsAppError(err))
}
