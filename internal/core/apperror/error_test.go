package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreFailure_WrapsRawErrors(t *testing.T) {
	raw := errors.New("connection reset")

	err := StoreFailure("update order", raw)

	appErr, ok := AsAppError(err)
	assert.True(t, ok)
	assert.Equal(t, CodeStoreFailure, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.ErrorIs(t, err, raw)
}

func TestStoreFailure_KeepsAppErrors(t *testing.T) {
	notFound := NewNotFound("order", "42")

	err := StoreFailure("get order", fmt.Errorf("lookup: %w", notFound))

	assert.True(t, IsNotFound(err))
	assert.Nil(t, StoreFailure("noop", nil))
}

func TestFactories_HTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid assignment", NewInvalidAssignment("empty"), http.StatusBadRequest},
		{"invalid status", NewInvalidStatus("bogus"), http.StatusBadRequest},
		{"invalid transition", NewInvalidTransition("line item", "completed", "assigned"), http.StatusUnprocessableEntity},
		{"not found", NewNotFound("line item", "x"), http.StatusNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.err))
		})
	}
}

func TestIsCode(t *testing.T) {
	err := NewInvalidStatus("step9")
	assert.True(t, IsCode(err, CodeInvalidStatus))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.Equal(t, "step9", err.Details["status"])
}
