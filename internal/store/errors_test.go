package store_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/rewireapp/rewire-server/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := &store.Error{
		Code:    http.StatusNotFound,
		Message: "not found",
	}

	assert.Equal(t, "not found", err.Error())
}

func TestError_ErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &store.Error{
		Code:    http.StatusNotFound,
		Message: "not found",
		Err:     cause,
	}

	assert.Contains(t, err.Error(), "not found")
	assert.Contains(t, err.Error(), "underlying error")
}

func TestError_HTTPCode(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, store.ErrUnavailable.HTTPCode())
	assert.Equal(t, http.StatusBadRequest, store.ErrInvalidInput.HTTPCode())
}

func TestUnavailable_MatchesSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := store.Unavailable("get session", cause)

	assert.True(t, errors.Is(err, store.ErrUnavailable))
	assert.True(t, store.IsUnavailable(err))
	assert.False(t, errors.Is(err, store.ErrNotFound))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "get session")
}

func TestUnavailable_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("refresh: %w", store.Unavailable("upsert stats", errors.New("timeout")))

	assert.True(t, store.IsUnavailable(err))
}

func TestIsUnavailable_PlainError(t *testing.T) {
	assert.False(t, store.IsUnavailable(errors.New("boom")))
	assert.False(t, store.IsUnavailable(nil))
}
