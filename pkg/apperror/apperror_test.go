package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad input")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfWalksWrapChain(t *testing.T) {
	inner := Conflict("already exists")
	wrapped := fmt.Errorf("saving site: %w", inner)

	assert.Equal(t, KindConflict, KindOf(wrapped))
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("Failed to store the attachment.", cause)

	assert.Equal(t, "Failed to store the attachment.", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("x"), http.StatusBadRequest},
		{NotFound("x"), http.StatusNotFound},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{Conflict("x"), http.StatusConflict},
		{Storage("x", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err))
	}
}
