package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{InvalidInput, http.StatusBadRequest},
		{Unauthenticated, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{Conflict, http.StatusConflict},
		{RateLimited, http.StatusTooManyRequests},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Status(New(c.kind, "x")))
	}
}

func TestStatusUntypedError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, Status(errors.New("boom")))
}

func TestMessageHidesInternals(t *testing.T) {
	err := Wrap(Internal, "mongo exploded", errors.New("connection refused"))
	assert.Equal(t, "internal server error", Message(err))

	wrapped := fmt.Errorf("handler: %w", New(NotFound, "chat not found"))
	assert.Equal(t, "chat not found", Message(wrapped))
	assert.Equal(t, NotFound, KindOf(wrapped))
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := Wrap(Forbidden, "no access", inner)
	assert.ErrorIs(t, err, inner)
}
