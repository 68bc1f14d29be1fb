package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, Validation, KindOf(NewValidation("bad")))
	assert.Equal(t, NotFound, KindOf(fmt.Errorf("lookup: %w", NewNotFound("User not found"))))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Validation:   http.StatusBadRequest,
		NotFound:     http.StatusNotFound,
		Conflict:     http.StatusConflict,
		Unauthorized: http.StatusUnauthorized,
		Internal:     http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(sql.ErrConnDone, "Database error")

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, "Database error", As(err).Message)
	assert.Equal(t, "Internal server error", As(errors.New("x")).Message)
}
