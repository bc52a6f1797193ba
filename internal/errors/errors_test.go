package errors

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestBuilderMarksSentinel(t *testing.T) {
	err := NewError("statement 12 not found").
		WithHint("Statement not found").
		Mark(ErrNotFound)

	assert.True(t, IsNotFound(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, http.StatusNotFound, HTTPStatusFromErr(err))
	assert.Contains(t, errors.GetAllHints(err), "Statement not found")
}

func TestHTTPStatusFromUnmarkedError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromErr(errors.New("boom")))
}

func TestWithErrorKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WithError(cause).
		WithMessagef("querying charges for ward %s", "W1").
		Mark(ErrDatabase)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, ErrDatabase))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatusFromErr(err))
}

func TestFirstMarkDecidesStatusAndCode(t *testing.T) {
	err := NewError("statement file PAT_10.xlsx exists").
		Mark(ErrAlreadyExists)
	err = WithError(err).Mark(ErrSystem)

	assert.True(t, IsAlreadyExists(err))
	assert.Equal(t, http.StatusConflict, HTTPStatusFromErr(err))
	assert.Equal(t, ErrCodeAlreadyExists, CodeFromErr(err))
	assert.Equal(t, ErrCodeSystemError, CodeFromErr(errors.New("boom")))
}
