package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCodeUsesOutermostCode(t *testing.T) {
	inner := New(CodeNotFound, "primary missing")
	outer := Wrap(inner, CodeInternal, "resolve primary")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.True(t, HasCode(inner, CodeNotFound))
	assert.True(t, errors.Is(outer, inner))
}

func TestCodeOfWrappedStdError(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(CodeValidation, "bad"))
	assert.Equal(t, CodeValidation, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestErrorMessage(t *testing.T) {
	err := Wrap(errors.New("connection reset"), CodeStorage, "insert contact")
	assert.Equal(t, "insert contact: connection reset", err.Error())
	assert.Equal(t, "no identifiers", New(CodeValidation, "no identifiers").Error())
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeBadRequest:         http.StatusBadRequest,
		CodeValidation:         http.StatusBadRequest,
		CodeNotFound:           http.StatusNotFound,
		CodeTimeout:            http.StatusGatewayTimeout,
		CodeStorage:            http.StatusInternalServerError,
		CodeInvariantViolation: http.StatusInternalServerError,
		CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, ToHTTPStatus(code), string(code))
	}
}
