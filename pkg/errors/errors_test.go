package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataTable(t *testing.T) {
	want := map[Code]Metadata{
		CodeValidation:        {http.StatusBadRequest, false, "validation failed", true},
		CodeUnauthorized:      {http.StatusUnauthorized, false, "authentication required", true},
		CodeForbidden:         {http.StatusForbidden, false, "access denied", false},
		CodeNotFound:          {http.StatusNotFound, false, "resource not found", false},
		CodeConflict:          {http.StatusConflict, false, "conflict detected", false},
		CodeStateConflict:     {http.StatusUnprocessableEntity, false, "state transition disallowed", true},
		CodeInternal:          {http.StatusInternalServerError, true, "internal server error", false},
		CodeDependency:        {http.StatusServiceUnavailable, true, "dependency unavailable", true},
		CodeProfileIncomplete: {http.StatusUnprocessableEntity, false, "delivery profile incomplete", true},
		CodeCartEmpty:         {http.StatusUnprocessableEntity, false, "cart is empty", false},
		CodeCartInvalid:       {http.StatusConflict, false, "cart contains invalid items and was cleared", true},
		CodeCouponRejected:    {http.StatusUnprocessableEntity, false, "coupon not applicable", true},
	}
	for code, m := range want {
		assert.Equal(t, m, MetadataFor(code), code)
	}
	assert.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestServerFaultsHideTheirMessage(t *testing.T) {
	assert.True(t, MetadataFor(CodeNotFound).ExposesMessage())
	assert.False(t, MetadataFor(CodeInternal).ExposesMessage())
	assert.False(t, MetadataFor(CodeDependency).ExposesMessage())
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeConflict, cause, "reserve table")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, CodeConflict, err.Code())
	assert.Equal(t, "reserve table", err.Message())
	assert.Equal(t, "CONFLICT: reserve table", err.Error())
	assert.Nil(t, err.Details())
}

func TestAsFindsOutermost(t *testing.T) {
	inner := New(CodeCartEmpty, "empty")
	outer := Wrap(CodeDependency, fmt.Errorf("checkout: %w", inner), "submit")

	require.NotNil(t, As(outer))
	assert.Equal(t, CodeDependency, As(outer).Code())
	assert.True(t, Is(fmt.Errorf("ctx: %w", inner), CodeCartEmpty))
	assert.False(t, Is(inner, CodeCartInvalid))
	assert.False(t, Is(nil, CodeCartEmpty))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestWithRedirectMergesDetails(t *testing.T) {
	err := New(CodeProfileIncomplete, "phone required").
		WithDetails(map[string]any{"missing": []string{"phone"}}).
		WithRedirect("/profile")

	details, ok := err.Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "/profile", details["redirect"])
	assert.Equal(t, []string{"phone"}, details["missing"])

	bare := New(CodeUnauthorized, "login").WithRedirect("/auth")
	assert.Equal(t, map[string]any{"redirect": "/auth"}, bare.Details())
}

func TestNilErrorIsInert(t *testing.T) {
	var err *Error
	assert.Empty(t, err.Error())
	assert.Nil(t, err.Unwrap())
	assert.Nil(t, err.WithRedirect("/x"))
}
