package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/foodorder-backend/pkg/errors"
)

type period string

func TestParseQueryEnum(t *testing.T) {
	r := httptest.NewRequest("GET", "/reports?period=30D", nil)
	got, err := ParseQueryEnum(r, "period", period("7d"), "7d", "30d", "all")
	require.NoError(t, err)
	assert.Equal(t, period("30d"), got)

	r = httptest.NewRequest("GET", "/reports", nil)
	got, err = ParseQueryEnum(r, "period", period("7d"), "7d", "30d")
	require.NoError(t, err)
	assert.Equal(t, period("7d"), got)

	r = httptest.NewRequest("GET", "/reports?period=90d", nil)
	_, err = ParseQueryEnum(r, "period", period("7d"), "7d", "30d")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryIntBounds(t *testing.T) {
	r := httptest.NewRequest("GET", "/orders?limit=500", nil)
	_, err := ParseQueryInt(r, "limit", 20, 1, 100)
	assert.Error(t, err)

	r = httptest.NewRequest("GET", "/orders?limit=abc", nil)
	_, err = ParseQueryInt(r, "limit", 20, 1, 100)
	assert.Error(t, err)

	r = httptest.NewRequest("GET", "/orders", nil)
	limit, err := ParseQueryInt(r, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, limit)
}

func TestSanitizeStringIsRuneSafe(t *testing.T) {
	assert.Equal(t, "Jalapeño", SanitizeString("  Jalapeño poppers ", 8))
	assert.Equal(t, "abc", SanitizeString("a\x00b\nc", 0))
	assert.Equal(t, "", SanitizeString("   ", 5))
}

type signInBody struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

func postJSON(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/api/v1/auth/signin", strings.NewReader(body))
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	var dest signInBody
	err := DecodeJSONBody(postJSON(`{"email":"nope","password":"123"}`), &dest)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{
		"email":    "must be a valid email",
		"password": "must be at least 6",
	}, typed.Details())
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"unknown":  `{"email":"a@b.co","password":"secret1","admin":true}`,
		"trailing": `{"email":"a@b.co","password":"secret1"} {}`,
		"type":     `{"email":42,"password":"secret1"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest signInBody
			err := DecodeJSONBody(postJSON(body), &dest)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestDecodeJSONBodyAcceptsValidInput(t *testing.T) {
	var dest signInBody
	require.NoError(t, DecodeJSONBody(postJSON(`{"email":"rana@example.com","password":"secret1"}`), &dest))
	assert.Equal(t, "rana@example.com", dest.Email)
}
