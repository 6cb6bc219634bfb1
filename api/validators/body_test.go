package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/castingly/castingly-backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type refreshBody struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	Category     string `json:"category,omitempty" validate:"omitempty,media_category"`
}

func jsonRequest(body, contentType string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestDecodeJSONBody(t *testing.T) {
	var dest refreshBody
	err := DecodeJSONBody(jsonRequest(`{"refresh_token":"rt-1","category":"headshot"}`, "application/json; charset=utf-8"), &dest)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", dest.RefreshToken)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := []struct {
		name, body, contentType, field string
	}{
		{name: "unknown field", body: `{"refresh_token":"x","extra":1}`, contentType: "application/json"},
		{name: "trailing object", body: `{"refresh_token":"x"}{"refresh_token":"y"}`, contentType: "application/json"},
		{name: "wrong content type", body: `{"refresh_token":"x"}`, contentType: "text/plain"},
		{name: "missing required", body: `{}`, contentType: "application/json", field: "refresh_token"},
		{name: "bad category", body: `{"refresh_token":"x","category":"poster"}`, contentType: "", field: "category"},
		{name: "oversized", body: `{"refresh_token":"` + strings.Repeat("a", maxJSONBody) + `"}`, contentType: "application/json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dest refreshBody
			err := DecodeJSONBody(jsonRequest(tc.body, tc.contentType), &dest)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
			if tc.field != "" {
				details, ok := typed.Details().(map[string]string)
				require.True(t, ok, "expected field details, got %#v", typed.Details())
				assert.Contains(t, details, tc.field)
			}
		})
	}
}
