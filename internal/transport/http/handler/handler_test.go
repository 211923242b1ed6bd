package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/guardian-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", domain.ErrClientNotFound), http.StatusNotFound},
		{domain.ErrEmailAddressAlreadyExists, http.StatusConflict},
		{domain.ErrIDAlreadyExists, http.StatusConflict},
		{domain.ErrInvalidRecoveryCode, http.StatusUnauthorized},
		{domain.ErrInvalidPassword, http.StatusUnauthorized},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrInvalidRefreshToken, http.StatusUnauthorized},
		{domain.ErrBadRequest, http.StatusBadRequest},
		{errors.New("dynamo exploded"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		httpError(rr, tc.err)
		assert.Equal(t, tc.want, rr.Code, tc.err.Error())
	}
}

func TestHTTPError_HidesInternalDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	httpError(rr, errors.New("table accounts: throttled"))
	assert.NotContains(t, rr.Body.String(), "throttled")
}

type fixedVerifier struct {
	sub string
	err error
}

func (v fixedVerifier) UserID(context.Context, string) (string, error) { return v.sub, v.err }

func TestPlatformUser(t *testing.T) {
	ctx := context.Background()
	verifiers := map[string]PlatformVerifier{"google": fixedVerifier{sub: "g-1"}}

	platform, id, err := platformUser(ctx, verifiers, " Google ", "ignored", "tok")
	require.NoError(t, err)
	assert.Equal(t, "google", platform)
	assert.Equal(t, "g-1", id)

	_, _, err = platformUser(ctx, verifiers, "google", "u", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, _, err = platformUser(ctx, nil, "google", "u", "tok")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	platform, id, err = platformUser(ctx, verifiers, "github", "gh-7", "")
	require.NoError(t, err)
	assert.Equal(t, "github", platform)
	assert.Equal(t, "gh-7", id)

	_, _, err = platformUser(ctx, verifiers, "github", "", "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, _, err = platformUser(ctx, map[string]PlatformVerifier{"google": fixedVerifier{err: domain.ErrInvalidCredentials}}, "google", "", "tok")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	for _, name := range []string{"", "  ", "a:b"} {
		_, _, err = platformUser(ctx, verifiers, name, "c", "")
		assert.ErrorIs(t, err, domain.ErrBadRequest, "platform %q", name)
	}
}

func TestParseTokenRequest_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"grant_type":"refresh_token","refresh_token":"rt"}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	req, ok := parseTokenRequest(r)
	require.True(t, ok)
	assert.Equal(t, GrantRefreshToken, req.GrantType)
	assert.Equal(t, "rt", req.RefreshToken)
}

func TestParseTokenRequest_FormWithBasicAuth(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("grant_type=client_credentials"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.SetBasicAuth("cid", "csecret")
	req, ok := parseTokenRequest(r)
	require.True(t, ok)
	assert.Equal(t, GrantClientCredentials, req.GrantType)
	assert.Equal(t, "cid", req.ClientID)
	assert.Equal(t, "csecret", req.ClientSecret)
}

func TestParseTokenRequest_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	r.Header.Set("Content-Type", "application/json")
	_, ok := parseTokenRequest(r)
	assert.False(t, ok)
}

func TestCallerID_Missing(t *testing.T) {
	rr := httptest.NewRecorder()
	_, ok := callerID(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
