package handler

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/guardian-api/internal/application/authentication"
	"github.com/guardian-api/internal/application/client"
	"github.com/guardian-api/internal/application/token"
	"github.com/guardian-api/internal/domain"
)

// Supported grant types. GrantIntegration signs in an identity through a
// linked platform, using the same fields as integration registration.
const (
	GrantPassword          = "password"
	GrantRefreshToken      = "refresh_token"
	GrantClientCredentials = "client_credentials"
	GrantIntegration       = "integration"
)

// OAuthHandler implements the token endpoint.
type OAuthHandler struct {
	auth      authentication.Service
	tokens    token.Service
	clients   client.Service
	verifiers map[string]PlatformVerifier
}

func NewOAuthHandler(auth authentication.Service, tokens token.Service, clients client.Service, verifiers map[string]PlatformVerifier) *OAuthHandler {
	return &OAuthHandler{auth: auth, tokens: tokens, clients: clients, verifiers: verifiers}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Platform     string `json:"platform"`
	UserID       string `json:"user_id"`
	IDToken      string `json:"id_token"`
}

// parseTokenRequest accepts a JSON body or a form body. Client credentials may
// also arrive through HTTP Basic auth.
func parseTokenRequest(r *http.Request) (tokenRequest, bool) {
	var req tokenRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, false
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, false
		}
		f := r.PostForm
		req = tokenRequest{
			GrantType:    f.Get("grant_type"),
			Username:     f.Get("username"),
			Password:     f.Get("password"),
			RefreshToken: f.Get("refresh_token"),
			ClientID:     f.Get("client_id"),
			ClientSecret: f.Get("client_secret"),
			Platform:     f.Get("platform"),
			UserID:       f.Get("user_id"),
			IDToken:      f.Get("id_token"),
		}
	}
	if id, secret, ok := r.BasicAuth(); ok && req.ClientID == "" {
		req.ClientID, req.ClientSecret = id, secret
	}
	return req, true
}

func (h *OAuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	req, ok := parseTokenRequest(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var (
		resp *domain.TokenResponse
		err  error
	)
	switch req.GrantType {
	case GrantPassword:
		if req.Username == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}
		var acc *domain.Account
		if acc, err = h.auth.LoginWithAccount(r.Context(), req.Username, req.Password); err == nil {
			resp, err = h.tokens.GenerateAccessToken(r.Context(), acc.ID, true)
		}
	case GrantRefreshToken:
		if req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest, "refresh_token is required")
			return
		}
		resp, err = h.tokens.Refresh(r.Context(), req.RefreshToken)
	case GrantClientCredentials:
		if req.ClientID == "" || req.ClientSecret == "" {
			writeError(w, http.StatusBadRequest, "client_id and client_secret are required")
			return
		}
		var c *domain.Client
		if c, err = h.clients.Authenticate(r.Context(), req.ClientID, req.ClientSecret); err == nil {
			resp, err = h.tokens.GenerateClientToken(r.Context(), c.ID)
		}
	case GrantIntegration:
		var platform, userID string
		platform, userID, err = platformUser(r.Context(), h.verifiers, req.Platform, req.UserID, req.IDToken)
		if err == nil {
			var in *domain.Integration
			in, err = h.auth.LoginWithIntegration(r.Context(), userID, platform)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				err = domain.ErrInvalidCredentials
			case err == nil:
				resp, err = h.tokens.GenerateAccessToken(r.Context(), in.IdentityID, true)
			}
		}
	default:
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
		return
	}
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
