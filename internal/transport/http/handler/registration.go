package handler

import (
	"net/http"

	"github.com/guardian-api/internal/application/authentication"
	"github.com/guardian-api/internal/application/token"
)

// RegistrationHandler creates new identities and signs them in.
type RegistrationHandler struct {
	auth      authentication.Service
	tokens    token.Service
	verifiers map[string]PlatformVerifier
}

func NewRegistrationHandler(auth authentication.Service, tokens token.Service, verifiers map[string]PlatformVerifier) *RegistrationHandler {
	return &RegistrationHandler{auth: auth, tokens: tokens, verifiers: verifiers}
}

type accountRequest struct {
	EmailAddress string `json:"emailAddress" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72,password"`
}

type integrationRequest struct {
	Platform string `json:"platform" validate:"required,max=64,excludes=:"`
	UserID   string `json:"userId" validate:"omitempty,max=255"`
	IDToken  string `json:"idToken"`
}

func (h *RegistrationHandler) Account(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.auth.RegisterWithAccount(r.Context(), req.EmailAddress, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}
	resp, err := h.tokens.GenerateAccessToken(r.Context(), acc.ID, true)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *RegistrationHandler) Integration(w http.ResponseWriter, r *http.Request) {
	var req integrationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	platform, userID, err := platformUser(r.Context(), h.verifiers, req.Platform, req.UserID, req.IDToken)
	if err != nil {
		httpError(w, err)
		return
	}
	in, err := h.auth.RegisterWithIntegration(r.Context(), userID, platform)
	if err != nil {
		httpError(w, err)
		return
	}
	resp, err := h.tokens.GenerateAccessToken(r.Context(), in.IdentityID, true)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
