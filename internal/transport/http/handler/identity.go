package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/guardian-api/internal/application/association"
	"github.com/guardian-api/internal/application/recovery"
	"github.com/guardian-api/internal/transport/http/middleware"
)

// IdentityHandler manages the credentials attached to the caller's identity.
type IdentityHandler struct {
	assoc     association.Service
	recovery  recovery.Service
	verifiers map[string]PlatformVerifier
}

func NewIdentityHandler(assoc association.Service, rec recovery.Service, verifiers map[string]PlatformVerifier) *IdentityHandler {
	return &IdentityHandler{assoc: assoc, recovery: rec, verifiers: verifiers}
}

type codeRequest struct {
	Code string `json:"code" validate:"required"`
}

// callerID returns the authenticated identity or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

func (h *IdentityHandler) AddAccount(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req accountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.assoc.AddAccount(r.Context(), identityID, req.EmailAddress, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (h *IdentityHandler) AddIntegration(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req integrationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	platform, userID, err := platformUser(r.Context(), h.verifiers, req.Platform, req.UserID, req.IDToken)
	if err != nil {
		httpError(w, err)
		return
	}
	in, err := h.assoc.AddIntegration(r.Context(), identityID, platform, userID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, in)
}

func (h *IdentityHandler) RemoveIntegration(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	identity, err := h.assoc.RemoveIntegration(r.Context(), identityID, strings.ToLower(chi.URLParam(r, "platform")))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// Delete removes the caller's identity with every credential attached to it.
// The body carries the DeleteAccount recovery code.
func (h *IdentityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req codeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	identity, err := h.recovery.DeleteByID(r.Context(), identityID, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}
