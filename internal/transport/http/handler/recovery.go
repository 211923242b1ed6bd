package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/guardian-api/internal/application/recovery"
	"github.com/guardian-api/internal/domain"
)

// RecoveryHandler exposes the code-gated account flows.
type RecoveryHandler struct {
	svc recovery.Service
}

func NewRecoveryHandler(svc recovery.Service) *RecoveryHandler {
	return &RecoveryHandler{svc: svc}
}

type verifyEmailRequest struct {
	EmailAddress string `json:"emailAddress" validate:"required,email"`
	Code         string `json:"code" validate:"required"`
}

type changeEmailRequest struct {
	NewEmailAddress string `json:"newEmailAddress" validate:"required,email,max=254"`
	Code            string `json:"code" validate:"required"`
}

type changePasswordRequest struct {
	EmailAddress string `json:"emailAddress" validate:"required,email"`
	OldPassword  string `json:"oldPassword" validate:"required"`
	NewPassword  string `json:"newPassword" validate:"required,min=8,max=72,password"`
}

type passwordResetRequest struct {
	EmailAddress string `json:"emailAddress" validate:"required,email"`
}

type resetPasswordRequest struct {
	IdentityID   string `json:"identityId" validate:"required"`
	EmailAddress string `json:"emailAddress" validate:"required,email"`
	NewPassword  string `json:"newPassword" validate:"required,min=8,max=72,password"`
	Code         string `json:"code" validate:"required"`
}

// RequestCode emails a fresh code of the type named in the path to the
// caller's account address.
func (h *RecoveryHandler) RequestCode(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	codeType := chi.URLParam(r, "type")
	if !domain.IsRecoveryType(codeType) {
		writeError(w, http.StatusBadRequest, "unknown code type")
		return
	}
	if err := h.svc.RequestCode(r.Context(), identityID, codeType); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "code sent"})
}

func (h *RecoveryHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req verifyEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.svc.VerifyAccount(r.Context(), identityID, req.EmailAddress, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *RecoveryHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req changeEmailRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.svc.ChangeEmailAddress(r.Context(), identityID, req.NewEmailAddress, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (h *RecoveryHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	identityID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.svc.ChangePassword(r.Context(), identityID, req.EmailAddress, req.OldPassword, req.NewPassword)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// RequestPasswordReset always answers 202 for well-formed requests so the
// endpoint cannot be used to probe for registered addresses.
func (h *RecoveryHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req passwordResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req.EmailAddress); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, MessageEnvelope{Message: "if the address is registered, a code has been sent"})
}

func (h *RecoveryHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	acc, err := h.svc.ResetPassword(r.Context(), req.IdentityID, req.EmailAddress, req.NewPassword, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}
