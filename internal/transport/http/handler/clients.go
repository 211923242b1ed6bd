package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/guardian-api/internal/application/client"
)

// ClientHandler manages OAuth2 clients. Routes are guarded by the admin key.
type ClientHandler struct {
	svc client.Service
}

func NewClientHandler(svc client.Service) *ClientHandler {
	return &ClientHandler{svc: svc}
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, plaintext, err := h.svc.Create(r.Context())
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ClientEnvelope{ID: c.ID, Secret: plaintext})
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ClientEnvelope{ID: c.ID})
}

// RotateSecret issues a new secret and returns it once.
func (h *ClientHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	c, plaintext, err := h.svc.RotateSecret(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, ClientEnvelope{ID: c.ID, Secret: plaintext})
}

func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
