package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/linkflow-ai/linkflow/internal/credential"
)

type credentialHandler struct {
	store *credential.Store
}

func newCredentialHandler(store *credential.Store) *credentialHandler {
	return &credentialHandler{store: store}
}

func credentialErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, credential.ErrCredentialNotFound):
		return http.StatusNotFound, errCodeNotFound
	case errors.Is(err, credential.ErrForbidden):
		return http.StatusForbidden, errCodeForbidden
	case errors.Is(err, credential.ErrNameRequired),
		errors.Is(err, credential.ErrUnknownType),
		errors.Is(err, credential.ErrValidationFailed),
		errors.Is(err, credential.ErrDuplicateName),
		errors.Is(err, credential.ErrUnsupportedAuthType):
		return http.StatusBadRequest, errCodeValidation
	case errors.Is(err, credential.ErrExpired):
		return http.StatusForbidden, errCodeForbidden
	default:
		return http.StatusInternalServerError, errCodeInternal
	}
}

func credentialIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "credentialID"))
}

type createCredentialRequest struct {
	Name      string                 `json:"name" validate:"required"`
	Type      string                 `json:"type" validate:"required"`
	Payload   map[string]interface{} `json:"payload" validate:"required"`
	ExpiresAt *time.Time             `json:"expires_at"`
}

func (h *credentialHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	claims := claimsFromContext(r.Context())

	rec, err := h.store.Create(r.Context(), claims.UserID, req.Name, req.Type, req.Payload, req.ExpiresAt)
	if err != nil {
		status, code := credentialErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *credentialHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid credential id")
		return
	}
	claims := claimsFromContext(r.Context())

	payload, err := h.store.Get(r.Context(), id, claims.UserID)
	if err != nil {
		status, code := credentialErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

type updateCredentialRequest struct {
	Name      *string                `json:"name"`
	Payload   map[string]interface{} `json:"payload"`
	ExpiresAt *time.Time             `json:"expires_at"`
}

func (h *credentialHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid credential id")
		return
	}
	var req updateCredentialRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	claims := claimsFromContext(r.Context())

	rec, err := h.store.Update(r.Context(), id, claims.UserID, req.Name, req.Payload, req.ExpiresAt)
	if err != nil {
		status, code := credentialErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *credentialHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid credential id")
		return
	}
	claims := claimsFromContext(r.Context())

	if err := h.store.Delete(r.Context(), id, claims.UserID); err != nil {
		status, code := credentialErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type rotateCredentialRequest struct {
	Payload map[string]interface{} `json:"payload" validate:"required"`
}

func (h *credentialHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	id, err := credentialIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid credential id")
		return
	}
	var req rotateCredentialRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	claims := claimsFromContext(r.Context())

	rec, err := h.store.Rotate(r.Context(), id, claims.UserID, req.Payload)
	if err != nil {
		status, code := credentialErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type testCredentialRequest struct {
	Type    string                 `json:"type" validate:"required"`
	Payload map[string]interface{} `json:"payload" validate:"required"`
}

func (h *credentialHandler) Test(w http.ResponseWriter, r *http.Request) {
	var req testCredentialRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.store.Test(req.Type, req.Payload)
	if err != nil {
		status, code := credentialErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
