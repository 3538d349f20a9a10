package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/linkflow-ai/linkflow/internal/engine"
)

type executionHandler struct {
	eng *engine.Engine
}

func newExecutionHandler(eng *engine.Engine) *executionHandler {
	return &executionHandler{eng: eng}
}

// engineErrorStatus maps an EngineError's taxonomy to an HTTP status.
func engineErrorStatus(err error) (int, string) {
	var ee *engine.EngineError
	if !errors.As(err, &ee) {
		return http.StatusInternalServerError, errCodeInternal
	}
	switch ee.Kind {
	case engine.ErrNotFound:
		return http.StatusNotFound, errCodeNotFound
	case engine.ErrValidationFailed, engine.ErrNoTriggerAvailable, engine.ErrCycle:
		return http.StatusBadRequest, errCodeValidation
	case engine.ErrCredentialUnavailable, engine.ErrBadCiphertext, engine.ErrBadKey:
		return http.StatusForbidden, errCodeForbidden
	default:
		return http.StatusInternalServerError, errCodeInternal
	}
}

type submitRequest struct {
	WorkflowID  uuid.UUID              `json:"workflow_id" validate:"required"`
	TriggerData map[string]interface{} `json:"trigger_data"`
}

func (h *executionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	claims := claimsFromContext(r.Context())

	executionID, err := h.eng.Submit(r.Context(), engine.ExecutionRequest{
		WorkflowID:  req.WorkflowID,
		UserID:      claims.UserID,
		TriggerData: req.TriggerData,
	})
	if err != nil {
		status, code := engineErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": executionID.String()})
}

func executionIDParam(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "executionID"))
}

func (h *executionHandler) Get(w http.ResponseWriter, r *http.Request) {
	executionID, err := executionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid execution id")
		return
	}

	record, nodeRecords, err := h.eng.GetExecution(r.Context(), executionID)
	if err != nil {
		status, code := engineErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"execution": record,
		"nodes":     nodeRecords,
	})
}

func (h *executionHandler) Progress(w http.ResponseWriter, r *http.Request) {
	executionID, err := executionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid execution id")
		return
	}

	progress, err := h.eng.GetExecutionProgress(r.Context(), executionID)
	if err != nil {
		status, code := engineErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (h *executionHandler) NodeExecution(w http.ResponseWriter, r *http.Request) {
	executionID, err := executionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid execution id")
		return
	}
	nodeID := chi.URLParam(r, "nodeID")

	rec, err := h.eng.GetNodeExecution(r.Context(), executionID, nodeID)
	if err != nil {
		status, code := engineErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *executionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	executionID, err := executionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid execution id")
		return
	}
	var req cancelRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	h.eng.Cancel(r.Context(), executionID, req.Reason)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *executionHandler) Retry(w http.ResponseWriter, r *http.Request) {
	executionID, err := executionIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errCodeBadRequest, "invalid execution id")
		return
	}
	claims := claimsFromContext(r.Context())

	newExecutionID, err := h.eng.RetryExecution(r.Context(), executionID, claims.UserID)
	if err != nil {
		status, code := engineErrorStatus(err)
		writeError(w, status, code, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"execution_id": newExecutionID.String()})
}

func (h *executionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.GetExecutionStats())
}
