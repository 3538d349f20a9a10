package api

import (
	"net/http"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

type nodeTypesHandler struct {
	registry *core.Registry
}

func newNodeTypesHandler(registry *core.Registry) *nodeTypesHandler {
	return &nodeTypesHandler{registry: registry}
}

func (h *nodeTypesHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.List())
}
