// Package api exposes the execution engine, credential store and node
// registry over HTTP: submit/cancel/retry a workflow run, inspect its
// progress, manage credentials, and stream live execution events over a
// websocket.
package api

import (
	"encoding/json"
	"net/http"
)

const (
	errCodeValidation   = "VALIDATION_ERROR"
	errCodeNotFound     = "NOT_FOUND"
	errCodeUnauthorized = "UNAUTHORIZED"
	errCodeForbidden    = "FORBIDDEN"
	errCodeBadRequest   = "BAD_REQUEST"
	errCodeInternal     = "INTERNAL_SERVER_ERROR"
)

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: status < 400, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Error: &errorBody{Code: code, Message: message}})
}
