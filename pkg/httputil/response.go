// Package httputil provides HTTP handler utilities for consistent error handling,
// JSON encoding/decoding, and request parsing.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/hiregate/pkg/apperr"
	"github.com/platinummonkey/hiregate/pkg/contextkeys"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// TransitionErrorResponse is the body of an INVALID_TRANSITION response.
// Allowed is always present, empty for terminal states.
type TransitionErrorResponse struct {
	ErrorResponse
	Allowed []string `json:"allowed"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteErrorMessage writes a JSON error response with a custom message and code.
func WriteErrorMessage(w http.ResponseWriter, status int, code, message string) {
	_ = WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, string(apperr.KindInvalidInput), message)
}

// WriteAppError maps err to its status code and public message. Internal and
// Unavailable errors are logged with the request id; their cause never
// reaches the client.
func WriteAppError(w http.ResponseWriter, r *http.Request, logger logrus.FieldLogger, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()

	if kind == apperr.KindInternal || kind == apperr.KindUnavailable {
		if logger == nil {
			logger = logrus.StandardLogger()
		}
		entry := logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": status,
		})
		if id := contextkeys.GetRequestID(r.Context()); id != "" {
			entry = entry.WithField("request_id", id)
		}
		if ae, ok := apperr.As(err); ok && ae.Op != "" {
			entry = entry.WithField("op", ae.Op)
		}
		entry.Error("Request failed")
	}

	body := ErrorResponse{Error: apperr.PublicMessage(err), Code: string(kind)}
	if kind == apperr.KindInvalidTransition {
		allowed := []string{}
		if ae, ok := apperr.As(err); ok {
			allowed = append(allowed, ae.Allowed...)
		}
		_ = WriteJSON(w, status, TransitionErrorResponse{ErrorResponse: body, Allowed: allowed})
		return
	}
	_ = WriteJSON(w, status, body)
}
