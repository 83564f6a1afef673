package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Daskott/relief/models"
	"github.com/Daskott/relief/session"
	"github.com/Daskott/relief/store"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

func writeData(rw http.ResponseWriter, data interface{}, statusCode int) {
	writeResponse(rw, ResponsePayload{Success: true, Data: data}, statusCode)
}

// writeErrorResponse maps err onto a status: input problems are 400s, auth
// failures keep the provider's status, absent rows are 404s and everything
// else is a 500.
func writeErrorResponse(rw http.ResponseWriter, err error) {
	var vErr *models.ValidationError
	var authErr *session.AuthError

	switch {
	case errors.As(err, &vErr):
		writeResponse(rw, ResponsePayload{Errors: vErr.Errors}, http.StatusBadRequest)
	case errors.As(err, &authErr):
		status := authErr.Status
		if status < http.StatusBadRequest {
			status = http.StatusUnauthorized
		}
		writeResponse(rw, ResponsePayload{Errors: []string{authErr.Message}}, status)
	case store.IsNotFound(err):
		writeResponse(rw, ResponsePayload{Errors: []string{"resource not found"}}, http.StatusNotFound)
	case store.IsConflict(err):
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusConflict)
	default:
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
	}
}

func writeNotFound(rw http.ResponseWriter, resource string) {
	writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("%v not found", resource)}}, http.StatusNotFound)
}

func writeForbidden(rw http.ResponseWriter, msg string) {
	writeResponse(rw, ResponsePayload{Errors: []string{msg}}, http.StatusForbidden)
}

// decodeBody decodes the JSON request body into dst, writing a 400 and
// returning false when it can't.
func decodeBody(rw http.ResponseWriter, r *http.Request, dst interface{}) bool {
	decoder := json.NewDecoder(r.Body)

	if err := decoder.Decode(dst); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("invalid request body: %v", err)}}, http.StatusBadRequest)
		return false
	}
	return true
}

// intQueryParam parses the query param name, returning fallback when absent.
func intQueryParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(fmt.Sprintf("'%v' must be an integer", name))
	}
	return value, nil
}
