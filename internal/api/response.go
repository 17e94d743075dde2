/**
 * @description
 * This file defines the stable JSON response contract shared by handlers and
 * middleware: a `success` boolean discriminator, a machine-readable error code,
 * and a data/meta envelope for lists.
 */

package api

import (
	"encoding/json"
	"net/http"
)

// Machine-readable error codes surfaced to clients.
const (
	CodeValidationError         = "VALIDATION_ERROR"
	CodeFKReferenceNotFound     = "FK_REFERENCE_NOT_FOUND"
	CodeSerializationFailure    = "SERIALIZATION_FAILURE"
	CodeContributionWriteFailed = "CONTRIBUTION_WRITE_FAILED"
	CodeProjectWriteFailed      = "PROJECT_WRITE_FAILED"
	CodeVolunteerWriteFailed    = "VOLUNTEER_WRITE_FAILED"
	CodeApplicationWriteFailed  = "APPLICATION_WRITE_FAILED"
	CodeCoordinatesRequired     = "PROJECT_COORDINATES_REQUIRED"
	CodeSchemaIncompatible      = "SCHEMA_INCOMPATIBLE"
	CodeProjectNotFound         = "PROJECT_NOT_FOUND"
	CodeApplicationNotFound     = "APPLICATION_NOT_FOUND"
	CodeProjectNotOpen          = "PROJECT_NOT_OPEN"
	CodeApplicationsUnavailable = "PROJECT_APPLICATIONS_UNAVAILABLE"
	CodeRelationUnavailable     = "RELATION_UNAVAILABLE"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeAuthUnavailable         = "AUTH_UNAVAILABLE"
	CodeRateLimited             = "RATE_LIMITED"
	CodeInternalError           = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

// writeJSON writes data with the given status; data is assumed to carry its own
// success discriminator.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorEnvelope{Success: false, Error: errorBody{Code: code, Message: message}})
}
