/**
 * @description
 * This file contains the HTTP handlers for the project application workflow:
 * public apply, manager listing, and manager decision.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/enturk/impact-service/internal/domain"
)

type applicationResponse struct {
	Success bool                       `json:"success"`
	Data    *domain.ProjectApplication `json:"data"`
}

type applicationListResponse struct {
	Success bool                        `json:"success"`
	Data    []domain.ProjectApplication `json:"data"`
	Meta    listMeta                    `json:"meta"`
}

// CreateApplicationHandler handles POST /api/v1/projects/{projectID}/applications.
// Rate-limited on the public path; the intake gate runs inside the write
// transaction.
func (h *ImpactHandlers) CreateApplicationHandler(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.parseProjectID(w, r)
	if !ok {
		return
	}

	var req domain.ApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be a JSON object")
		return
	}

	application, err := h.service.Apply(r.Context(), projectID, req)
	if err != nil {
		h.mapApplicationError(w, err, CodeApplicationWriteFailed)
		return
	}

	writeJSON(w, http.StatusCreated, applicationResponse{Success: true, Data: application})
}

// ListApplicationsHandler handles GET /api/v1/projects/{projectID}/applications.
// Manager-token guarded by the router.
func (h *ImpactHandlers) ListApplicationsHandler(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.parseProjectID(w, r)
	if !ok {
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	applications, err := h.service.ListApplications(r.Context(), projectID, r.URL.Query().Get("status"), limit)
	if err != nil {
		h.mapApplicationError(w, err, CodeInternalError)
		return
	}

	writeJSON(w, http.StatusOK, applicationListResponse{
		Success: true,
		Data:    applications,
		Meta:    listMeta{Count: len(applications)},
	})
}

// DecideApplicationHandler handles
// PATCH /api/v1/projects/{projectID}/applications/{applicationID}/status.
// The update matches project id and application id jointly; a mismatch is a 404.
func (h *ImpactHandlers) DecideApplicationHandler(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.parseProjectID(w, r)
	if !ok {
		return
	}
	applicationID, err := uuid.Parse(chi.URLParam(r, "applicationID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "application id must be a valid UUID")
		return
	}

	var req domain.DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be a JSON object")
		return
	}

	decided, err := h.service.DecideApplication(r.Context(), projectID, applicationID, req)
	if err != nil {
		h.mapApplicationError(w, err, CodeApplicationWriteFailed)
		return
	}

	if identity, ok := GetActorIdentity(r.Context()); ok {
		log.Printf("level=info component=api msg=\"application decided\" application_id=%s project_id=%s status=%s actor=%s",
			applicationID, projectID, decided.Status, identity.Subject)
	}

	writeJSON(w, http.StatusOK, applicationResponse{Success: true, Data: decided})
}
