/**
 * @description
 * This file contains the HTTP handlers for the impact-service's contribution,
 * project, and volunteer endpoints. Handlers parse incoming requests, call the
 * application service, and map classified errors onto the stable JSON contract.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http, strconv: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/google/uuid: Routing and id parsing.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/enturk/impact-service/internal/app"
	"github.com/enturk/impact-service/internal/domain"
	"github.com/enturk/impact-service/internal/store"
)

// ImpactHandlers holds the application service that handlers will use.
type ImpactHandlers struct {
	service *app.Service
}

// NewImpactHandlers creates a new instance of ImpactHandlers.
func NewImpactHandlers(service *app.Service) *ImpactHandlers {
	return &ImpactHandlers{service: service}
}

type contributionResponse struct {
	Success       bool    `json:"success"`
	TransactionID string  `json:"transactionId"`
	ImpactType    string  `json:"impactType"`
	ImpactValue   float64 `json:"impactValue"`
}

type projectResponse struct {
	Success bool            `json:"success"`
	Data    *domain.Project `json:"data"`
	Meta    *projectMeta    `json:"meta,omitempty"`
}

type projectMeta struct {
	Source   string `json:"source,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
}

type listMeta struct {
	Count int `json:"count"`
}

type projectListResponse struct {
	Success bool             `json:"success"`
	Data    []domain.Project `json:"data"`
	Meta    listMeta         `json:"meta"`
}

// mapWriteError translates classified service/store errors onto the HTTP contract.
// Unrecognized failures are logged server-side and reported with a generic message
// under fallbackCode.
func (h *ImpactHandlers) mapWriteError(w http.ResponseWriter, err error, fallbackCode string) {
	var validationErr *app.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, CodeValidationError, validationErr.Message)
	case errors.Is(err, app.ErrCoordinatesRequired):
		writeError(w, http.StatusBadRequest, CodeCoordinatesRequired, "This deployment requires project coordinates")
	case errors.Is(err, store.ErrForeignKeyViolation):
		writeError(w, http.StatusNotFound, CodeFKReferenceNotFound, "Referenced volunteer or project does not exist")
	case errors.Is(err, store.ErrSerializationConflict):
		writeError(w, http.StatusConflict, CodeSerializationFailure, "Write conflicted with a concurrent request. Retry.")
	case errors.Is(err, store.ErrConstraintViolation):
		writeError(w, http.StatusBadRequest, CodeSchemaIncompatible, "Live schema is stricter than the payload")
	case errors.Is(err, store.ErrSchemaIncompatible):
		log.Printf("level=error component=api msg=\"schema incompatible with binary\" err=%v", err)
		writeError(w, http.StatusInternalServerError, CodeSchemaIncompatible, "Service is misconfigured for this database schema")
	case errors.Is(err, store.ErrRelationMissing):
		writeError(w, http.StatusServiceUnavailable, CodeRelationUnavailable, "Required table is not provisioned yet")
	case errors.Is(err, store.ErrProjectNotFound):
		writeError(w, http.StatusNotFound, CodeProjectNotFound, "Project not found")
	case errors.Is(err, store.ErrApplicationNotFound):
		writeError(w, http.StatusNotFound, CodeApplicationNotFound, "Application not found")
	case errors.Is(err, store.ErrProjectIntakeClosed):
		writeError(w, http.StatusConflict, CodeProjectNotOpen, "Project is not accepting applications")
	default:
		log.Printf("level=error component=api msg=\"write failed\" code=%s err=%v", fallbackCode, err)
		writeError(w, http.StatusInternalServerError, fallbackCode, "Unexpected write failure")
	}
}

// mapApplicationError is mapWriteError specialized for the application workflow: a
// missing project_applications table (staged rollout) reports the
// applications-specific unavailability code instead of the generic relation code.
func (h *ImpactHandlers) mapApplicationError(w http.ResponseWriter, err error, fallbackCode string) {
	if errors.Is(err, store.ErrRelationMissing) {
		writeError(w, http.StatusServiceUnavailable, CodeApplicationsUnavailable, "Applications are not available yet")
		return
	}
	h.mapWriteError(w, err, fallbackCode)
}

// RecordContributionHandler handles POST /api/v1/contributions.
func (h *ImpactHandlers) RecordContributionHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.ContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be a JSON object")
		return
	}

	entry, err := h.service.RecordContribution(r.Context(), req)
	if err != nil {
		h.mapWriteError(w, err, CodeContributionWriteFailed)
		return
	}

	writeJSON(w, http.StatusCreated, contributionResponse{
		Success:       true,
		TransactionID: entry.TransactionID.String(),
		ImpactType:    entry.ImpactType,
		ImpactValue:   entry.ImpactValue,
	})
}

func (h *ImpactHandlers) createProject(w http.ResponseWriter, r *http.Request, actorIsAdmin bool, source string) {
	var req domain.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be a JSON object")
		return
	}

	project, degraded, err := h.service.CreateProject(r.Context(), req, actorIsAdmin)
	if err != nil {
		h.mapWriteError(w, err, CodeProjectWriteFailed)
		return
	}

	writeJSON(w, http.StatusCreated, projectResponse{
		Success: true,
		Data:    project,
		Meta:    &projectMeta{Source: source, Degraded: degraded},
	})
}

// CreatePublicProjectHandler handles POST /api/v1/projects/public. Status is always
// forced to OPEN on this path.
func (h *ImpactHandlers) CreatePublicProjectHandler(w http.ResponseWriter, r *http.Request) {
	h.createProject(w, r, false, "public")
}

// CreateAdminProjectHandler handles POST /api/v1/projects behind the admin key.
func (h *ImpactHandlers) CreateAdminProjectHandler(w http.ResponseWriter, r *http.Request) {
	h.createProject(w, r, true, "admin")
}

// ListProjectsHandler handles GET /api/v1/projects.
func (h *ImpactHandlers) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	opts := domain.ProjectListOptions{
		Scope:  r.URL.Query().Get("scope"),
		Status: r.URL.Query().Get("status"),
	}
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, CodeValidationError, "limit must be a positive integer")
			return
		}
		opts.Limit = limit
	}

	projects, err := h.service.ListProjects(r.Context(), opts)
	if err != nil {
		h.mapWriteError(w, err, CodeInternalError)
		return
	}

	writeJSON(w, http.StatusOK, projectListResponse{
		Success: true,
		Data:    projects,
		Meta:    listMeta{Count: len(projects)},
	})
}

// GetProjectHandler handles GET /api/v1/projects/{projectID}.
func (h *ImpactHandlers) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.parseProjectID(w, r)
	if !ok {
		return
	}

	project, err := h.service.GetProject(r.Context(), projectID)
	if err != nil {
		h.mapWriteError(w, err, CodeInternalError)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Success: true, Data: project})
}

// UpdateProjectStatusHandler handles PATCH /api/v1/projects/{projectID}/status.
// Manager-token guarded by the router.
func (h *ImpactHandlers) UpdateProjectStatusHandler(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.parseProjectID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be a JSON object")
		return
	}

	if err := h.service.UpdateProjectStatus(r.Context(), projectID, req.Status); err != nil {
		h.mapWriteError(w, err, CodeProjectWriteFailed)
		return
	}

	if identity, ok := GetActorIdentity(r.Context()); ok {
		log.Printf("level=info component=api msg=\"project status updated\" project_id=%s status=%s actor=%s", projectID, req.Status, identity.Subject)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"projectId": projectID.String(),
		"status":    req.Status,
	})
}

// UpsertVolunteerHandler handles POST /api/v1/volunteers behind the admin key.
// Repeat onboarding with a known email updates the existing volunteer.
func (h *ImpactHandlers) UpsertVolunteerHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.VolunteerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "Request body must be a JSON object")
		return
	}

	volunteer, err := h.service.UpsertVolunteer(r.Context(), req)
	if err != nil {
		h.mapWriteError(w, err, CodeVolunteerWriteFailed)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    volunteer,
	})
}

func (h *ImpactHandlers) parseProjectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(chi.URLParam(r, "projectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationError, "project id must be a valid UUID")
		return uuid.Nil, false
	}
	return projectID, true
}
