/**
 * @description
 * This file contains the core application service for the impact-service. It owns
 * payload validation and business rules (impact value positivity, coordinate
 * pairing, project intake gating, decision legality) and orchestrates the
 * repository, the post-commit event producer, and the best-effort indexing client.
 *
 * @dependencies
 * - context, errors, fmt, strings: Standard Go libraries.
 * - github.com/google/uuid: For generating entity identifiers.
 * - internal/domain, internal/store: Domain models and data access.
 * - pkg/indexclient, pkg/rabbitmq: Outbound collaborators.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/enturk/impact-service/internal/domain"
	"github.com/enturk/impact-service/internal/store"
	"github.com/enturk/impact-service/pkg/indexclient"
	"github.com/enturk/impact-service/pkg/rabbitmq"
)

var (
	// ErrCoordinatesRequired means the live schema enforces coordinates and the
	// payload supplied none. Surfaced before any insert is attempted.
	ErrCoordinatesRequired = errors.New("project coordinates required")
)

// ValidationError carries a client-facing message for a malformed payload.
// Validation always happens before any database connection is acquired.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Service implements the ledger, project intake, and application workflow
// operations on top of the repository.
type Service struct {
	repo         store.Repository
	producer     rabbitmq.Publisher
	indexer      *indexclient.Client
	listMaxLimit int
}

// NewService creates the application service. producer and indexer may be nil;
// both collaborators are best-effort and never affect the primary write.
func NewService(repo store.Repository, producer rabbitmq.Publisher, indexer *indexclient.Client, listMaxLimit int) *Service {
	if listMaxLimit <= 0 {
		listMaxLimit = 100
	}
	return &Service{
		repo:         repo,
		producer:     producer,
		indexer:      indexer,
		listMaxLimit: listMaxLimit,
	}
}

// RecordContribution validates and appends one ledger entry, returning the created
// record. A `contribution.recorded` event is published only after a successful
// commit; publish failure degrades to a warning, never a rollback.
func (s *Service) RecordContribution(ctx context.Context, req domain.ContributionRequest) (*domain.LedgerEntry, error) {
	volunteerID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, validationErrorf("userId must be a valid UUID")
	}
	projectID, err := uuid.Parse(strings.TrimSpace(req.ProjectID))
	if err != nil {
		return nil, validationErrorf("projectId must be a valid UUID")
	}
	impactType := strings.TrimSpace(req.ImpactType)
	if impactType == "" {
		return nil, validationErrorf("impactType is required")
	}
	if req.ImpactValue <= 0 {
		return nil, validationErrorf("impactValue must be greater than zero")
	}

	var evidenceURL *string
	if trimmed := strings.TrimSpace(req.EvidenceURL); trimmed != "" {
		parsed, err := url.Parse(trimmed)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, validationErrorf("evidenceUrl must be an http(s) URL")
		}
		evidenceURL = &trimmed
	}

	entry := &domain.LedgerEntry{
		TransactionID: uuid.New(),
		VolunteerID:   volunteerID,
		ProjectID:     projectID,
		ImpactType:    impactType,
		ImpactValue:   req.ImpactValue,
		EvidenceURL:   evidenceURL,
		Verified:      true,
	}

	created, err := s.repo.CreateLedgerEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	if s.producer != nil {
		event := rabbitmq.ContributionRecordedEvent{
			TransactionID: created.TransactionID,
			VolunteerID:   created.VolunteerID,
			ProjectID:     created.ProjectID,
			ImpactType:    created.ImpactType,
			ImpactValue:   created.ImpactValue,
			Timestamp:     created.CreatedAt,
		}
		if err := s.producer.PublishContributionRecorded(ctx, event); err != nil {
			log.Printf("level=warn component=app msg=\"contribution event publish failed\" transaction_id=%s err=%v", created.TransactionID, err)
		}
	}

	return created, nil
}

// CreateProject validates and creates a project. The public path forces status OPEN
// (actorIsAdmin=false); the admin path may set any valid status. The returned bool
// reports whether the post-commit indexing call degraded.
func (s *Service) CreateProject(ctx context.Context, req domain.CreateProjectRequest, actorIsAdmin bool) (*domain.Project, bool, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, false, validationErrorf("name is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, false, validationErrorf("description is required")
	}

	status := domain.ProjectStatusOpen
	if actorIsAdmin {
		if requested := strings.TrimSpace(req.Status); requested != "" {
			if !domain.ValidProjectStatus(requested) {
				return nil, false, validationErrorf("status must be one of OPEN, IN_PROGRESS, COMPLETED, CANCELLED")
			}
			status = requested
		}
	}

	// Coordinates are both-or-neither; rejected before any database call.
	if (req.Latitude == nil) != (req.Longitude == nil) {
		return nil, false, validationErrorf("latitude and longitude must be supplied together")
	}
	if req.Latitude != nil {
		if *req.Latitude < -90 || *req.Latitude > 90 {
			return nil, false, validationErrorf("latitude must be between -90 and 90")
		}
		if *req.Longitude < -180 || *req.Longitude > 180 {
			return nil, false, validationErrorf("longitude must be between -180 and 180")
		}
	}

	var contactEmail *string
	if trimmed := strings.TrimSpace(req.ContactEmail); trimmed != "" {
		if _, err := mail.ParseAddress(trimmed); err != nil {
			return nil, false, validationErrorf("contactEmail must be a valid email address")
		}
		contactEmail = &trimmed
	}

	caps, err := s.repo.ProjectCapabilities(ctx)
	if err != nil {
		return nil, false, err
	}
	if caps.CoordinatesRequired && req.Latitude == nil {
		return nil, false, ErrCoordinatesRequired
	}

	project := &domain.Project{
		ID:           uuid.New(),
		Name:         name,
		Description:  description,
		Status:       status,
		ContactEmail: contactEmail,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
	}

	created, err := s.repo.CreateProject(ctx, project)
	if err != nil {
		return nil, false, err
	}

	degraded := false
	if s.indexer != nil {
		if err := s.indexer.IndexProject(ctx, indexclient.ProjectDocument{
			ProjectID:   created.ID.String(),
			Name:        created.Name,
			Description: created.Description,
			Status:      created.Status,
		}); err != nil {
			degraded = true
			log.Printf("level=warn component=app msg=\"project indexing degraded\" project_id=%s err=%v", created.ID, err)
		}
	}

	return created, degraded, nil
}

// ListProjects returns projects newest-first, clamped to the configured page bound.
func (s *Service) ListProjects(ctx context.Context, opts domain.ProjectListOptions) ([]domain.Project, error) {
	if opts.Status != "" && !domain.ValidProjectStatus(opts.Status) {
		return nil, validationErrorf("status must be one of OPEN, IN_PROGRESS, COMPLETED, CANCELLED")
	}
	if opts.Limit <= 0 || opts.Limit > s.listMaxLimit {
		opts.Limit = s.listMaxLimit
	}
	return s.repo.ListProjects(ctx, opts)
}

// GetProject retrieves one project by id.
func (s *Service) GetProject(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	return s.repo.GetProjectByID(ctx, projectID)
}

// UpdateProjectStatus overwrites a project's status on behalf of a manager.
func (s *Service) UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	status = strings.TrimSpace(status)
	if !domain.ValidProjectStatus(status) {
		return validationErrorf("status must be one of OPEN, IN_PROGRESS, COMPLETED, CANCELLED")
	}
	return s.repo.UpdateProjectStatus(ctx, projectID, status)
}

// UpsertVolunteer onboards a volunteer, updating the existing row when the email is
// already known.
func (s *Service) UpsertVolunteer(ctx context.Context, req domain.VolunteerRequest) (*domain.Volunteer, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, validationErrorf("fullName is required")
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, validationErrorf("email must be a valid email address")
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	return s.repo.UpsertVolunteer(ctx, &domain.Volunteer{
		ID:       uuid.New(),
		FullName: fullName,
		Email:    email,
		IsActive: isActive,
	})
}

// Apply creates a PENDING application against an open project.
func (s *Service) Apply(ctx context.Context, projectID uuid.UUID, req domain.ApplicationRequest) (*domain.ProjectApplication, error) {
	volunteerName := strings.TrimSpace(req.VolunteerName)
	if volunteerName == "" {
		return nil, validationErrorf("volunteerName is required")
	}
	volunteerEmail := strings.TrimSpace(strings.ToLower(req.VolunteerEmail))
	if _, err := mail.ParseAddress(volunteerEmail); err != nil {
		return nil, validationErrorf("volunteerEmail must be a valid email address")
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, validationErrorf("message is required")
	}

	return s.repo.CreateApplication(ctx, &domain.ProjectApplication{
		ID:             uuid.New(),
		ProjectID:      projectID,
		VolunteerName:  volunteerName,
		VolunteerEmail: volunteerEmail,
		Message:        message,
	})
}

// ListApplications returns a project's applications for manager review.
func (s *Service) ListApplications(ctx context.Context, projectID uuid.UUID, status string, limit int) ([]domain.ProjectApplication, error) {
	status = strings.TrimSpace(status)
	if status != "" &&
		status != domain.ApplicationStatusPending && !domain.ValidDecisionStatus(status) {
		return nil, validationErrorf("status must be one of PENDING, APPROVED, REJECTED")
	}
	if limit <= 0 || limit > s.listMaxLimit {
		limit = s.listMaxLimit
	}
	return s.repo.ListApplications(ctx, projectID, store.ApplicationListOptions{Status: status, Limit: limit})
}

// DecideApplication records a manager decision. Re-deciding an already decided
// application overwrites the prior decision; this permissiveness is deliberate
// (see DESIGN.md).
func (s *Service) DecideApplication(ctx context.Context, projectID uuid.UUID, applicationID uuid.UUID, req domain.DecisionRequest) (*domain.ProjectApplication, error) {
	status := strings.TrimSpace(req.Status)
	if !domain.ValidDecisionStatus(status) {
		return nil, validationErrorf("status must be APPROVED or REJECTED")
	}
	var note *string
	if trimmed := strings.TrimSpace(req.DecisionNote); trimmed != "" {
		note = &trimmed
	}
	return s.repo.DecideApplication(ctx, projectID, applicationID, status, note)
}
