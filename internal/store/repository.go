/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the impact-service, together with the closed set
 * of storage error classes. Database errors are classified here, at the store boundary,
 * so the route layer never inspects engine-specific codes directly.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/enturk/impact-service/internal/domain"
)

// Classified storage outcomes. Every database failure surfaced by this package wraps
// exactly one of these sentinels; callers branch with errors.Is.
var (
	// ErrForeignKeyViolation means an insert referenced a volunteer or project
	// that does not exist.
	ErrForeignKeyViolation = errors.New("referenced entity not found")

	// ErrSerializationConflict means a serializable transaction clashed with a
	// concurrent writer. The server never retries on its own; the caller is told
	// to resubmit.
	ErrSerializationConflict = errors.New("transaction conflict, retry")

	// ErrConstraintViolation means the live schema is stricter than the payload
	// (not-null or check constraint on a dynamically built insert).
	ErrConstraintViolation = errors.New("schema stricter than payload")

	// ErrRelationMissing means a table this binary knows about has not been
	// provisioned yet (staged rollout).
	ErrRelationMissing = errors.New("relation not provisioned")

	// ErrSchemaIncompatible means the live schema requires a column this binary
	// does not know how to populate. Writes fail fast instead of tripping a
	// raw NOT NULL violation.
	ErrSchemaIncompatible = errors.New("live schema requires unknown column")

	ErrProjectNotFound     = errors.New("project not found")
	ErrApplicationNotFound = errors.New("application not found")

	// ErrProjectIntakeClosed means the target project exists but is not accepting
	// applications (status outside OPEN/IN_PROGRESS).
	ErrProjectIntakeClosed = errors.New("project intake closed")
)

// ProjectCapabilities reports which optional columns the live `projects` table
// carries, and whether the database enforces coordinates as NOT NULL. Memoized on
// the first successful probe and reused for the process lifetime; a live migration
// needs a restart to be observed.
type ProjectCapabilities struct {
	HasContactEmail     bool
	HasLatitude         bool
	HasLongitude        bool
	CoordinatesRequired bool
}

// SupportsCoordinates reports whether the live schema can store a coordinate pair.
func (c ProjectCapabilities) SupportsCoordinates() bool {
	return c.HasLatitude && c.HasLongitude
}

// ApplicationListOptions filters and bounds application listings.
type ApplicationListOptions struct {
	Status string
	Limit  int
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Schema capability probing (memoized per process).
	ProjectCapabilities(ctx context.Context) (ProjectCapabilities, error)

	// Ledger. Append-only: there is deliberately no update or delete method.
	CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error)

	// Projects.
	CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error)
	ListProjects(ctx context.Context, opts domain.ProjectListOptions) ([]domain.Project, error)
	GetProjectByID(ctx context.Context, projectID uuid.UUID) (*domain.Project, error)
	UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status string) error

	// Volunteers.
	UpsertVolunteer(ctx context.Context, volunteer *domain.Volunteer) (*domain.Volunteer, error)

	// Applications.
	CreateApplication(ctx context.Context, application *domain.ProjectApplication) (*domain.ProjectApplication, error)
	ListApplications(ctx context.Context, projectID uuid.UUID, opts ApplicationListOptions) ([]domain.ProjectApplication, error)
	DecideApplication(ctx context.Context, projectID uuid.UUID, applicationID uuid.UUID, status string, decisionNote *string) (*domain.ProjectApplication, error)
}
