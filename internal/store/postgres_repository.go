/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains the SQL for the impact ledger, projects, volunteers, and project
 * applications. All mutating methods run through the serializable transaction
 * writer in txwriter.go; the projects insert and select shapes adapt to the live
 * schema via the capability probe.
 *
 * @dependencies
 * - context, fmt, strings: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/enturk/impact-service/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for
// PostgreSQL. The capability probe result is memoized here on first success.
type PostgresRepository struct {
	db *pgxpool.Pool

	capMu  sync.Mutex
	caps   ProjectCapabilities
	capsOK bool
	probe  func(ctx context.Context) ([]probedColumn, error)
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	r := &PostgresRepository{db: db}
	r.probe = func(ctx context.Context) ([]probedColumn, error) {
		return r.probeColumns(ctx, projectsTable)
	}
	return r
}

// CreateLedgerEntry appends one immutable contribution record and returns it with
// the generated timestamp. There is no corresponding update or delete.
func (r *PostgresRepository) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	query := `
		INSERT INTO impact_ledger (
			transaction_id, volunteer_id, project_id, impact_type, impact_value, evidence_url, verified
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`
	created := *entry
	err := r.withSerializableTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			entry.TransactionID,
			entry.VolunteerID,
			entry.ProjectID,
			entry.ImpactType,
			entry.ImpactValue,
			entry.EvidenceURL,
			entry.Verified,
		).Scan(&created.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// projectSelectColumns builds the select list for the projects table, substituting
// NULL for optional columns the live schema does not carry so one scan shape serves
// every supported schema version.
func projectSelectColumns(caps ProjectCapabilities) string {
	contact := "NULL::text"
	if caps.HasContactEmail {
		contact = "contact_email"
	}
	lat, lng := "NULL::double precision", "NULL::double precision"
	if caps.HasLatitude {
		lat = "latitude"
	}
	if caps.HasLongitude {
		lng = "longitude"
	}
	return fmt.Sprintf("id, name, description, status, %s, %s, %s, created_at", contact, lat, lng)
}

func scanProject(row pgx.Row, p *domain.Project) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Status, &p.ContactEmail, &p.Latitude, &p.Longitude, &p.CreatedAt)
}

// CreateProject inserts a project, binding only the optional columns the live
// schema supports, in a fixed column order with positional parameters.
func (r *PostgresRepository) CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	caps, err := r.ProjectCapabilities(ctx)
	if err != nil {
		return nil, classifyWriteError(err)
	}

	columns := []string{"id", "name", "description", "status"}
	args := []interface{}{project.ID, project.Name, project.Description, project.Status}

	created := *project
	if caps.HasContactEmail {
		columns = append(columns, "contact_email")
		args = append(args, project.ContactEmail)
	} else {
		created.ContactEmail = nil
	}
	if caps.SupportsCoordinates() {
		columns = append(columns, "latitude", "longitude")
		args = append(args, project.Latitude, project.Longitude)
	} else {
		created.Latitude = nil
		created.Longitude = nil
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(
		"INSERT INTO projects (%s) VALUES (%s) RETURNING created_at",
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	err = r.withSerializableTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query, args...).Scan(&created.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListProjects returns projects newest-first, bounded by opts.Limit, optionally
// filtered to a specific status or to the active scope.
func (r *PostgresRepository) ListProjects(ctx context.Context, opts domain.ProjectListOptions) ([]domain.Project, error) {
	caps, err := r.ProjectCapabilities(ctx)
	if err != nil {
		return nil, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf("SELECT %s FROM projects", projectSelectColumns(caps))
	args := []interface{}{}
	argPos := 1

	if status := strings.TrimSpace(opts.Status); status != "" {
		query += fmt.Sprintf(" WHERE status = $%d", argPos)
		args = append(args, status)
		argPos++
	} else if strings.EqualFold(strings.TrimSpace(opts.Scope), "active") {
		query += fmt.Sprintf(" WHERE status IN ($%d, $%d)", argPos, argPos+1)
		args = append(args, domain.ProjectStatusOpen, domain.ProjectStatusInProgress)
		argPos += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := make([]domain.Project, 0, limit)
	for rows.Next() {
		var p domain.Project
		if err := scanProject(rows, &p); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProjectByID retrieves a single project by its id.
func (r *PostgresRepository) GetProjectByID(ctx context.Context, projectID uuid.UUID) (*domain.Project, error) {
	caps, err := r.ProjectCapabilities(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s FROM projects WHERE id = $1", projectSelectColumns(caps))
	var p domain.Project
	err = scanProject(r.db.QueryRow(ctx, query, projectID), &p)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdateProjectStatus overwrites a project's status unconditionally. No transition
// legality table is enforced; any manager-directed overwrite is allowed (see
// DESIGN.md).
func (r *PostgresRepository) UpdateProjectStatus(ctx context.Context, projectID uuid.UUID, status string) error {
	return r.withSerializableTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "UPDATE projects SET status = $1 WHERE id = $2", status, projectID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrProjectNotFound
		}
		return nil
	})
}

// UpsertVolunteer creates a volunteer or, on a repeat email, updates the existing
// row. Email uniqueness is the conflict target.
func (r *PostgresRepository) UpsertVolunteer(ctx context.Context, volunteer *domain.Volunteer) (*domain.Volunteer, error) {
	query := `
		INSERT INTO users (id, full_name, email, is_active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email)
		DO UPDATE SET full_name = EXCLUDED.full_name, is_active = EXCLUDED.is_active
		RETURNING id, created_at
	`
	created := *volunteer
	err := r.withSerializableTx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, query,
			volunteer.ID,
			volunteer.FullName,
			volunteer.Email,
			volunteer.IsActive,
		).Scan(&created.ID, &created.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// CreateApplication inserts a PENDING application. The project status gate runs
// inside the same serializable transaction as the insert so a concurrent status
// change cannot slip an application into a closed project.
func (r *PostgresRepository) CreateApplication(ctx context.Context, application *domain.ProjectApplication) (*domain.ProjectApplication, error) {
	created := *application
	created.Status = domain.ApplicationStatusPending

	err := r.withSerializableTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, "SELECT status FROM projects WHERE id = $1", application.ProjectID).Scan(&status)
		if err != nil {
			if err == pgx.ErrNoRows {
				return ErrProjectNotFound
			}
			return err
		}
		if !domain.ProjectAcceptsApplications(status) {
			return ErrProjectIntakeClosed
		}

		query := `
			INSERT INTO project_applications (id, project_id, volunteer_name, volunteer_email, message, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at
		`
		return tx.QueryRow(ctx, query,
			created.ID,
			created.ProjectID,
			created.VolunteerName,
			created.VolunteerEmail,
			created.Message,
			created.Status,
		).Scan(&created.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// ListApplications returns a project's applications newest-first, optionally
// filtered by status. Fails with ErrProjectNotFound when the project is absent.
func (r *PostgresRepository) ListApplications(ctx context.Context, projectID uuid.UUID, opts ApplicationListOptions) ([]domain.ProjectApplication, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM projects WHERE id = $1)", projectID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProjectNotFound
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, project_id, volunteer_name, volunteer_email, message, status, decision_note, created_at, reviewed_at
		FROM project_applications
		WHERE project_id = $1
	`
	args := []interface{}{projectID}
	argPos := 2
	if status := strings.TrimSpace(opts.Status); status != "" {
		query += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, status)
		argPos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyWriteError(err)
	}
	defer rows.Close()

	applications := make([]domain.ProjectApplication, 0, limit)
	for rows.Next() {
		var a domain.ProjectApplication
		if err := rows.Scan(
			&a.ID, &a.ProjectID, &a.VolunteerName, &a.VolunteerEmail,
			&a.Message, &a.Status, &a.DecisionNote, &a.CreatedAt, &a.ReviewedAt,
		); err != nil {
			return nil, err
		}
		applications = append(applications, a)
	}
	return applications, rows.Err()
}

// DecideApplication records a manager decision, stamping reviewed_at with the
// database clock. The update matches on application id and project id jointly so an
// application cannot be decided under the wrong project.
func (r *PostgresRepository) DecideApplication(ctx context.Context, projectID uuid.UUID, applicationID uuid.UUID, status string, decisionNote *string) (*domain.ProjectApplication, error) {
	query := `
		UPDATE project_applications
		SET status = $1, decision_note = $2, reviewed_at = NOW()
		WHERE id = $3 AND project_id = $4
		RETURNING id, project_id, volunteer_name, volunteer_email, message, status, decision_note, created_at, reviewed_at
	`
	var decided domain.ProjectApplication
	err := r.withSerializableTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query, status, decisionNote, applicationID, projectID).Scan(
			&decided.ID, &decided.ProjectID, &decided.VolunteerName, &decided.VolunteerEmail,
			&decided.Message, &decided.Status, &decided.DecisionNote, &decided.CreatedAt, &decided.ReviewedAt,
		)
		if err == pgx.ErrNoRows {
			return ErrApplicationNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &decided, nil
}
