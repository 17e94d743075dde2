/**
 * @description
 * This file implements the schema capability probe for the `projects` table. One
 * binary can serve both an older and a newer database schema: the probe inspects
 * information_schema.columns once, derives a typed capability set, and the insert
 * builder only binds columns the live schema actually carries.
 *
 * @notes
 * - A successful probe is memoized for the process lifetime: a database migrated
 *   while the process is running is not observed until restart, which matches the
 *   deployment model. A failed probe is NOT memoized — a transiently unreachable
 *   database must not poison the project write path until restart — so the next
 *   call probes again.
 * - If the live schema enforces NOT NULL (without a default) on a column this binary
 *   does not know, the probe fails with ErrSchemaIncompatible so writes fail fast
 *   instead of tripping a raw constraint violation.
 */

package store

import (
	"context"
	"fmt"
)

const projectsTable = "projects"

// probedColumn is one row of the catalog metadata the probe consumes.
type probedColumn struct {
	Name       string
	Nullable   bool
	HasDefault bool
}

// Columns of the projects table this binary knows how to populate, across every
// schema version it supports.
var knownProjectColumns = map[string]bool{
	"id":            true,
	"name":          true,
	"description":   true,
	"status":        true,
	"contact_email": true,
	"latitude":      true,
	"longitude":     true,
	"created_at":    true,
	"updated_at":    true,
}

// ProjectCapabilities returns the capability set for the projects table, probing
// catalog metadata on first use. Only a successful probe is memoized; errors are
// surfaced to the caller and the next call retries.
func (r *PostgresRepository) ProjectCapabilities(ctx context.Context) (ProjectCapabilities, error) {
	r.capMu.Lock()
	defer r.capMu.Unlock()

	if r.capsOK {
		return r.caps, nil
	}

	columns, err := r.probe(ctx)
	if err != nil {
		return ProjectCapabilities{}, err
	}
	caps, err := capabilitiesFromColumns(columns)
	if err != nil {
		return ProjectCapabilities{}, err
	}

	r.caps = caps
	r.capsOK = true
	return caps, nil
}

// probeColumns queries information_schema for the target table in the current schema.
func (r *PostgresRepository) probeColumns(ctx context.Context, table string) ([]probedColumn, error) {
	query := `
		SELECT column_name, is_nullable = 'YES', column_default IS NOT NULL
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`
	rows, err := r.db.Query(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []probedColumn
	for rows.Next() {
		var col probedColumn
		if err := rows.Scan(&col.Name, &col.Nullable, &col.HasDefault); err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRelationMissing, table)
	}
	return columns, nil
}

// capabilitiesFromColumns derives the typed capability set from probed catalog rows.
func capabilitiesFromColumns(columns []probedColumn) (ProjectCapabilities, error) {
	var caps ProjectCapabilities
	for _, col := range columns {
		switch col.Name {
		case "contact_email":
			caps.HasContactEmail = true
		case "latitude":
			caps.HasLatitude = true
			if !col.Nullable && !col.HasDefault {
				caps.CoordinatesRequired = true
			}
		case "longitude":
			caps.HasLongitude = true
			if !col.Nullable && !col.HasDefault {
				caps.CoordinatesRequired = true
			}
		default:
			if !knownProjectColumns[col.Name] && !col.Nullable && !col.HasDefault {
				return ProjectCapabilities{}, fmt.Errorf("%w: projects.%s", ErrSchemaIncompatible, col.Name)
			}
		}
	}
	return caps, nil
}
