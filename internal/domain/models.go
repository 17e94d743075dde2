/**
 * @description
 * This file defines the core domain models for the impact-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Using distinct types for API requests and database models keeps the web layer
 *   decoupled from storage concerns.
 * - Ledger entries are append-only: no update or delete DTO exists on purpose.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project lifecycle statuses. Transitions are caller-directed; the service does not
// enforce a legality table (see DESIGN.md, kept permissive deliberately).
const (
	ProjectStatusOpen       = "OPEN"
	ProjectStatusInProgress = "IN_PROGRESS"
	ProjectStatusCompleted  = "COMPLETED"
	ProjectStatusCancelled  = "CANCELLED"
)

// Application workflow statuses. Applications start PENDING and are decided by a
// manager into APPROVED or REJECTED.
const (
	ApplicationStatusPending  = "PENDING"
	ApplicationStatusApproved = "APPROVED"
	ApplicationStatusRejected = "REJECTED"
)

// ValidProjectStatus reports whether s is one of the known project statuses.
func ValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusOpen, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

// ProjectAcceptsApplications reports whether a project in status s may receive
// volunteer applications.
func ProjectAcceptsApplications(s string) bool {
	return s == ProjectStatusOpen || s == ProjectStatusInProgress
}

// ValidDecisionStatus reports whether s is a terminal application decision.
func ValidDecisionStatus(s string) bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// Volunteer represents an onboarded volunteer. Email is unique; repeat onboarding
// with the same email upserts the existing row.
type Volunteer struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Project maps to the `projects` table. ContactEmail, Latitude, and Longitude are
// optional columns that may not exist on older schema versions; the store layer
// probes the live schema before building inserts.
type Project struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Status       string    `json:"status"`
	ContactEmail *string   `json:"contact_email,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LedgerEntry is an immutable record of a verified volunteer contribution tied to a
// project. Entries are created once per contribution event and never mutated.
type LedgerEntry struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	VolunteerID   uuid.UUID `json:"volunteer_id"`
	ProjectID     uuid.UUID `json:"project_id"`
	ImpactType    string    `json:"impact_type"`
	ImpactValue   float64   `json:"impact_value"`
	EvidenceURL   *string   `json:"evidence_url,omitempty"`
	Verified      bool      `json:"verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectApplication represents a volunteer's application to a project.
type ProjectApplication struct {
	ID             uuid.UUID  `json:"id"`
	ProjectID      uuid.UUID  `json:"project_id"`
	VolunteerName  string     `json:"volunteer_name"`
	VolunteerEmail string     `json:"volunteer_email"`
	Message        string     `json:"message"`
	Status         string     `json:"status"`
	DecisionNote   *string    `json:"decision_note,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
}

// ContributionRequest is the DTO for incoming contribution API requests.
type ContributionRequest struct {
	UserID      string  `json:"userId"`
	ProjectID   string  `json:"projectId"`
	ImpactType  string  `json:"impactType"`
	ImpactValue float64 `json:"impactValue"`
	EvidenceURL string  `json:"evidenceUrl,omitempty"`
}

// CreateProjectRequest is the DTO for both the public and the admin project
// creation endpoints. Status is honored only on the admin path.
type CreateProjectRequest struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Status       string   `json:"status,omitempty"`
	ContactEmail string   `json:"contactEmail,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
}

// ProjectListOptions bounds and filters project listings.
type ProjectListOptions struct {
	Limit  int
	Scope  string // "active" restricts to OPEN/IN_PROGRESS
	Status string // exact status filter, takes precedence over Scope
}

// ApplicationRequest is the DTO for a volunteer applying to a project.
type ApplicationRequest struct {
	VolunteerName  string `json:"volunteerName"`
	VolunteerEmail string `json:"volunteerEmail"`
	Message        string `json:"message"`
}

// DecisionRequest is the DTO for a manager deciding an application.
type DecisionRequest struct {
	Status       string `json:"status"`
	DecisionNote string `json:"decisionNote,omitempty"`
}

// VolunteerRequest is the DTO for volunteer onboarding (upsert by email).
type VolunteerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	IsActive *bool  `json:"isActive,omitempty"`
}

// ActorIdentity is the verified identity attached to the request context by the
// manager-token guard, available downstream for audit logging.
type ActorIdentity struct {
	Subject string
	Email   string
}
