package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/enturk/impact-service/internal/domain"
	"github.com/enturk/impact-service/internal/store"
	"github.com/enturk/impact-service/pkg/rabbitmq"
)

type serviceRepoStub struct {
	store.Repository

	caps    store.ProjectCapabilities
	capsErr error

	createLedgerCalled bool
	createdEntry       *domain.LedgerEntry

	capsCalled bool

	createProjectCalled bool
	createdProject      *domain.Project

	createApplicationCalled bool
	createApplicationErr    error

	decideCalled bool
	decideStatus string
	decideNote   *string
}

func (s *serviceRepoStub) ProjectCapabilities(ctx context.Context) (store.ProjectCapabilities, error) {
	s.capsCalled = true
	return s.caps, s.capsErr
}

func (s *serviceRepoStub) CreateLedgerEntry(ctx context.Context, entry *domain.LedgerEntry) (*domain.LedgerEntry, error) {
	s.createLedgerCalled = true
	created := *entry
	created.CreatedAt = time.Now()
	s.createdEntry = &created
	return &created, nil
}

func (s *serviceRepoStub) CreateProject(ctx context.Context, project *domain.Project) (*domain.Project, error) {
	s.createProjectCalled = true
	created := *project
	created.CreatedAt = time.Now()
	s.createdProject = &created
	return &created, nil
}

func (s *serviceRepoStub) CreateApplication(ctx context.Context, application *domain.ProjectApplication) (*domain.ProjectApplication, error) {
	s.createApplicationCalled = true
	if s.createApplicationErr != nil {
		return nil, s.createApplicationErr
	}
	created := *application
	created.Status = domain.ApplicationStatusPending
	created.CreatedAt = time.Now()
	return &created, nil
}

func (s *serviceRepoStub) DecideApplication(ctx context.Context, projectID uuid.UUID, applicationID uuid.UUID, status string, decisionNote *string) (*domain.ProjectApplication, error) {
	s.decideCalled = true
	s.decideStatus = status
	s.decideNote = decisionNote
	now := time.Now()
	return &domain.ProjectApplication{
		ID:         applicationID,
		ProjectID:  projectID,
		Status:     status,
		ReviewedAt: &now,
	}, nil
}

type publisherStub struct {
	rabbitmq.EventProducerFallback

	published  []rabbitmq.ContributionRecordedEvent
	publishErr error
}

func (p *publisherStub) PublishContributionRecorded(ctx context.Context, event rabbitmq.ContributionRecordedEvent) error {
	p.published = append(p.published, event)
	return p.publishErr
}

func validContribution() domain.ContributionRequest {
	return domain.ContributionRequest{
		UserID:      uuid.NewString(),
		ProjectID:   uuid.NewString(),
		ImpactType:  "TREES_PLANTED",
		ImpactValue: 12.5,
	}
}

func TestRecordContribution_RejectsInvalidPayloadBeforeStorage(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.ContributionRequest)
	}{
		{"non-uuid user id", func(r *domain.ContributionRequest) { r.UserID = "user-42" }},
		{"non-uuid project id", func(r *domain.ContributionRequest) { r.ProjectID = "proj-1" }},
		{"empty impact type", func(r *domain.ContributionRequest) { r.ImpactType = "  " }},
		{"zero impact value", func(r *domain.ContributionRequest) { r.ImpactValue = 0 }},
		{"negative impact value", func(r *domain.ContributionRequest) { r.ImpactValue = -5 }},
		{"non-http evidence url", func(r *domain.ContributionRequest) { r.EvidenceURL = "ftp://example.org/proof" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &serviceRepoStub{}
			service := NewService(repo, nil, nil, 100)

			req := validContribution()
			tt.mutate(&req)

			_, err := service.RecordContribution(context.Background(), req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if repo.createLedgerCalled {
				t.Fatal("expected no storage call for invalid payload")
			}
		})
	}
}

func TestRecordContribution_PublishesEventAfterSuccessfulWrite(t *testing.T) {
	repo := &serviceRepoStub{}
	producer := &publisherStub{}
	service := NewService(repo, producer, nil, 100)

	req := validContribution()
	entry, err := service.RecordContribution(context.Background(), req)
	if err != nil {
		t.Fatalf("RecordContribution returned error: %v", err)
	}
	if entry.TransactionID == uuid.Nil {
		t.Fatal("expected a generated transaction id")
	}
	if entry.ImpactValue != req.ImpactValue {
		t.Fatalf("expected impact value %v, got %v", req.ImpactValue, entry.ImpactValue)
	}
	if len(producer.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(producer.published))
	}
	if producer.published[0].TransactionID != entry.TransactionID {
		t.Fatal("published event does not reference the created entry")
	}
}

func TestRecordContribution_PublishFailureDoesNotFailWrite(t *testing.T) {
	repo := &serviceRepoStub{}
	producer := &publisherStub{publishErr: errors.New("broker down")}
	service := NewService(repo, producer, nil, 100)

	if _, err := service.RecordContribution(context.Background(), validContribution()); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
}

func TestCreateProject_RejectsUnpairedCoordinatesBeforeAnyDatabaseCall(t *testing.T) {
	lat := 52.52
	repo := &serviceRepoStub{}
	service := NewService(repo, nil, nil, 100)

	_, _, err := service.CreateProject(context.Background(), domain.CreateProjectRequest{
		Name:        "River cleanup",
		Description: "Weekly cleanup along the east bank",
		Latitude:    &lat,
	}, false)

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if repo.capsCalled || repo.createProjectCalled {
		t.Fatal("expected no database interaction for unpaired coordinates")
	}
}

func TestCreateProject_CoordinatesRequiredByLiveSchema(t *testing.T) {
	repo := &serviceRepoStub{caps: store.ProjectCapabilities{
		HasLatitude:         true,
		HasLongitude:        true,
		CoordinatesRequired: true,
	}}
	service := NewService(repo, nil, nil, 100)

	_, _, err := service.CreateProject(context.Background(), domain.CreateProjectRequest{
		Name:        "River cleanup",
		Description: "Weekly cleanup along the east bank",
	}, false)

	if !errors.Is(err, ErrCoordinatesRequired) {
		t.Fatalf("expected ErrCoordinatesRequired, got %v", err)
	}
	if repo.createProjectCalled {
		t.Fatal("expected no insert attempt when coordinates are missing")
	}
}

func TestCreateProject_PublicPathForcesStatusOpen(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, nil, nil, 100)

	created, _, err := service.CreateProject(context.Background(), domain.CreateProjectRequest{
		Name:        "River cleanup",
		Description: "Weekly cleanup along the east bank",
		Status:      domain.ProjectStatusCompleted,
	}, false)
	if err != nil {
		t.Fatalf("CreateProject returned error: %v", err)
	}
	if created.Status != domain.ProjectStatusOpen {
		t.Fatalf("expected public creation to force OPEN, got %s", created.Status)
	}
}

func TestCreateProject_AdminPathHonorsRequestedStatus(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, nil, nil, 100)

	created, _, err := service.CreateProject(context.Background(), domain.CreateProjectRequest{
		Name:        "Archive digitization",
		Description: "Scan and tag the municipal archive",
		Status:      domain.ProjectStatusInProgress,
	}, true)
	if err != nil {
		t.Fatalf("CreateProject returned error: %v", err)
	}
	if created.Status != domain.ProjectStatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", created.Status)
	}
}

func TestApply_RejectsInvalidPayloadBeforeStorage(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, nil, nil, 100)

	_, err := service.Apply(context.Background(), uuid.New(), domain.ApplicationRequest{
		VolunteerName:  "Sam Doe",
		VolunteerEmail: "not-an-email",
		Message:        "I would like to help",
	})

	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if repo.createApplicationCalled {
		t.Fatal("expected no storage call for invalid payload")
	}
}

func TestApply_SurfacesIntakeClosedFromStore(t *testing.T) {
	repo := &serviceRepoStub{createApplicationErr: store.ErrProjectIntakeClosed}
	service := NewService(repo, nil, nil, 100)

	_, err := service.Apply(context.Background(), uuid.New(), domain.ApplicationRequest{
		VolunteerName:  "Sam Doe",
		VolunteerEmail: "sam@example.org",
		Message:        "I would like to help",
	})
	if !errors.Is(err, store.ErrProjectIntakeClosed) {
		t.Fatalf("expected ErrProjectIntakeClosed, got %v", err)
	}
}

func TestDecideApplication_RejectsNonTerminalStatus(t *testing.T) {
	tests := []string{"", "PENDING", "approved", "DONE"}
	for _, status := range tests {
		t.Run("status "+status, func(t *testing.T) {
			repo := &serviceRepoStub{}
			service := NewService(repo, nil, nil, 100)

			_, err := service.DecideApplication(context.Background(), uuid.New(), uuid.New(), domain.DecisionRequest{Status: status})
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if repo.decideCalled {
				t.Fatal("expected no storage call for illegal decision status")
			}
		})
	}
}

func TestDecideApplication_PassesTrimmedNote(t *testing.T) {
	repo := &serviceRepoStub{}
	service := NewService(repo, nil, nil, 100)

	decided, err := service.DecideApplication(context.Background(), uuid.New(), uuid.New(), domain.DecisionRequest{
		Status:       domain.ApplicationStatusApproved,
		DecisionNote: "  great fit  ",
	})
	if err != nil {
		t.Fatalf("DecideApplication returned error: %v", err)
	}
	if repo.decideNote == nil || *repo.decideNote != "great fit" {
		t.Fatalf("expected trimmed decision note, got %v", repo.decideNote)
	}
	if decided.ReviewedAt == nil {
		t.Fatal("expected reviewed timestamp on decided application")
	}
}

func TestUpdateProjectStatus_RejectsUnknownStatus(t *testing.T) {
	service := NewService(&serviceRepoStub{}, nil, nil, 100)
	err := service.UpdateProjectStatus(context.Background(), uuid.New(), "ARCHIVED")
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpsertVolunteer_NormalizesEmail(t *testing.T) {
	repo := &volunteerRepoStub{}
	service := NewService(repo, nil, nil, 100)

	_, err := service.UpsertVolunteer(context.Background(), domain.VolunteerRequest{
		FullName: "Ada Okafor",
		Email:    " Ada@Example.ORG ",
	})
	if err != nil {
		t.Fatalf("UpsertVolunteer returned error: %v", err)
	}
	if repo.upserted == nil || repo.upserted.Email != "ada@example.org" {
		t.Fatalf("expected lower-cased trimmed email, got %v", repo.upserted)
	}
	if !repo.upserted.IsActive {
		t.Fatal("expected volunteers to default to active")
	}
}

type volunteerRepoStub struct {
	store.Repository
	upserted *domain.Volunteer
}

func (s *volunteerRepoStub) UpsertVolunteer(ctx context.Context, volunteer *domain.Volunteer) (*domain.Volunteer, error) {
	s.upserted = volunteer
	created := *volunteer
	created.CreatedAt = time.Now()
	return &created, nil
}
