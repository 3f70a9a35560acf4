package issue

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var ErrIssueNotFound = errors.New("issue not found")

// Publisher is the messaging side of the service (NATS in production).
// A nil Publisher disables events without disabling the service.
type Publisher interface {
	Publish(ctx context.Context, subject string, value interface{}) error
}

// Event subjects for issue lifecycle notifications.
const (
	SubjectIssueCreated = "issues.created"
	SubjectIssueUpdated = "issues.updated"
	SubjectIssueDeleted = "issues.deleted"
)

type Event struct {
	Project string    `json:"project"`
	IssueID string    `json:"issue_id"`
	At      time.Time `json:"at"`
}

type Service interface {
	ListIssues(ctx context.Context, project string, filters map[string]string) ([]Issue, error)
	CreateIssue(ctx context.Context, project string, issue *Issue) (*Issue, error)
	UpdateIssue(ctx context.Context, project, id string, changes *Changes) error
	DeleteIssue(ctx context.Context, project, id string) (*Issue, error)
	DeleteAllIssues(ctx context.Context, project string) (int64, error)
}

type service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
}

func NewService(repo Repository, publisher Publisher, logger *slog.Logger) Service {
	return &service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *service) ListIssues(ctx context.Context, project string, filters map[string]string) ([]Issue, error) {
	return s.repo.List(ctx, project, filters)
}

func (s *service) CreateIssue(ctx context.Context, project string, issue *Issue) (*Issue, error) {
	created, err := s.repo.Create(ctx, project, issue)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, SubjectIssueCreated, project, created.ID)
	return created, nil
}

func (s *service) UpdateIssue(ctx context.Context, project, id string, changes *Changes) error {
	if err := s.repo.UpdateByID(ctx, project, id, changes); err != nil {
		return err
	}
	s.publish(ctx, SubjectIssueUpdated, project, id)
	return nil
}

func (s *service) DeleteIssue(ctx context.Context, project, id string) (*Issue, error) {
	deleted, err := s.repo.DeleteByID(ctx, project, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, SubjectIssueDeleted, project, id)
	return deleted, nil
}

func (s *service) DeleteAllIssues(ctx context.Context, project string) (int64, error) {
	count, err := s.repo.DeleteAll(ctx, project)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, SubjectIssueDeleted, project, "*")
	return count, nil
}

// publish sends a lifecycle event without affecting the outcome of the
// operation that triggered it.
func (s *service) publish(ctx context.Context, subject, project, id string) {
	if s.publisher == nil {
		return
	}
	event := Event{
		Project: project,
		IssueID: id,
		At:      time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish issue event", "subject", subject, "error", err)
	}
}
