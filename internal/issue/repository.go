package issue

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// filterColumns maps query-parameter names onto their columns. A filter key
// outside this set matches no stored field, so the query short-circuits to an
// empty result instead of failing.
var filterColumns = map[string]string{
	"_id":          "id",
	"project_name": "project_name",
	"issue_title":  "issue_title",
	"issue_text":   "issue_text",
	"created_by":   "created_by",
	"assigned_to":  "assigned_to",
	"status_text":  "status_text",
	"open":         "open",
}

type Repository interface {
	List(ctx context.Context, project string, filters map[string]string) ([]Issue, error)
	Create(ctx context.Context, project string, issue *Issue) (*Issue, error)
	UpdateByID(ctx context.Context, project, id string, changes *Changes) error
	DeleteByID(ctx context.Context, project, id string) (*Issue, error)
	DeleteAll(ctx context.Context, project string) (int64, error)
}

type repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) Repository {
	return &repository{db: db}
}

func (r *repository) List(ctx context.Context, project string, filters map[string]string) ([]Issue, error) {
	issues := make([]Issue, 0)
	q := r.db.NewSelect().Model(&issues).Where("project_name = ?", project)

	for key, value := range filters {
		column, ok := filterColumns[key]
		if !ok {
			return issues, nil
		}
		if column == "open" {
			open, err := strconv.ParseBool(value)
			if err != nil {
				return issues, nil
			}
			q = q.Where("open = ?", open)
			continue
		}
		q = q.Where("? = ?", bun.Ident(column), value)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return issues, nil
}

func (r *repository) Create(ctx context.Context, project string, issue *Issue) (*Issue, error) {
	// Postgres keeps microsecond precision; truncating up front keeps the
	// returned issue identical to what a later read will see.
	now := time.Now().UTC().Truncate(time.Microsecond)
	issue.ID = uuid.NewString()
	issue.ProjectName = project
	issue.CreatedOn = now
	issue.UpdatedOn = now

	if _, err := r.db.NewInsert().Model(issue).Exec(ctx); err != nil {
		return nil, err
	}
	return issue, nil
}

func (r *repository) UpdateByID(ctx context.Context, project, id string, changes *Changes) error {
	q := r.db.NewUpdate().
		Model((*Issue)(nil)).
		Set("updated_on = ?", time.Now().UTC().Truncate(time.Microsecond)).
		Where("id = ?", id).
		Where("project_name = ?", project)

	if changes.IssueTitle != nil {
		q = q.Set("issue_title = ?", *changes.IssueTitle)
	}
	if changes.IssueText != nil {
		q = q.Set("issue_text = ?", *changes.IssueText)
	}
	if changes.AssignedTo != nil {
		q = q.Set("assigned_to = ?", *changes.AssignedTo)
	}
	if changes.StatusText != nil {
		q = q.Set("status_text = ?", *changes.StatusText)
	}
	if changes.Open != nil {
		q = q.Set("open = ?", *changes.Open)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrIssueNotFound
	}
	return nil
}

func (r *repository) DeleteByID(ctx context.Context, project, id string) (*Issue, error) {
	deleted := new(Issue)
	_, err := r.db.NewDelete().
		Model((*Issue)(nil)).
		Where("id = ?", id).
		Where("project_name = ?", project).
		Returning("*").
		Exec(ctx, deleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIssueNotFound
		}
		return nil, err
	}
	return deleted, nil
}

func (r *repository) DeleteAll(ctx context.Context, project string) (int64, error) {
	result, err := r.db.NewDelete().
		Model((*Issue)(nil)).
		Where("project_name = ?", project).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
