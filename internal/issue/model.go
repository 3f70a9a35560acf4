package issue

import (
	"time"

	"github.com/uptrace/bun"
)

type Issue struct {
	bun.BaseModel `bun:"table:issues,alias:i"`

	ID          string    `bun:"id,pk" json:"_id"`
	ProjectName string    `bun:"project_name,notnull" json:"project_name"`
	IssueTitle  string    `bun:"issue_title,notnull" json:"issue_title"`
	IssueText   string    `bun:"issue_text,notnull" json:"issue_text"`
	CreatedBy   string    `bun:"created_by,notnull" json:"created_by"`
	AssignedTo  string    `bun:"assigned_to,notnull,default:''" json:"assigned_to"`
	StatusText  string    `bun:"status_text,notnull,default:''" json:"status_text"`
	CreatedOn   time.Time `bun:"created_on,notnull" json:"created_on"`
	UpdatedOn   time.Time `bun:"updated_on,notnull" json:"updated_on"`
	Open        bool      `bun:"open,notnull" json:"open"`
}

// Changes carries the client-editable fields of an update request. Nil
// pointers mean "leave the stored value alone". The id, project_name,
// created_by and created_on columns are never part of an update.
type Changes struct {
	IssueTitle *string `json:"issue_title"`
	IssueText  *string `json:"issue_text"`
	AssignedTo *string `json:"assigned_to"`
	StatusText *string `json:"status_text"`
	Open       *bool   `json:"open"`
}
