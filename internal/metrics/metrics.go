package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	issuesCreated     metric.Int64Counter
	issuesListed      metric.Int64Counter
	issuesUpdated     metric.Int64Counter
	issuesDeleted     metric.Int64Counter
	issuesBulkDeleted metric.Int64Counter
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.issuesCreated, err = meter.Int64Counter(
		"issue_service.issues.created",
		metric.WithDescription("Total number of issues created"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		return nil, err
	}

	m.issuesListed, err = meter.Int64Counter(
		"issue_service.issues.listed",
		metric.WithDescription("Total number of issue list queries served"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	m.issuesUpdated, err = meter.Int64Counter(
		"issue_service.issues.updated",
		metric.WithDescription("Total number of issues updated"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		return nil, err
	}

	m.issuesDeleted, err = meter.Int64Counter(
		"issue_service.issues.deleted",
		metric.WithDescription("Total number of issues deleted individually"),
		metric.WithUnit("{issue}"),
	)
	if err != nil {
		return nil, err
	}

	m.issuesBulkDeleted, err = meter.Int64Counter(
		"issue_service.issues.bulk_deleted",
		metric.WithDescription("Total number of bulk delete requests accepted"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordIssueCreated(ctx context.Context) {
	if m != nil && m.issuesCreated != nil {
		m.issuesCreated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordIssuesListed(ctx context.Context) {
	if m != nil && m.issuesListed != nil {
		m.issuesListed.Add(ctx, 1)
	}
}

func (m *Metrics) RecordIssueUpdated(ctx context.Context) {
	if m != nil && m.issuesUpdated != nil {
		m.issuesUpdated.Add(ctx, 1)
	}
}

func (m *Metrics) RecordIssueDeleted(ctx context.Context) {
	if m != nil && m.issuesDeleted != nil {
		m.issuesDeleted.Add(ctx, 1)
	}
}

func (m *Metrics) RecordIssuesBulkDeleted(ctx context.Context) {
	if m != nil && m.issuesBulkDeleted != nil {
		m.issuesBulkDeleted.Add(ctx, 1)
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}
