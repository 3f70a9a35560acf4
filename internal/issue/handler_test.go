package issue_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"issue-service/internal/issue"
	"issue-service/internal/metrics"
	"issue-service/internal/testdb"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAPI_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)

	pgContainer.RunMigrations(t, (*issue.Issue)(nil))

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	repo := issue.NewRepository(pgContainer.DB)
	service := issue.NewService(repo, nil, logger)
	handler := issue.NewHandler(service, logger, metrics.NewMock())
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	createIssue := func(t *testing.T, project string, payload map[string]interface{}) issue.Issue {
		t.Helper()

		body, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, "/api/issues/"+project, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		var created issue.Issue
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		return created
	}

	listIssues := func(t *testing.T, project, query string) []issue.Issue {
		t.Helper()

		req := httptest.NewRequest(http.MethodGet, "/api/issues/"+project+query, nil)
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var issues []issue.Issue
		require.NoError(t, json.NewDecoder(w.Body).Decode(&issues))
		return issues
	}

	t.Run("CreateIssue", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		created := createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "Login broken",
			"issue_text":  "500 on submit",
			"created_by":  "alice",
		})

		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "apitest", created.ProjectName)
		assert.Equal(t, "Login broken", created.IssueTitle)
		assert.Equal(t, "500 on submit", created.IssueText)
		assert.Equal(t, "alice", created.CreatedBy)
		assert.Equal(t, "", created.AssignedTo)
		assert.Equal(t, "", created.StatusText)
		assert.True(t, created.Open)
		assert.True(t, created.UpdatedOn.Equal(created.CreatedOn))

		issues := listIssues(t, "apitest", "")
		require.Len(t, issues, 1)
		assert.Equal(t, created.ID, issues[0].ID)
	})

	t.Run("CreateIssueWithOptionalFields", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		created := createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "Slow page",
			"issue_text":  "takes 10s",
			"created_by":  "bob",
			"assigned_to": "carol",
			"status_text": "triaged",
			"open":        false,
		})

		assert.Equal(t, "carol", created.AssignedTo)
		assert.Equal(t, "triaged", created.StatusText)
		assert.False(t, created.Open)
	})

	t.Run("CreateIssueMissingRequiredFields", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		payloads := []map[string]interface{}{
			{"issue_text": "no title", "created_by": "alice"},
			{"issue_title": "no text", "created_by": "alice"},
			{"issue_title": "no author", "issue_text": "text"},
			{"issue_title": "", "issue_text": "empty title", "created_by": "alice"},
			{},
		}

		for _, payload := range payloads {
			body, _ := json.Marshal(payload)
			req := httptest.NewRequest(http.MethodPost, "/api/issues/apitest", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)

			var response map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, "missing required fields", response["error"])
		}

		assert.Empty(t, listIssues(t, "apitest", ""))
	})

	t.Run("ListIssuesFiltered", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "A", "issue_text": "a", "created_by": "alice",
		})
		createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "B", "issue_text": "b", "created_by": "bob",
		})
		createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "C", "issue_text": "c", "created_by": "alice", "open": false,
		})
		// Same author, different project: must never show up below.
		createIssue(t, "other", map[string]interface{}{
			"issue_title": "D", "issue_text": "d", "created_by": "alice",
		})

		byAuthor := listIssues(t, "apitest", "?created_by=alice")
		require.Len(t, byAuthor, 2)
		for _, i := range byAuthor {
			assert.Equal(t, "alice", i.CreatedBy)
			assert.Equal(t, "apitest", i.ProjectName)
		}

		byAuthorAndOpen := listIssues(t, "apitest", "?created_by=alice&open=false")
		require.Len(t, byAuthorAndOpen, 1)
		assert.Equal(t, "C", byAuthorAndOpen[0].IssueTitle)

		assert.Len(t, listIssues(t, "apitest", ""), 3)
		assert.Len(t, listIssues(t, "other", ""), 1)
	})

	t.Run("ListIssuesUnknownFilterField", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "A", "issue_text": "a", "created_by": "alice",
		})

		assert.Empty(t, listIssues(t, "apitest", "?severity=high"))
	})

	t.Run("UpdateIssue", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		created := createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "Flaky test", "issue_text": "sometimes red", "created_by": "alice",
		})

		payload := map[string]interface{}{
			"_id":         created.ID,
			"status_text": "fixed",
			"open":        false,
		}
		body, _ := json.Marshal(payload)

		req := httptest.NewRequest(http.MethodPut, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "successfully updated", response["success"])

		issues := listIssues(t, "apitest", "")
		require.Len(t, issues, 1)
		assert.Equal(t, "fixed", issues[0].StatusText)
		assert.False(t, issues[0].Open)
		assert.Equal(t, "Flaky test", issues[0].IssueTitle)
		assert.True(t, issues[0].CreatedOn.Equal(created.CreatedOn))
		assert.True(t, issues[0].UpdatedOn.After(created.CreatedOn))
	})

	t.Run("UpdateIssueMissingID", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		body, _ := json.Marshal(map[string]interface{}{"status_text": "fixed"})
		req := httptest.NewRequest(http.MethodPut, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "no updated field sent", response["error"])
	})

	t.Run("UpdateIssueNotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		created := createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "Untouched", "issue_text": "stay", "created_by": "alice",
		})

		body, _ := json.Marshal(map[string]interface{}{
			"_id":         "missing-id",
			"status_text": "fixed",
		})
		req := httptest.NewRequest(http.MethodPut, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "could not update missing-id", response["error"])

		issues := listIssues(t, "apitest", "")
		require.Len(t, issues, 1)
		assert.Equal(t, "", issues[0].StatusText)
		assert.True(t, issues[0].UpdatedOn.Equal(created.UpdatedOn))
	})

	t.Run("UpdateIssueOtherProject", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		created := createIssue(t, "other", map[string]interface{}{
			"issue_title": "Foreign", "issue_text": "record", "created_by": "bob",
		})

		// An update issued through another project's route must not be able
		// to touch or capture the record.
		body, _ := json.Marshal(map[string]interface{}{
			"_id":         created.ID,
			"status_text": "hijacked",
		})
		req := httptest.NewRequest(http.MethodPut, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		issues := listIssues(t, "other", "")
		require.Len(t, issues, 1)
		assert.Equal(t, "other", issues[0].ProjectName)
		assert.Equal(t, "", issues[0].StatusText)
	})

	t.Run("DeleteIssue", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		created := createIssue(t, "apitest", map[string]interface{}{
			"issue_title": "Remove me", "issue_text": "now", "created_by": "alice",
		})

		body, _ := json.Marshal(map[string]interface{}{"_id": created.ID})
		req := httptest.NewRequest(http.MethodDelete, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "deleted "+created.ID, response["success"])

		assert.Empty(t, listIssues(t, "apitest", ""))

		// Deleting the same id again reports an error.
		body, _ = json.Marshal(map[string]interface{}{"_id": created.ID})
		req = httptest.NewRequest(http.MethodDelete, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w = httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "could not delete "+created.ID, response["error"])
	})

	t.Run("DeleteIssueMissingID", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		body, _ := json.Marshal(map[string]interface{}{})
		req := httptest.NewRequest(http.MethodDelete, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "_id error", response["error"])
	})

	t.Run("DeleteAllIssues", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "issues")

		for i := 0; i < 3; i++ {
			createIssue(t, "apitest", map[string]interface{}{
				"issue_title": "Bulk", "issue_text": "victim", "created_by": "alice",
			})
		}
		// Bulk deletion is scoped to the requesting project; issues of other
		// projects must survive it.
		createIssue(t, "other", map[string]interface{}{
			"issue_title": "Survivor", "issue_text": "keep", "created_by": "bob",
		})

		body, _ := json.Marshal(map[string]interface{}{"_id": issue.BulkDeleteID})
		req := httptest.NewRequest(http.MethodDelete, "/api/issues/apitest", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "deleted *", response["success"])

		// The deletion runs detached from the request; poll until done.
		require.Eventually(t, func() bool {
			count, err := pgContainer.DB.NewSelect().
				Model((*issue.Issue)(nil)).
				Where("project_name = ?", "apitest").
				Count(context.Background())
			return err == nil && count == 0
		}, 5*time.Second, 50*time.Millisecond)

		assert.Len(t, listIssues(t, "other", ""), 1)
	})
}
