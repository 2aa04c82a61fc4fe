package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldgate/taskgen/pkg/analytics"
	"github.com/fieldgate/taskgen/pkg/analyzer"
	"github.com/fieldgate/taskgen/pkg/autoapprove"
	"github.com/fieldgate/taskgen/pkg/config"
	"github.com/fieldgate/taskgen/pkg/contextlog"
	"github.com/fieldgate/taskgen/pkg/events"
	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/scheduler"
	"github.com/fieldgate/taskgen/pkg/store"
)

type testEnv struct {
	router *gin.Engine
	tasks  *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg, err := config.Initialize(context.Background(), t.TempDir())
	require.NoError(t, err)

	tasks, err := store.NewStore(t.TempDir())
	require.NoError(t, err)
	templates, err := store.NewTemplateRegistry(t.TempDir())
	require.NoError(t, err)

	reader := contextlog.NewReader(t.TempDir())
	sched := scheduler.New(scheduler.Config{
		Enabled:         true,
		Window:          cfg.Generation.Window,
		MinConfidence:   cfg.Generation.MinConfidence,
		MaxTasksPerRun:  cfg.Generation.MaxTasksPerRun,
		MaxTasksPerHour: cfg.Generation.MaxTasksPerHour,
	}, reader, analyzer.NewRegistry(), tasks, nil, nil)

	hub := events.NewHub(tasks)
	approval := autoapprove.New(autoapprove.Config{}, tasks, nil)
	reports := analytics.New(tasks)

	srv := NewServer(cfg, tasks, templates, sched, hub, approval, reports)
	return &testEnv{router: srv.Routes(), tasks: tasks}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func seedTask(t *testing.T, tasks *store.Store, title string) models.TaskCard {
	t.Helper()
	task, err := models.NewTaskCard(time.Now().UTC(), models.TaskTypeErrorSpike,
		models.SeverityHigh, title, "description",
		models.Evidence{Summary: "evidence"},
		models.SuggestedFix{Approach: "investigate_and_fix"},
		[]string{"resolved"}, 0.8, "error_spike")
	require.NoError(t, err)
	// IDs are interpolated into request paths, so the suffix must stay
	// URL-safe.
	task.ID = fmt.Sprintf("%s-%s", task.ID, strings.ReplaceAll(title, " ", "-"))
	require.NoError(t, tasks.Save(task))
	return task
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env.tasks, "first")
	seedTask(t, env.tasks, "second")

	rec := env.do(t, http.MethodGet, "/api/v1/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Tasks, 2)
}

func TestListTasksFilterAndLimit(t *testing.T) {
	env := newTestEnv(t)
	a := seedTask(t, env.tasks, "stays generated")
	seedTask(t, env.tasks, "gets approved")
	_, err := env.tasks.Approve(a.ID)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks?status=generated&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TaskListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTask(t *testing.T) {
	env := newTestEnv(t)
	task := seedTask(t, env.tasks, "fetch me")

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.TaskCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, task.ID, got.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/task-missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproveTask(t *testing.T) {
	env := newTestEnv(t)
	task := seedTask(t, env.tasks, "approve me")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.TaskCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.StatusApproved, got.Status)

	// A second approval is an illegal transition.
	rec = env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/approve", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDismissTaskRequiresReason(t *testing.T) {
	env := newTestEnv(t)
	task := seedTask(t, env.tasks, "dismiss me")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/dismiss", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/dismiss",
		DismissRequest{Reason: "not actionable"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.TaskCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.StatusDismissed, got.Status)
	assert.Equal(t, "not actionable", got.DismissReason)
}

func TestCompleteTask(t *testing.T) {
	env := newTestEnv(t)
	task := seedTask(t, env.tasks, "complete me")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/"+task.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestTaskStats(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env.tasks, "counted")

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats store.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)
}

func TestSuggestEmptyWindow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/suggest", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result scheduler.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Skipped)
	assert.Equal(t, scheduler.SkipNoEvents, result.SkipReason)
}

func TestSchedulerStatsAndRun(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/scheduler/run", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/scheduler/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats scheduler.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalRuns)
}

func TestBatchApprove(t *testing.T) {
	env := newTestEnv(t)
	a := seedTask(t, env.tasks, "batch a")
	b := seedTask(t, env.tasks, "batch b")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/batch/approve",
		BatchRequest{TaskIDs: []string{a.ID, b.ID, "task-ghost"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var result store.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Len(t, result.Succeeded, 2)
	assert.Equal(t, []string{"task-ghost"}, result.NotFound)

	// Missing body fails binding.
	rec = env.do(t, http.MethodPost, "/api/v1/tasks/batch/approve", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchDismiss(t *testing.T) {
	env := newTestEnv(t)
	a := seedTask(t, env.tasks, "batch noise")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/batch/dismiss",
		BatchRequest{TaskIDs: []string{a.ID}, Reason: "bulk triage"})
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := env.tasks.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "bulk triage", got.DismissReason)
}

func TestTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)

	tmpl := models.Template{
		ID:                 "tmpl-custom",
		Name:               "custom check",
		TitlePattern:       "Check {target}",
		DescriptionPattern: "Investigate {target}",
		Severity:           models.SeverityMedium,
		AcceptanceCriteria: []string{"checked"},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/templates", tmpl)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/templates/tmpl-custom", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tmpl.TitlePattern = "Re-check {target}"
	rec = env.do(t, http.MethodPut, "/api/v1/tasks/templates/tmpl-custom", tmpl)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/templates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list TemplateListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, len(models.BuiltinTemplates())+1, list.Count)

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/templates/tmpl-custom", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/templates/tmpl-custom", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTemplateBuiltinProtection(t *testing.T) {
	env := newTestEnv(t)
	builtinID := models.BuiltinTemplates()[0].ID

	tmpl := models.Template{
		ID:                 builtinID,
		TitlePattern:       "Hijack",
		DescriptionPattern: "attempt",
		Severity:           models.SeverityLow,
		AcceptanceCriteria: []string{"nope"},
	}

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/templates", tmpl)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/v1/tasks/templates/"+builtinID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFromTemplate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/from-template/builtin-document-tool",
		FromTemplateRequest{Variables: map[string]string{
			"tool":  "read_file",
			"count": "40",
		}})
	require.Equal(t, http.StatusCreated, rec.Code)

	var task models.TaskCard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, models.TaskTypeFromTemplate, task.Type)
	assert.Contains(t, task.Title, "read_file")

	got, err := env.tasks.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusGenerated, got.Status)
}

func TestFunnelEndpoint(t *testing.T) {
	env := newTestEnv(t)
	task := seedTask(t, env.tasks, "funnel subject")
	_, err := env.tasks.Approve(task.ID)
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/funnel?daysBack=7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var funnel analytics.Funnel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &funnel))
	assert.Equal(t, 7, funnel.DaysBack)
	assert.Equal(t, 1, funnel.Generated.Count)
	assert.Equal(t, 1, funnel.Approved.Count)

	rec = env.do(t, http.MethodGet, "/api/v1/tasks/funnel?daysBack=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyticsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env.tasks, "analyzed")

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report analytics.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Total)
}

func TestAutoApprovalStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/tasks/auto-approval/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "config")
	assert.Contains(t, body, "stats")
}

func TestCleanupEndpoint(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env.tasks, "nothing to clean")

	rec := env.do(t, http.MethodPost, "/api/v1/tasks/cleanup", CleanupRequest{DaysOld: 30})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CleanupResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Zero(t, resp.Removed)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
