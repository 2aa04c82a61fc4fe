package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldgate/taskgen/pkg/models"
	"github.com/fieldgate/taskgen/pkg/scheduler"
)

// ListTasks handles GET /api/v1/tasks with optional status, type, and
// limit query parameters.
func (s *Server) ListTasks(c *gin.Context) {
	filter := models.TaskFilter{
		Status: models.Status(c.Query("status")),
		Type:   models.TaskType(c.Query("type")),
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	tasks, err := s.tasks.Load(filter, limit)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, TaskListResponse{Tasks: tasks, Count: len(tasks)})
}

// GetTask handles GET /api/v1/tasks/:id.
func (s *Server) GetTask(c *gin.Context) {
	task, err := s.tasks.Get(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// TaskStats handles GET /api/v1/tasks/stats.
func (s *Server) TaskStats(c *gin.Context) {
	stats, err := s.tasks.Stats()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ApproveTask handles POST /api/v1/tasks/:id/approve.
func (s *Server) ApproveTask(c *gin.Context) {
	task, err := s.tasks.Approve(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// DismissTask handles POST /api/v1/tasks/:id/dismiss.
func (s *Server) DismissTask(c *gin.Context) {
	var req DismissRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "reason is required"})
		return
	}
	task, err := s.tasks.Dismiss(c.Param("id"), req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// CompleteTask handles POST /api/v1/tasks/:id/complete.
func (s *Server) CompleteTask(c *gin.Context) {
	task, err := s.tasks.Complete(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// Cleanup handles POST /api/v1/tasks/cleanup.
func (s *Server) Cleanup(c *gin.Context) {
	req := CleanupRequest{DaysOld: s.cfg.Cleanup.DaysOld}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}
	removed, err := s.tasks.Cleanup(req.DaysOld)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, CleanupResponse{Removed: removed})
}

// Suggest handles POST /api/v1/tasks/suggest: one synchronous analysis
// run with optional parameter overrides.
func (s *Server) Suggest(c *gin.Context) {
	var req SuggestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}
	params := scheduler.RunParams{
		Window:        time.Duration(req.WindowMinutes) * time.Minute,
		MinConfidence: req.MinConfidence,
		MaxTasks:      req.MaxTasks,
	}
	result := s.sched.RunNow(c.Request.Context(), params)
	status := http.StatusOK
	if result.Skipped && result.SkipReason == scheduler.SkipAlreadyRunning {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}
