package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fieldgate/taskgen/pkg/scheduler"
)

// SchedulerStats handles GET /api/v1/tasks/scheduler/stats.
func (s *Server) SchedulerStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.sched.Stats())
}

// SchedulerRun handles POST /api/v1/tasks/scheduler/run: a manual
// trigger that respects single-flight semantics.
func (s *Server) SchedulerRun(c *gin.Context) {
	result := s.sched.RunNow(c.Request.Context(), scheduler.RunParams{})
	status := http.StatusOK
	if result.Skipped && result.SkipReason == scheduler.SkipAlreadyRunning {
		status = http.StatusConflict
	}
	c.JSON(status, result)
}
