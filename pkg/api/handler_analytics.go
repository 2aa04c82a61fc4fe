package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Analytics handles GET /api/v1/tasks/analytics.
func (s *Server) Analytics(c *gin.Context) {
	daysBack, ok := daysBackParam(c)
	if !ok {
		return
	}
	report, err := s.reports.Report(daysBack)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Funnel handles GET /api/v1/tasks/funnel.
func (s *Server) Funnel(c *gin.Context) {
	daysBack, ok := daysBackParam(c)
	if !ok {
		return
	}
	funnel, err := s.reports.Funnel(daysBack)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, funnel)
}

// AutoApprovalStats handles GET /api/v1/tasks/auto-approval/stats.
func (s *Server) AutoApprovalStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"config": gin.H{
			"enabled":          s.cfg.AutoApprove.Enabled,
			"minConfidence":    s.cfg.AutoApprove.MinConfidence,
			"trustedAnalyzers": s.cfg.AutoApprove.TrustedAnalyzers,
			"minApprovalRate":  s.cfg.AutoApprove.MinApprovalRate,
			"maxPerHour":       s.cfg.AutoApprove.MaxPerHour,
			"taskTypes":        s.cfg.AutoApprove.TaskTypes,
		},
		"stats": s.approval.Stats(),
	})
}

// daysBackParam parses the optional daysBack query parameter; writes
// the error response itself on failure.
func daysBackParam(c *gin.Context) (int, bool) {
	raw := c.Query("daysBack")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "daysBack must be a non-negative integer"})
		return 0, false
	}
	return n, true
}
