package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// BatchApprove handles POST /api/v1/tasks/batch/approve.
func (s *Server) BatchApprove(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	result, err := s.tasks.BatchApprove(req.TaskIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BatchDismiss handles POST /api/v1/tasks/batch/dismiss.
func (s *Server) BatchDismiss(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	result, err := s.tasks.BatchDismiss(req.TaskIDs, req.Reason)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
