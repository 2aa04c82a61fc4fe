package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldgate/taskgen/pkg/models"
)

// ListTemplates handles GET /api/v1/tasks/templates.
func (s *Server) ListTemplates(c *gin.Context) {
	templates := s.templates.List()
	c.JSON(http.StatusOK, TemplateListResponse{Templates: templates, Count: len(templates)})
}

// GetTemplate handles GET /api/v1/tasks/templates/:id.
func (s *Server) GetTemplate(c *gin.Context) {
	tmpl, err := s.templates.Get(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// CreateTemplate handles POST /api/v1/tasks/templates.
func (s *Server) CreateTemplate(c *gin.Context) {
	var tmpl models.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.templates.Create(tmpl); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

// UpdateTemplate handles PUT /api/v1/tasks/templates/:id.
func (s *Server) UpdateTemplate(c *gin.Context) {
	var tmpl models.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	tmpl.ID = c.Param("id")
	if err := s.templates.Update(tmpl); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

// DeleteTemplate handles DELETE /api/v1/tasks/templates/:id.
func (s *Server) DeleteTemplate(c *gin.Context) {
	if err := s.templates.Delete(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "template deleted"})
}

// FromTemplate handles POST /api/v1/tasks/from-template/:id: it
// instantiates the template and persists the resulting task.
func (s *Server) FromTemplate(c *gin.Context) {
	var req FromTemplateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
	}

	tmpl, err := s.templates.Get(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	task, err := tmpl.Instantiate(time.Now().UTC(), req.Variables)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := s.tasks.Save(task); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}
