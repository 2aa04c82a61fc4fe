// Package api exposes the task generator over HTTP: task listing and
// decisions, scheduler control, the live stream, templates, batches,
// and analytics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldgate/taskgen/pkg/analytics"
	"github.com/fieldgate/taskgen/pkg/autoapprove"
	"github.com/fieldgate/taskgen/pkg/config"
	"github.com/fieldgate/taskgen/pkg/events"
	"github.com/fieldgate/taskgen/pkg/scheduler"
	"github.com/fieldgate/taskgen/pkg/store"
)

const streamRoute = "/api/v1/tasks/stream"

// Server wires the HTTP surface to the service layer.
type Server struct {
	cfg       *config.Config
	tasks     *store.Store
	templates *store.TemplateRegistry
	sched     *scheduler.Scheduler
	hub       *events.Hub
	approval  *autoapprove.Engine
	reports   *analytics.Engine

	httpSrv *http.Server
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, tasks *store.Store, templates *store.TemplateRegistry,
	sched *scheduler.Scheduler, hub *events.Hub, approval *autoapprove.Engine,
	reports *analytics.Engine) *Server {
	return &Server{
		cfg:       cfg,
		tasks:     tasks,
		templates: templates,
		sched:     sched,
		hub:       hub,
		approval:  approval,
		reports:   reports,
	}
}

// Routes builds the gin engine with all endpoints registered.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(recovery(), requestLogger())

	r.GET("/health", s.Health)

	v1 := r.Group("/api/v1")
	tasks := v1.Group("/tasks")
	{
		tasks.GET("", s.ListTasks)
		tasks.GET("/stats", s.TaskStats)
		tasks.POST("/suggest", s.Suggest)
		tasks.POST("/cleanup", s.Cleanup)

		tasks.GET("/scheduler/stats", s.SchedulerStats)
		tasks.POST("/scheduler/run", s.SchedulerRun)

		tasks.GET("/stream", s.Stream)

		tasks.GET("/analytics", s.Analytics)
		tasks.GET("/funnel", s.Funnel)
		tasks.GET("/auto-approval/stats", s.AutoApprovalStats)

		tasks.GET("/templates", s.ListTemplates)
		tasks.POST("/templates", s.CreateTemplate)
		tasks.GET("/templates/:id", s.GetTemplate)
		tasks.PUT("/templates/:id", s.UpdateTemplate)
		tasks.DELETE("/templates/:id", s.DeleteTemplate)
		tasks.POST("/from-template/:id", s.FromTemplate)

		tasks.POST("/batch/approve", s.BatchApprove)
		tasks.POST("/batch/dismiss", s.BatchDismiss)

		tasks.GET("/:id", s.GetTask)
		tasks.POST("/:id/approve", s.ApproveTask)
		tasks.POST("/:id/dismiss", s.DismissTask)
		tasks.POST("/:id/complete", s.CompleteTask)
	}

	return r
}

// Start begins serving on addr; blocks until the listener fails or the
// server shuts down.
func (s *Server) Start(addr string) error {
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
