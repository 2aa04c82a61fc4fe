package api

import "github.com/fieldgate/taskgen/pkg/models"

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TaskListResponse wraps a task list with its count.
type TaskListResponse struct {
	Tasks []models.TaskCard `json:"tasks"`
	Count int               `json:"count"`
}

// TemplateListResponse wraps the template list.
type TemplateListResponse struct {
	Templates []models.Template `json:"templates"`
	Count     int               `json:"count"`
}

// CleanupResponse reports how many tasks a cleanup removed.
type CleanupResponse struct {
	Removed int `json:"removed"`
}

// MessageResponse is a minimal acknowledgment body.
type MessageResponse struct {
	Message string `json:"message"`
}
