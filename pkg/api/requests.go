package api

// DismissRequest carries the mandatory dismissal reason.
type DismissRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CleanupRequest sets the dismissed-task retention horizon in days.
type CleanupRequest struct {
	DaysOld int `json:"daysOld"`
}

// SuggestRequest overrides the analysis parameters for one manual run.
type SuggestRequest struct {
	WindowMinutes int     `json:"windowMinutes"`
	MinConfidence float64 `json:"minConfidence"`
	MaxTasks      int     `json:"maxTasks"`
}

// BatchRequest names the tasks for a batch transition. Reason is
// required for dismissals only.
type BatchRequest struct {
	TaskIDs []string `json:"taskIds" binding:"required"`
	Reason  string   `json:"reason"`
}

// FromTemplateRequest carries the substitution variables for template
// instantiation.
type FromTemplateRequest struct {
	Variables map[string]string `json:"variables"`
}
