package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Template describes a reusable task blueprint. Title and description
// patterns contain {variable} placeholders substituted at instantiation.
type Template struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	TitlePattern       string       `json:"titlePattern"`
	DescriptionPattern string       `json:"descriptionPattern"`
	Severity           Severity     `json:"severity"`
	SuggestedFix       SuggestedFix `json:"suggestedFix"`
	AcceptanceCriteria []string     `json:"acceptanceCriteria"`
	Tags               []string     `json:"tags,omitempty"`
	BuiltIn            bool         `json:"builtIn"`
}

// AnalyzerNameTemplate marks tasks instantiated from templates.
const AnalyzerNameTemplate = "template"

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Validate enforces the structural requirements of a template.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return NewValidationError("id", "must not be empty")
	}
	if strings.TrimSpace(t.TitlePattern) == "" {
		return NewValidationError("titlePattern", "must not be empty")
	}
	if strings.TrimSpace(t.DescriptionPattern) == "" {
		return NewValidationError("descriptionPattern", "must not be empty")
	}
	if !t.Severity.Valid() {
		return NewValidationError("severity", fmt.Sprintf("unknown severity %q", t.Severity))
	}
	if len(t.AcceptanceCriteria) == 0 {
		return NewValidationError("acceptanceCriteria", "must not be empty")
	}
	return nil
}

// Instantiate substitutes {name} tokens in the title and description
// patterns and builds a generated task card. Any token left unreplaced is
// a hard error — a silently leaked placeholder would produce a broken
// task title.
func (t *Template) Instantiate(now time.Time, variables map[string]string) (TaskCard, error) {
	title, err := substitute(t.TitlePattern, variables)
	if err != nil {
		return TaskCard{}, NewValidationError("titlePattern", err.Error())
	}
	description, err := substitute(t.DescriptionPattern, variables)
	if err != nil {
		return TaskCard{}, NewValidationError("descriptionPattern", err.Error())
	}

	evidence := Evidence{
		Summary: fmt.Sprintf("Created from template %q", t.ID),
	}
	return NewTaskCard(now, TaskTypeFromTemplate, t.Severity, title, description,
		evidence, t.SuggestedFix, t.AcceptanceCriteria, 1.0, AnalyzerNameTemplate)
}

// substitute replaces every {token} with its variable value and fails on
// the first token with no binding.
func substitute(pattern string, variables map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(pattern, func(match string) string {
		key := match[1 : len(match)-1]
		if val, ok := variables[key]; ok {
			return val
		}
		missing = append(missing, key)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unreplaced template variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// BuiltinTemplates returns the immutable built-in template set. The slice
// is rebuilt on each call so callers cannot mutate the canonical copies.
func BuiltinTemplates() []Template {
	return []Template{
		{
			ID:                 "builtin-investigate-error",
			Name:               "Investigate recurring error",
			TitlePattern:       "Investigate recurring error in {tool}",
			DescriptionPattern: "The tool {tool} has been failing repeatedly ({count} occurrences). Review the error logs, identify the root cause, and ship a fix or add retries where appropriate.",
			Severity:           SeverityHigh,
			SuggestedFix: SuggestedFix{
				Approach: "investigate_and_fix",
				Changes:  []string{"Reproduce the failure", "Patch the failing code path", "Add a regression test"},
			},
			AcceptanceCriteria: []string{"Error rate for {tool} returns to baseline", "Root cause documented"},
			Tags:               []string{"errors"},
			BuiltIn:            true,
		},
		{
			ID:                 "builtin-document-tool",
			Name:               "Document undocumented tool",
			TitlePattern:       "Write documentation for {tool}",
			DescriptionPattern: "The tool {tool} is used frequently but lacks documentation. Write a reference entry covering parameters, behavior, and failure modes.",
			Severity:           SeverityMedium,
			SuggestedFix: SuggestedFix{
				Approach: "write_documentation",
				Changes:  []string{"Add a docs entry for the tool", "Link it from the tool index"},
			},
			AcceptanceCriteria: []string{"Documentation for {tool} exists and is discoverable"},
			Tags:               []string{"docs"},
			BuiltIn:            true,
		},
		{
			ID:                 "builtin-latency-regression",
			Name:               "Latency regression",
			TitlePattern:       "Profile latency regression in {operation}",
			DescriptionPattern: "The operation {operation} is running {ratio}x slower than its historical baseline. Profile the hot path and restore the previous latency envelope.",
			Severity:           SeverityHigh,
			SuggestedFix: SuggestedFix{
				Approach: "profile_and_optimize",
				Changes:  []string{"Capture a profile under load", "Optimize the dominant cost center"},
			},
			AcceptanceCriteria: []string{"p95 latency for {operation} within 1.2x of baseline"},
			Tags:               []string{"performance"},
			BuiltIn:            true,
		},
		{
			ID:                 "builtin-truncated-responses",
			Name:               "Truncated responses",
			TitlePattern:       "Reduce truncated responses for {model}",
			DescriptionPattern: "Responses from {model} are being cut off before completion. Review max-token limits and prompt sizing so responses finish naturally.",
			Severity:           SeverityHigh,
			SuggestedFix: SuggestedFix{
				Approach: "adjust_configuration",
				Changes:  []string{"Raise the max-token ceiling or trim prompt overhead"},
			},
			AcceptanceCriteria: []string{"Truncation rate for {model} below 5%"},
			Tags:               []string{"llm"},
			BuiltIn:            true,
		},
		{
			ID:                 "builtin-ux-review",
			Name:               "UX friction review",
			TitlePattern:       "Review user-experience friction: {symptom}",
			DescriptionPattern: "Telemetry shows user-experience friction: {symptom}. Reproduce the affected flows and remove the friction point.",
			Severity:           SeverityMedium,
			SuggestedFix: SuggestedFix{
				Approach: "investigate_and_fix",
				Changes:  []string{"Walk the affected conversation flows", "Fix the dominant friction source"},
			},
			AcceptanceCriteria: []string{"Affected flow completes without the reported friction"},
			Tags:               []string{"ux"},
			BuiltIn:            true,
		},
	}
}
