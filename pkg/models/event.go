// Package models defines the core domain entities: telemetry events,
// task cards, and templates.
package models

import (
	"encoding/json"
	"time"
)

// Actor identifies who produced a telemetry event.
type Actor string

const (
	ActorUser       Actor = "user"
	ActorAssistant  Actor = "assistant"
	ActorSystem     Actor = "system"
	ActorAutonomous Actor = "autonomous"
)

// Event status values commonly seen in the telemetry log.
const (
	EventStatusOK    = "ok"
	EventStatusError = "error"
)

// Event is a single telemetry record from the context log. The log is
// produced by the host application; TGT is strictly a reader. Fields
// beyond the known set are preserved in Extra so analyzers can declare
// and consume extension fields without schema churn.
type Event struct {
	ID             string  `json:"id"`
	TS             string  `json:"ts"` // RFC3339 UTC
	Actor          Actor   `json:"actor"`
	Act            string  `json:"act"`
	Name           string  `json:"name,omitempty"`
	Status         string  `json:"status,omitempty"`
	ConvID         string  `json:"conv_id,omitempty"`
	TraceID        string  `json:"trace_id,omitempty"`
	SessionID      string  `json:"session_id,omitempty"`
	Iter           int     `json:"iter,omitempty"`
	ElapsedMS      float64 `json:"elapsed_ms,omitempty"`
	FinishReason   string  `json:"finish_reason,omitempty"`
	ContentPreview string  `json:"content_preview,omitempty"`
	ResultPreview  string  `json:"result_preview,omitempty"`
	ArgsPreview    string  `json:"args_preview,omitempty"`

	// Extra holds extension fields not covered by the typed set.
	Extra map[string]json.RawMessage `json:"-"`
}

// eventAlias avoids recursive UnmarshalJSON calls.
type eventAlias Event

// knownEventFields lists the JSON keys absorbed by the typed struct.
var knownEventFields = map[string]bool{
	"id": true, "ts": true, "actor": true, "act": true, "name": true,
	"status": true, "conv_id": true, "trace_id": true, "session_id": true,
	"iter": true, "elapsed_ms": true, "finish_reason": true,
	"content_preview": true, "result_preview": true, "args_preview": true,
}

// UnmarshalJSON decodes the typed fields and keeps everything else in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	var a eventAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k := range raw {
		if knownEventFields[k] {
			delete(raw, k)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}
	a.Extra = raw
	*e = Event(a)
	return nil
}

// MarshalJSON re-merges Extra fields into the output object.
func (e Event) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(eventAlias(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Timestamp parses the event's ts field. Returns the zero time when the
// field is absent or malformed; callers treat such events as outside any
// window.
func (e *Event) Timestamp() time.Time {
	if e.TS == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, e.TS)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// IsError reports whether the event recorded a failure.
func (e *Event) IsError() bool {
	return e.Status == EventStatusError
}

// IsAssistantResponse reports whether the event is an assistant response
// carrying a finish reason (the input population for continuation analysis).
func (e *Event) IsAssistantResponse() bool {
	return e.Actor == ActorAssistant && e.FinishReason != ""
}

// IsToolCall reports whether the event is a named tool invocation.
func (e *Event) IsToolCall() bool {
	return e.Act == "tool_call" && e.Name != ""
}
