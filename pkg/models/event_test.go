package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventUnmarshalPreservesExtraFields(t *testing.T) {
	line := `{"id":"e1","ts":"2026-08-24T10:00:00Z","actor":"assistant","act":"llm_response",` +
		`"finish_reason":"length","model":"gpt-x","tokens":4096}`

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(line), &ev))

	assert.Equal(t, "e1", ev.ID)
	assert.Equal(t, ActorAssistant, ev.Actor)
	assert.Equal(t, "length", ev.FinishReason)
	require.Len(t, ev.Extra, 2)
	assert.JSONEq(t, `"gpt-x"`, string(ev.Extra["model"]))
	assert.JSONEq(t, `4096`, string(ev.Extra["tokens"]))
}

func TestEventMarshalRoundTripsExtraFields(t *testing.T) {
	ev := Event{
		ID:    "e2",
		TS:    "2026-08-24T10:00:00Z",
		Actor: ActorSystem,
		Act:   "tool_call",
		Name:  "read_file",
		Extra: map[string]json.RawMessage{"attempt": json.RawMessage(`2`)},
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "read_file", decoded["name"])
	assert.Equal(t, float64(2), decoded["attempt"])
}

func TestEventTimestamp(t *testing.T) {
	ev := Event{TS: "2026-08-24T10:00:00Z"}
	assert.Equal(t, 2026, ev.Timestamp().Year())

	assert.True(t, (&Event{}).Timestamp().IsZero())
	assert.True(t, (&Event{TS: "yesterday"}).Timestamp().IsZero())
}

func TestEventPredicates(t *testing.T) {
	assert.True(t, (&Event{Status: EventStatusError}).IsError())
	assert.False(t, (&Event{Status: EventStatusOK}).IsError())

	assert.True(t, (&Event{Actor: ActorAssistant, FinishReason: "stop"}).IsAssistantResponse())
	assert.False(t, (&Event{Actor: ActorAssistant}).IsAssistantResponse())
	assert.False(t, (&Event{Actor: ActorUser, FinishReason: "stop"}).IsAssistantResponse())

	assert.True(t, (&Event{Act: "tool_call", Name: "grep"}).IsToolCall())
	assert.False(t, (&Event{Act: "tool_call"}).IsToolCall())
}
